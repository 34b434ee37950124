// Package watch provides a live terminal view of a General Manager
// project's progress. `gm watch` drives it with snapshots polled from the
// store (SnapshotMsg); bus events can also be fed in as EventMsg.
package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/gm/pkg/models"
)

var (
	phaseStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#45B7D1"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFC857"))
)

// sessionRow tracks one agent session's last known state for rendering.
type sessionRow struct {
	id, team, status, merge string
}

// EventMsg wraps a bus event for delivery into the bubbletea update loop.
type EventMsg struct {
	Event models.Event
}

// DoneMsg is sent once the project reaches a terminal phase.
type DoneMsg struct{}

// SnapshotMsg carries a freshly polled view of a project's persisted state:
// its current phase/sessions plus any log rows not yet seen. It is how
// `gm watch` drives this model when it has no live event bus to subscribe
// to (the project's launching process is a separate gm invocation).
type SnapshotMsg struct {
	Project  *models.Project
	Sessions []models.AgentSession
	NewLogs  []models.LogEntry
}

// App is the bubbletea model behind `gm watch`.
type App struct {
	projectID string
	phase     models.Phase
	sessions  map[string]*sessionRow
	order     []string
	logs      []string
	quitting  bool
	done      bool
	width     int
	spinner   spinner.Model
}

// New creates a watch App for the named project.
func New(projectID string) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = phaseStyle

	return &App{
		projectID: projectID,
		phase:     models.PhaseCreated,
		sessions:  make(map[string]*sessionRow),
		logs:      make([]string, 0, 64),
		spinner:   sp,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd { return a.spinner.Tick }

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			a.quitting = true
			return a, tea.Quit
		}
	case tea.WindowSizeMsg:
		a.width = msg.Width
	case EventMsg:
		a.apply(msg.Event)
	case SnapshotMsg:
		a.applySnapshot(msg)
	case DoneMsg:
		a.done = true
	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) apply(ev models.Event) {
	switch ev.Type {
	case models.EventPhaseChanged:
		if ev.PhaseChanged != nil {
			a.phase = ev.PhaseChanged.To
		}
	case models.EventSessionStarted:
		if p := ev.SessionStarted; p != nil {
			a.row(p.SessionID).team = p.TeamName
			a.row(p.SessionID).status = string(models.SessionRunning)
		}
	case models.EventSessionFinished:
		if p := ev.SessionFinished; p != nil {
			a.row(p.SessionID).status = string(p.Status)
		}
	case models.EventMergeConflict:
		if p := ev.MergeConflict; p != nil {
			a.row(p.SessionID).merge = "conflict"
		}
	case models.EventMergeResolved:
		if p := ev.MergeResolved; p != nil {
			a.row(p.SessionID).merge = "resolved"
		}
	case models.EventMergeSkipped:
		if p := ev.MergeSkipped; p != nil {
			a.row(p.SessionID).merge = "skipped: " + p.Reason
		}
	case models.EventBuildResult:
		if p := ev.BuildResult; p != nil {
			a.addLog(fmt.Sprintf("build attempt %d: %s", p.Attempt, pass(p.Success)))
		}
	case models.EventTestResult:
		if p := ev.TestResult; p != nil {
			a.addLog(fmt.Sprintf("test attempt %d: %s", p.Attempt, pass(p.Success)))
		}
	case models.EventResourceError:
		if p := ev.ResourceError; p != nil {
			a.addLog(fmt.Sprintf("resource error on %s: %s", p.SessionID, p.Pattern))
		}
	case models.EventLog:
		if p := ev.Log; p != nil {
			a.addLog(fmt.Sprintf("[%s] %s", p.Level, p.Message))
		}
	case models.EventProjectDone:
		a.done = true
	}
}

// applySnapshot folds a polled store read into the model: phase, each
// session's last known status/merge outcome, and any log lines appended
// since the previous poll.
func (a *App) applySnapshot(s SnapshotMsg) {
	if s.Project != nil {
		a.phase = s.Project.Phase
		if s.Project.Phase.Terminal() {
			a.done = true
		}
	}
	for _, sess := range s.Sessions {
		row := a.row(sess.ID)
		row.team = sess.TeamName
		row.status = string(sess.Status)
		row.merge = string(sess.MergeStatus)
	}
	for _, entry := range s.NewLogs {
		a.addLog(fmt.Sprintf("[%s] %s", entry.Level, entry.Message))
	}
}

func pass(ok bool) string {
	if ok {
		return okStyle.Render("pass")
	}
	return errStyle.Render("fail")
}

func (a *App) row(sessionID string) *sessionRow {
	r, ok := a.sessions[sessionID]
	if !ok {
		r = &sessionRow{id: sessionID}
		a.sessions[sessionID] = r
		a.order = append(a.order, sessionID)
	}
	return r
}

func (a *App) addLog(line string) {
	ts := time.Now().Format("15:04:05")
	a.logs = append(a.logs, fmt.Sprintf("%s %s", dimStyle.Render(ts), line))
	if len(a.logs) > 200 {
		a.logs = a.logs[len(a.logs)-200:]
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	header := fmt.Sprintf("%s  %s", titleStyle.Render("gm watch"), dimStyle.Render(a.projectID))
	indicator := a.spinner.View()
	if a.done {
		indicator = okStyle.Render("done")
	}
	status := fmt.Sprintf("%s phase: %s", indicator, phaseStyle.Render(string(a.phase)))

	var sessions string
	if len(a.order) == 0 {
		sessions = dimStyle.Render("no sessions yet")
	}
	for _, id := range a.order {
		r := a.sessions[id]
		sessions += fmt.Sprintf("  %s  %-16s %-10s merge=%s\n", short(r.id), r.team, r.status, r.merge)
	}

	logStart := 0
	if len(a.logs) > 15 {
		logStart = len(a.logs) - 15
	}
	var logs string
	for _, line := range a.logs[logStart:] {
		logs += line + "\n"
	}

	footer := "press q to stop watching (the project keeps running in its launching gm process)"
	if a.done {
		footer = fmt.Sprintf("%s  press q to exit", okStyle.Render("project finished."))
	}

	return fmt.Sprintf("%s\n%s\n\nsessions:\n%s\nrecent log:\n%s\n%s\n", header, status, sessions, logs, dimStyle.Render(footer))
}

func short(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
