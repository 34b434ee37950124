package gm

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/gm/internal/git"
	"github.com/ShayCichocki/gm/pkg/models"
)

// maxBuildFixAttempts and maxTestFixAttempts bound how many times a repair
// agent gets to fix a failing build or test run before the project fails.
const (
	maxBuildFixAttempts = 3
	maxTestFixAttempts  = 3
	gateCommandTimeout  = 300 * time.Second
	outputTailBytes     = 4096
)

// runBuildGate runs the project's build command, and if it fails, repeatedly
// asks a repair agent to fix the compilation errors (without touching test
// expectations) and retries, up to maxBuildFixAttempts times. It is called
// both inline after every successful merge and as the final building-phase
// gate, so it does not itself decide whether a failure is fatal — the
// caller does.
func (m *Manager) runBuildGate(ctx context.Context, project *models.Project) bool {
	if project.BuildCmd == "" {
		return true
	}

	m.bus.Publish(models.Event{
		Type:      models.EventBuildStarted,
		ProjectID: project.ID,
		Time:      time.Now(),
		BuildStarted: &models.BuildStartedPayload{
			Attempt: 1,
		},
	})

	for attempt := 1; attempt <= maxBuildFixAttempts+1; attempt++ {
		ok, output := m.runGateCommand(ctx, project.RepoPath, project.BuildCmd)
		m.bus.Publish(models.Event{
			Type:      models.EventBuildResult,
			ProjectID: project.ID,
			Time:      time.Now(),
			BuildResult: &models.BuildResultPayload{
				Attempt: attempt,
				Success: ok,
				Output:  output,
			},
		})
		if ok {
			return true
		}
		if attempt > maxBuildFixAttempts {
			break
		}

		_ = m.store.SetBuildFixAttempts(project.ID, attempt)
		project.BuildFixAttempts = attempt
		m.bus.Publish(models.Event{
			Type:      models.EventBuildFixAttempt,
			ProjectID: project.ID,
			Time:      time.Now(),
			BuildFixAttempt: &models.BuildFixAttemptPayload{
				Attempt: attempt,
			},
		})

		prompt := fmt.Sprintf(
			"The build command `%s` is failing. Fix the compilation errors below; do not change test expectations.\n\n%s",
			project.BuildCmd, tail(output, outputTailBytes),
		)
		if !runRepairAgent(ctx, project.RepoPath, prompt) {
			continue
		}
		m.commitFix(project.RepoPath, fmt.Sprintf("fix: build fix attempt %d", attempt))
	}

	return false
}

// runTestGate mirrors runBuildGate for the project's test command, with a
// prompt that forbids weakening test expectations to make them pass.
func (m *Manager) runTestGate(ctx context.Context, project *models.Project) bool {
	if project.TestCmd == "" {
		return true
	}

	m.bus.Publish(models.Event{
		Type:      models.EventTestStarted,
		ProjectID: project.ID,
		Time:      time.Now(),
		TestStarted: &models.TestStartedPayload{
			Attempt: 1,
		},
	})

	for attempt := 1; attempt <= maxTestFixAttempts+1; attempt++ {
		ok, output := m.runGateCommand(ctx, project.RepoPath, project.TestCmd)
		m.bus.Publish(models.Event{
			Type:      models.EventTestResult,
			ProjectID: project.ID,
			Time:      time.Now(),
			TestResult: &models.TestResultPayload{
				Attempt: attempt,
				Success: ok,
				Output:  output,
			},
		})
		if ok {
			return true
		}
		if attempt > maxTestFixAttempts {
			break
		}

		_ = m.store.SetTestFixAttempts(project.ID, attempt)
		project.TestFixAttempts = attempt
		m.bus.Publish(models.Event{
			Type:      models.EventTestFixAttempt,
			ProjectID: project.ID,
			Time:      time.Now(),
			TestFixAttempt: &models.TestFixAttemptPayload{
				Attempt: attempt,
			},
		})

		prompt := fmt.Sprintf(
			"Tests are failing via `%s`. Do NOT modify test expectations — fix the actual implementation code.\n\n%s",
			project.TestCmd, tail(output, outputTailBytes),
		)
		if !runRepairAgent(ctx, project.RepoPath, prompt) {
			continue
		}
		m.commitFix(project.RepoPath, fmt.Sprintf("fix: test fix attempt %d", attempt))
	}

	return false
}

func (m *Manager) runGateCommand(ctx context.Context, repoPath, command string) (bool, string) {
	runCtx, cancel := context.WithTimeout(ctx, gateCommandTimeout)
	defer cancel()

	output, err := m.runner.RunShell(runCtx, repoPath, command)
	return err == nil, string(output)
}

func (m *Manager) commitFix(repoPath, message string) {
	runner := git.NewRunner(repoPath)
	hasChanges, err := runner.HasChanges()
	if err != nil || !hasChanges {
		return
	}
	_ = runner.Add(".")
	_ = runner.Commit(message)
}

// tail returns the last n bytes of s, matching the original's truncation of
// repair-agent prompts to a bounded context window.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
