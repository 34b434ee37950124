package launcher

import (
	"bufio"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/gm/pkg/models"
)

// criticalPatterns are stderr substrings that indicate the host is running
// out of a shared resource rather than the agent hitting an ordinary error.
// A session's stderr is watched for these so a runaway agent doesn't starve
// every other concurrent session.
var criticalPatterns = []string{
	"No space left on device",
	"ENOSPC",
	"disk quota exceeded",
	"cannot allocate memory",
	"OSError: [Errno 28]",
}

// criticalErrorThreshold is how many times a single pattern must recur in a
// session's stderr before that session is killed.
const criticalErrorThreshold = 2

// watch streams a running command's stdout and stderr concurrently,
// collecting stdout into the returned output string. If any critical error
// pattern appears at least criticalErrorThreshold times in stderr, the
// process is killed and killed is reported true.
func (l *Launcher) watch(task Task, cmd *exec.Cmd, stdout, stderr io.Reader) (output string, killed bool) {
	var mu sync.Mutex
	var outLines []string
	counts := make(map[string]int)
	killedFlag := false

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			outLines = append(outLines, line)
			mu.Unlock()
			l.publishOutput(task, "stdout", line)
		}
	}()

	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			l.publishOutput(task, "stderr", line)
			for _, pattern := range criticalPatterns {
				if !strings.Contains(line, pattern) {
					continue
				}
				mu.Lock()
				counts[pattern]++
				hit := counts[pattern] >= criticalErrorThreshold
				mu.Unlock()
				if hit {
					mu.Lock()
					already := killedFlag
					killedFlag = true
					mu.Unlock()
					if !already {
						_ = cmd.Process.Kill()
						l.bus.Publish(models.Event{
							Type:      models.EventResourceError,
							ProjectID: task.ProjectID,
							Time:      time.Now(),
							ResourceError: &models.ResourceErrorPayload{
								SessionID: task.SessionID,
								Pattern:   pattern,
							},
						})
					}
				}
			}
		}
	}()

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return strings.Join(outLines, "\n"), killedFlag
}

// publishOutput emits one session_output event per stdout/stderr line,
// mirroring the original's per-line team_progress stream events.
func (l *Launcher) publishOutput(task Task, stream, line string) {
	l.bus.Publish(models.Event{
		Type:      models.EventSessionOutput,
		ProjectID: task.ProjectID,
		Time:      time.Now(),
		SessionOutput: &models.SessionOutputPayload{
			SessionID: task.SessionID,
			Stream:    stream,
			Line:      line,
		},
	})
}
