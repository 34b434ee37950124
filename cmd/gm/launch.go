package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ShayCichocki/gm/internal/config"
	"github.com/ShayCichocki/gm/internal/events"
	gmexec "github.com/ShayCichocki/gm/internal/exec"
	"github.com/ShayCichocki/gm/internal/gm"
	"github.com/ShayCichocki/gm/internal/launcher"
	"github.com/ShayCichocki/gm/internal/store"
	"github.com/ShayCichocki/gm/pkg/models"
)

var (
	launchTemplate string
	launchRepo     string
	launchDesc     string
	launchDetach   bool
)

// gmDetachedEnvVar marks a re-exec'd child as already detached, so it runs
// the launch in the foreground instead of forking again.
const gmDetachedEnvVar = "GM_DETACHED"

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch a new project from a gm_projects template",
	Args:  cobra.NoArgs,
	RunE:  runLaunch,
}

func init() {
	launchCmd.Flags().StringVarP(&launchTemplate, "template", "t", "", "gm_projects template name (required)")
	launchCmd.Flags().StringVar(&launchRepo, "repo", "", "repository path (defaults to config)")
	launchCmd.Flags().StringVarP(&launchDesc, "description", "d", "", "override the template's description")
	launchCmd.Flags().BoolVar(&launchDetach, "detach", false, "fork into the background instead of waiting for the project to finish")
	launchCmd.MarkFlagRequired("template")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	if err := checkClaudeCLI(); err != nil {
		return err
	}

	if launchDetach && os.Getenv(gmDetachedEnvVar) == "" {
		return detachAndReexec(cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	repoPath := launchRepo
	if repoPath == "" {
		repoPath = cfg.Repo.Path
	}

	templatesPath := cfg.Repo.Path + "/gm.yaml"
	templates, err := config.LoadTemplates(templatesPath)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	tpl, teamDefs, err := templates.Project(launchTemplate)
	if err != nil {
		return err
	}

	description := launchDesc
	if description == "" {
		description = tpl.Description
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	bus := events.New()
	l := launcher.New(repoPath, cfg.Repo.OutputsDir, bus)
	runner := gmexec.NewRunner()
	buildCmd := cfg.Repo.BuildCmd
	if tpl.BuildCmd != "" {
		buildCmd = tpl.BuildCmd
	}
	testCmd := cfg.Repo.TestCmd
	if tpl.TestCmd != "" {
		testCmd = tpl.TestCmd
	}

	manager := gm.New(st, bus, l, runner)

	var teams []gm.Team
	for _, def := range teamDefs {
		teams = append(teams, gm.Team{Name: def.Name, Description: def.Description})
	}

	projectID, err := manager.LaunchProject(context.Background(), launchTemplate, repoPath, cfg.Repo.BaseBranch, description, buildCmd, testCmd, teams)
	if err != nil {
		return fmt.Errorf("launch project: %w", err)
	}

	fmt.Printf("launched project %s with %d team(s)\n", projectID, len(teams))

	// This run's teams are already fixed, so a template edit can't reach the
	// in-flight project; it only matters for whatever gets launched next, so
	// just surface it while we sit here waiting.
	templateWatchStop := make(chan struct{})
	defer close(templateWatchStop)
	if err := config.WatchTemplates(templatesPath, func(*config.Templates) {
		log.Printf("gm: %s changed; this run keeps its original teams, next launch will pick it up", templatesPath)
	}, templateWatchStop); err != nil {
		log.Printf("gm: watch %s for changes: %v", templatesPath, err)
	}

	// There is no separate orchestrator process: this invocation of gm is
	// the thing keeping the project's goroutines and claude subprocesses
	// alive, so block here until the pipeline reaches a terminal phase.
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := manager.Wait(sigCtx, projectID); err != nil {
		fmt.Println("interrupted, cancelling project...")
		manager.CancelProject(projectID)
		manager.Wait(context.Background(), projectID)
		return fmt.Errorf("launch interrupted: %w", err)
	}

	project, err := st.GetProject(projectID)
	if err == nil && project != nil {
		fmt.Printf("project %s finished: %s\n", projectID, project.Phase)
		if project.Phase == models.PhaseFailed {
			return fmt.Errorf("project failed: %s", project.Error)
		}
	}
	return nil
}

// detachAndReexec re-launches the current command as a session-leader child
// with its own process group, so the child survives this invocation
// returning, then exits immediately. Output that would otherwise have gone
// to the terminal is captured to a log file under the store directory.
// Mirrors the self re-exec used to background the assembly-line runner.
func detachAndReexec(cmd *cobra.Command) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving self: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logDir := filepath.Join(filepath.Dir(cfg.Store.Path), "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("launch-%s.log", time.Now().UTC().Format("20060102-150405")))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	childArgs := []string{"launch"}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == "detach" {
			return
		}
		childArgs = append(childArgs, "--"+f.Name, f.Value.String())
	})

	child := exec.Command(self, childArgs...)
	child.Dir, _ = os.Getwd()
	child.Stdin = nil
	child.Stdout = logFile
	child.Stderr = logFile
	child.Env = append(os.Environ(), gmDetachedEnvVar+"=1")
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("spawning detached launch: %w", err)
	}
	if err := child.Process.Release(); err != nil {
		return fmt.Errorf("detaching launch: %w", err)
	}

	fmt.Printf("launching in the background (pid %d); following: gm status, or tail -f %s\n", child.Process.Pid, logPath)
	return nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return st, nil
}
