package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/crossgate-ci/crossgate/internal/config"
	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/notify"
	"github.com/crossgate-ci/crossgate/internal/orchestrator"
	"github.com/crossgate-ci/crossgate/internal/pipeline"
	"github.com/crossgate-ci/crossgate/internal/report"
	"github.com/crossgate-ci/crossgate/internal/runstore"
	"github.com/crossgate-ci/crossgate/internal/stepexec"
	"github.com/crossgate-ci/crossgate/tui"
	"github.com/crossgate-ci/crossgate/web/api"
	"github.com/spf13/cobra"
)

var (
	runBranch    string
	runEvent     string
	resultsLimit int
	servePort    int
	debug        bool
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once on this machine",
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&runBranch, "branch", "main", "branch to report in the trigger")
	runCmd.Flags().StringVar(&runEvent, "event", "push", "trigger event kind (push or pull_request)")
	runCmd.Flags().BoolVar(&debug, "debug", false, "verbose step logging")
	rootCmd.AddCommand(runCmd)

	// validate command
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline definition",
		RunE:  runValidate,
	}
	rootCmd.AddCommand(validateCmd)

	// results command
	resultsCmd := &cobra.Command{
		Use:   "results [RUN]",
		Short: "Show recorded runs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runResults,
	}
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 20, "number of runs to list")
	rootCmd.AddCommand(resultsCmd)

	// logs command
	logsCmd := &cobra.Command{
		Use:   "logs RUN ENVIRONMENT",
		Short: "Show step output for one environment of a run",
		Args:  cobra.ExactArgs(2),
		RunE:  runLogs,
	}
	rootCmd.AddCommand(logsCmd)

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator daemon with web API and runner coordinator",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "web API port (overrides config)")
	serveCmd.Flags().BoolVar(&debug, "debug", false, "verbose logging")
	rootCmd.AddCommand(serveCmd)

	// tui command
	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch TUI dashboard",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipe, err := pipeline.Load(cfg.General.PipelinePath)
	if err != nil {
		return err
	}

	exec := stepexec.New(stepexec.Config{WorkDir: cfg.General.WorkDir, Debug: debug || cfg.General.Debug})
	orch := orchestrator.New(pipe, orchestrator.NewLocalRunner(exec), orchestrator.Config{
		MaxParallel: cfg.General.MaxEnvironments,
		Debug:       debug || cfg.General.Debug,
	})

	trigger := domain.Trigger{Event: domain.EventKind(runEvent), Branch: runBranch}
	run := orch.Handle(cmd.Context(), trigger)
	if run == nil {
		fmt.Printf("Trigger %s/%s does not match the watch-list, nothing to run\n",
			trigger.Event, trigger.Branch)
		return nil
	}

	if store, err := runstore.New(cfg.General.DatabasePath); err == nil {
		if err := store.SaveRun(run); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not record run: %v\n", err)
		}
		store.Close()
	}

	report.WriteRun(os.Stdout, run)

	if run.Status == domain.RunFailed {
		os.Exit(1)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipe, err := pipeline.Load(cfg.General.PipelinePath)
	if err != nil {
		return err
	}

	steps := 0
	for _, env := range pipe.Environments {
		for _, stage := range env.Stages {
			steps += len(stage.Steps)
		}
	}

	fmt.Printf("Pipeline OK: %d environment(s), %d step(s), watching %v on %v\n",
		len(pipe.Environments), steps, pipe.Branches, pipe.On)
	for _, env := range pipe.Environments {
		fmt.Printf("  - %s (%s, %s): %d stage(s)\n",
			env.ID, env.Platform, env.Toolchain, len(env.Stages))
	}
	return nil
}

func runResults(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		run, err := store.GetRun(args[0])
		if err != nil {
			return err
		}
		report.WriteRun(os.Stdout, run)
		return nil
	}

	runs, err := store.ListRuns(resultsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}
	report.WriteRunList(os.Stdout, runs)
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.GetRun(args[0])
	if err != nil {
		return err
	}
	return report.WriteStepLog(os.Stdout, run, args[1])
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipe, err := pipeline.Load(cfg.General.PipelinePath)
	if err != nil {
		return err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	history, err := store.ListRuns(50)
	if err != nil {
		return fmt.Errorf("failed to load run history: %w", err)
	}

	envFactory := func() []*tui.EnvironmentView {
		var envs []*tui.EnvironmentView
		for _, env := range pipe.Environments {
			envs = append(envs, &tui.EnvironmentView{
				ID:       env.ID,
				Platform: env.Platform,
				Status:   domain.RunPending,
			})
		}
		return envs
	}

	branch := ""
	if len(pipe.Branches) > 0 {
		branch = pipe.Branches[0]
	}

	model := tui.NewModel(tui.ModelConfig{
		Branch:  branch,
		Envs:    envFactory(),
		History: history,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Live updates come from a running serve daemon; without one the
	// dashboard still shows the recorded history.
	eventsURL := fmt.Sprintf("http://%s:%d/api/events", cfg.Web.Host, cfg.Web.Port)
	go func() {
		for {
			tui.StreamEvents(ctx, eventsURL, envFactory, p.Send)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()

	if cfg.Coordinator.Enabled {
		statusURL := fmt.Sprintf("http://%s:%d/status", cfg.Web.Host, cfg.Coordinator.Port)
		go tui.PollRunners(ctx, statusURL, 2*time.Second, p.Send)
	}

	go func() {
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if runs, err := store.ListRuns(50); err == nil {
					p.Send(tui.HistoryMsg(runs))
				}
			}
		}
	}()

	_, err = p.Run()
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if debug {
		cfg.General.Debug = true
	}

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[serve] shutting down")
		cancel()
	}()

	port := servePort
	if port == 0 {
		port = cfg.Web.Port
	}
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, port)

	return d.run(ctx, addr)
}

func notifierFromConfig(cfg *config.Config) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notifications.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notifications.SlackWebhook))
	}
	if len(notifiers) == 0 {
		return notify.NoopNotifier{}
	}
	return notify.NewMultiNotifier(notifiers...)
}

// triggerQueue feeds triggers from the web API, the scheduler and the
// definition watcher into the daemon's single run loop. Submit applies the
// watch-list before queueing so callers learn immediately whether the
// trigger will produce a run.
type triggerQueue struct {
	orch *orchestrator.Orchestrator
	ch   chan domain.Trigger
}

func newTriggerQueue(orch *orchestrator.Orchestrator) *triggerQueue {
	return &triggerQueue{orch: orch, ch: make(chan domain.Trigger, 16)}
}

func (q *triggerQueue) Submit(t domain.Trigger) bool {
	if !q.orch.Pipeline().MatchesTrigger(t) {
		return false
	}
	select {
	case q.ch <- t:
		return true
	default:
		log.Printf("[serve] trigger queue full, dropping %s/%s", t.Event, t.Branch)
		return false
	}
}

func (q *triggerQueue) State() domain.PipelineState {
	return q.orch.State()
}

var _ api.Trigger = (*triggerQueue)(nil)
