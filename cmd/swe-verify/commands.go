package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hochfrequenz/swe-verify/internal/batch"
	"github.com/hochfrequenz/swe-verify/internal/config"
	"github.com/hochfrequenz/swe-verify/internal/engine"
	"github.com/hochfrequenz/swe-verify/internal/notify"
	"github.com/hochfrequenz/swe-verify/internal/observer"
	"github.com/hochfrequenz/swe-verify/internal/results"
	"github.com/hochfrequenz/swe-verify/internal/task"
	"github.com/hochfrequenz/swe-verify/internal/verify"
	"github.com/hochfrequenz/swe-verify/tui"
	"github.com/hochfrequenz/swe-verify/web/api"
)

var (
	tasksDir        string
	trajectoriesDir string
	testsDir        string
	onlyTaskIDs     string
	runLimit        int
	runDebug        bool
	servePort       int
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Verify agent patches against held-out tests",
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&tasksDir, "tasks-dir", "", "directory of task_id_* task definitions")
	runCmd.Flags().StringVar(&trajectoriesDir, "trajectories-dir", "", "directory of task_id_* agent patch outputs")
	runCmd.Flags().StringVar(&testsDir, "tests-dir", "", "directory for per-task logs and verdicts")
	runCmd.Flags().StringVar(&onlyTaskIDs, "only-task-ids", "", "comma-separated task IDs to verify")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "verify at most N tasks")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "log per-task progress")
	rootCmd.AddCommand(runCmd)

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the latest verdict for every task",
		RunE:  runSummary,
	}
	rootCmd.AddCommand(summaryCmd)

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Run verification with a live dashboard",
		RunE:  runTUI,
	}
	tuiCmd.Flags().StringVar(&onlyTaskIDs, "only-task-ids", "", "comma-separated task IDs to verify")
	tuiCmd.Flags().IntVar(&runLimit, "limit", 0, "verify at most N tasks")
	rootCmd.AddCommand(tuiCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve verification history over HTTP",
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-verify tasks whose agent patches change",
		RunE:  runWatch,
	}
	rootCmd.AddCommand(watchCmd)

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Run scheduled verification batches",
		RunE:  runBatch,
	}
	rootCmd.AddCommand(batchCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// applyDirFlags overlays the run command's directory flags on the config.
func applyDirFlags(cfg *config.Config) {
	if tasksDir != "" {
		cfg.General.TaskRoot = config.ExpandPath(tasksDir)
	}
	if trajectoriesDir != "" {
		cfg.General.ResultsRoot = config.ExpandPath(trajectoriesDir)
	}
	if testsDir != "" {
		// A history path derived from the old logs root follows it.
		derived := cfg.General.HistoryPath == filepath.Join(cfg.General.LogsRoot, "history.db")
		cfg.General.LogsRoot = config.ExpandPath(testsDir)
		if derived {
			cfg.General.HistoryPath = filepath.Join(cfg.General.LogsRoot, "history.db")
		}
	}
}

func discoverTasks(cfg *config.Config) ([]task.Task, error) {
	loc := task.Locator{
		TaskRoot:    cfg.General.TaskRoot,
		ResultsRoot: cfg.General.ResultsRoot,
		LogsRoot:    cfg.General.LogsRoot,
	}
	tasks, err := loc.Discover(task.ParseOnlyIDs(onlyTaskIDs))
	if err != nil {
		return nil, err
	}
	if runLimit > 0 && len(tasks) > runLimit {
		tasks = tasks[:runLimit]
	}
	return tasks, nil
}

func newRunner(ctx context.Context, cfg *config.Config) (*verify.Runner, *results.Store, error) {
	client := engine.NewClient(cfg.Engine.Binary)
	if err := client.Available(ctx); err != nil {
		return nil, nil, fmt.Errorf("container engine %q not available: %w", cfg.Engine.Binary, err)
	}

	history, err := results.NewStore(cfg.General.HistoryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening history at %s: %w", cfg.General.HistoryPath, err)
	}

	return &verify.Runner{
		Engine:         client,
		DefaultRepoDir: cfg.Engine.DefaultRepoDir,
		BuildTimeout:   cfg.Engine.BuildTimeout,
		ExecTimeout:    cfg.Engine.ExecTimeout,
		TestTimeout:    cfg.Engine.TestTimeout,
		History:        history,
	}, history, nil
}

func notifier(cfg *config.Config) notify.Notifier {
	return notify.NewMultiNotifier(
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
	)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyDirFlags(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tasks, err := discoverTasks(cfg)
	if err != nil {
		return err
	}

	runner, history, err := newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer history.Close()
	runner.Debug = runDebug

	runID := uuid.NewString()
	summary, err := runner.RunAll(ctx, tasks, cfg.General.LogsRoot, runID)
	if err != nil {
		return err
	}

	if nerr := notifier(cfg).Send(notify.RunCompleted(runID, *summary)); nerr != nil {
		log.Printf("[notify] %v", nerr)
	}

	fmt.Printf("Run %s: %d tasks, %d passed, %d skipped\n",
		runID, summary.Total, summary.TestOK, summary.Skipped)
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	history, err := results.NewStore(cfg.General.HistoryPath)
	if err != nil {
		return err
	}
	defer history.Close()

	records, err := history.LatestPerTask()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tBUILD\tAGENT PATCH\tTEST PATCH\tTEST\tEXIT")
	for _, r := range records {
		exit := "-"
		if r.TestExitCode != nil {
			exit = fmt.Sprintf("%d", *r.TestExitCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%t\t%t\t%s\n",
			r.TaskID, r.Status(), r.BuildOK, r.AgentPatchOK, r.TestPatchOK, r.TestOK, exit)
	}
	return w.Flush()
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tasks, err := discoverTasks(cfg)
	if err != nil {
		return err
	}

	runner, history, err := newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	events := make(chan verify.Event, 16)
	runner.OnEvent = func(ev verify.Event) { events <- ev }

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}

	go func() {
		defer close(events)
		if _, err := runner.RunAll(ctx, tasks, cfg.General.LogsRoot, uuid.NewString()); err != nil {
			log.Printf("[verify] %v", err)
		}
	}()

	p := tea.NewProgram(tui.NewModel(ids, events), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := results.NewStore(cfg.General.HistoryPath)
	if err != nil {
		return err
	}
	defer history.Close()

	port := servePort
	if port == 0 {
		port = cfg.Web.Port
	}
	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, port)

	server := api.NewServer(history, cfg.General.LogsRoot, addr)

	// With a working engine the server also re-verifies tasks whose
	// agent patches change and streams the progress to SSE clients.
	// Without one it still serves the recorded history.
	client := engine.NewClient(cfg.Engine.Binary)
	if err := client.Available(ctx); err != nil {
		log.Printf("[api] engine %q unavailable, serving history only: %v", cfg.Engine.Binary, err)
	} else {
		runner := &verify.Runner{
			Engine:         client,
			DefaultRepoDir: cfg.Engine.DefaultRepoDir,
			BuildTimeout:   cfg.Engine.BuildTimeout,
			ExecTimeout:    cfg.Engine.ExecTimeout,
			TestTimeout:    cfg.Engine.TestTimeout,
			History:        history,
			OnEvent: func(ev verify.Event) {
				server.Broadcast(api.FromRunnerEvent(ev))
			},
		}
		watcher, werr := observer.NewPatchWatcher(cfg.General.ResultsRoot,
			reverifyOnChange(ctx, cfg, runner, func(s *results.Summary) {
				server.Broadcast(api.SSEEvent{Type: "summary", Data: s})
			}))
		if werr != nil {
			return werr
		}
		defer watcher.Stop()
		watcher.Start(ctx)
		log.Printf("[api] re-verifying on agent patch changes under %s", cfg.General.ResultsRoot)
	}

	log.Printf("[api] listening on %s", addr)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// reverifyOnChange builds the watcher callback shared by watch and
// serve: re-verify the tasks whose agent patches changed, then hand the
// run summary to onSummary when one is given.
func reverifyOnChange(ctx context.Context, cfg *config.Config, runner *verify.Runner, onSummary func(*results.Summary)) observer.PatchCallback {
	loc := task.Locator{
		TaskRoot:    cfg.General.TaskRoot,
		ResultsRoot: cfg.General.ResultsRoot,
		LogsRoot:    cfg.General.LogsRoot,
	}
	return func(ids []string) {
		only := make(map[string]bool, len(ids))
		for _, id := range ids {
			only[id] = true
		}
		tasks, err := loc.Discover(only)
		if err != nil {
			log.Printf("[watch] discovering tasks: %v", err)
			return
		}
		if len(tasks) == 0 {
			log.Printf("[watch] no task definitions for changed patches %v", ids)
			return
		}
		log.Printf("[watch] re-verifying %d tasks", len(tasks))
		summary, err := runner.RunAll(ctx, tasks, cfg.General.LogsRoot, uuid.NewString())
		if err != nil {
			log.Printf("[watch] %v", err)
			return
		}
		if onSummary != nil {
			onSummary(summary)
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, history, err := newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	watcher, err := observer.NewPatchWatcher(cfg.General.ResultsRoot,
		reverifyOnChange(ctx, cfg, runner, nil))
	if err != nil {
		return err
	}
	defer watcher.Stop()

	watcher.Start(ctx)
	log.Printf("[watch] watching %s for agent patch changes", cfg.General.ResultsRoot)
	<-ctx.Done()
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	schedule, err := batch.LoadScheduleConfig(cfg.General.SchedulePath)
	if err != nil {
		return err
	}
	if len(schedule.Runs) == 0 {
		return fmt.Errorf("no scheduled runs in %s", cfg.General.SchedulePath)
	}

	scheduler, err := batch.NewScheduler(schedule.Runs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, history, err := newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer history.Close()

	loc := task.Locator{
		TaskRoot:    cfg.General.TaskRoot,
		ResultsRoot: cfg.General.ResultsRoot,
		LogsRoot:    cfg.General.LogsRoot,
	}

	go scheduler.Start(func(rc batch.RunConfig) error {
		tasks, derr := loc.Discover(task.ParseOnlyIDs(rc.OnlyTaskIDs))
		if derr != nil {
			return derr
		}
		if rc.Limit > 0 && len(tasks) > rc.Limit {
			tasks = tasks[:rc.Limit]
		}

		runCtx, cancel := context.WithTimeout(ctx, rc.MaxDuration)
		defer cancel()

		summary, rerr := runner.RunAll(runCtx, tasks, cfg.General.LogsRoot, rc.Name+"-"+uuid.NewString())
		if rerr != nil {
			return rerr
		}
		if rc.Notify {
			if nerr := notifier(cfg).Send(notify.RunCompleted(rc.Name, *summary)); nerr != nil {
				log.Printf("[notify] %v", nerr)
			}
		}
		return nil
	})

	log.Printf("[batch] scheduling %d runs", len(schedule.Runs))
	<-ctx.Done()
	scheduler.Stop()
	return nil
}
