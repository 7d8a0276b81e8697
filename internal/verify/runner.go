// Package verify orchestrates per-task verification: build the task's
// image, start an isolated container, inject the agent and test
// patches, run the test command, and record a structured verdict. One
// task's failure never blocks or corrupts another's; containers are
// torn down on every exit path.
package verify

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/hochfrequenz/swe-verify/internal/engine"
	"github.com/hochfrequenz/swe-verify/internal/patch"
	"github.com/hochfrequenz/swe-verify/internal/results"
	"github.com/hochfrequenz/swe-verify/internal/task"
)

const (
	agentPatchDst = "/tmp/agent.patch"
	testPatchDst  = "/tmp/test_patch.tar"
)

// Event reports a task's state transition to observers (CLI progress,
// TUI, web status).
type Event struct {
	TaskID string
	State  State
	Record *results.Record // set once the task reaches a terminal state
}

// EventFunc receives state transitions.
type EventFunc func(Event)

// Runner processes tasks sequentially: one build, one container, one
// exec stream at a time.
type Runner struct {
	Engine         *engine.Client
	DefaultRepoDir string

	// Zero timeouts mean no deadline on the corresponding engine call.
	BuildTimeout time.Duration
	ExecTimeout  time.Duration
	TestTimeout  time.Duration

	History *results.Store // optional cross-run record history
	OnEvent EventFunc      // optional
	Debug   bool
}

func (r *Runner) emit(taskID string, st State, rec *results.Record) {
	if r.Debug {
		log.Printf("[verify] task %s -> %s", taskID, st)
	}
	if r.OnEvent != nil {
		r.OnEvent(Event{TaskID: taskID, State: st, Record: rec})
	}
}

func (r *Runner) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// logSet holds the three per-task transcript sinks.
type logSet struct {
	build *os.File
	setup *os.File
	test  *os.File
}

func openLogs(t task.Task) (*logSet, error) {
	if err := os.MkdirAll(t.LogsDir, 0755); err != nil {
		return nil, err
	}
	ls := &logSet{}
	for _, f := range []struct {
		path string
		dst  **os.File
	}{
		{t.BuildLog(), &ls.build},
		{t.SetupLog(), &ls.setup},
		{t.TestLog(), &ls.test},
	} {
		fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			ls.close()
			return nil, err
		}
		*f.dst = fh
	}
	return ls, nil
}

func (ls *logSet) close() {
	for _, f := range []*os.File{ls.build, ls.setup, ls.test} {
		if f != nil {
			f.Close()
		}
	}
}

// ProcessTask runs the full pipeline for one task and returns its
// finalized record. Failures become record fields, never errors: the
// caller's loop must keep going regardless of what happened here.
func (r *Runner) ProcessTask(ctx context.Context, t task.Task) *results.Record {
	rec := results.NewRecord(t.ID, t.ImageTag())
	rec.Logs["build_log"] = t.BuildLog()
	rec.Logs["setup_log"] = t.SetupLog()
	rec.Logs["test_log"] = t.TestLog()

	r.emit(t.ID, StatePending, nil)

	logs, err := openLogs(t)
	if err != nil {
		rec.Skip(fmt.Sprintf("cannot open log files: %v", err))
		r.finalize(t, rec, StateSkipped)
		return rec
	}

	terminal := r.run(ctx, t, rec, logs)
	logs.close()

	// Teardown has completed by now; only then is the record final.
	r.finalize(t, rec, terminal)
	return rec
}

// run executes the pipeline stages up to and including container
// teardown, returning the terminal state.
func (r *Runner) run(ctx context.Context, t task.Task, rec *results.Record, logs *logSet) State {
	// Preconditions: build file and a non-empty test command must exist
	// before any container work starts.
	if _, err := os.Stat(t.BuildFile); err != nil {
		fmt.Fprintf(logs.build, "ERROR: Dockerfile missing at %s\n", t.BuildFile)
		rec.AddNote("Missing Dockerfile")
		return StateBuildFailed
	}
	testCmd, err := t.TestCommand()
	if err != nil {
		fmt.Fprintf(logs.test, "ERROR: test_command.txt missing at %s\n", t.TestCmd)
		rec.AddNote("Missing test_command.txt")
		return StateBuildFailed
	}
	if testCmd == "" {
		fmt.Fprintln(logs.test, "ERROR: test_command.txt is empty")
		rec.AddNote("Empty test command")
		return StateBuildFailed
	}

	// Build the image.
	buildCtx, cancel := r.withTimeout(ctx, r.BuildTimeout)
	code, err := r.Engine.Build(buildCtx, logs.build, t.BuildFile, t.ImageTag(), t.Dir)
	cancel()
	if err != nil {
		rec.AddNote("Docker build failed: %v", err)
		return StateBuildFailed
	}
	if code != 0 {
		rec.AddNote("Docker build failed")
		return StateBuildFailed
	}
	rec.BuildOK = true
	r.emit(t.ID, StateBuilt, nil)

	// Resolve the in-image repository directory.
	execCtx, cancel := r.withTimeout(ctx, r.ExecTimeout)
	rec.RepoDir = r.Engine.ResolveWorkdir(execCtx, t.ImageTag(), t.BuildFile, r.DefaultRepoDir)
	cancel()

	// Start the container session.
	name := engine.SessionName(t.ID)
	startCtx, cancel := r.withTimeout(ctx, r.ExecTimeout)
	sess, err := r.Engine.StartSession(startCtx, logs.setup, t.ImageTag(), name)
	cancel()
	if err != nil {
		rec.AddNote("Failed to start container")
		rec.Skip("container failed to start")
		return StateSkipped
	}
	// Teardown runs on every exit path, with a fresh context so a
	// cancelled or expired run context cannot leak the container.
	defer func() {
		stopCtx, cancel := r.withTimeout(context.Background(), r.ExecTimeout)
		defer cancel()
		sess.Stop(stopCtx, logs.setup)
	}()
	r.emit(t.ID, StateContainerUp, nil)

	return r.runInSession(ctx, t, rec, logs, sess, testCmd)
}

// runInSession performs the copy, patch, and test stages against a
// started container. The caller owns teardown.
func (r *Runner) runInSession(ctx context.Context, t task.Task, rec *results.Record, logs *logSet, sess *engine.Session, testCmd string) State {
	applier := &patch.Applier{Session: sess}

	// Copy the agent patch in, if the agent produced one.
	if _, err := os.Stat(t.AgentPatch); err == nil {
		if st := r.copyIn(ctx, rec, logs, sess, t.AgentPatch, agentPatchDst, "agent patch"); st != "" {
			return st
		}
	} else {
		fmt.Fprintf(logs.setup, "NOTE: Missing agent patch at %s\n", t.AgentPatch)
	}

	// Apply the agent patch. Success is the exit code of the actual
	// apply attempt; a missing patch applies vacuously.
	execCtx, cancel := r.withTimeout(ctx, r.ExecTimeout)
	ok, err := applier.Apply(execCtx, logs.setup, agentPatchDst, rec.RepoDir)
	cancel()
	if err != nil {
		rec.AddNote("Agent patch apply failed: %v", err)
		rec.Skip("engine failure while applying agent patch")
		return StateSkipped
	}
	rec.AgentPatchOK = ok
	if !ok {
		rec.AddNote("Agent patch did not apply under any strategy")
		rec.Skip("agent patch failed to apply")
		return StateSkipped
	}
	r.emit(t.ID, StateAgentPatched, nil)

	// Copy and apply the held-out test patch archive, if present.
	if _, err := os.Stat(t.TestPatch); err == nil {
		if st := r.copyIn(ctx, rec, logs, sess, t.TestPatch, testPatchDst, "test patch archive"); st != "" {
			return st
		}
		execCtx, cancel := r.withTimeout(ctx, r.ExecTimeout)
		ok, err := applier.ApplyArchive(execCtx, logs.setup, testPatchDst, rec.RepoDir)
		cancel()
		if err != nil {
			rec.AddNote("Test patch apply failed: %v", err)
			rec.Skip("engine failure while applying test patch")
			return StateSkipped
		}
		rec.TestPatchOK = ok
		if !ok {
			rec.AddNote("Test patch did not apply under any strategy")
			rec.Skip("test patch failed to apply")
			return StateSkipped
		}
	} else {
		fmt.Fprintf(logs.setup, "NOTE: No test_patch.tar at %s\n", t.TestPatch)
		rec.TestPatchOK = true
	}
	r.emit(t.ID, StateTestPatched, nil)

	// Run the test command. Zero exit is the sole pass criterion; a
	// non-zero or abnormal exit is a completed failed result, not a
	// skip, because the patches did apply.
	testCtx, cancel := r.withTimeout(ctx, r.TestTimeout)
	exitCode, err := sess.Exec(testCtx, logs.test, rec.RepoDir, testCmd)
	cancel()
	if err != nil {
		rec.AddNote("Test command could not be executed: %v", err)
		exitCode = -1
	}
	rec.TestExitCode = &exitCode
	rec.TestOK = exitCode == 0
	r.emit(t.ID, StateTested, nil)

	return StateDone
}

// copyIn copies a host file into the container, converting failure into
// an infrastructure skip. Returns "" on success.
func (r *Runner) copyIn(ctx context.Context, rec *results.Record, logs *logSet, sess *engine.Session, hostPath, dst, what string) State {
	copyCtx, cancel := r.withTimeout(ctx, r.ExecTimeout)
	code, err := sess.Copy(copyCtx, logs.setup, hostPath, dst)
	cancel()
	if err != nil || code != 0 {
		rec.AddNote("Failed to copy %s into container", what)
		rec.Skip(fmt.Sprintf("failed to copy %s into container", what))
		return StateSkipped
	}
	return ""
}

// finalize persists the record exactly once and emits the terminal
// event. Persistence failures are logged, never escalated: the record
// still exists in memory and in the run summary.
func (r *Runner) finalize(t task.Task, rec *results.Record, terminal State) {
	if err := rec.WriteFile(t.ResultPath()); err != nil {
		log.Printf("[verify] writing result for task %s: %v", t.ID, err)
	}
	r.emit(t.ID, terminal, rec)
}

// RunAll processes every task in order, isolating failures, then
// computes the run summary and writes summary.json, summary.yaml and
// summary.md under outDir. It errors only when zero tasks were given.
func (r *Runner) RunAll(ctx context.Context, tasks []task.Task, outDir, runID string) (*results.Summary, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks to process")
	}

	records := make([]*results.Record, 0, len(tasks))
	for _, t := range tasks {
		if r.Debug {
			log.Printf("[verify] processing task %s", t.ID)
		}
		rec := r.ProcessTask(ctx, t)
		if r.History != nil {
			if err := r.History.SaveRecord(runID, rec); err != nil {
				log.Printf("[verify] saving history for task %s: %v", t.ID, err)
			}
		}
		records = append(records, rec)
	}

	summary := results.Summarize(records)
	if err := summary.WriteJSON(filepath.Join(outDir, "summary.json")); err != nil {
		return summary, fmt.Errorf("writing summary.json: %w", err)
	}
	if err := summary.WriteYAML(filepath.Join(outDir, "summary.yaml")); err != nil {
		return summary, fmt.Errorf("writing summary.yaml: %w", err)
	}
	if err := summary.WriteMarkdown(filepath.Join(outDir, "summary.md")); err != nil {
		return summary, fmt.Errorf("writing summary.md: %w", err)
	}
	return summary, nil
}
