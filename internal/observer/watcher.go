// Package observer watches the agent results tree and reports tasks
// whose patches appear or change, so a long-running verifier can
// re-check them without being restarted.
package observer

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var taskDirPattern = regexp.MustCompile(`task_id_(.+)$`)

// PatchCallback is called with the task IDs whose agent patches changed.
type PatchCallback func(taskIDs []string)

// PatchWatcher monitors a results tree for agent patch files.
type PatchWatcher struct {
	watcher  *fsnotify.Watcher
	callback PatchCallback
	debounce time.Duration

	// Debounce state: task IDs seen since the last flush.
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex

	cancel context.CancelFunc
}

// NewPatchWatcher creates a watcher rooted at resultsRoot. Existing
// task_id_* subdirectories are watched immediately; directories created
// later are picked up as their create events arrive.
func NewPatchWatcher(resultsRoot string, callback PatchCallback) (*PatchWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	pw := &PatchWatcher{
		watcher:  watcher,
		callback: callback,
		debounce: 500 * time.Millisecond,
		pending:  make(map[string]struct{}),
	}

	if err := watcher.Add(resultsRoot); err != nil {
		watcher.Close()
		return nil, err
	}

	entries, err := os.ReadDir(resultsRoot)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() && taskDirPattern.MatchString(e.Name()) {
			watcher.Add(filepath.Join(resultsRoot, e.Name()))
		}
	}

	return pw, nil
}

// Start begins watching for patch changes.
func (pw *PatchWatcher) Start(ctx context.Context) {
	ctx, pw.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-pw.watcher.Events:
				if !ok {
					return
				}
				pw.handleEvent(event)
			case _, ok := <-pw.watcher.Errors:
				if !ok {
					return
				}
				// Keep watching through transient errors.
			}
		}
	}()
}

// Stop stops watching.
func (pw *PatchWatcher) Stop() {
	if pw.cancel != nil {
		pw.cancel()
	}
	pw.watcher.Close()
}

func (pw *PatchWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	// A new task directory: start watching inside it.
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if taskDirPattern.MatchString(filepath.Base(event.Name)) {
			pw.watcher.Add(event.Name)
		}
		return
	}

	if !strings.HasSuffix(event.Name, ".patch") {
		return
	}
	id := taskIDFor(event.Name)
	if id == "" {
		return
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()

	pw.pending[id] = struct{}{}
	if pw.timer != nil {
		pw.timer.Stop()
	}
	pw.timer = time.AfterFunc(pw.debounce, pw.flush)
}

// taskIDFor extracts the task ID from a patch path like
// <root>/task_id_<ID>/task_id_<ID>.patch.
func taskIDFor(path string) string {
	m := taskDirPattern.FindStringSubmatch(filepath.Base(filepath.Dir(path)))
	if m == nil {
		return ""
	}
	return m[1]
}

func (pw *PatchWatcher) flush() {
	pw.mu.Lock()
	pending := pw.pending
	pw.pending = make(map[string]struct{})
	pw.mu.Unlock()

	if pw.callback == nil || len(pending) == 0 {
		return
	}

	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	pw.callback(ids)
}

// SetDebounce sets the debounce duration for batching patch changes.
func (pw *PatchWatcher) SetDebounce(d time.Duration) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	pw.debounce = d
}
