package observer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestTaskIDFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/res/task_id_42/task_id_42.patch", "42"},
		{"/res/task_id_a-b/task_id_a-b.patch", "a-b"},
		{"/res/other/file.patch", ""},
	}

	for _, tt := range tests {
		if got := taskIDFor(tt.path); got != tt.want {
			t.Errorf("taskIDFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestPatchWatcher_ReportsChangedTasks(t *testing.T) {
	root := t.TempDir()
	taskDir := filepath.Join(root, "task_id_7")
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	pw, err := NewPatchWatcher(root, func(ids []string) {
		mu.Lock()
		got = append(got, ids...)
		mu.Unlock()
		close(done)
	})
	if err != nil {
		t.Fatal(err)
	}
	pw.SetDebounce(50 * time.Millisecond)
	defer pw.Stop()

	pw.Start(context.Background())

	patch := filepath.Join(taskDir, "task_id_7.patch")
	if err := os.WriteFile(patch, []byte("--- a\n+++ b\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for patch callback")
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Strings(got)
	if len(got) != 1 || got[0] != "7" {
		t.Errorf("got task IDs %v, want [7]", got)
	}
}

func TestPatchWatcher_IgnoresNonPatchFiles(t *testing.T) {
	root := t.TempDir()
	taskDir := filepath.Join(root, "task_id_1")
	if err := os.MkdirAll(taskDir, 0755); err != nil {
		t.Fatal(err)
	}

	called := make(chan struct{}, 1)
	pw, err := NewPatchWatcher(root, func(ids []string) {
		called <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	pw.SetDebounce(50 * time.Millisecond)
	defer pw.Stop()

	pw.Start(context.Background())

	if err := os.WriteFile(filepath.Join(taskDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-called:
		t.Error("non-patch file should not trigger the callback")
	case <-time.After(300 * time.Millisecond):
	}
}
