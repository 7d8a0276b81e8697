package main

import (
	"path/filepath"
	"testing"

	"github.com/hochfrequenz/swe-verify/internal/config"
)

func TestApplyDirFlags_HistoryFollowsLogsRoot(t *testing.T) {
	defer func() { tasksDir, trajectoriesDir, testsDir = "", "", "" }()

	cfg := config.Default()
	cfg.General.HistoryPath = filepath.Join(cfg.General.LogsRoot, "history.db")

	testsDir = "/data/run7/tests"
	applyDirFlags(cfg)

	if cfg.General.LogsRoot != "/data/run7/tests" {
		t.Errorf("LogsRoot = %q", cfg.General.LogsRoot)
	}
	want := filepath.Join("/data/run7/tests", "history.db")
	if cfg.General.HistoryPath != want {
		t.Errorf("HistoryPath = %q, want %q", cfg.General.HistoryPath, want)
	}
}

func TestApplyDirFlags_ExplicitHistoryPathKept(t *testing.T) {
	defer func() { tasksDir, trajectoriesDir, testsDir = "", "", "" }()

	cfg := config.Default()
	cfg.General.HistoryPath = "/var/lib/swe-verify/history.db"

	testsDir = "/data/run7/tests"
	applyDirFlags(cfg)

	if cfg.General.HistoryPath != "/var/lib/swe-verify/history.db" {
		t.Errorf("HistoryPath = %q, want explicit path preserved", cfg.General.HistoryPath)
	}
}
