package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRecord_Skip(t *testing.T) {
	rec := NewRecord("1", "task1:test-run")
	code := 2
	rec.TestExitCode = &code

	rec.Skip("agent patch failed to apply")

	if !rec.Skipped {
		t.Error("Skipped should be true")
	}
	if rec.SkipReason == "" {
		t.Error("SkipReason should be set")
	}
	if rec.TestExitCode != nil {
		t.Error("skipped record must not carry a test exit code")
	}
}

func TestRecord_Status(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Record)
		want string
	}{
		{"skipped", func(r *Record) { r.Skip("x") }, "skipped"},
		{"build failed", func(r *Record) {}, "build-failed"},
		{"passed", func(r *Record) { r.BuildOK = true; r.TestOK = true }, "passed"},
		{"failed", func(r *Record) { r.BuildOK = true }, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord("1", "img")
			tt.mod(rec)
			if got := rec.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecord_WriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "result.json")

	rec := NewRecord("7", "task7:test-run")
	rec.BuildOK = true
	rec.AddNote("Missing agent patch at %s", "/res/task_id_7")
	rec.Logs["build_log"] = "/logs/task_id_7/build.log"

	if err := rec.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.TaskID != "7" || !got.BuildOK || len(got.Notes) != 1 {
		t.Errorf("round-tripped record = %+v", got)
	}
	if got.TestExitCode != nil {
		t.Error("test_exit_code should round-trip as null")
	}

	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}
}
