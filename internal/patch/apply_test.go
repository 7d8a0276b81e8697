package patch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// fakeSession scripts exec results per command substring.
type fakeSession struct {
	commands []string
	exec     func(command string) (int, error)
	output   func(command string) (string, int, error)
}

func (f *fakeSession) Exec(ctx context.Context, sink io.Writer, workdir, command string) (int, error) {
	f.commands = append(f.commands, command)
	if f.exec == nil {
		return 0, nil
	}
	return f.exec(command)
}

func (f *fakeSession) ExecOutput(ctx context.Context, workdir, command string) (string, int, error) {
	f.commands = append(f.commands, command)
	if f.output == nil {
		return "", 0, nil
	}
	return f.output(command)
}

func TestLadder_Order(t *testing.T) {
	want := []string{
		`git apply --recount --whitespace=fix -v "/tmp/a.patch"`,
		`git apply "/tmp/a.patch"`,
		`git apply --ignore-whitespace "/tmp/a.patch"`,
		`patch -p1 --no-backup-if-mismatch -i "/tmp/a.patch"`,
		`patch -p1 --fuzz=3 --no-backup-if-mismatch -i "/tmp/a.patch"`,
		`patch -p0 --no-backup-if-mismatch -i "/tmp/a.patch"`,
		`patch -p0 --fuzz=3 --no-backup-if-mismatch -i "/tmp/a.patch"`,
	}

	ladder := Ladder("/tmp/a.patch")
	if len(ladder) != len(want) {
		t.Fatalf("ladder has %d strategies, want %d", len(ladder), len(want))
	}
	for i, s := range ladder {
		if s.Command != want[i] {
			t.Errorf("strategy %d = %q, want %q", i, s.Command, want[i])
		}
	}
}

func TestApply_FirstStrategyWins(t *testing.T) {
	fs := &fakeSession{}
	a := &Applier{Session: fs}

	var sink bytes.Buffer
	ok, err := a.Apply(context.Background(), &sink, "/tmp/a.patch", "/app")
	if err != nil || !ok {
		t.Fatalf("Apply: ok=%v err=%v", ok, err)
	}

	// test -f plus exactly one strategy
	if len(fs.commands) != 2 {
		t.Fatalf("got %d commands, want 2: %v", len(fs.commands), fs.commands)
	}
	if !strings.HasPrefix(fs.commands[1], "git apply --recount") {
		t.Errorf("first strategy = %q", fs.commands[1])
	}
}

func TestApply_OnlyFuzzySucceeds(t *testing.T) {
	// Everything fails until the p1 fuzzy legacy attempt.
	fs := &fakeSession{
		exec: func(cmd string) (int, error) {
			switch {
			case strings.HasPrefix(cmd, "test -f"):
				return 0, nil
			case strings.Contains(cmd, "--fuzz=3") && strings.Contains(cmd, "-p1"):
				return 0, nil
			default:
				return 1, nil
			}
		},
	}
	a := &Applier{Session: fs}

	var sink bytes.Buffer
	ok, err := a.Apply(context.Background(), &sink, "/tmp/a.patch", "/app")
	if err != nil || !ok {
		t.Fatalf("Apply: ok=%v err=%v", ok, err)
	}

	// test -f, then strategies 1-4 fail, strategy 5 succeeds, stop.
	if len(fs.commands) != 6 {
		t.Fatalf("got %d commands, want 6: %v", len(fs.commands), fs.commands)
	}
	log := sink.String()
	if strings.Count(log, "exited with code 1") != 4 {
		t.Errorf("want 4 failed attempts in log, got:\n%s", log)
	}
	if !strings.Contains(log, "strategy patch -p1 --fuzz=3 exited with code 0") {
		t.Errorf("want successful fuzzy attempt in log, got:\n%s", log)
	}
}

func TestApply_MissingPatchIsSuccess(t *testing.T) {
	fs := &fakeSession{
		exec: func(cmd string) (int, error) {
			if strings.HasPrefix(cmd, "test -f") {
				return 1, nil
			}
			t.Errorf("no strategy should run for a missing patch, got %q", cmd)
			return 1, nil
		},
	}
	a := &Applier{Session: fs}

	var sink bytes.Buffer
	ok, err := a.Apply(context.Background(), &sink, "/tmp/missing.patch", "/app")
	if err != nil || !ok {
		t.Fatalf("Apply: ok=%v err=%v", ok, err)
	}
	if len(fs.commands) != 1 {
		t.Errorf("got %d commands, want only the existence check", len(fs.commands))
	}
	if !strings.Contains(sink.String(), "nothing to apply") {
		t.Errorf("missing patch should be noted, got %q", sink.String())
	}
}

func TestApply_AllExhausted(t *testing.T) {
	fs := &fakeSession{
		exec: func(cmd string) (int, error) {
			if strings.HasPrefix(cmd, "test -f") {
				return 0, nil
			}
			return 1, nil
		},
	}
	a := &Applier{Session: fs}

	var sink bytes.Buffer
	ok, err := a.Apply(context.Background(), &sink, "/tmp/a.patch", "/app")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("exhausted ladder should report failure")
	}
	if len(fs.commands) != 8 { // test -f + 7 strategies
		t.Errorf("got %d commands, want 8", len(fs.commands))
	}
}

func TestApply_EngineError(t *testing.T) {
	fs := &fakeSession{
		exec: func(cmd string) (int, error) {
			return -1, errors.New("daemon gone")
		},
	}
	a := &Applier{Session: fs}

	var sink bytes.Buffer
	if _, err := a.Apply(context.Background(), &sink, "/tmp/a.patch", "/app"); err == nil {
		t.Error("engine failure should propagate as error")
	}
}

func TestApplyArchive(t *testing.T) {
	fs := &fakeSession{
		output: func(cmd string) (string, int, error) {
			return "./tests/one.patch\n./sub/two.diff\n", 0, nil
		},
	}
	a := &Applier{Session: fs}

	var sink bytes.Buffer
	ok, err := a.ApplyArchive(context.Background(), &sink, "/tmp/test_patch.tar", "/app")
	if err != nil || !ok {
		t.Fatalf("ApplyArchive: ok=%v err=%v", ok, err)
	}

	joined := strings.Join(fs.commands, "\n")
	if !strings.Contains(joined, `tar -xf "/tmp/test_patch.tar"`) {
		t.Errorf("archive should be extracted, got:\n%s", joined)
	}
	if !strings.Contains(joined, `test -f "./tests/one.patch"`) ||
		!strings.Contains(joined, `test -f "./sub/two.diff"`) {
		t.Errorf("each extracted patch should be applied, got:\n%s", joined)
	}
}

func TestApplyArchive_AbortsOnFirstFailure(t *testing.T) {
	fs := &fakeSession{
		output: func(cmd string) (string, int, error) {
			return "./one.patch\n./two.patch\n", 0, nil
		},
		exec: func(cmd string) (int, error) {
			if strings.HasPrefix(cmd, "tar ") || strings.HasPrefix(cmd, "test -f") {
				return 0, nil
			}
			return 1, nil // every strategy fails
		},
	}
	a := &Applier{Session: fs}

	var sink bytes.Buffer
	ok, err := a.ApplyArchive(context.Background(), &sink, "/tmp/test_patch.tar", "/app")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("first exhausted patch should abort the archive")
	}

	joined := strings.Join(fs.commands, "\n")
	if strings.Contains(joined, "two.patch") {
		t.Errorf("second patch should never be attempted, got:\n%s", joined)
	}
}

func TestApplyArchive_ExtractFailure(t *testing.T) {
	fs := &fakeSession{
		exec: func(cmd string) (int, error) {
			if strings.HasPrefix(cmd, "tar ") {
				return 2, nil
			}
			return 0, nil
		},
	}
	a := &Applier{Session: fs}

	var sink bytes.Buffer
	ok, err := a.ApplyArchive(context.Background(), &sink, "/tmp/test_patch.tar", "/app")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("failed extraction should report failure")
	}
}
