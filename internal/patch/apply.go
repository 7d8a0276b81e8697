// Package patch applies unified-diff patches inside a running container,
// tolerating the format and context mismatches that heterogeneous patch
// producers cause. A fixed ladder of application strategies runs from
// strictest to most permissive; the first zero exit wins.
package patch

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Execer runs shell commands inside a container at a working directory.
// *engine.Session satisfies it.
type Execer interface {
	Exec(ctx context.Context, sink io.Writer, workdir, command string) (int, error)
	ExecOutput(ctx context.Context, workdir, command string) (string, int, error)
}

// Strategy is one application attempt variant: a name for the logs and
// the exact shell invocation.
type Strategy struct {
	Name    string
	Command string
}

// Ladder returns the application strategies for a patch file, in the
// order they are attempted. Patches arrive with differing path-prefix
// conventions (a/, b/ vs none) and against slightly drifted revisions,
// so the ladder degrades from exact structured applies to fuzzy legacy
// ones rather than letting a cosmetic mismatch abort verification.
func Ladder(patchPath string) []Strategy {
	p := patchPath
	return []Strategy{
		{"git apply --recount --whitespace=fix", fmt.Sprintf(`git apply --recount --whitespace=fix -v "%s"`, p)},
		{"git apply", fmt.Sprintf(`git apply "%s"`, p)},
		{"git apply --ignore-whitespace", fmt.Sprintf(`git apply --ignore-whitespace "%s"`, p)},
		{"patch -p1", fmt.Sprintf(`patch -p1 --no-backup-if-mismatch -i "%s"`, p)},
		{"patch -p1 --fuzz=3", fmt.Sprintf(`patch -p1 --fuzz=3 --no-backup-if-mismatch -i "%s"`, p)},
		{"patch -p0", fmt.Sprintf(`patch -p0 --no-backup-if-mismatch -i "%s"`, p)},
		{"patch -p0 --fuzz=3", fmt.Sprintf(`patch -p0 --fuzz=3 --no-backup-if-mismatch -i "%s"`, p)},
	}
}

// Applier applies patches through a container session.
type Applier struct {
	Session Execer
}

// Apply attempts the strategy ladder for one patch file already present
// in the container, against repoDir. It returns true on the first
// strategy that exits zero, or when the patch file does not exist
// (nothing to apply is not a failure). It returns false only when every
// strategy is exhausted; the caller must treat that as a skip. The
// returned error is reserved for engine-level failures.
//
// Success is decided solely by the exit code of the actual apply
// attempt; there is no dry-run verification pass.
func (a *Applier) Apply(ctx context.Context, sink io.Writer, patchPath, repoDir string) (bool, error) {
	code, err := a.Session.Exec(ctx, sink, repoDir, fmt.Sprintf(`test -f "%s"`, patchPath))
	if err != nil {
		return false, fmt.Errorf("checking for patch %s: %w", patchPath, err)
	}
	if code != 0 {
		fmt.Fprintf(sink, "NOTE: no patch at %s; nothing to apply\n", patchPath)
		return true, nil
	}

	for _, s := range Ladder(patchPath) {
		code, err := a.Session.Exec(ctx, sink, repoDir, s.Command)
		if err != nil {
			return false, fmt.Errorf("running strategy %s: %w", s.Name, err)
		}
		fmt.Fprintf(sink, "strategy %s exited with code %d\n", s.Name, code)
		if code == 0 {
			return true, nil
		}
	}

	fmt.Fprintf(sink, "ERROR: all strategies exhausted for %s\n", patchPath)
	return false, nil
}

// ApplyArchive extracts an archive of patches (already copied into the
// container) into repoDir, then runs every patch/diff file found within
// two directory levels through the ladder. The orchestrator iterates
// the files itself, one exec per patch, so a failing file is
// attributable. It stops at the first file that exhausts the ladder.
func (a *Applier) ApplyArchive(ctx context.Context, sink io.Writer, archivePath, repoDir string) (bool, error) {
	code, err := a.Session.Exec(ctx, sink, repoDir, fmt.Sprintf(`tar -xf "%s"`, archivePath))
	if err != nil {
		return false, fmt.Errorf("extracting %s: %w", archivePath, err)
	}
	if code != 0 {
		fmt.Fprintf(sink, "ERROR: failed to extract %s (exit code %d)\n", archivePath, code)
		return false, nil
	}

	out, code, err := a.Session.ExecOutput(ctx, repoDir,
		`find . -maxdepth 2 -type f \( -name '*.patch' -o -name '*.diff' \)`)
	if err != nil {
		return false, fmt.Errorf("listing extracted patches: %w", err)
	}
	if code != 0 {
		fmt.Fprintf(sink, "ERROR: failed to list extracted patches (exit code %d)\n", code)
		return false, nil
	}

	for _, line := range strings.Split(out, "\n") {
		file := strings.TrimSpace(line)
		if file == "" {
			continue
		}
		ok, err := a.Apply(ctx, sink, file, repoDir)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}
