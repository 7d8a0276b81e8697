package engine

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Session is one running, named container bound to a task attempt. It
// stays alive on an idle process so files can be copied in and commands
// executed until Stop removes it.
type Session struct {
	Name   string
	client *Client
}

// SessionName generates a collision-free container name for a task.
// Randomized suffixes let repeated or concurrent attempts
// coexist without name clashes.
func SessionName(taskID string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("task%s_runner_%s", taskID, suffix)
}

// StartSession launches a detached container running an indefinite idle
// process. The caller owns teardown via Stop.
func (c *Client) StartSession(ctx context.Context, sink io.Writer, image, name string) (*Session, error) {
	code, err := c.runLogged(ctx, sink, "run", "-d", "--name", name, image, "sh", "-lc", "sleep infinity")
	if err != nil {
		return nil, fmt.Errorf("starting container %s: %w", name, err)
	}
	if code != 0 {
		return nil, fmt.Errorf("starting container %s: exit code %d", name, code)
	}
	return &Session{Name: name, client: c}, nil
}

// Copy copies a single host file into the container at an absolute
// path, overwriting any existing file.
func (s *Session) Copy(ctx context.Context, sink io.Writer, hostPath, containerPath string) (int, error) {
	return s.client.runLogged(ctx, sink, "cp", hostPath, s.Name+":"+containerPath)
}

// Exec runs a shell command inside the container, optionally at a
// working directory. Output streams to sink rather than memory so
// arbitrarily long test output cannot exhaust the process.
func (s *Session) Exec(ctx context.Context, sink io.Writer, workdir, command string) (int, error) {
	args := []string{"exec"}
	if workdir != "" {
		args = append(args, "-w", workdir)
	}
	args = append(args, s.Name, "sh", "-lc", command)
	return s.client.runLogged(ctx, sink, args...)
}

// ExecOutput runs a shell command inside the container and captures its
// stdout, for the rare case where the orchestrator needs the output
// itself (e.g. listing extracted patch files).
func (s *Session) ExecOutput(ctx context.Context, workdir, command string) (string, int, error) {
	args := []string{"exec"}
	if workdir != "" {
		args = append(args, "-w", workdir)
	}
	args = append(args, s.Name, "sh", "-lc", command)
	return s.client.runner.Output(ctx, s.client.Bin, args...)
}

// Stop forcibly removes the container. Removal failures are written to
// sink but never escalated: a failed cleanup must not fail a task whose
// result already exists.
func (s *Session) Stop(ctx context.Context, sink io.Writer) {
	code, err := s.client.runLogged(ctx, sink, "rm", "-f", s.Name)
	if err != nil && sink != nil {
		fmt.Fprintf(sink, "WARNING: failed to remove container %s: %v\n", s.Name, err)
	} else if code != 0 && sink != nil {
		fmt.Fprintf(sink, "WARNING: removing container %s exited with code %d\n", s.Name, code)
	}
}
