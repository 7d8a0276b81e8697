// Package engine drives the container engine CLI: image builds, image
// inspection, and per-task container sessions. Every external command is
// transcribed to an explicit log sink before it runs, so a task's log
// files fully reconstruct what the engine was asked to do.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes external commands. The default implementation shells
// out; tests substitute a recorder.
type Runner interface {
	// Run streams combined stdout+stderr to sink and returns the
	// process exit code. A non-zero exit is not an error; err is
	// reserved for failures to run the command at all.
	Run(ctx context.Context, sink io.Writer, name string, args ...string) (int, error)
	// Output captures stdout of a command along with its exit code.
	Output(ctx context.Context, name string, args ...string) (string, int, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, sink io.Writer, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = sink
	cmd.Stderr = sink
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (execRunner) Output(ctx context.Context, name string, args ...string) (string, int, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	err := cmd.Run()
	if err == nil {
		return stdout.String(), 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return stdout.String(), exitErr.ExitCode(), nil
	}
	return "", -1, err
}

// Client invokes one container engine binary (docker-compatible CLI).
type Client struct {
	Bin    string
	runner Runner
}

// NewClient creates a client for the given engine binary.
func NewClient(bin string) *Client {
	return &Client{Bin: bin, runner: execRunner{}}
}

// NewClientWithRunner creates a client backed by a custom Runner.
func NewClientWithRunner(bin string, r Runner) *Client {
	return &Client{Bin: bin, runner: r}
}

// runLogged writes the literal command line to sink, then runs it with
// output streamed to the same sink.
func (c *Client) runLogged(ctx context.Context, sink io.Writer, args ...string) (int, error) {
	if sink != nil {
		fmt.Fprintf(sink, "▶ %s %s\n", c.Bin, strings.Join(args, " "))
	}
	return c.runner.Run(ctx, sink, c.Bin, args...)
}

// Available checks that the engine binary is reachable at all.
func (c *Client) Available(ctx context.Context) error {
	_, code, err := c.runner.Output(ctx, c.Bin, "--version")
	if err != nil {
		return fmt.Errorf("%s not available: %w", c.Bin, err)
	}
	if code != 0 {
		return fmt.Errorf("%s --version exited with code %d", c.Bin, code)
	}
	return nil
}

// Build builds an image from buildFile with contextDir as build context,
// streaming build output to sink. Returns the build's exit code.
func (c *Client) Build(ctx context.Context, sink io.Writer, buildFile, tag, contextDir string) (int, error) {
	return c.runLogged(ctx, sink, "build", "-f", buildFile, "-t", tag, contextDir)
}

// ImageWorkdir returns the working directory configured in image
// metadata, or "" when unset or when inspection fails. Inspection is
// authoritative even for multi-stage builds.
func (c *Client) ImageWorkdir(ctx context.Context, image string) string {
	out, code, err := c.runner.Output(ctx, c.Bin, "image", "inspect", image, "--format", "{{.Config.WorkingDir}}")
	if err != nil || code != 0 {
		return ""
	}
	return strings.TrimSpace(out)
}
