// Package executor spawns resolved command lines as child processes.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ErrSpawnFailure marks a program that could not be found or launched.
var ErrSpawnFailure = errors.New("spawn failure")

// Executor runs command lines with the configured standard streams.
type Executor struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Split breaks a command line on whitespace into program and arguments.
func Split(line string) (string, []string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: empty command", ErrSpawnFailure)
	}
	return fields[0], fields[1:], nil
}

// Run starts line and waits for it. A non-zero exit is a result, not an error.
func (e Executor) Run(ctx context.Context, line string) (int, error) {
	cmd, err := e.command(ctx, line)
	if err != nil {
		return 0, err
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: start %s: %v", ErrSpawnFailure, cmd.Path, err)
	}

	err = cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return 0, fmt.Errorf("wait %s: %w", cmd.Path, err)
	}

	code := exitCode(cmd.ProcessState)
	e.logger().Info("command finished", "command", line, "exit_code", code)
	return code, nil
}

// Process is a child started without waiting.
type Process struct {
	Pid  int
	done chan struct{}
	code int
}

// Done is closed once the child has been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode is valid after Done is closed.
func (p *Process) ExitCode() int {
	<-p.done
	return p.code
}

// Start launches line and reaps it in the background. The child is not tied to
// ctx so it outlives the request that spawned it.
func (e Executor) Start(line string) (*Process, error) {
	cmd, err := e.command(context.Background(), line)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %s: %v", ErrSpawnFailure, cmd.Path, err)
	}

	proc := &Process{Pid: cmd.Process.Pid, done: make(chan struct{})}
	logger := e.logger()
	go func() {
		defer close(proc.done)
		_ = cmd.Wait()
		proc.code = exitCode(cmd.ProcessState)
		logger.Info("background command finished", "command", line, "pid", proc.Pid, "exit_code", proc.code)
	}()
	return proc, nil
}

func (e Executor) command(ctx context.Context, line string) (*exec.Cmd, error) {
	name, args, err := Split(line)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if cmd.Err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailure, name, cmd.Err)
	}
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	return cmd, nil
}

func (e Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

// exitCode reports 0 when the platform gives no code, e.g. signal exits.
func exitCode(state *os.ProcessState) int {
	if state == nil {
		return 0
	}
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	return 0
}
