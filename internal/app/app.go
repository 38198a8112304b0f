// Package app wires configuration, logging, and transport into the wydy and
// wydyd entrypoints.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/rbright/wydy/internal/config"
	"github.com/rbright/wydy/internal/logging"
)

// Runner carries the process streams. A nil Logger means log to the runtime
// JSONL file.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// runtime is the shared setup both binaries perform before doing work.
type runtime struct {
	cfg    config.Loaded
	logger *slog.Logger
	log    logging.Runtime
}

func (rt runtime) Close() error {
	return rt.log.Close()
}

// setup loads config then opens the log file at the configured level.
func (r Runner) setup(binary, configPath string) (runtime, error) {
	cfgLoaded, err := config.Load(configPath)
	if err != nil {
		return runtime{}, err
	}

	level, err := logging.ParseLevel(cfgLoaded.Config.Log.Level)
	if err != nil {
		return runtime{}, err
	}
	logRuntime, err := logging.New(binary, level)
	if err != nil {
		return runtime{}, fmt.Errorf("setup logging: %w", err)
	}

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	return runtime{cfg: cfgLoaded, logger: logger, log: logRuntime}, nil
}

func (r Runner) fail(err error) int {
	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	return 1
}
