package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/rbright/wydy/internal/cli"
	"github.com/rbright/wydy/internal/config"
	"github.com/rbright/wydy/internal/doctor"
	"github.com/rbright/wydy/internal/executor"
	"github.com/rbright/wydy/internal/ipc"
	"github.com/rbright/wydy/internal/metrics"
	"github.com/rbright/wydy/internal/resolve"
	"github.com/rbright/wydy/internal/script"
	"github.com/rbright/wydy/internal/session"
	"github.com/rbright/wydy/internal/vars"
	"github.com/rbright/wydy/internal/version"
)

const listenProbeTimeout = 180 * time.Millisecond

// ExecuteDaemon runs wydyd and returns its process exit code.
func ExecuteDaemon(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Daemon(ctx, args)
}

func (r Runner) Daemon(ctx context.Context, args []string) int {
	parsed, err := cli.ParseDaemon(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("wydyd"))
		return 2
	}

	switch parsed.Command {
	case cli.CommandHelp:
		fmt.Fprint(r.Stdout, cli.HelpText("wydyd"))
		return 0
	case cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	rt, err := r.setup("wydyd", parsed.ConfigPath)
	if err != nil {
		return r.fail(err)
	}
	defer func() { _ = rt.Close() }()
	logger := rt.logger
	cfg := rt.cfg.Config
	if parsed.Address != "" {
		cfg.Address = parsed.Address
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", rt.cfg.Path,
		"log", rt.log.Path,
	)

	store, closeStore, err := openVars(ctx, cfg.Vars, logger, parsed.Command == cli.CommandServe)
	if err != nil {
		return r.fail(err)
	}
	defer closeStore()

	if parsed.Command == cli.CommandDoctor {
		loaded := rt.cfg
		loaded.Config = cfg
		report := doctor.Run(ctx, loaded, store)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	}

	return r.serve(ctx, cfg, store, logger)
}

func (r Runner) serve(ctx context.Context, cfg config.Config, store vars.Store, logger *slog.Logger) int {
	addr, err := ipc.ParseAddress(cfg.Address)
	if err != nil {
		return r.fail(err)
	}

	listener, err := ipc.Listen(ctx, addr, listenProbeTimeout, func(context.Context) error {
		logger.Warn("removed stale socket", "path", addr.Addr)
		return nil
	})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			logger.Error("listen refused", "address", addr.String(), "error", err.Error())
		}
		return r.fail(err)
	}
	defer func() {
		_ = listener.Close()
		if addr.Network == ipc.NetworkUnix {
			_ = os.Remove(addr.Addr)
		}
	}()

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	recorder := metrics.New()
	metricsErrCh := make(chan error, 1)
	if cfg.Metrics.Address != "" {
		metricsListener, err := net.Listen("tcp", cfg.Metrics.Address)
		if err != nil {
			logger.Error("metrics listen failed", "address", cfg.Metrics.Address, "error", err.Error())
			return r.fail(fmt.Errorf("listen metrics %s: %w", cfg.Metrics.Address, err))
		}
		go func() {
			err := recorder.ServeListener(serveCtx, metricsListener, logger)
			if err != nil {
				logger.Error("metrics server stopped", "error", err.Error())
				cancel()
			}
			metricsErrCh <- err
		}()
	} else {
		metricsErrCh <- nil
	}

	var searchPath []string
	if len(cfg.SearchPath) > 0 {
		searchPath = cfg.SearchPath
	}
	varsPath := ""
	if cfg.Vars.Backend == config.VarsBackendFile {
		varsPath = cfg.Vars.Path
	}
	resolver := &resolve.Pipeline{
		Vars:       store,
		Scripts:    script.NewDir(cfg.Scripts.Dir),
		VarsPath:   varsPath,
		SearchPath: searchPath,
		Logger:     logger,
	}
	exec := executor.Executor{Stdout: r.Stdout, Stderr: r.Stderr, Logger: logger}
	controller := session.NewController(logger, resolver, exec, recorder, session.Options{
		WaitForExit: cfg.Daemon.WaitForExit,
	})

	fmt.Fprintf(r.Stdout, "listening on %s\n", addr)
	logger.Info("listening", "address", addr.String(), "wait_for_exit", cfg.Daemon.WaitForExit)

	serveErr := ipc.Serve(serveCtx, listener, controller)
	cancel()
	metricsErr := <-metricsErrCh

	if serveErr != nil {
		return r.fail(serveErr)
	}
	if metricsErr != nil {
		return r.fail(metricsErr)
	}
	logger.Info("shutdown complete")
	return 0
}

// openVars opens the configured variable backend. The returned close func is
// always safe to call.
func openVars(ctx context.Context, cfg config.VarsConfig, logger *slog.Logger, watch bool) (vars.Store, func(), error) {
	switch cfg.Backend {
	case config.VarsBackendRedis:
		store := vars.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key)
		if err := store.Ping(ctx); err != nil {
			logger.Warn("redis vars backend unreachable", "addr", cfg.Redis.Addr, "error", err.Error())
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := vars.OpenFile(cfg.Path, logger)
		if err != nil {
			return nil, func() {}, err
		}
		if !watch {
			return store, func() { _ = store.Close() }, nil
		}
		if err := store.StartWatching(ctx); err != nil {
			logger.Warn("vars file not watched", "path", cfg.Path, "error", err.Error())
		}
		return store, func() { _ = store.Close() }, nil
	}
}
