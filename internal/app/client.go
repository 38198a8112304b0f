package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/wydy/internal/cli"
	"github.com/rbright/wydy/internal/executor"
	"github.com/rbright/wydy/internal/fsm"
	"github.com/rbright/wydy/internal/ipc"
	"github.com/rbright/wydy/internal/protocol"
	"github.com/rbright/wydy/internal/session"
	"github.com/rbright/wydy/internal/version"
	"golang.org/x/term"
)

const (
	dialTimeout  = 2 * time.Second
	probeTimeout = 300 * time.Millisecond
	prompt       = "> "
)

// ExecuteClient runs the wydy requester and returns its process exit code.
func ExecuteClient(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return r.Client(ctx, args)
}

func (r Runner) Client(ctx context.Context, args []string) int {
	parsed, err := cli.ParseClient(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("wydy"))
		return 2
	}

	switch parsed.Command {
	case cli.CommandHelp:
		fmt.Fprint(r.Stdout, cli.HelpText("wydy"))
		return 0
	case cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	rt, err := r.setup("wydy", parsed.ConfigPath)
	if err != nil {
		return r.fail(err)
	}
	defer func() { _ = rt.Close() }()
	logger := rt.logger

	rawAddr := rt.cfg.Config.Address
	if parsed.Address != "" {
		rawAddr = parsed.Address
	}
	addr, err := ipc.ParseAddress(rawAddr)
	if err != nil {
		return r.fail(err)
	}

	if parsed.Command == cli.CommandCheck {
		alive, err := ipc.Probe(ctx, addr, probeTimeout)
		if errors.Is(err, ipc.ErrBusy) {
			fmt.Fprintln(r.Stdout, "running (busy)")
			return 0
		}
		if err != nil {
			return r.fail(err)
		}
		if !alive {
			fmt.Fprintln(r.Stdout, "not running")
			return 1
		}
		fmt.Fprintln(r.Stdout, "running")
		return 0
	}

	logger.Info("command start", "command", parsed.Command, "address", addr.String(), "config", rt.cfg.Path)

	conn, err := ipc.Dial(ctx, addr, dialTimeout)
	if err != nil {
		logger.Error("dial failed", "error", err.Error())
		return r.fail(protocol.ErrConnectionUnavailable)
	}
	defer conn.Close()
	stopConn := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopConn()

	input := bufio.NewReader(r.stdin())
	// Piped input holds further phrases, so local children only get a
	// terminal stdin.
	var childStdin io.Reader
	if isTerminal(r.stdin()) {
		childStdin = r.stdin()
	}
	requester := protocol.NewRequester(conn, protocol.RequesterOptions{
		Input:  input,
		Output: r.Stdout,
		Runner: executor.Executor{
			Stdin:  childStdin,
			Stdout: r.Stdout,
			Stderr: r.Stderr,
			Logger: logger,
		},
		Logger: logger,
	})
	if err := requester.Handshake(); err != nil {
		return r.fail(err)
	}

	local := rt.cfg.Config.Client.PreferLocal && !parsed.Remote
	if parsed.Phrase != "" {
		code, _ := r.exchange(ctx, requester, parsed.Phrase, local, logger)
		return code
	}
	return r.interactive(ctx, requester, input, local, logger)
}

// interactive reads phrases until EOF or exit/quit and returns the last
// exchange's exit code.
func (r Runner) interactive(ctx context.Context, requester *protocol.Requester, input *bufio.Reader, local bool, logger *slog.Logger) int {
	showPrompt := isTerminal(r.stdin())
	last := 0
	for {
		if showPrompt {
			fmt.Fprint(r.Stdout, prompt)
		}
		line, err := input.ReadString('\n')
		phrase := strings.TrimSpace(line)
		if phrase == "exit" || phrase == "quit" {
			return last
		}
		if phrase != "" {
			code, fatal := r.exchange(ctx, requester, phrase, local, logger)
			last = code
			if fatal {
				return code
			}
		}
		if err != nil {
			if showPrompt {
				fmt.Fprintln(r.Stdout)
			}
			return last
		}
	}
}

// exchange runs one phrase and maps the outcome to an exit code. fatal means
// the session can no longer be used.
func (r Runner) exchange(ctx context.Context, requester *protocol.Requester, phrase string, local bool, logger *slog.Logger) (int, bool) {
	outcome, err := requester.Exchange(ctx, phrase, local)
	switch {
	case err == nil:
	case errors.Is(err, protocol.ErrSelectionCancelled):
		return 0, false
	case errors.Is(err, protocol.ErrInvalidResponseCode) && requester.State() != fsm.StateClosed:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1, false
	case errors.Is(err, executor.ErrSpawnFailure):
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return session.StatusSpawnFailed, false
	default:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1, true
	}

	logger.Info("exchange complete",
		"phrase", phrase,
		"response", outcome.Response.String(),
		"ran_on", outcome.RanOn.String(),
		"exit_code", outcome.ExitCode,
	)
	if !outcome.Executed() {
		fmt.Fprintln(r.Stdout, "nothing to do")
		return 0, false
	}
	return outcome.ExitCode, false
}

func (r Runner) stdin() io.Reader {
	if r.Stdin == nil {
		return strings.NewReader("")
	}
	return r.Stdin
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
