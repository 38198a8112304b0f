// Package session serves the responder side of one requester connection.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/wydy/internal/command"
	"github.com/rbright/wydy/internal/executor"
	"github.com/rbright/wydy/internal/fsm"
	"github.com/rbright/wydy/internal/protocol"
)

// StatusSpawnFailed is relayed when a responder-side program cannot start.
const StatusSpawnFailed = 127

// Resolver turns a phrase into ordered candidates.
type Resolver interface {
	Resolve(ctx context.Context, text string) []command.Candidate
}

// Executor runs candidates on the responder.
type Executor interface {
	Run(ctx context.Context, line string) (int, error)
	Start(line string) (*executor.Process, error)
}

// Recorder receives per-exchange counters.
type Recorder interface {
	Request(response string)
	Resolved(n int)
	Execution(location, result string)
}

type noopRecorder struct{}

func (noopRecorder) Request(string)           {}
func (noopRecorder) Resolved(int)             {}
func (noopRecorder) Execution(string, string) {}

// Options tunes responder behavior.
type Options struct {
	// WaitForExit relays the real exit code of responder-side actions instead
	// of reporting a successful launch.
	WaitForExit bool
}

// Result summarizes one served connection.
type Result struct {
	ID         string
	State      fsm.State
	Exchanges  int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controller answers requester connections.
type Controller struct {
	logger   *slog.Logger
	resolver Resolver
	exec     Executor
	recorder Recorder
	opts     Options
}

// NewController constructs a controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	resolver Resolver,
	exec Executor,
	recorder Recorder,
	opts Options,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if exec == nil {
		exec = executor.Executor{Logger: logger}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Controller{
		logger:   logger,
		resolver: resolver,
		exec:     exec,
		recorder: recorder,
		opts:     opts,
	}
}

// conversation is the per-connection state.
type conversation struct {
	id     string
	conn   *protocol.Conn
	state  fsm.State
	logger *slog.Logger
}

func (s *conversation) transition(event fsm.Event) error {
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *conversation) fail(err error) error {
	s.state, _ = fsm.Transition(s.state, fsm.EventFail)
	return err
}

// Handle serves one connection until the requester disconnects or the stream
// desynchronizes.
func (c *Controller) Handle(ctx context.Context, rw io.ReadWriter) error {
	result := c.Run(ctx, rw)
	logResult(c.logger, result)
	return result.Err
}

// Run serves one connection and reports what happened.
func (c *Controller) Run(ctx context.Context, rw io.ReadWriter) Result {
	s := &conversation{
		id:    uuid.NewString(),
		conn:  protocol.NewConn(rw),
		state: fsm.StateDisconnected,
	}
	s.logger = c.logger.With("session", s.id)
	result := Result{ID: s.id, StartedAt: time.Now()}

	finish := func(err error) Result {
		result.State = s.state
		result.Err = err
		result.FinishedAt = time.Now()
		return result
	}

	if err := c.handshake(s); err != nil {
		return finish(err)
	}
	s.logger.Info("requester connected")

	for {
		probe, err := s.conn.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = s.transition(fsm.EventDisconnect)
				return finish(nil)
			}
			return finish(s.fail(fmt.Errorf("read presence: %w", err)))
		}
		if err := c.echoPresence(s, probe); err != nil {
			return finish(err)
		}
		if err := s.transition(fsm.EventPresence); err != nil {
			return finish(s.fail(err))
		}

		if err := c.exchange(ctx, s); err != nil {
			return finish(err)
		}
		result.Exchanges++
	}
}

func (c *Controller) handshake(s *conversation) error {
	if err := s.transition(fsm.EventConnect); err != nil {
		return err
	}
	magic, err := s.conn.ReadFull(len(protocol.Magic))
	if err != nil {
		return s.fail(fmt.Errorf("%w: read magic: %v", protocol.ErrHandshakeFailed, err))
	}
	if !bytes.Equal(magic, protocol.Magic[:]) {
		return s.fail(fmt.Errorf("%w: got %q", protocol.ErrHandshakeFailed, magic))
	}
	if err := s.conn.Write(protocol.Magic[:]); err != nil {
		return s.fail(fmt.Errorf("%w: echo magic: %v", protocol.ErrHandshakeFailed, err))
	}
	return s.transition(fsm.EventHandshake)
}

func (c *Controller) echoPresence(s *conversation, probe byte) error {
	if probe != protocol.PresenceByte {
		return s.fail(fmt.Errorf("%w: got %d", protocol.ErrPresenceMismatch, probe))
	}
	if err := s.conn.WriteByte(protocol.PresenceByte); err != nil {
		return s.fail(fmt.Errorf("%w: echo: %v", protocol.ErrPresenceMismatch, err))
	}
	return nil
}

func (c *Controller) expectPresence(s *conversation) error {
	probe, err := s.conn.ReadByte()
	if err != nil {
		return s.fail(fmt.Errorf("%w: read: %v", protocol.ErrPresenceMismatch, err))
	}
	return c.echoPresence(s, probe)
}

// exchange handles one phrase from command line through to a result.
func (c *Controller) exchange(ctx context.Context, s *conversation) error {
	phrase, err := s.conn.ReadLine()
	if err != nil {
		return s.fail(fmt.Errorf("read command: %w", err))
	}
	flag, err := s.conn.ReadByte()
	if err != nil {
		return s.fail(fmt.Errorf("read location flag: %w", err))
	}
	local, err := protocol.DecodeLocationFlag(flag)
	if err != nil {
		return s.fail(err)
	}
	if err := s.transition(fsm.EventSendCommand); err != nil {
		return s.fail(err)
	}

	candidates := Filter(c.resolver.Resolve(ctx, phrase), local)
	if len(candidates) > protocol.MaxCandidates {
		candidates = candidates[:protocol.MaxCandidates]
	}
	c.recorder.Resolved(len(candidates))
	s.logger.Info("phrase received", "phrase", phrase, "local", local, "candidates", len(candidates))

	switch len(candidates) {
	case 0:
		c.recorder.Request(protocol.ResponseOutputOnly.String())
		if err := s.conn.WriteByte(byte(protocol.ResponseOutputOnly)); err != nil {
			return s.fail(fmt.Errorf("send response code: %w", err))
		}
		return s.transition(fsm.EventRespondOutput)
	case 1:
		c.recorder.Request(protocol.ResponseSingle.String())
		if err := s.conn.WriteByte(byte(protocol.ResponseSingle)); err != nil {
			return s.fail(fmt.Errorf("send response code: %w", err))
		}
		if err := s.transition(fsm.EventRespondSingle); err != nil {
			return s.fail(err)
		}
		return c.singleAction(ctx, s, candidates[0], local)
	default:
		c.recorder.Request(protocol.ResponseMultiple.String())
		if err := s.conn.WriteByte(byte(protocol.ResponseMultiple)); err != nil {
			return s.fail(fmt.Errorf("send response code: %w", err))
		}
		if err := s.transition(fsm.EventRespondMultiple); err != nil {
			return s.fail(err)
		}
		return c.selection(ctx, s, candidates, local)
	}
}

func (c *Controller) selection(ctx context.Context, s *conversation, candidates []command.Candidate, local bool) error {
	if err := s.conn.WriteByte(byte(len(candidates))); err != nil {
		return s.fail(fmt.Errorf("send candidate count: %w", err))
	}
	for _, candidate := range candidates {
		if err := s.conn.WriteLine(candidate.Description); err != nil {
			return s.fail(fmt.Errorf("send candidate: %w", err))
		}
	}

	choice, err := s.conn.ReadByte()
	if err != nil {
		return s.fail(fmt.Errorf("read selection: %w", err))
	}
	if choice < 1 || int(choice) > len(candidates) {
		s.logger.Info("selection cancelled", "choice", choice)
		return s.transition(fsm.EventCancel)
	}
	if err := s.transition(fsm.EventSelect); err != nil {
		return s.fail(err)
	}
	return c.singleAction(ctx, s, candidates[choice-1], local)
}

func (c *Controller) singleAction(ctx context.Context, s *conversation, candidate command.Candidate, local bool) error {
	if err := c.expectPresence(s); err != nil {
		return err
	}

	loc := RunLocationFor(candidate, local)
	if err := s.conn.WriteByte(byte(loc)); err != nil {
		return s.fail(fmt.Errorf("send run location: %w", err))
	}
	s.logger.Info("candidate chosen", "command", candidate.Command, "run_location", loc.String())

	if loc == protocol.RunRequester {
		if err := s.conn.WriteLine(candidate.Command); err != nil {
			return s.fail(fmt.Errorf("send command: %w", err))
		}
		if err := s.conn.WriteLine(candidate.Description); err != nil {
			return s.fail(fmt.Errorf("send description: %w", err))
		}
		c.recorder.Execution(loc.String(), "delegated")
		return s.transition(fsm.EventComplete)
	}

	if err := s.conn.WriteLine(candidate.Description); err != nil {
		return s.fail(fmt.Errorf("send description: %w", err))
	}
	status := c.execute(ctx, s, candidate)

	if err := c.expectPresence(s); err != nil {
		return err
	}
	if err := s.conn.WriteLine(strconv.Itoa(status)); err != nil {
		return s.fail(fmt.Errorf("send status: %w", err))
	}
	return s.transition(fsm.EventComplete)
}

// execute runs candidate on the responder and returns the status to relay.
func (c *Controller) execute(ctx context.Context, s *conversation, candidate command.Candidate) int {
	loc := protocol.RunResponder.String()

	if c.opts.WaitForExit {
		code, err := c.exec.Run(ctx, candidate.Command)
		if err != nil {
			s.logger.Error("run failed", "command", candidate.Command, "error", err.Error())
			c.recorder.Execution(loc, "spawn_failed")
			return StatusSpawnFailed
		}
		c.recorder.Execution(loc, "exited")
		return code
	}

	proc, err := c.exec.Start(candidate.Command)
	if err != nil {
		s.logger.Error("spawn failed", "command", candidate.Command, "error", err.Error())
		c.recorder.Execution(loc, "spawn_failed")
		return StatusSpawnFailed
	}
	s.logger.Info("spawned", "command", candidate.Command, "pid", proc.Pid)
	c.recorder.Execution(loc, "spawned")
	return 0
}

func logResult(logger *slog.Logger, result Result) {
	fields := []any{
		"session", result.ID,
		"state", result.State,
		"exchanges", result.Exchanges,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}
	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
