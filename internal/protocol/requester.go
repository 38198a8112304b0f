package protocol

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/rbright/wydy/internal/fsm"
)

// Runner executes a command line locally and returns its exit code.
type Runner interface {
	Run(ctx context.Context, line string) (int, error)
}

// RequesterOptions wires the operator-facing side of a requester.
type RequesterOptions struct {
	// Input supplies menu choices. Pass the same *bufio.Reader used for
	// phrases when both come from one stream.
	Input  io.Reader
	Output io.Writer
	Runner Runner
	Logger *slog.Logger
}

// Outcome is what one exchange produced.
type Outcome struct {
	Response    ResponseCode
	RanOn       RunLocation
	Description string
	ExitCode    int
}

// Executed reports whether an action ran on either side.
func (o Outcome) Executed() bool {
	return o.RanOn != 0
}

// Requester drives exchanges from the invoking side.
type Requester struct {
	conn   *Conn
	input  *bufio.Reader
	output io.Writer
	runner Runner
	logger *slog.Logger

	state             fsm.State
	handshaken        bool
	presenceConfirmed bool
}

// NewRequester wraps an open stream. Call Handshake before Exchange.
func NewRequester(rw io.ReadWriter, opts RequesterOptions) *Requester {
	input, ok := opts.Input.(*bufio.Reader)
	if !ok {
		if opts.Input == nil {
			opts.Input = strings.NewReader("")
		}
		input = bufio.NewReader(opts.Input)
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Requester{
		conn:   NewConn(rw),
		input:  input,
		output: opts.Output,
		runner: opts.Runner,
		logger: opts.Logger,
		state:  fsm.StateDisconnected,
	}
}

// State returns the current session state.
func (r *Requester) State() fsm.State {
	return r.state
}

// Handshaken reports whether the magic token round trip succeeded.
func (r *Requester) Handshaken() bool {
	return r.handshaken
}

// PresenceConfirmed reports whether the last presence probe was echoed.
func (r *Requester) PresenceConfirmed() bool {
	return r.presenceConfirmed
}

// Handshake writes the magic token and requires it echoed back.
func (r *Requester) Handshake() error {
	if err := r.transition(fsm.EventConnect); err != nil {
		return err
	}
	if err := r.conn.Write(Magic[:]); err != nil {
		return r.fail(fmt.Errorf("%w: send magic: %w", ErrHandshakeFailed, err))
	}
	echo, err := r.conn.ReadFull(len(Magic))
	if err != nil {
		return r.fail(fmt.Errorf("%w: read magic: %w", ErrHandshakeFailed, err))
	}
	if !bytes.Equal(echo, Magic[:]) {
		return r.fail(fmt.Errorf("%w: got %q", ErrHandshakeFailed, echo))
	}

	r.handshaken = true
	return r.transition(fsm.EventHandshake)
}

// Exchange sends one phrase and follows the responder through to a result.
//
// ErrSelectionCancelled and ErrInvalidResponseCode leave the session idle and
// reusable. Any other error except a local spawn failure closes the session.
func (r *Requester) Exchange(ctx context.Context, phrase string, local bool) (Outcome, error) {
	if r.state != fsm.StateIdle {
		return Outcome{}, fmt.Errorf("session not ready: %s", r.state)
	}

	if err := r.presence(); err != nil {
		return Outcome{}, err
	}
	if err := r.transition(fsm.EventPresence); err != nil {
		return Outcome{}, err
	}

	if err := r.conn.WriteLine(phrase); err != nil {
		return Outcome{}, r.fail(fmt.Errorf("send command: %w", err))
	}
	if err := r.conn.WriteByte(byte(FlagFor(local))); err != nil {
		return Outcome{}, r.fail(fmt.Errorf("send location flag: %w", err))
	}
	if err := r.transition(fsm.EventSendCommand); err != nil {
		return Outcome{}, err
	}

	raw, err := r.conn.ReadByte()
	if err != nil {
		return Outcome{}, r.fail(fmt.Errorf("read response code: %w", err))
	}
	code, err := DecodeResponseCode(raw)
	if err != nil {
		r.logger.Warn("invalid response code", "code", raw)
		_ = r.transition(fsm.EventRespondInvalid)
		return Outcome{}, err
	}

	switch code {
	case ResponseSingle:
		if err := r.transition(fsm.EventRespondSingle); err != nil {
			return Outcome{}, err
		}
		return r.singleAction(ctx, Outcome{Response: code})
	case ResponseMultiple:
		if err := r.transition(fsm.EventRespondMultiple); err != nil {
			return Outcome{}, err
		}
		return r.selection(ctx)
	default:
		if err := r.transition(fsm.EventRespondOutput); err != nil {
			return Outcome{}, err
		}
		return Outcome{Response: code}, nil
	}
}

// selection shows the candidate menu and relays the operator's choice.
func (r *Requester) selection(ctx context.Context) (Outcome, error) {
	count, err := r.conn.ReadByte()
	if err != nil {
		return Outcome{}, r.fail(fmt.Errorf("read candidate count: %w", err))
	}

	descriptions := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		desc, err := r.conn.ReadLine()
		if err != nil {
			return Outcome{}, r.fail(fmt.Errorf("read candidate %d: %w", i+1, err))
		}
		descriptions = append(descriptions, desc)
	}

	for i, desc := range descriptions {
		fmt.Fprintf(r.output, "[%d] %s\n", i+1, desc)
	}
	fmt.Fprintln(r.output, "[_] Exit")

	choice, ok := r.readChoice(len(descriptions))
	if !ok {
		if err := r.conn.WriteByte(CancelSelection); err != nil {
			return Outcome{}, r.fail(fmt.Errorf("send selection: %w", err))
		}
		fmt.Fprintln(r.output, "Exiting...")
		if err := r.transition(fsm.EventCancel); err != nil {
			return Outcome{}, err
		}
		return Outcome{Response: ResponseMultiple}, ErrSelectionCancelled
	}

	if err := r.conn.WriteByte(byte(choice)); err != nil {
		return Outcome{}, r.fail(fmt.Errorf("send selection: %w", err))
	}
	if err := r.transition(fsm.EventSelect); err != nil {
		return Outcome{}, err
	}
	return r.singleAction(ctx, Outcome{Response: ResponseMultiple})
}

// readChoice parses one operator line as a 1-based index into n entries.
func (r *Requester) readChoice(n int) (int, bool) {
	line, err := r.input.ReadString('\n')
	if err != nil && line == "" {
		r.logger.Debug("operator input closed", "error", err.Error())
		return 0, false
	}

	choice, err := strconv.ParseUint(strings.TrimSpace(line), 10, 8)
	if err != nil {
		fmt.Fprintf(r.output, "Invalid input: %q\n", strings.TrimSpace(line))
		return 0, false
	}
	if choice < 1 || int(choice) > n {
		return 0, false
	}
	return int(choice), true
}

// singleAction learns where the action runs and obtains its exit code.
func (r *Requester) singleAction(ctx context.Context, out Outcome) (Outcome, error) {
	if err := r.presence(); err != nil {
		return Outcome{}, err
	}

	raw, err := r.conn.ReadByte()
	if err != nil {
		return Outcome{}, r.fail(fmt.Errorf("read run location: %w", err))
	}
	loc, err := DecodeRunLocation(raw)
	if err != nil {
		return Outcome{}, r.fail(err)
	}
	out.RanOn = loc

	switch loc {
	case RunRequester:
		line, err := r.conn.ReadLine()
		if err != nil {
			return Outcome{}, r.fail(fmt.Errorf("read command: %w", err))
		}
		desc, err := r.conn.ReadLine()
		if err != nil {
			return Outcome{}, r.fail(fmt.Errorf("read description: %w", err))
		}
		out.Description = desc
		fmt.Fprintln(r.output, desc)

		if err := r.transition(fsm.EventComplete); err != nil {
			return Outcome{}, err
		}
		if r.runner == nil {
			return out, errors.New("no local runner configured")
		}
		code, err := r.runner.Run(ctx, line)
		if err != nil {
			return out, err
		}
		out.ExitCode = code
		return out, nil
	default:
		desc, err := r.conn.ReadLine()
		if err != nil {
			return Outcome{}, r.fail(fmt.Errorf("read description: %w", err))
		}
		out.Description = desc
		fmt.Fprintln(r.output, desc)

		if err := r.presence(); err != nil {
			return Outcome{}, err
		}
		status, err := r.conn.ReadLine()
		if err != nil {
			return Outcome{}, r.fail(fmt.Errorf("read status: %w", err))
		}
		code, err := strconv.Atoi(strings.TrimSpace(status))
		if err != nil {
			return Outcome{}, r.fail(fmt.Errorf("%w: status %q", ErrMalformed, status))
		}
		out.ExitCode = code
		return out, r.transition(fsm.EventComplete)
	}
}

// presence probes the peer with the sentinel byte.
func (r *Requester) presence() error {
	r.presenceConfirmed = false
	if err := r.conn.WriteByte(PresenceByte); err != nil {
		return r.fail(fmt.Errorf("%w: send: %w", ErrPresenceMismatch, err))
	}
	echo, err := r.conn.ReadByte()
	if err != nil {
		return r.fail(fmt.Errorf("%w: read: %w", ErrPresenceMismatch, err))
	}
	if echo != PresenceByte {
		return r.fail(fmt.Errorf("%w: got %d", ErrPresenceMismatch, echo))
	}
	r.presenceConfirmed = true
	return nil
}

func (r *Requester) transition(event fsm.Event) error {
	next, err := fsm.Transition(r.state, event)
	if err != nil {
		return err
	}
	r.state = next
	return nil
}

// fail closes the session state and returns err.
func (r *Requester) fail(err error) error {
	r.state, _ = fsm.Transition(r.state, fsm.EventFail)
	r.logger.Error("protocol failure", "error", err.Error())
	return err
}
