package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rbright/wydy/internal/fsm"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	lines []string
	code  int
	err   error
}

func (f *fakeRunner) Run(_ context.Context, line string) (int, error) {
	f.lines = append(f.lines, line)
	return f.code, f.err
}

// respond runs script as the responder end of a pipe.
func respond(t *testing.T, script func(c *Conn) error) (net.Conn, <-chan error) {
	t.Helper()

	client, server := net.Pipe()
	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, client.SetDeadline(deadline))
	require.NoError(t, server.SetDeadline(deadline))
	t.Cleanup(func() { _ = client.Close() })

	done := make(chan error, 1)
	go func() {
		defer server.Close()
		done <- script(NewConn(server))
	}()
	return client, done
}

func expectByte(c *Conn, want byte) error {
	got, err := c.ReadByte()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("byte = %d, want %d", got, want)
	}
	return nil
}

func expectLine(c *Conn, want string) error {
	got, err := c.ReadLine()
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("line = %q, want %q", got, want)
	}
	return nil
}

func acceptHandshake(c *Conn) error {
	magic, err := c.ReadFull(len(Magic))
	if err != nil {
		return err
	}
	if !bytes.Equal(magic, Magic[:]) {
		return fmt.Errorf("magic = %q", magic)
	}
	return c.Write(Magic[:])
}

func echoPresence(c *Conn) error {
	if err := expectByte(c, PresenceByte); err != nil {
		return err
	}
	return c.WriteByte(PresenceByte)
}

func acceptCommand(c *Conn, phrase string, flag LocationFlag) error {
	if err := echoPresence(c); err != nil {
		return err
	}
	if err := expectLine(c, phrase); err != nil {
		return err
	}
	return expectByte(c, byte(flag))
}

// expectClosed asserts the requester sent nothing more before hanging up.
func expectClosed(c *Conn) error {
	b, err := c.ReadByte()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("unexpected trailing byte %d", b)
}

func TestHandshakeMismatchSendsNoCommand(t *testing.T) {
	client, done := respond(t, func(c *Conn) error {
		if _, err := c.ReadFull(len(Magic)); err != nil {
			return err
		}
		if err := c.Write([]byte("NOPE")); err != nil {
			return err
		}
		return expectClosed(c)
	})

	r := NewRequester(client, RequesterOptions{})
	err := r.Handshake()
	require.ErrorIs(t, err, ErrHandshakeFailed)
	require.False(t, r.Handshaken())
	require.Equal(t, fsm.StateClosed, r.State())

	_, err = r.Exchange(context.Background(), "echo test", false)
	require.Error(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, <-done)
}

func TestSingleResponseRunOnResponder(t *testing.T) {
	client, done := respond(t, func(c *Conn) error {
		if err := acceptHandshake(c); err != nil {
			return err
		}
		if err := acceptCommand(c, "echo test", FlagRemote); err != nil {
			return err
		}
		if err := c.WriteByte(byte(ResponseSingle)); err != nil {
			return err
		}
		if err := echoPresence(c); err != nil {
			return err
		}
		if err := c.WriteByte(byte(RunResponder)); err != nil {
			return err
		}
		if err := c.WriteLine("echo test"); err != nil {
			return err
		}
		if err := echoPresence(c); err != nil {
			return err
		}
		return c.WriteLine("0")
	})

	var out bytes.Buffer
	r := NewRequester(client, RequesterOptions{Output: &out})
	require.NoError(t, r.Handshake())
	require.True(t, r.Handshaken())

	outcome, err := r.Exchange(context.Background(), "echo test", false)
	require.NoError(t, err)
	require.Equal(t, ResponseSingle, outcome.Response)
	require.Equal(t, RunResponder, outcome.RanOn)
	require.Equal(t, 0, outcome.ExitCode)
	require.True(t, outcome.Executed())
	require.True(t, r.PresenceConfirmed())
	require.Equal(t, fsm.StateIdle, r.State())
	require.Contains(t, out.String(), "echo test")

	require.NoError(t, <-done)
}

func TestRelayedNonZeroStatus(t *testing.T) {
	client, done := respond(t, func(c *Conn) error {
		if err := acceptHandshake(c); err != nil {
			return err
		}
		if err := acceptCommand(c, "false", FlagRemote); err != nil {
			return err
		}
		for _, step := range []func() error{
			func() error { return c.WriteByte(byte(ResponseSingle)) },
			func() error { return echoPresence(c) },
			func() error { return c.WriteByte(byte(RunResponder)) },
			func() error { return c.WriteLine("execute `false`") },
			func() error { return echoPresence(c) },
			func() error { return c.WriteLine("1") },
		} {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})

	r := NewRequester(client, RequesterOptions{})
	require.NoError(t, r.Handshake())
	outcome, err := r.Exchange(context.Background(), "false", false)
	require.NoError(t, err)
	require.Equal(t, 1, outcome.ExitCode)
	require.NoError(t, <-done)
}

func TestMultipleResponseSelectsIndex(t *testing.T) {
	client, done := respond(t, func(c *Conn) error {
		if err := acceptHandshake(c); err != nil {
			return err
		}
		if err := acceptCommand(c, "rust book", FlagLocal); err != nil {
			return err
		}
		if err := c.WriteByte(byte(ResponseMultiple)); err != nil {
			return err
		}
		if err := c.WriteByte(2); err != nil {
			return err
		}
		if err := c.WriteLine("opening url rust.book"); err != nil {
			return err
		}
		if err := c.WriteLine("search for rust book"); err != nil {
			return err
		}
		if err := expectByte(c, 2); err != nil {
			return err
		}
		if err := echoPresence(c); err != nil {
			return err
		}
		if err := c.WriteByte(byte(RunRequester)); err != nil {
			return err
		}
		if err := c.WriteLine("firefox https://duckduckgo.com/?q=rust%20book"); err != nil {
			return err
		}
		return c.WriteLine("search for rust book")
	})

	var out bytes.Buffer
	runner := &fakeRunner{}
	r := NewRequester(client, RequesterOptions{
		Input:  strings.NewReader("2\n"),
		Output: &out,
		Runner: runner,
	})
	require.NoError(t, r.Handshake())

	outcome, err := r.Exchange(context.Background(), "rust book", true)
	require.NoError(t, err)
	require.Equal(t, ResponseMultiple, outcome.Response)
	require.Equal(t, RunRequester, outcome.RanOn)
	require.Equal(t, "search for rust book", outcome.Description)
	require.Equal(t, []string{"firefox https://duckduckgo.com/?q=rust%20book"}, runner.lines)
	require.Equal(t, fsm.StateIdle, r.State())

	menu := out.String()
	require.Contains(t, menu, "[1] opening url rust.book\n")
	require.Contains(t, menu, "[2] search for rust book\n")
	require.Contains(t, menu, "[_] Exit\n")

	require.NoError(t, <-done)
}

func TestSelectionCancelSendsOnlyCancelByte(t *testing.T) {
	cases := map[string]string{
		"out of range": "3\n",
		"zero":         "0\n",
		"not a number": "abc\n",
		"too large":    "300\n",
		"input closed": "",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			client, done := respond(t, func(c *Conn) error {
				if err := acceptHandshake(c); err != nil {
					return err
				}
				if err := acceptCommand(c, "open docs", FlagLocal); err != nil {
					return err
				}
				if err := c.WriteByte(byte(ResponseMultiple)); err != nil {
					return err
				}
				if err := c.WriteByte(2); err != nil {
					return err
				}
				if err := c.WriteLine("first"); err != nil {
					return err
				}
				if err := c.WriteLine("second"); err != nil {
					return err
				}
				if err := expectByte(c, CancelSelection); err != nil {
					return err
				}
				return expectClosed(c)
			})

			var out bytes.Buffer
			r := NewRequester(client, RequesterOptions{Input: strings.NewReader(input), Output: &out})
			require.NoError(t, r.Handshake())

			outcome, err := r.Exchange(context.Background(), "open docs", true)
			require.ErrorIs(t, err, ErrSelectionCancelled)
			require.False(t, outcome.Executed())
			require.Equal(t, fsm.StateIdle, r.State())
			require.Contains(t, out.String(), "Exiting...")

			require.NoError(t, client.Close())
			require.NoError(t, <-done)
		})
	}
}

func TestPresenceMismatchClosesSession(t *testing.T) {
	client, done := respond(t, func(c *Conn) error {
		if err := acceptHandshake(c); err != nil {
			return err
		}
		if err := expectByte(c, PresenceByte); err != nil {
			return err
		}
		return c.WriteByte(7)
	})

	r := NewRequester(client, RequesterOptions{})
	require.NoError(t, r.Handshake())

	_, err := r.Exchange(context.Background(), "echo test", false)
	require.ErrorIs(t, err, ErrPresenceMismatch)
	require.False(t, r.PresenceConfirmed())
	require.Equal(t, fsm.StateClosed, r.State())
	require.NoError(t, <-done)
}

func TestInvalidResponseCodeKeepsSessionIdle(t *testing.T) {
	client, done := respond(t, func(c *Conn) error {
		if err := acceptHandshake(c); err != nil {
			return err
		}
		if err := acceptCommand(c, "first", FlagRemote); err != nil {
			return err
		}
		if err := c.WriteByte(9); err != nil {
			return err
		}
		if err := acceptCommand(c, "second", FlagRemote); err != nil {
			return err
		}
		return c.WriteByte(byte(ResponseOutputOnly))
	})

	r := NewRequester(client, RequesterOptions{})
	require.NoError(t, r.Handshake())

	_, err := r.Exchange(context.Background(), "first", false)
	require.ErrorIs(t, err, ErrInvalidResponseCode)
	require.Equal(t, fsm.StateIdle, r.State())

	outcome, err := r.Exchange(context.Background(), "second", false)
	require.NoError(t, err)
	require.Equal(t, ResponseOutputOnly, outcome.Response)
	require.False(t, outcome.Executed())
	require.NoError(t, <-done)
}

func TestMalformedStatusIsFatal(t *testing.T) {
	client, done := respond(t, func(c *Conn) error {
		if err := acceptHandshake(c); err != nil {
			return err
		}
		if err := acceptCommand(c, "echo test", FlagRemote); err != nil {
			return err
		}
		if err := c.WriteByte(byte(ResponseSingle)); err != nil {
			return err
		}
		if err := echoPresence(c); err != nil {
			return err
		}
		if err := c.WriteByte(byte(RunResponder)); err != nil {
			return err
		}
		if err := c.WriteLine("echo test"); err != nil {
			return err
		}
		if err := echoPresence(c); err != nil {
			return err
		}
		return c.WriteLine("zero")
	})

	r := NewRequester(client, RequesterOptions{})
	require.NoError(t, r.Handshake())

	_, err := r.Exchange(context.Background(), "echo test", false)
	require.ErrorIs(t, err, ErrMalformed)
	require.Equal(t, fsm.StateClosed, r.State())
	require.NoError(t, <-done)
}

func TestLocalRunnerFailureKeepsSessionIdle(t *testing.T) {
	client, done := respond(t, func(c *Conn) error {
		if err := acceptHandshake(c); err != nil {
			return err
		}
		if err := acceptCommand(c, "missing", FlagLocal); err != nil {
			return err
		}
		if err := c.WriteByte(byte(ResponseSingle)); err != nil {
			return err
		}
		if err := echoPresence(c); err != nil {
			return err
		}
		if err := c.WriteByte(byte(RunRequester)); err != nil {
			return err
		}
		if err := c.WriteLine("missing-binary"); err != nil {
			return err
		}
		return c.WriteLine("execute `missing-binary`")
	})

	spawnErr := errors.New("spawn failure")
	r := NewRequester(client, RequesterOptions{Runner: &fakeRunner{err: spawnErr}})
	require.NoError(t, r.Handshake())

	outcome, err := r.Exchange(context.Background(), "missing", true)
	require.ErrorIs(t, err, spawnErr)
	require.Equal(t, RunRequester, outcome.RanOn)
	require.Equal(t, fsm.StateIdle, r.State())
	require.NoError(t, <-done)
}

func TestInvalidRunLocationIsFatal(t *testing.T) {
	client, done := respond(t, func(c *Conn) error {
		if err := acceptHandshake(c); err != nil {
			return err
		}
		if err := acceptCommand(c, "x", FlagRemote); err != nil {
			return err
		}
		if err := c.WriteByte(byte(ResponseSingle)); err != nil {
			return err
		}
		if err := echoPresence(c); err != nil {
			return err
		}
		return c.WriteByte(5)
	})

	r := NewRequester(client, RequesterOptions{})
	require.NoError(t, r.Handshake())

	_, err := r.Exchange(context.Background(), "x", false)
	require.ErrorIs(t, err, ErrInvalidResponseCode)
	require.Equal(t, fsm.StateClosed, r.State())
	require.NoError(t, <-done)
}
