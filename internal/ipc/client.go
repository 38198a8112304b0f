package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/rbright/wydy/internal/protocol"
)

// Dial connects to the responder. Failures wrap protocol.ErrConnectionUnavailable.
func Dial(ctx context.Context, addr Address, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, addr.Network, addr.Addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", protocol.ErrConnectionUnavailable, err)
	}
	return conn, nil
}

// ErrBusy reports a responder that accepted the connection but is still
// serving another requester.
var ErrBusy = errors.New("wydyd busy with another requester")

// Probe checks whether a responsive wydyd answers the handshake at addr.
// A responder that accepts but does not answer within timeout is reported
// alive with an error wrapping ErrBusy.
func Probe(ctx context.Context, addr Address, timeout time.Duration) (bool, error) {
	conn, err := Dial(ctx, addr, timeout)
	if err != nil {
		if isSocketMissing(err) || isConnectionRefused(err) {
			return false, nil
		}
		return false, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return false, fmt.Errorf("set deadline: %w", err)
	}
	if err := protocol.NewRequester(conn, protocol.RequesterOptions{}).Handshake(); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true, fmt.Errorf("%w: %s", ErrBusy, addr)
		}
		return false, fmt.Errorf("handshake: %w", err)
	}
	return true, nil
}

// isSocketMissing reports absent-socket failures.
func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist)
}

// isConnectionRefused reports no-listener failures.
func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
