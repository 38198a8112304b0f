package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

var ErrAlreadyRunning = errors.New("wydyd already running")

// Listen binds addr, refusing when another responsive wydyd already owns it.
func Listen(ctx context.Context, addr Address, probeTimeout time.Duration, rescue func(context.Context) error) (net.Listener, error) {
	if addr.Network == NetworkUnix {
		return Acquire(ctx, addr.Addr, probeTimeout, 2, rescue)
	}

	listener, err := net.Listen(addr.Network, addr.Addr)
	if err == nil {
		return listener, nil
	}
	if !isAddrInUse(err) {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	alive, probeErr := Probe(ctx, addr, probeTimeout)
	if alive {
		return nil, ErrAlreadyRunning
	}
	if probeErr != nil {
		return nil, fmt.Errorf("probe existing listener %s: %w", addr, probeErr)
	}
	return nil, fmt.Errorf("listen %s: %w", addr, err)
}

// Acquire binds a unix socket, replacing a stale socket file left by a
// crashed owner.
func Acquire(
	ctx context.Context,
	path string,
	probeTimeout time.Duration,
	retries int,
	rescue func(context.Context) error,
) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	addr := Address{Network: NetworkUnix, Addr: path}
	for attempt := 0; attempt <= retries; attempt++ {
		listener, err := net.Listen(NetworkUnix, path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return listener, nil
		}

		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, addr, probeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}

		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, removeErr)
		}

		if rescue != nil {
			_ = rescue(ctx)
		}

		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("failed to acquire socket %s after %d retries", path, retries)
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
