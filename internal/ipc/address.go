package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

const (
	NetworkTCP  = "tcp"
	NetworkUnix = "unix"
)

// Address is where the responder listens and the requester dials.
type Address struct {
	Network string
	Addr    string
}

func (a Address) String() string {
	if a.Network == NetworkUnix {
		return "unix:" + a.Addr
	}
	return a.Addr
}

// ParseAddress accepts "host:port", "tcp://host:port", "unix:/path" and a
// bare "unix:" meaning the runtime socket.
func ParseAddress(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Address{}, errors.New("address is empty")
	}

	if rest, ok := strings.CutPrefix(raw, "unix:"); ok {
		rest = strings.TrimPrefix(rest, "//")
		if rest == "" {
			path, err := RuntimeSocketPath()
			if err != nil {
				return Address{}, err
			}
			return Address{Network: NetworkUnix, Addr: path}, nil
		}
		if !filepath.IsAbs(rest) {
			return Address{}, fmt.Errorf("unix socket path %q must be absolute", rest)
		}
		return Address{Network: NetworkUnix, Addr: filepath.Clean(rest)}, nil
	}

	hostPort := strings.TrimPrefix(raw, "tcp://")
	if _, _, err := net.SplitHostPort(hostPort); err != nil {
		return Address{}, fmt.Errorf("invalid tcp address %q: %w", raw, err)
	}
	return Address{Network: NetworkTCP, Addr: hostPort}, nil
}

func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, "wydy.sock"), nil
}
