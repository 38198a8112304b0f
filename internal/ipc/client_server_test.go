package ipc

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/wydy/internal/protocol"
	"github.com/stretchr/testify/require"
)

// echoHandshake answers the magic token and then drains until hangup.
func echoHandshake(served *atomic.Int32) HandlerFunc {
	return func(_ context.Context, rw io.ReadWriter) error {
		served.Add(1)
		magic := make([]byte, len(protocol.Magic))
		if _, err := io.ReadFull(rw, magic); err != nil {
			return err
		}
		if _, err := rw.Write(magic); err != nil {
			return err
		}
		_, err := io.Copy(io.Discard, rw)
		return err
	}
}

func startServer(t *testing.T, listener net.Listener, handler Handler) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, handler)
	}()
	return cancel, serveDone
}

func TestProbe(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "wydy.sock")
	addr := Address{Network: NetworkUnix, Addr: socketPath}

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	var served atomic.Int32
	cancel, serveDone := startServer(t, listener, echoHandshake(&served))

	alive, probeErr := Probe(context.Background(), addr, 200*time.Millisecond)
	require.NoError(t, probeErr)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-serveDone)

	alive, probeErr = Probe(context.Background(), addr, 100*time.Millisecond)
	require.NoError(t, probeErr)
	require.False(t, alive)
}

func TestProbeReportsBusyResponderAlive(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "wydy.sock")
	addr := Address{Network: NetworkUnix, Addr: socketPath}

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	var served atomic.Int32
	cancel, serveDone := startServer(t, listener, echoHandshake(&served))

	held, err := Dial(context.Background(), addr, time.Second)
	require.NoError(t, err)
	require.NoError(t, protocol.NewRequester(held, protocol.RequesterOptions{}).Handshake())

	alive, probeErr := Probe(context.Background(), addr, 150*time.Millisecond)
	require.True(t, alive)
	require.ErrorIs(t, probeErr, ErrBusy)

	_, err = Acquire(context.Background(), socketPath, 150*time.Millisecond, 0, nil)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, held.Close())
	cancel()
	require.NoError(t, <-serveDone)
}

func TestProbeRejectsForeignListener(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()
		_, _ = io.ReadFull(conn, make([]byte, 4))
		_, _ = conn.Write([]byte("HTTP"))
	}()

	addr := Address{Network: NetworkTCP, Addr: listener.Addr().String()}
	alive, err := Probe(context.Background(), addr, 200*time.Millisecond)
	require.False(t, alive)
	require.ErrorIs(t, err, protocol.ErrHandshakeFailed)
}

func TestDialUnavailable(t *testing.T) {
	addr := Address{Network: NetworkUnix, Addr: filepath.Join(t.TempDir(), "missing.sock")}
	_, err := Dial(context.Background(), addr, 50*time.Millisecond)
	require.ErrorIs(t, err, protocol.ErrConnectionUnavailable)
}

func TestServeHandlesConnectionsSequentially(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := Address{Network: NetworkTCP, Addr: listener.Addr().String()}

	var served atomic.Int32
	cancel, serveDone := startServer(t, listener, echoHandshake(&served))

	first, err := Dial(context.Background(), addr, time.Second)
	require.NoError(t, err)
	require.NoError(t, protocol.NewRequester(first, protocol.RequesterOptions{}).Handshake())

	second, err := Dial(context.Background(), addr, time.Second)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.SetDeadline(time.Now().Add(5*time.Second)))

	secondDone := make(chan error, 1)
	go func() {
		secondDone <- protocol.NewRequester(second, protocol.RequesterOptions{}).Handshake()
	}()

	select {
	case err := <-secondDone:
		t.Fatalf("second handshake finished while first session open: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	require.Equal(t, int32(1), served.Load())

	require.NoError(t, first.Close())
	require.NoError(t, <-secondDone)
	require.Equal(t, int32(2), served.Load())

	cancel()
	require.NoError(t, <-serveDone)
}

func TestServeClosesActiveConnectionOnShutdown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := Address{Network: NetworkTCP, Addr: listener.Addr().String()}

	var served atomic.Int32
	cancel, serveDone := startServer(t, listener, echoHandshake(&served))

	conn, err := Dial(context.Background(), addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, protocol.NewRequester(conn, protocol.RequesterOptions{}).Handshake())

	cancel()
	require.NoError(t, <-serveDone)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

func TestParseAddress(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	cases := []struct {
		raw  string
		want Address
	}{
		{"127.0.0.1:7878", Address{Network: NetworkTCP, Addr: "127.0.0.1:7878"}},
		{"tcp://box.lan:9000", Address{Network: NetworkTCP, Addr: "box.lan:9000"}},
		{"unix:/tmp/wydy.sock", Address{Network: NetworkUnix, Addr: "/tmp/wydy.sock"}},
		{"unix:///tmp/wydy.sock", Address{Network: NetworkUnix, Addr: "/tmp/wydy.sock"}},
		{"unix:", Address{Network: NetworkUnix, Addr: "/run/user/1000/wydy.sock"}},
	}
	for _, tc := range cases {
		got, err := ParseAddress(tc.raw)
		require.NoError(t, err, tc.raw)
		require.Equal(t, tc.want, got, tc.raw)
	}

	for _, bad := range []string{"", "localhost", "unix:relative.sock"} {
		_, err := ParseAddress(bad)
		require.Error(t, err, bad)
	}

	require.Equal(t, "unix:/tmp/wydy.sock", Address{Network: NetworkUnix, Addr: "/tmp/wydy.sock"}.String())
}
