package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Handler serves one accepted connection to completion.
type Handler interface {
	Handle(context.Context, io.ReadWriter) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, io.ReadWriter) error

func (f HandlerFunc) Handle(ctx context.Context, rw io.ReadWriter) error {
	return f(ctx, rw)
}

// Serve accepts clients one at a time until context cancellation or listener
// close. A connection is not accepted until the previous one has finished.
// Handler errors end only that connection; the handler is expected to log
// them.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	stopListener := context.AfterFunc(ctx, func() {
		_ = listener.Close()
	})
	defer stopListener()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept connection: %w", err)
		}

		stopConn := context.AfterFunc(ctx, func() {
			_ = conn.Close()
		})
		_ = handler.Handle(ctx, conn)
		stopConn()
		_ = conn.Close()
	}
}
