// Package main provides the wydyd responder entrypoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/wydy/internal/app"
)

// main wires process signal handling to the responder.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exitCode := app.ExecuteDaemon(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(exitCode)
}
