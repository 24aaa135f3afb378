// ABOUTME: CLI entrypoint for flowcanvas: serve the HTTP editor, run the terminal canvas, expose MCP tools, or lint documents.
// ABOUTME: Loads .env without clobbering the environment, then dispatches to cobra subcommands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Missing .env files are fine; existing variables win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
