// Package main is the entry point for the galaxyd daemon.
// galaxyd scans music directories for the galaxy player GUI, serves cover
// art and publishes the now-playing track to Discord rich presence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Create context that cancels on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "galaxyd:", err)
		os.Exit(1)
	}
}
