package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/backlogsync/backlogsync/internal/cmd"
)

// Version information set via ldflags during build
// Example: go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2026-01-15"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = cmd.NewContext(ctx)

	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		cmd.Fail(ctx, err)
	}
}
