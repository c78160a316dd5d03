// Package main provides the entry point for the stagehand CLI tool.
package main

import (
	"context"
	"os"

	"github.com/agentstation/stagehand/cmd/stagehand/app"
	"github.com/agentstation/stagehand/pkg/constants"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	application, err := app.New(version, commit, date, builtBy)
	if err != nil {
		app.ExitOnError(err)
	}

	ctx, cancel := app.ContextWithSignals(context.Background())
	runErr := application.Execute(ctx, os.Args[1:])
	cancel()

	// the signal context may be cancelled, close the store with a fresh one
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	if err := application.Shutdown(shutdownCtx); err != nil {
		application.Logger().Error().Err(err).Msg("Shutdown error")
	}
	shutdownCancel()

	app.ExitOnError(runErr)
}
