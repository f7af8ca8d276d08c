package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/italolelis/grabber/internal/download"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := &app{}

	err := newRootCmd(a).ExecuteContext(ctx)

	if closeErr := a.close(ctx); closeErr != nil {
		slog.Error("failed to shutdown cleanly", "err", closeErr)
	}

	if err != nil {
		if errors.Is(err, download.ErrSizeConflict) {
			slog.Error("aborting: destination conflicts with the remote resource", "err", err)
		} else {
			slog.Error("fatal error", "err", err)
		}

		cancel()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "grabber",
		Short:         "Resumable HTTP downloader",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	root.AddCommand(
		newGetCmd(a),
		newBatchCmd(a),
		newHistoryCmd(a),
		newPruneCmd(a),
	)

	return root
}
