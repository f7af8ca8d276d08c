package main

import (
	"fmt"
	"time"

	"github.com/italolelis/grabber/internal/cleanup"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/spf13/cobra"
)

func newPruneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete tracked files older than KEEP_DOWNLOADED_FOR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.withLogger(cmd.Context())
			logger := logctx.LoggerFromContext(ctx)

			if a.cfg.KeepDownloadedFor <= 0 {
				logger.Info("retention disabled, nothing to prune")

				return nil
			}

			records, err := a.repo.GetDownloads()
			if err != nil {
				return fmt.Errorf("failed to get tracked downloads for cleanup: %w", err)
			}

			expired, err := cleanup.DeleteExpiredFiles(ctx, records, a.cfg.KeepDownloadedFor, time.Now())

			for _, path := range expired {
				if delErr := a.repo.DeleteDownload(path); delErr != nil {
					logger.Error("failed to forget pruned download", "file_path", path, "err", delErr)
				}
			}

			logger.Info("prune finished", "removed", len(expired), "retention", a.cfg.KeepDownloadedFor.String())

			if err != nil {
				return fmt.Errorf("failed to delete expired tracked files: %w", err)
			}

			return nil
		},
	}
}
