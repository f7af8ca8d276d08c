package batch

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/grabber/internal/download"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/italolelis/grabber/internal/notifier"
	"github.com/italolelis/grabber/internal/storage"
)

// Tracked records every task it runs in the download ledger so concurrent
// processes never write the same destination, and announces the result.
type Tracked struct {
	Runner     Runner
	Repo       storage.DownloadRepository
	InstanceID string
	Notifier   notifier.Notifier
}

func (t *Tracked) Run(ctx context.Context, task *download.Task) (download.Outcome, error) {
	logger := logctx.LoggerFromContext(ctx).With("destination", task.Destination)

	claimed, err := t.Repo.ClaimDownload(task.Source, task.Destination, t.InstanceID)
	if err != nil {
		return download.OutcomeNone, fmt.Errorf("failed to claim download: %w", err)
	}

	if !claimed {
		logger.Info("download is locked by another instance, skipping")

		return download.OutcomeSkipped, nil
	}

	outcome, runErr := t.Runner.Run(ctx, task)

	status := storage.StatusDownloaded

	switch {
	case runErr != nil:
		status = storage.StatusFailed
	case outcome == download.OutcomeSkipped:
		status = storage.StatusSkipped
	}

	size := task.Resumed() + task.Transferred()
	if total, ok := task.TotalSize(); ok {
		size = total
	}

	if err := t.Repo.UpdateDownloadStatus(task.Destination, status, size); err != nil {
		logger.Error("failed to update download status", "status", status, "err", err)
	}

	t.notify(ctx, task, status, size, runErr)

	return outcome, runErr
}

func (t *Tracked) notify(ctx context.Context, task *download.Task, status string, size int64, runErr error) {
	if t.Notifier == nil {
		return
	}

	var content string

	switch status {
	case storage.StatusFailed:
		content = fmt.Sprintf("❌ Download failed: %s (%v)", task.Destination, runErr)
	case storage.StatusDownloaded:
		content = fmt.Sprintf("✅ Download finished: %s (%s)", task.Destination, humanize.Bytes(uint64(size)))
	default:
		return
	}

	if err := t.Notifier.Notify(ctx, content); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to send notification", "destination", task.Destination, "err", err)
	}
}
