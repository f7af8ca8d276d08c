package cleanup

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/italolelis/grabber/internal/logctx"
	"github.com/italolelis/grabber/internal/storage"
)

// DeleteExpiredFiles deletes downloaded files older than keepDuration and
// returns the paths whose records can be dropped. Records that are not in
// the downloaded state are left alone.
func DeleteExpiredFiles(ctx context.Context, records []storage.DownloadRecord, keepDuration time.Duration, now time.Time) ([]string, error) {
	logger := logctx.LoggerFromContext(ctx)

	var expired []string

	for _, rec := range records {
		if rec.Status != storage.StatusDownloaded && rec.Status != storage.StatusSkipped {
			continue
		}

		info, err := os.Stat(rec.FilePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// already gone, the record can go too
				expired = append(expired, rec.FilePath)

				continue
			}

			logger.Error("failed to stat file", "file", rec.FilePath, "err", err)

			return expired, err
		}

		downloadedAt, err := time.Parse(time.RFC3339, rec.DownloadedAt)
		if err != nil {
			logger.Warn("failed to parse download time, using file mod time", "file", rec.FilePath, "err", err)

			downloadedAt = info.ModTime()
		}

		if now.Sub(downloadedAt) <= keepDuration {
			continue
		}

		if err := os.Remove(rec.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Error("failed to delete expired file", "file", rec.FilePath, "err", err)

			return expired, err
		}

		logger.Info("deleted expired file", "file", rec.FilePath)

		expired = append(expired, rec.FilePath)
	}

	return expired, nil
}
