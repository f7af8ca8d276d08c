package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/italolelis/grabber/internal/download"
	"github.com/italolelis/grabber/internal/logctx"
	"github.com/italolelis/grabber/internal/progress"
)

const filePerm = 0644

// Strategy downloads a task over a single HTTP stream. Bytes land in the
// task's part file, which is renamed to the destination once complete. When a
// part file is left from an earlier attempt and the size is known, the
// transfer continues from its end with a Range request.
type Strategy struct {
	client *Client
}

var _ download.Strategy = (*Strategy)(nil)

func NewStrategy(client *Client) *Strategy {
	return &Strategy{client: client}
}

// Transfer implements download.Strategy.
func (s *Strategy) Transfer(ctx context.Context, task *download.Task) error {
	logger := logctx.LoggerFromContext(ctx).With("source", task.Source)

	partPath := task.PartPath()
	total, known := task.TotalSize()

	offset, err := resumeOffset(partPath, total, known)
	if err != nil {
		return err
	}

	if known && offset == total {
		logger.Info("part file already complete", "part", partPath)

		task.SetResumed(offset)

		return finalize(partPath, task.Destination)
	}

	header := task.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	if offset > 0 {
		header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := s.client.get(ctx, task.Source, header)
	if err != nil {
		return fmt.Errorf("failed to request %s: %w", task.Source, err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY

	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		logger.Info("resuming download", "offset", offset)

		flags |= os.O_APPEND

		task.SetResumed(offset)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if offset > 0 {
			logger.Warn("server ignored range request, restarting download", "status", resp.StatusCode)
		}

		flags |= os.O_TRUNC
		offset = 0

		task.SetResumed(0)
	default:
		return &StatusError{Operation: "transfer", URL: task.Source, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	out, err := os.OpenFile(partPath, flags, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open part file: %w", err)
	}

	pw := progress.NewWriter(out, task.ReportChunk)

	_, copyErr := io.CopyBuffer(pw, onlyReader{resp.Body}, make([]byte, s.client.chunkSize))

	if err := out.Close(); err != nil && copyErr == nil {
		copyErr = fmt.Errorf("failed to close part file: %w", err)
	}

	if copyErr != nil {
		return fmt.Errorf("failed to copy response body: %w", copyErr)
	}

	if known {
		switch got := offset + pw.Written(); {
		case got < total:
			return fmt.Errorf("%w: got %d of %d bytes", ErrShortTransfer, got, total)
		case got > total:
			return fmt.Errorf("%w: got %d of %d bytes", ErrLongTransfer, got, total)
		}
	}

	return finalize(partPath, task.Destination)
}

func resumeOffset(partPath string, total int64, known bool) (int64, error) {
	info, err := os.Stat(partPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to stat part file: %w", err)
	}

	// without a declared size there is no way to tell whether the part matches
	if !known || info.Size() > total {
		return 0, nil
	}

	return info.Size(), nil
}

func finalize(partPath, destination string) error {
	if err := os.Rename(partPath, destination); err != nil {
		return fmt.Errorf("failed to move part file into place: %w", err)
	}

	return nil
}

// onlyReader hides any WriterTo on the body so io.CopyBuffer keeps the
// configured chunk size.
type onlyReader struct {
	io.Reader
}
