package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/italolelis/grabber/internal/logctx"
)

const (
	// DefaultUserAgent is sent when the task header has no User-Agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Gecko/20100101Firefox/56.0"

	// DefaultProbeAttempts bounds the metadata queries made per task.
	DefaultProbeAttempts = 5

	// sizeTolerance is the largest size difference, exclusive, at which a
	// local file still counts as the remote resource.
	sizeTolerance = 10
)

// Decision is the verdict of a probe.
type Decision int

const (
	DecisionProceed Decision = iota
	DecisionSkip
	DecisionFatal
)

func (d Decision) String() string {
	switch d {
	case DecisionProceed:
		return "proceed"
	case DecisionSkip:
		return "skip"
	case DecisionFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Metadata is what a metadata query learns about a remote resource.
type Metadata struct {
	ContentLength int64 // 0 when no length was declared
	Chunked       bool
}

// MetadataClient issues the metadata query for a resource without reading
// its body.
type MetadataClient interface {
	Probe(ctx context.Context, url string, header http.Header) (*Metadata, error)
}

// Prober decides whether a task needs a transfer at all.
type Prober struct {
	client   MetadataClient
	attempts int
}

func NewProber(client MetadataClient, attempts int) *Prober {
	if attempts <= 0 {
		attempts = DefaultProbeAttempts
	}

	return &Prober{
		client:   client,
		attempts: attempts,
	}
}

// Probe resolves the declared size of the task's resource and compares it
// with the destination on disk. A DecisionFatal is always returned together
// with a *SizeConflictError.
func (p *Prober) Probe(ctx context.Context, task *Task) (Decision, error) {
	logger := logctx.LoggerFromContext(ctx).With("source", task.Source)

	if task.Header == nil {
		task.Header = http.Header{}
	}

	if task.Header.Get("User-Agent") == "" {
		task.Header.Set("User-Agent", DefaultUserAgent)
	}

	if task.Referer != "" {
		task.Header.Set("Referer", task.Referer)
	}

	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return DecisionProceed, err
		}

		meta, err := p.client.Probe(ctx, task.Source, task.Header)
		if err != nil {
			logger.Debug("probe attempt inconclusive", "attempt", attempt, "err", err)

			continue
		}

		if meta.ContentLength <= 0 && !meta.Chunked {
			logger.Debug("probe attempt inconclusive", "attempt", attempt, "reason", "no content length")

			continue
		}

		task.setTotalSize(meta.ContentLength, !meta.Chunked || meta.ContentLength > 0)

		return p.decide(ctx, task)
	}

	task.setTotalSize(0, false)

	logger.Debug("total size unknown", "attempts", p.attempts)

	return DecisionProceed, nil
}

func (p *Prober) decide(ctx context.Context, task *Task) (Decision, error) {
	logger := logctx.LoggerFromContext(ctx).With("destination", task.Destination)

	total, known := task.TotalSize()

	logger.Debug("total size", "total_size", total, "known", known)

	info, err := os.Stat(task.Destination)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DecisionProceed, nil
		}

		return DecisionProceed, fmt.Errorf("failed to stat destination: %w", err)
	}

	if !known {
		// there is nothing to compare a chunked response against
		logger.Warn("destination exists but remote size is unknown, downloading again")

		return DecisionProceed, nil
	}

	local := info.Size()

	if absDiff(local, total) < sizeTolerance {
		partExists, err := fileExists(task.PartPath())
		if err != nil {
			return DecisionProceed, err
		}

		if !task.Force && !partExists {
			logger.Warn("file already downloaded, skipping download")

			return DecisionSkip, nil
		}

		return DecisionProceed, nil
	}

	conflict := &SizeConflictError{Path: task.Destination, LocalSize: local, RemoteSize: total}

	logger.Error("total size mismatch, the file already downloaded probably comes from a different source",
		"remote_size", total, "local_size", local)

	return DecisionFatal, conflict
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return !info.IsDir(), nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}

	return b - a
}
