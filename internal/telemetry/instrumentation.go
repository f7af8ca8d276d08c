package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/italolelis/grabber/internal/progress"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Span attributes stay low cardinality: URLs and paths go to logs, not spans.

// InstrumentedFunc represents a function that can be instrumented.
type InstrumentedFunc func(ctx context.Context) error

// InstrumentOperation instruments a generic operation with telemetry.
func (t *Telemetry) InstrumentOperation(ctx context.Context, operationName, component string, fn InstrumentedFunc) error {
	if t == nil || t.tracer == nil {
		return fn(ctx)
	}

	start := time.Now()
	ctx, span := t.tracer.Start(ctx, operationName)

	defer span.End()

	span.SetAttributes(
		attribute.String("component", component),
		attribute.String("operation", operationName),
	)

	err := fn(ctx)

	status := "success"
	if err != nil {
		status = "error"

		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration_seconds", time.Since(start).Seconds()),
	)

	return err
}

// InstrumentDBOperation instruments database operations.
func (t *Telemetry) InstrumentDBOperation(ctx context.Context, operation string, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()
	err := t.InstrumentOperation(ctx, "db_"+operation, "database", fn)

	t.RecordDBOperation(operation, statusOf(err), time.Since(start))

	return err
}

// InstrumentDownload instruments a single orchestrated download.
func (t *Telemetry) InstrumentDownload(ctx context.Context, fn InstrumentedFunc) error {
	if t == nil {
		return fn(ctx)
	}

	start := time.Now()

	if t.downloadsActive != nil {
		t.downloadsActive.Add(ctx, 1)
		defer t.downloadsActive.Add(ctx, -1)
	}

	err := t.InstrumentOperation(ctx, "download", "downloader", fn)

	t.RecordDownload(statusOf(err), time.Since(start))

	return err
}

// ProgressRecorder returns a StatusFunc that feeds the bytes counter. Each
// task needs its own recorder since reports carry cumulative totals.
func (t *Telemetry) ProgressRecorder() progress.StatusFunc {
	var (
		mu   sync.Mutex
		last int64
	)

	return func(downloaded, _ int64, _ time.Time, _ int64) {
		mu.Lock()
		if downloaded < last {
			last = 0
		}

		delta := downloaded - last
		last = downloaded
		mu.Unlock()

		if t != nil {
			t.RecordBytes(delta)
		}
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
