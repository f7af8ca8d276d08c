package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/italolelis/grabber/internal/download"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tasks(n int) []*download.Task {
	out := make([]*download.Task, 0, n)

	for i := range n {
		out = append(out, download.NewTask(
			fmt.Sprintf("http://example.com/%d.bin", i),
			fmt.Sprintf("/tmp/%d.bin", i),
			download.Options{Status: func(int64, int64, time.Time, int64) {}},
		))
	}

	return out
}

func TestBatch_RunsAllTasks(t *testing.T) {
	var running, peak atomic.Int32

	runner := RunFunc(func(ctx context.Context, task *download.Task) (download.Outcome, error) {
		n := running.Add(1)
		defer running.Add(-1)

		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)
		task.ReportChunk(100)

		return download.OutcomeCompleted, nil
	})

	var c Collector

	err := New(runner, 3).Run(context.Background(), tasks(10), &c)
	require.NoError(t, err)

	assert.Len(t, c.Results(), 10)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, Summary{Completed: 10, Bytes: 1000}, c.Summary())
}

func TestBatch_FailuresDoNotStopBatch(t *testing.T) {
	runner := RunFunc(func(_ context.Context, task *download.Task) (download.Outcome, error) {
		switch task.Source {
		case "http://example.com/1.bin":
			return download.OutcomeNone, errors.New("connection refused")
		case "http://example.com/2.bin":
			return download.OutcomeSkipped, nil
		}

		return download.OutcomeCompleted, nil
	})

	var c Collector

	err := New(runner, 2).Run(context.Background(), tasks(4), &c)
	require.NoError(t, err)

	assert.Equal(t, Summary{Completed: 2, Skipped: 1, Failed: 1}, c.Summary())
}

func TestBatch_SizeConflictStopsEverything(t *testing.T) {
	var started atomic.Int32

	runner := RunFunc(func(ctx context.Context, task *download.Task) (download.Outcome, error) {
		started.Add(1)

		if task.Source == "http://example.com/0.bin" {
			return download.OutcomeNone, &download.SizeConflictError{Path: task.Destination, LocalSize: 1, RemoteSize: 100}
		}

		<-ctx.Done()

		return download.OutcomeNone, ctx.Err()
	})

	var c Collector

	err := New(runner, 1).Run(context.Background(), tasks(5), &c)

	assert.ErrorIs(t, err, download.ErrSizeConflict)
	assert.LessOrEqual(t, started.Load(), int32(2))
}

func TestBatch_NoTasks(t *testing.T) {
	err := New(RunFunc(nil), 1).Run(context.Background(), nil, &Collector{})
	assert.Error(t, err)
}

func TestBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := RunFunc(func(ctx context.Context, _ *download.Task) (download.Outcome, error) {
		return download.OutcomeNone, ctx.Err()
	})

	err := New(runner, 1).Run(ctx, tasks(3), &Collector{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollector_ConcurrentAdd(t *testing.T) {
	var (
		c  Collector
		wg sync.WaitGroup
	)

	for i := range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			c.Add(Result{Bytes: int64(i)})
		}()
	}

	wg.Wait()

	assert.Len(t, c.Results(), 50)
	assert.Equal(t, int64(49*50/2), c.Summary().Bytes)
}

func TestBatch_RejectsSharedDestination(t *testing.T) {
	tests := map[string]string{
		"same file name": "http://a.example/file.bin\nhttp://b.example/file.bin\n",
		"repeated line":  "http://a.example/file.bin\nhttp://a.example/file.bin\n",
		"same part file": "http://a.example/file.bin\nhttp://a.example/file.iso\n",
	}

	for name, list := range tests {
		t.Run(name, func(t *testing.T) {
			entries, err := ParseList(strings.NewReader(list), t.TempDir())
			require.NoError(t, err)

			batchTasks := make([]*download.Task, 0, len(entries))
			for _, e := range entries {
				batchTasks = append(batchTasks, download.NewTask(e.Source, e.Destination, download.Options{
					Status: func(int64, int64, time.Time, int64) {},
				}))
			}

			var calls atomic.Int32

			runner := RunFunc(func(context.Context, *download.Task) (download.Outcome, error) {
				calls.Add(1)

				return download.OutcomeCompleted, nil
			})

			var c Collector

			err = New(runner, 4).Run(context.Background(), batchTasks, &c)
			require.ErrorIs(t, err, ErrDuplicateDestination)

			assert.Zero(t, calls.Load())
			assert.Empty(t, c.Results())
		})
	}
}
