package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/italolelis/grabber/internal/download"
	"github.com/italolelis/grabber/internal/logctx"
	"golang.org/x/sync/errgroup"
)

// ErrDuplicateDestination is returned when two tasks of one batch would write
// the same file.
var ErrDuplicateDestination = errors.New("batch: duplicate destination")

// Runner is the single-task operation a batch drives. *download.Orchestrator
// satisfies it.
type Runner interface {
	Run(ctx context.Context, task *download.Task) (download.Outcome, error)
}

// RunFunc adapts a function to Runner.
type RunFunc func(ctx context.Context, task *download.Task) (download.Outcome, error)

func (f RunFunc) Run(ctx context.Context, task *download.Task) (download.Outcome, error) {
	return f(ctx, task)
}

// Batch runs many tasks with bounded parallelism.
type Batch struct {
	runner      Runner
	maxParallel int
}

func New(runner Runner, maxParallel int) *Batch {
	if maxParallel <= 0 {
		maxParallel = 1
	}

	return &Batch{
		runner:      runner,
		maxParallel: maxParallel,
	}
}

// Run executes every task and records each result in c. Ordinary task
// failures are collected and do not stop the batch. A size conflict cancels
// the remaining tasks and is returned.
func (b *Batch) Run(ctx context.Context, tasks []*download.Task, c *Collector) error {
	if len(tasks) == 0 {
		return fmt.Errorf("no tasks to download")
	}

	if err := checkDestinations(tasks); err != nil {
		return err
	}

	logger := logctx.LoggerFromContext(ctx)

	wg, gctx := errgroup.WithContext(ctx)

	sem := make(chan struct{}, b.maxParallel)

	for _, task := range tasks {
		sem <- struct{}{}

		if gctx.Err() != nil {
			<-sem

			break
		}

		wg.Go(func() error {
			defer func() { <-sem }() // release the slot

			taskCtx := logctx.With(gctx, "destination", task.Destination)
			start := time.Now()

			outcome, err := b.runner.Run(taskCtx, task)

			c.Add(Result{
				Source:      task.Source,
				Destination: task.Destination,
				Outcome:     outcome,
				Bytes:       task.Transferred(),
				Resumed:     task.Resumed(),
				Duration:    time.Since(start),
				Err:         err,
			})

			if err != nil {
				if errors.Is(err, download.ErrSizeConflict) {
					return err
				}

				logger.Error("failed to download file", "source", task.Source, "destination", task.Destination, "err", err)
			}

			return nil
		})
	}

	return wait(ctx, wg)
}

// wait reports the error that stopped the group, or the cancellation of the
// caller's context.
func wait(ctx context.Context, wg *errgroup.Group) error {
	if err := wg.Wait(); err != nil {
		return fmt.Errorf("batch stopped: %w", err)
	}

	return ctx.Err()
}

// checkDestinations rejects batches where two tasks share a destination or
// a part file, since both would stream into the same file.
func checkDestinations(tasks []*download.Task) error {
	seen := make(map[string]string, len(tasks)*2)

	for _, task := range tasks {
		for _, path := range []string{task.Destination, task.PartPath()} {
			path = filepath.Clean(path)

			if other, ok := seen[path]; ok {
				return fmt.Errorf("%w: %s is written by both %s and %s", ErrDuplicateDestination, path, other, task.Source)
			}

			seen[path] = task.Source
		}
	}

	return nil
}
