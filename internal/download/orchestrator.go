package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/italolelis/grabber/internal/logctx"
)

const (
	dirPerm = 0755
)

// Strategy moves the bytes of a task from its source to disk. Implementations
// call task.ReportChunk after every write and leave the finished file at
// task.Destination.
type Strategy interface {
	Transfer(ctx context.Context, task *Task) error
}

// PreProcessor is implemented by strategies that need to run before the
// destination is probed.
type PreProcessor interface {
	PreProcess(ctx context.Context, task *Task) error
}

// PostProcessor is implemented by strategies that need to run after a
// successful transfer.
type PostProcessor interface {
	PostProcess(ctx context.Context, task *Task) error
}

// Outcome is how a successful Run ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSkipped
	OutcomeCompleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCompleted:
		return "completed"
	default:
		return "none"
	}
}

// Orchestrator drives tasks through probe, transfer and post-processing.
type Orchestrator struct {
	strategy Strategy
	prober   *Prober
	now      func() time.Time
}

func NewOrchestrator(strategy Strategy, prober *Prober) (*Orchestrator, error) {
	if strategy == nil {
		return nil, ErrNotImplemented
	}

	if prober == nil {
		return nil, fmt.Errorf("download: prober is required")
	}

	return &Orchestrator{
		strategy: strategy,
		prober:   prober,
		now:      time.Now,
	}, nil
}

// Run downloads task unless the destination already holds it. A size
// conflict is returned as a *SizeConflictError; callers are expected to stop
// processing altogether when errors.Is(err, ErrSizeConflict).
func (o *Orchestrator) Run(ctx context.Context, task *Task) (Outcome, error) {
	logger := logctx.LoggerFromContext(ctx).With("source", task.Source, "destination", task.Destination)

	if pre, ok := o.strategy.(PreProcessor); ok {
		if err := pre.PreProcess(ctx, task); err != nil {
			return OutcomeNone, fmt.Errorf("failed to pre-process download: %w", err)
		}
	}

	logger.Info("preparing download")

	if err := ensureDir(task.Destination); err != nil {
		return OutcomeNone, err
	}

	task.resetSize()

	decision, err := o.prober.Probe(ctx, task)
	if err != nil {
		return OutcomeNone, err
	}

	if decision == DecisionSkip {
		return OutcomeSkipped, nil
	}

	task.beginAttempt(o.now())

	if err := o.strategy.Transfer(ctx, task); err != nil {
		return OutcomeNone, fmt.Errorf("failed to transfer %s: %w", task.Source, err)
	}

	if post, ok := o.strategy.(PostProcessor); ok {
		if err := post.PostProcess(ctx, task); err != nil {
			return OutcomeNone, fmt.Errorf("failed to post-process download: %w", err)
		}
	}

	logger.Info("download finished", "bytes", task.Transferred(), "resumed", task.Resumed())

	return OutcomeCompleted, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}

	return nil
}
