package batch

import (
	"sync"
	"time"

	"github.com/italolelis/grabber/internal/download"
)

// Result is the record of one finished task.
type Result struct {
	Source      string
	Destination string
	Outcome     download.Outcome
	Bytes       int64
	Resumed     int64
	Duration    time.Duration
	Err         error
}

// Collector aggregates results from concurrently running tasks.
type Collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *Collector) Add(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = append(c.results, r)
}

// Results returns a copy of everything collected so far, in completion order.
func (c *Collector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Result, len(c.results))
	copy(out, c.results)

	return out
}

// Summary counts results by outcome.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
	Bytes     int64
}

func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Summary

	for _, r := range c.results {
		switch {
		case r.Err != nil:
			s.Failed++
		case r.Outcome == download.OutcomeSkipped:
			s.Skipped++
		default:
			s.Completed++
		}

		s.Bytes += r.Bytes
	}

	return s
}
