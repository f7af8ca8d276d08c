package download

import (
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/italolelis/grabber/internal/progress"
)

const partExt = ".part"

// Options configures a Task. The zero value is usable: it reports progress
// to the console and sends the source URL as referer.
type Options struct {
	Header  http.Header
	Referer string
	Force   bool
	Status  progress.StatusFunc
}

// Task is a single download of one remote resource to one local path. A Task
// is owned by one goroutine at a time and is not reused across resources.
type Task struct {
	Source      string
	Destination string
	Header      http.Header
	Referer     string
	Force       bool

	status progress.StatusFunc

	totalSize  int64
	sizeKnown  bool
	sizeProbed bool

	transferred atomic.Int64
	resumed     int64
	startedAt   time.Time
}

func NewTask(source, destination string, opts Options) *Task {
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	referer := opts.Referer
	if referer == "" {
		referer = source
	}

	status := opts.Status
	if status == nil {
		status = progress.NewConsole().Report
	}

	return &Task{
		Source:      source,
		Destination: destination,
		Header:      header,
		Referer:     referer,
		Force:       opts.Force,
		status:      status,
	}
}

// PartPath is the marker used for an interrupted download: the destination
// with its extension swapped for ".part". A destination that already ends in
// ".part" gets a second one so the two never collide.
func (t *Task) PartPath() string {
	ext := filepath.Ext(t.Destination)
	if ext == partExt {
		return t.Destination + partExt
	}

	return strings.TrimSuffix(t.Destination, ext) + partExt
}

// TotalSize returns the size declared by the remote and whether it is known.
func (t *Task) TotalSize() (int64, bool) {
	return t.totalSize, t.sizeKnown
}

// Transferred returns the bytes written during the current attempt.
func (t *Task) Transferred() int64 {
	return t.transferred.Load()
}

// Resumed returns the bytes that were already on disk when the attempt started.
func (t *Task) Resumed() int64 {
	return t.resumed
}

// SetResumed records the offset a strategy continues from.
func (t *Task) SetResumed(offset int64) {
	if offset < 0 {
		offset = 0
	}

	t.resumed = offset
}

func (t *Task) StartedAt() time.Time {
	return t.startedAt
}

// ReportChunk adds n to the transferred counter and forwards the new state to
// the status callback. Strategies call it once per written chunk, in order.
func (t *Task) ReportChunk(n int64) {
	if n < 0 {
		n = 0
	}

	downloaded := t.transferred.Add(n)

	status := t.status
	if status == nil {
		status = progress.NewConsole().Report
	}

	status(downloaded, t.totalSize, t.startedAt, t.resumed)
}

func (t *Task) resetSize() {
	t.totalSize = 0
	t.sizeKnown = false
	t.sizeProbed = false
}

// setTotalSize stores the probed size; later calls within the same attempt
// are ignored.
func (t *Task) setTotalSize(size int64, known bool) {
	if t.sizeProbed {
		return
	}

	t.sizeProbed = true
	t.sizeKnown = known && size > 0

	if t.sizeKnown {
		t.totalSize = size
	}
}

func (t *Task) beginAttempt(now time.Time) {
	t.transferred.Store(0)
	t.resumed = 0
	t.startedAt = now
}
