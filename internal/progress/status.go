package progress

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

const (
	bytesPerKB = 1024
	bytesPerMB = 1024 * 1024

	etaDone    = "Done"
	etaUnknown = "--:--"
	rateNA     = "n/a"
)

// StatusFunc receives the transfer state after every chunk. downloaded counts
// only the bytes fetched in the current attempt, total is 0 when the resource
// did not declare its size and resumed is the offset the attempt started from.
type StatusFunc func(downloaded int64, total int64, start time.Time, resumed int64)

// FormatStatus renders a single status line for the given transfer state.
func FormatStatus(downloaded, total int64, elapsed time.Duration, resumed int64) string {
	rate, rateKnown := kbPerSecond(downloaded, elapsed)

	doneMB := float64(downloaded+resumed) / bytesPerMB
	totalMB := float64(total) / bytesPerMB

	rateText := rateNA
	if rateKnown {
		rateText = fmt.Sprintf("%.2fKB/s", rate)
	}

	if total <= 0 {
		return fmt.Sprintf("Downloaded: %.2fMB, Rate: %s", doneMB, rateText)
	}

	return fmt.Sprintf("Downloaded: %.2fMB/%.2fMB, Rate: %s, ETA: %s",
		doneMB, totalMB, rateText, eta(doneMB, totalMB, rate, rateKnown))
}

func kbPerSecond(downloaded int64, elapsed time.Duration) (float64, bool) {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0, false
	}

	return (float64(downloaded) / bytesPerKB) / secs, true
}

func eta(doneMB, totalMB, rate float64, rateKnown bool) string {
	if doneMB >= totalMB {
		return etaDone
	}

	if !rateKnown || rate <= 0 {
		return etaUnknown
	}

	remaining := int64(math.Round((totalMB - doneMB) * bytesPerKB / rate))

	return fmt.Sprintf("%02d:%02d", remaining/60, remaining%60)
}

// Console writes an in-place status line for every reported chunk.
type Console struct {
	Out io.Writer
	Now func() time.Time
}

// NewConsole returns a Console writing to stdout.
func NewConsole() *Console {
	return &Console{Out: os.Stdout, Now: time.Now}
}

// Report implements StatusFunc.
func (c *Console) Report(downloaded, total int64, start time.Time, resumed int64) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	status := FormatStatus(downloaded, total, now().Sub(start), resumed)

	// carriage returns keep the cursor at column zero so the next update overwrites the line
	fmt.Fprint(c.Out, "\r"+status+"     \r")
}

// Multi fans a single report out to every non-nil fn.
func Multi(fns ...StatusFunc) StatusFunc {
	return func(downloaded, total int64, start time.Time, resumed int64) {
		for _, fn := range fns {
			if fn != nil {
				fn(downloaded, total, start, resumed)
			}
		}
	}
}
