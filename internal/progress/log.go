package progress

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultLogInterval is how many bytes pass between two log lines.
const DefaultLogInterval = int64(100 * 1024 * 1024) // 100MB

// Log returns a StatusFunc that writes a debug line every interval bytes and
// once more when the transfer reaches its declared size.
func Log(logger *slog.Logger, url string, interval int64) StatusFunc {
	if interval <= 0 {
		interval = DefaultLogInterval
	}

	var (
		mu         sync.Mutex
		lastReport int64
	)

	return func(downloaded, total int64, start time.Time, resumed int64) {
		mu.Lock()
		defer mu.Unlock()

		written := downloaded + resumed
		finished := total > 0 && written >= total

		// a new attempt starts counting from zero again
		if downloaded < lastReport {
			lastReport = 0
		}

		if downloaded-lastReport < interval && !finished {
			return
		}

		lastReport = downloaded

		elapsed := time.Since(start)
		rate, ok := kbPerSecond(downloaded, elapsed)

		attrs := []any{
			"url", url,
			"downloaded", humanize.Bytes(uint64(written)),
			"elapsed", elapsed.Round(time.Second).String(),
		}

		if ok {
			attrs = append(attrs, "rate", humanize.Bytes(uint64(rate*bytesPerKB))+"/s")
		}

		if total > 0 {
			attrs = append(attrs,
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2))
		}

		logger.Debug("download progress", attrs...)
	}
}
