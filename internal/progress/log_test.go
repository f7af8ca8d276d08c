package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLog_Throttles(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fn := Log(logger, "http://example.com/file", 100)

	start := time.Now().Add(-time.Second)

	for downloaded := int64(10); downloaded <= 250; downloaded += 10 {
		fn(downloaded, 1000, start, 0)
	}

	assert.Equal(t, 2, strings.Count(buf.String(), "download progress"))
}

func TestLog_ReportsCompletion(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fn := Log(logger, "http://example.com/file", 0)

	fn(500, 1000, time.Now(), 500)

	out := buf.String()
	assert.Contains(t, out, "download progress")
	assert.Contains(t, out, `"percent":"100"`)
}

func TestLog_RestartsThrottleOnNewAttempt(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	fn := Log(logger, "http://example.com/file", 100)

	start := time.Now().Add(-time.Second)

	fn(300, 1000, start, 0)
	buf.Reset()

	fn(100, 1000, start, 0)

	assert.Equal(t, 1, strings.Count(buf.String(), "download progress"))
}
