package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/italolelis/grabber/internal/download"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	return bytes.Repeat([]byte("0123456789abcdef"), n/16+1)[:n]
}

// rangeServer serves content, honouring "bytes=N-" ranges when ranges is true.
func rangeServer(t *testing.T, content []byte, ranges bool) (*httptest.Server, *[]string) {
	t.Helper()

	var seen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		seen = append(seen, rng)

		if ranges && strings.HasPrefix(rng, "bytes=") && strings.HasSuffix(rng, "-") {
			start, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"))
			require.NoError(t, err)

			w.Header().Set("Content-Length", strconv.Itoa(len(content)-start))
			w.Header().Set("Content-Range", "bytes "+strconv.Itoa(start)+"-"+strconv.Itoa(len(content)-1)+"/"+strconv.Itoa(len(content)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(content[start:])

			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}))
	t.Cleanup(srv.Close)

	return srv, &seen
}

type report struct {
	downloaded int64
	total      int64
	resumed    int64
}

func run(t *testing.T, url, dest string, reports *[]report) (download.Outcome, *download.Task, error) {
	t.Helper()

	client := NewClient(Options{ChunkSize: 1024})

	o, err := download.NewOrchestrator(NewStrategy(client), download.NewProber(client, 0))
	require.NoError(t, err)

	task := download.NewTask(url, dest, download.Options{
		Status: func(downloaded, total int64, _ time.Time, resumed int64) {
			*reports = append(*reports, report{downloaded, total, resumed})
		},
	})

	outcome, err := o.Run(context.Background(), task)

	return outcome, task, err
}

func TestStrategy_FullDownload(t *testing.T) {
	content := payload(10000)
	srv, _ := rangeServer(t, content, true)

	dest := filepath.Join(t.TempDir(), "out", "file.bin")

	var reports []report

	outcome, task, err := run(t, srv.URL, dest, &reports)
	require.NoError(t, err)

	assert.Equal(t, download.OutcomeCompleted, outcome)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	assert.NoFileExists(t, task.PartPath())
	require.NotEmpty(t, reports)
	assert.Equal(t, report{10000, 10000, 0}, reports[len(reports)-1])

	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i].downloaded, reports[i-1].downloaded)
		assert.LessOrEqual(t, reports[i].downloaded-reports[i-1].downloaded, int64(1024))
	}
}

func TestStrategy_ResumesFromPartFile(t *testing.T) {
	content := payload(10000)
	srv, seen := rangeServer(t, content, true)

	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.part"), content[:4000], 0o644))

	var reports []report

	outcome, task, err := run(t, srv.URL, dest, &reports)
	require.NoError(t, err)

	assert.Equal(t, download.OutcomeCompleted, outcome)
	assert.Equal(t, int64(4000), task.Resumed())
	assert.Equal(t, int64(6000), task.Transferred())
	assert.Contains(t, *seen, "bytes=4000-")

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	assert.Equal(t, report{6000, 10000, 4000}, reports[len(reports)-1])
}

func TestStrategy_RestartsWhenRangeIgnored(t *testing.T) {
	content := payload(5000)
	srv, _ := rangeServer(t, content, false)

	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.part"), []byte("stale bytes"), 0o644))

	var reports []report

	_, task, err := run(t, srv.URL, dest, &reports)
	require.NoError(t, err)

	assert.Zero(t, task.Resumed())
	assert.Equal(t, int64(5000), task.Transferred())

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestStrategy_CompletePartFileIsFinalized(t *testing.T) {
	content := payload(3000)
	srv, seen := rangeServer(t, content, true)

	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.part"), content, 0o644))

	var reports []report

	outcome, _, err := run(t, srv.URL, dest, &reports)
	require.NoError(t, err)

	assert.Equal(t, download.OutcomeCompleted, outcome)
	assert.Empty(t, reports)
	assert.Len(t, *seen, 1, "only the probe should reach the server")

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestStrategy_SkipsExistingFile(t *testing.T) {
	content := payload(2048)
	srv, seen := rangeServer(t, content, true)

	dest := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(dest, content, 0o644))

	var reports []report

	outcome, _, err := run(t, srv.URL, dest, &reports)
	require.NoError(t, err)

	assert.Equal(t, download.OutcomeSkipped, outcome)
	assert.Len(t, *seen, 1)
	assert.Empty(t, reports)
}

func TestStrategy_SizeConflict(t *testing.T) {
	srv, seen := rangeServer(t, payload(1048576), true)

	dest := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(dest, payload(500000), 0o644))

	var reports []report

	_, _, err := run(t, srv.URL, dest, &reports)

	assert.ErrorIs(t, err, download.ErrSizeConflict)
	assert.Len(t, *seen, 1)
}

func TestStrategy_UnknownLength(t *testing.T) {
	content := payload(4096)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")

	var reports []report

	outcome, _, err := run(t, srv.URL, dest, &reports)
	require.NoError(t, err)

	assert.Equal(t, download.OutcomeCompleted, outcome)

	for _, r := range reports {
		assert.Zero(t, r.total)
	}

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestStrategy_ErrorStatus(t *testing.T) {
	calls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Content-Length", "10")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("0123456789"))

			return
		}

		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")

	var reports []report

	_, _, err := run(t, srv.URL, dest, &reports)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.NoFileExists(t, dest)
}

func TestStrategy_RejectsBodyLongerThanDeclared(t *testing.T) {
	content := payload(4096)

	var requests int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++

		// the probe sees a smaller resource than the transfer receives
		body := content
		if requests == 1 {
			body = content[:2048]
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "file.bin")

	var reports []report

	_, task, err := run(t, srv.URL, dest, &reports)
	require.ErrorIs(t, err, ErrLongTransfer)

	assert.NoFileExists(t, dest)
	assert.FileExists(t, task.PartPath())
}
