package fetch

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/italolelis/grabber/internal/download"
	"github.com/italolelis/grabber/internal/logctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultChunkSize is the read size used when copying a response body.
const DefaultChunkSize = 16384

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds a whole request including the body. Zero disables it.
	Timeout time.Duration

	// ChunkSize is the buffer used per read while transferring.
	// Default: 16384
	ChunkSize int

	// Transport overrides the base round tripper.
	Transport http.RoundTripper
}

// Client issues the requests made while probing and transferring a task.
type Client struct {
	client    *http.Client
	chunkSize int
}

func NewClient(opts Options) *Client {
	base := opts.Transport
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		// content is stored as served, so Content-Length must describe the raw bytes
		t.DisableCompression = true
		base = t
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &Client{
		client: &http.Client{
			Transport: otelhttp.NewTransport(base),
			Timeout:   opts.Timeout,
		},
		chunkSize: chunkSize,
	}
}

// Probe implements download.MetadataClient. It issues a GET, inspects the
// response headers and closes the body without reading it.
func (c *Client) Probe(ctx context.Context, url string, header http.Header) (*download.Metadata, error) {
	logger := logctx.LoggerFromContext(ctx)

	resp, err := c.get(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &StatusError{Operation: "probe", URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	meta := &download.Metadata{
		ContentLength: declaredLength(resp),
		Chunked:       slices.Contains(resp.TransferEncoding, "chunked"),
	}

	logger.Debug("probed resource", "url", url, "status", resp.StatusCode,
		"content_length", meta.ContentLength, "chunked", meta.Chunked)

	return meta, nil
}

func (c *Client) get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range header {
		req.Header[k] = slices.Clone(v)
	}

	return c.client.Do(req)
}

// declaredLength returns the largest length the response announces. Servers
// are not consistent about header casing, so every Content-Length value is
// considered along with the one net/http parsed.
func declaredLength(resp *http.Response) int64 {
	length := max(resp.ContentLength, 0)

	for k, values := range resp.Header {
		if !strings.EqualFold(k, "Content-Length") {
			continue
		}

		for _, v := range values {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err == nil && n > length {
				length = n
			}
		}
	}

	return length
}
