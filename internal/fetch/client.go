package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tinoosan/fetchd/internal/metrics"
)

// Failure classes reported by Fetch. Callers branch with errors.Is.
var (
	ErrConnection = errors.New("fetch: connection failed")
	ErrSize       = errors.New("fetch: invalid declared size")
)

// Options configures the HTTP client.
type Options struct {
	// UserAgent is sent on every request.
	// Default: "fetchd"
	UserAgent string

	// Transport overrides the default transport. Mostly useful in tests.
	Transport http.RoundTripper

	// Timeout bounds a whole request including the body read. Zero means
	// no timeout; long transfers should be bounded through the context
	// instead.
	Timeout time.Duration
}

// Response is an open range response. The caller owns Body and must close it.
type Response struct {
	Body io.ReadCloser
	// Offset is the first byte position carried by Body.
	Offset int64
	// Total is the declared size of the whole resource.
	Total int64
	// StatusCode is the HTTP status the server answered with.
	StatusCode int
}

// Client issues range requests that stream a resource from an offset to its end.
type Client struct {
	client    *http.Client
	userAgent string
}

// NewClient creates a new range-request client with the given options.
func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "fetchd"
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
			// Raw bytes keep Content-Length and Content-Range meaningful.
			DisableCompression: true,
		}
	}
	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		userAgent: opts.UserAgent,
	}
}

// Fetch requests bytes [offset, end) of rawURL. On success the body is
// positioned at offset and Total holds the declared resource size. Failures
// wrap ErrConnection or ErrSize.
func (c *Client) Fetch(ctx context.Context, rawURL string, offset int64) (*Response, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: negative offset %d", ErrConnection, offset)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		metrics.RangeRequests.WithLabelValues("connection").Inc()
		return nil, fmt.Errorf("%w: create request: %v", ErrConnection, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.FetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RangeRequests.WithLabelValues("connection").Inc()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	total, err := declaredTotal(resp, offset)
	if err != nil {
		_ = resp.Body.Close()
		if errors.Is(err, ErrSize) {
			metrics.RangeRequests.WithLabelValues("size").Inc()
		} else {
			metrics.RangeRequests.WithLabelValues("connection").Inc()
		}
		return nil, err
	}
	metrics.RangeRequests.WithLabelValues("ok").Inc()

	return &Response{
		Body:       resp.Body,
		Offset:     offset,
		Total:      total,
		StatusCode: resp.StatusCode,
	}, nil
}

// declaredTotal validates the status line and extracts the size of the whole
// resource from a response to a request starting at offset.
func declaredTotal(resp *http.Response, offset int64) (int64, error) {
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		cr := resp.Header.Get("Content-Range")
		if cr == "" {
			if resp.ContentLength < 1 {
				return 0, fmt.Errorf("%w: no Content-Range or Content-Length", ErrSize)
			}
			return offset + resp.ContentLength, nil
		}
		start, _, total, err := ParseContentRange(cr)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSize, err)
		}
		if start != offset {
			return 0, fmt.Errorf("%w: range starts at %d, requested %d", ErrConnection, start, offset)
		}
		if total < 0 {
			if resp.ContentLength < 1 {
				return 0, fmt.Errorf("%w: unknown total in %q", ErrSize, cr)
			}
			total = offset + resp.ContentLength
		}
		if total < 1 {
			return 0, fmt.Errorf("%w: total %d", ErrSize, total)
		}
		return total, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// A full body at a non-zero offset would be written at the wrong position.
		if offset > 0 {
			return 0, fmt.Errorf("%w: server ignored range (status %d)", ErrConnection, resp.StatusCode)
		}
		if resp.ContentLength < 1 {
			return 0, fmt.Errorf("%w: content length %d", ErrSize, resp.ContentLength)
		}
		return resp.ContentLength, nil
	default:
		return 0, fmt.Errorf("%w: unexpected status code: %d", ErrConnection, resp.StatusCode)
	}
}

// ParseContentRange parses a Content-Range header value.
// Returns start, end, total bytes. Total is -1 if unknown.
func ParseContentRange(header string) (start, end, total int64, err error) {
	// Format: bytes start-end/total or bytes start-end/*
	if !strings.HasPrefix(header, "bytes ") {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range unit: %s", header)
	}
	header = strings.TrimPrefix(header, "bytes ")
	rng, size, ok := strings.Cut(header, "/")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}
	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range format: %s", header)
	}
	start, err = strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid start byte: %w", err)
	}
	end, err = strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid end byte: %w", err)
	}
	if end < start {
		return 0, 0, 0, fmt.Errorf("invalid Content-Range bounds: %d-%d", start, end)
	}
	if size == "*" {
		return start, end, -1, nil
	}
	total, err = strconv.ParseInt(size, 10, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid total bytes: %w", err)
	}
	return start, end, total, nil
}
