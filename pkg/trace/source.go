package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout for HTTP trace requests
const DefaultTimeout = 10 * time.Second

// ErrNotFound is returned when a source has no trace for the requested aircraft.
var ErrNotFound = errors.New("trace not found")

// Source loads trace documents by ICAO address.
type Source interface {
	Fetch(ctx context.Context, icao string) (*Document, error)
}

// FileSource reads trace documents from a directory of {icao}.json files.
// Files ending in .json.gz are tried when the plain file is missing.
type FileSource struct {
	Dir string
}

// Fetch reads and parses the trace for icao.
func (s FileSource) Fetch(ctx context.Context, icao string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := strings.ToLower(icao)
	for _, candidate := range []string{name + ".json", name + ".json.gz"} {
		path := filepath.Join(s.Dir, candidate)
		doc, err := ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return doc, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, icao)
}

// ReadFile parses the trace document stored at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// HTTPConfig contains configuration for the HTTP trace source.
type HTTPConfig struct {
	// BaseURL is the URL traces are served under; the document for an
	// aircraft is fetched from {BaseURL}/{icao}.json
	BaseURL string

	// RequestsPerSecond limits outgoing requests (default: 1)
	RequestsPerSecond float64

	// Timeout for each request (default: 10 seconds)
	Timeout time.Duration

	// Retry controls retries of failed requests
	Retry RetryConfig
}

// HTTPSource fetches trace documents from a web archive.
type HTTPSource struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	retry       RetryConfig
}

// NewHTTPSource creates a rate-limited HTTP trace source.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &HTTPSource{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retry:       cfg.Retry,
	}
}

// URL returns the address the trace for icao is fetched from.
func (s *HTTPSource) URL(icao string) string {
	return fmt.Sprintf("%s/%s.json", s.baseURL, strings.ToLower(icao))
}

// Fetch downloads and parses the trace for icao, retrying transient failures.
// Missing traces and malformed documents are not retried.
func (s *HTTPSource) Fetch(ctx context.Context, icao string) (*Document, error) {
	return RetryWithBackoff(ctx, s.retry, func() (*Document, error) {
		return s.fetchOnce(ctx, icao)
	})
}

func (s *HTTPSource) fetchOnce(ctx context.Context, icao string) (*Document, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(icao), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", errors.Join(err, ErrNotRetryable))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trace: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "Rate limit exceeded",
		}
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, icao, ErrNotRetryable)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("trace server returned status %d: %s", resp.StatusCode, string(body))
	}

	doc, err := Read(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, ErrNotRetryable)
	}
	return doc, nil
}
