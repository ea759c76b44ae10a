package trace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "abc123.json"), []byte(`{"icao":"abc123","trace":[[0,1,2,3]]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`not json`), 0o644); err != nil {
		t.Fatal(err)
	}

	src := FileSource{Dir: dir}

	t.Run("Reads by lower-cased ICAO", func(t *testing.T) {
		doc, err := src.Fetch(context.Background(), "ABC123")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if doc.ICAO != "abc123" {
			t.Errorf("Expected abc123, got %s", doc.ICAO)
		}
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := src.Fetch(context.Background(), "ffffff")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Malformed file", func(t *testing.T) {
		_, err := src.Fetch(context.Background(), "bad")
		if !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("Expected ErrInvalidJSON, got %v", err)
		}
	})
}

func testHTTPSource(url string) *HTTPSource {
	return NewHTTPSource(HTTPConfig{
		BaseURL:           url,
		RequestsPerSecond: 1000,
		Retry: RetryConfig{
			MaxRetries:        2,
			InitialDelay:      time.Millisecond,
			MaxDelay:          5 * time.Millisecond,
			Multiplier:        2,
			RespectRetryAfter: true,
		},
	})
}

func TestHTTPSource(t *testing.T) {
	t.Run("Fetches document", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/traces/4ca7b5.json" {
				http.NotFound(w, r)
				return
			}
			w.Write([]byte(`{"icao":"4ca7b5","trace":[[0,1,2,3],[10,1.1,2.1,4]]}`))
		}))
		defer server.Close()

		src := testHTTPSource(server.URL + "/traces/")
		doc, err := src.Fetch(context.Background(), "4CA7B5")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if len(doc.Trace) != 2 {
			t.Errorf("Expected 2 rows, got %d", len(doc.Trace))
		}
	})

	t.Run("Not found is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.NotFound(w, r)
		}))
		defer server.Close()

		_, err := testHTTPSource(server.URL).Fetch(context.Background(), "000001")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("Expected 1 request, got %d", n)
		}
	})

	t.Run("Rate limited request is retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"trace":[]}`))
		}))
		defer server.Close()

		doc, err := testHTTPSource(server.URL).Fetch(context.Background(), "000002")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if n := atomic.LoadInt32(&calls); doc == nil || n != 2 {
			t.Errorf("Expected success on second request, got %d calls", n)
		}
	})

	t.Run("Server errors exhaust retries", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := testHTTPSource(server.URL).Fetch(context.Background(), "000003")
		if err == nil {
			t.Error("Expected error")
		}
		if n := atomic.LoadInt32(&calls); n != 3 {
			t.Errorf("Expected 3 requests, got %d", n)
		}
	})

	t.Run("Malformed body is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.Write([]byte(`{"trace": 1}`))
		}))
		defer server.Close()

		_, err := testHTTPSource(server.URL).Fetch(context.Background(), "000004")
		if !errors.Is(err, ErrTraceNotArray) {
			t.Errorf("Expected ErrTraceNotArray, got %v", err)
		}
		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("Expected 1 request, got %d", n)
		}
	})
}
