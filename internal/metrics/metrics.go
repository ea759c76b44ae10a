// Package metrics exposes Prometheus metrics for the web server and the
// trajectory pipeline behind it.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleray/Flight-Simulator/pkg/trajectory"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightsim_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flightsim_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	documentLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightsim_document_loads_total",
			Help: "Trace documents submitted for loading, by result.",
		},
		[]string{"result"},
	)

	trajectoryBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightsim_trajectory_builds_total",
			Help: "Trajectory builds, by whether the cache served them.",
		},
		[]string{"cache"},
	)

	trajectoryPoints = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flightsim_trajectory_points",
			Help: "Number of aircraft points in the current trajectory.",
		},
	)

	interpolationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flightsim_interpolations_total",
			Help: "Number of interpolated aircraft states served.",
		},
	)

	playbackStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flightsim_playback_streams",
			Help: "Number of open playback websocket streams.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(documentLoadsTotal)
	prometheus.MustRegister(trajectoryBuildsTotal)
	prometheus.MustRegister(trajectoryPoints)
	prometheus.MustRegister(interpolationsTotal)
	prometheus.MustRegister(playbackStreams)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLoad records the outcome of a document load.
func ObserveLoad(err error) {
	if err != nil {
		documentLoadsTotal.WithLabelValues("rejected").Inc()
		return
	}
	documentLoadsTotal.WithLabelValues("accepted").Inc()
}

// ObserveBuild records a trajectory build and the size of the result.
func ObserveBuild(t trajectory.Trajectory, cacheHit bool) {
	label := "miss"
	if cacheHit {
		label = "hit"
	}
	trajectoryBuildsTotal.WithLabelValues(label).Inc()
	trajectoryPoints.Set(float64(t.Len()))
}

// IncInterpolations counts interpolated states served.
func IncInterpolations() {
	interpolationsTotal.Inc()
}

// StreamOpened and StreamClosed track open playback streams.
func StreamOpened() { playbackStreams.Inc() }

func StreamClosed() { playbackStreams.Dec() }

// CacheCollector exports trajectory cache statistics.
type CacheCollector struct {
	cache   *trajectory.Cache
	entries *prometheus.Desc
	hits    *prometheus.Desc
	misses  *prometheus.Desc
}

// NewCacheCollector creates a collector reading c on every scrape.
func NewCacheCollector(c *trajectory.Cache) *CacheCollector {
	return &CacheCollector{
		cache:   c,
		entries: prometheus.NewDesc("flightsim_cache_entries", "Trajectories held in the cache.", nil, nil),
		hits:    prometheus.NewDesc("flightsim_cache_hits_total", "Trajectory cache hits.", nil, nil),
		misses:  prometheus.NewDesc("flightsim_cache_misses_total", "Trajectory cache misses.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.hits
	ch <- c.misses
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.cache.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack passes the connection through for websocket upgrades.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	conn, buf, err := h.Hijack()
	if err == nil {
		rw.statusCode = http.StatusSwitchingProtocols
	}
	return conn, buf, err
}

// Middleware records request count and duration for each request.
// Requests are labelled with the chi route pattern so path parameters and
// unknown paths do not create new series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := routeLabel(r)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}

// routeLabel returns the matched chi route pattern, or "other".
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "other"
}
