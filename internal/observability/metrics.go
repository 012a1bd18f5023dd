package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	started      time.Time
	requestCount map[string]int64
	errorCount   map[string]int64
	rateLimited  map[string]int64
	latencyTotal time.Duration
	requests     int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	UptimeSeconds    int64            `json:"uptimeSeconds"`
	Requests         int64            `json:"requests"`
	AverageLatencyMs float64          `json:"averageLatencyMs"`
	RequestCount     map[string]int64 `json:"requestCount"`
	ErrorCount       map[string]int64 `json:"errorCount"`
	RateLimited      map[string]int64 `json:"rateLimited"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		started:      time.Now(),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		rateLimited:  make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requests++
	m.latencyTotal += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordRateLimited counts a request rejected by the named limiter rule.
func (m *Metrics) RecordRateLimited(rule string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited[rule]++
}

// Uptime returns the time since the metrics were created.
func (m *Metrics) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.started)
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		UptimeSeconds: int64(time.Since(m.started) / time.Second),
		Requests:      m.requests,
		RequestCount:  copyCounts(m.requestCount),
		ErrorCount:    copyCounts(m.errorCount),
		RateLimited:   copyCounts(m.rateLimited),
	}
	if m.requests > 0 {
		snap.AverageLatencyMs = float64(m.latencyTotal.Microseconds()) / float64(m.requests) / 1000
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
