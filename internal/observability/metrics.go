package observability

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	requestNanos map[string]int64
	errorCount   map[string]int64

	socketsOpen    atomic.Int64
	broadcastsSent atomic.Int64
	slowClients    atomic.Int64
}

// RequestStat is one row of the request counter snapshot.
type RequestStat struct {
	Key          string  `json:"key"`
	Count        int64   `json:"count"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests       []RequestStat    `json:"requests"`
	Errors         map[string]int64 `json:"errors"`
	SocketsOpen    int64            `json:"sockets_open"`
	BroadcastsSent int64            `json:"broadcasts_sent"`
	SlowClients    int64            `json:"slow_clients_dropped"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		requestNanos: make(map[string]int64),
		errorCount:   make(map[string]int64),
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
	m.requestNanos[key] += duration.Nanoseconds()
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

// SocketOpened and SocketClosed track live WebSocket connections.
func (m *Metrics) SocketOpened() {
	if m != nil {
		m.socketsOpen.Add(1)
	}
}

func (m *Metrics) SocketClosed() {
	if m != nil {
		m.socketsOpen.Add(-1)
	}
}

// BroadcastSent counts frames handed to a room.
func (m *Metrics) BroadcastSent() {
	if m != nil {
		m.broadcastsSent.Add(1)
	}
}

// SlowClientDropped counts sockets closed because their buffer was full.
func (m *Metrics) SlowClientDropped() {
	if m != nil {
		m.slowClients.Add(1)
	}
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Errors: map[string]int64{}}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	requests := make([]RequestStat, 0, len(m.requestCount))
	for key, count := range m.requestCount {
		stat := RequestStat{Key: key, Count: count}
		if count > 0 {
			stat.AvgLatencyMS = float64(m.requestNanos[key]) / float64(count) / float64(time.Millisecond)
		}
		requests = append(requests, stat)
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].Key < requests[j].Key })

	errs := make(map[string]int64, len(m.errorCount))
	for key, count := range m.errorCount {
		errs[key] = count
	}

	return Snapshot{
		Requests:       requests,
		Errors:         errs,
		SocketsOpen:    m.socketsOpen.Load(),
		BroadcastsSent: m.broadcastsSent.Load(),
		SlowClients:    m.slowClients.Load(),
	}
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
