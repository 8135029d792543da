package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Pipeline counter names.
const (
	CounterTicketsCreated   = "tickets_created"
	CounterMessagesAppended = "messages_appended"
	CounterDuplicates       = "duplicates_skipped"
	CounterVersionConflicts = "version_conflicts"
	CounterRepliesSent      = "replies_sent"
	CounterRepliesRetried   = "replies_retried"
	CounterDeadLetters      = "dead_letters"
	CounterAutoReplies      = "auto_replies"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	latency      map[string]time.Duration
	pipeline     map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		latency:      make(map[string]time.Duration),
		pipeline:     make(map[string]int64),
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
	m.latency[key] += duration
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

// Add increments a pipeline counter. Nil metrics are a no-op.
func (m *Metrics) Add(name string, delta int64) {
	if m == nil || delta == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pipeline[name] += delta
}

// Inc increments a pipeline counter by one.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Counter returns the current value of a pipeline counter.
func (m *Metrics) Counter(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pipeline[name]
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests map[string]int64 `json:"requests"`
	Errors   map[string]int64 `json:"errors"`
	Pipeline map[string]int64 `json:"pipeline"`
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{Requests: map[string]int64{}, Errors: map[string]int64{}, Pipeline: map[string]int64{}}
	if m == nil {
		return s
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		s.Requests[k] = v
	}
	for k, v := range m.errorCount {
		s.Errors[k] = v
	}
	for k, v := range m.pipeline {
		s.Pipeline[k] = v
	}
	return s
}

// PipelineNames lists pipeline counters that were touched, sorted.
func (s Snapshot) PipelineNames() []string {
	names := make([]string, 0, len(s.Pipeline))
	for name := range s.Pipeline {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
