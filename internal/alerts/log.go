package alerts

import (
	"sync"

	"github.com/google/uuid"

	"github.com/neurometric/backend/internal/models"
)

// DefaultLogCap bounds the in-memory alert window exposed to dashboards.
const DefaultLogCap = 50

// Entry is one received alert with process-local bookkeeping. Nothing here is
// durable; the window dies with the process.
type Entry struct {
	ID       string             `json:"id"`
	Alert    models.StressAlert `json:"alert"`
	Resolved bool               `json:"resolved"`
}

// Log is a bounded in-memory record of recently received alerts, newest
// first. FIFO eviction once capacity is exceeded.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []Entry
}

// NewLog creates a log; capacity below 1 falls back to DefaultLogCap.
func NewLog(capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultLogCap
	}
	return &Log{capacity: capacity}
}

// Add records an alert and returns its process-local ID.
func (l *Log) Add(alert models.StressAlert) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{ID: uuid.New().String(), Alert: alert}
	l.entries = append(l.entries, e)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
	return e.ID
}

// Recent returns retained alerts, newest first.
func (l *Log) Recent() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Resolve marks an alert handled. Returns false when the ID is unknown or
// already evicted.
func (l *Log) Resolve(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries[i].Resolved = true
			return true
		}
	}
	return false
}

// Len returns the number of retained alerts.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
