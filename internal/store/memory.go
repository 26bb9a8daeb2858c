package store

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no cycle has been recorded yet.
	ErrNotFound = errors.New("no cycle records")
)

// Outcome classifies how a poll cycle ended.
type Outcome string

const (
	OutcomePublished   Outcome = "published"
	OutcomeStale       Outcome = "stale"
	OutcomeFetchError  Outcome = "fetch_error"
	OutcomePublishFail Outcome = "publish_error"
)

// CycleRecord is the operational trace of one poll cycle, kept for the
// status API. It is not weather data; the broker's retained messages are
// the only durable output.
type CycleRecord struct {
	Time          time.Time     `json:"time"`
	ObservationDT int64         `json:"observation_dt,omitempty"`
	Outcome       Outcome       `json:"outcome"`
	Mode          string        `json:"mode"`
	Messages      int           `json:"messages"`
	Duration      time.Duration `json:"duration_ns"`
	Err           string        `json:"error,omitempty"`
}

// MemoryStore is a concurrency-safe in-memory history of recent cycles,
// bounded by count and age.
type MemoryStore struct {
	mu      sync.RWMutex
	records []CycleRecord

	maxHistory int           // max number of records (<= 0 = unlimited)
	maxAge     time.Duration // max record age (<= 0 = unlimited)
}

// NewMemoryStore creates a MemoryStore with optional limits.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// Add appends a cycle record and enforces retention.
func (s *MemoryStore) Add(rec CycleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)

	if s.maxHistory > 0 && len(s.records) > s.maxHistory {
		over := len(s.records) - s.maxHistory
		s.records = s.records[over:]
	}

	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.records); i++ {
			if !s.records[i].Time.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.records = s.records[i:]
		}
	}
}

// Last returns the most recent cycle record.
func (s *MemoryStore) Last() (CycleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return CycleRecord{}, ErrNotFound
	}
	return s.records[len(s.records)-1], nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (s *MemoryStore) Recent(limit int) []CycleRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]CycleRecord, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out
}
