package querycache

import (
	"encoding/json"
	"time"
)

// Status represents the fetch state of a cache entry
type Status string

const (
	// StatusPending represents an entry whose first fetch has not finished
	StatusPending Status = "pending"
	// StatusSuccess represents an entry holding successfully fetched data
	StatusSuccess Status = "success"
	// StatusError represents an entry whose fetch failed without prior data
	StatusError Status = "error"
)

// entry is the internal representation of one cached query result.
// Data is defined iff Status is StatusSuccess. FetchedAt is only
// advanced by a successful fetch so a failed refresh never freshens
// the entry.
type entry struct {
	key           Key
	data          any
	size          int
	fetchedAt     time.Time
	staleTime     time.Duration
	retentionTime time.Duration
	status        Status
	err           error
	invalidated   bool
}

func (e *entry) fresh(now time.Time) bool {
	if e.status != StatusSuccess || e.invalidated {
		return false
	}
	return now.Sub(e.fetchedAt) <= e.staleTime
}

func (e *entry) retired(now time.Time) bool {
	if e.retentionTime == 0 {
		return false
	}
	return now.Sub(e.fetchedAt) > e.retentionTime
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:           e.key,
		Data:          e.data,
		Size:          e.size,
		FetchedAt:     e.fetchedAt,
		StaleTime:     e.staleTime,
		RetentionTime: e.retentionTime,
		Status:        e.status,
		Err:           e.err,
		Invalidated:   e.invalidated,
	}
}

// Snapshot is a copied-out view of an entry. Readers never observe a
// half-written entry; a snapshot is taken under the cache lock.
type Snapshot struct {
	Key           Key
	Data          any
	Size          int
	FetchedAt     time.Time
	StaleTime     time.Duration
	RetentionTime time.Duration
	Status        Status
	Err           error
	Invalidated   bool
}

// Stale reports whether the snapshot's data is past its stale time.
func (s Snapshot) Stale(now time.Time) bool {
	return now.Sub(s.FetchedAt) > s.StaleTime
}

// dataSize returns the serialized size of a payload, used as the
// memory-accounting proxy. Unserializable payloads count as zero.
func dataSize(data any) int {
	raw, err := json.Marshal(data)
	if err != nil {
		return 0
	}
	return len(raw)
}
