package executor

import (
	"container/list"
	"sync"
	"time"
)

// Dedup remembers intents already observed as successful so an accidental
// resubmission of the same logical operation short-circuits without touching
// the ledger. It is bounded two ways: entries expire after a TTL and the
// oldest entries are evicted when the set exceeds its capacity. Safe for
// concurrent use.
//
// Dedup is injected into one Executor instance rather than shared as a
// package singleton, so the window is configurable and testable in
// isolation.
type Dedup struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = oldest
	capacity int
	ttl      time.Duration
}

type dedupEntry struct {
	intentID     string
	submissionID string
	at           time.Time
}

// NewDedup creates a Dedup holding at most capacity intents for at most ttl.
func NewDedup(capacity int, ttl time.Duration) *Dedup {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Dedup{
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Seen returns the recorded submission id for an intent observed as
// successful within the window. The second return is false when the intent
// is unknown or its entry has expired.
func (d *Dedup) Seen(intentID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.entries[intentID]
	if !ok {
		return "", false
	}
	e := el.Value.(*dedupEntry)
	if d.ttl > 0 && time.Since(e.at) >= d.ttl {
		d.order.Remove(el)
		delete(d.entries, intentID)
		return "", false
	}
	return e.submissionID, true
}

// MarkSuccess records an intent as successfully applied. submissionID may be
// empty when the effect was confirmed through the already-processed path.
func (d *Dedup) MarkSuccess(intentID, submissionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.entries[intentID]; ok {
		e := el.Value.(*dedupEntry)
		e.at = time.Now()
		if submissionID != "" {
			e.submissionID = submissionID
		}
		d.order.MoveToBack(el)
		return
	}

	el := d.order.PushBack(&dedupEntry{intentID: intentID, submissionID: submissionID, at: time.Now()})
	d.entries[intentID] = el

	for d.order.Len() > d.capacity {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.entries, oldest.Value.(*dedupEntry).intentID)
	}
}

// Cleanup drops expired entries. Call periodically to keep memory
// proportional to the live window rather than the capacity.
func (d *Dedup) Cleanup() {
	if d.ttl <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for el := d.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*dedupEntry)
		if now.Sub(e.at) >= d.ttl {
			d.order.Remove(el)
			delete(d.entries, e.intentID)
		}
		el = next
	}
}

// Len returns the number of live entries.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
