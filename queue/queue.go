/*
 * Musing
 *
 * A single-host music player server.
 */

// Package queue implements the ordered list of catalog entries that
// drives playback: stable per-entry ids, sequential/random/single
// playback modes, and the current-position cursor.
package queue

import (
	"math/rand"
	"sync"
	"sync/atomic"

	"devt.de/krotik/common/sortutil"
)

// Mode is the queue's playback mode.
type Mode int

const (
	Sequential Mode = iota
	Random
	Single
)

// Entry is one (stable id, song path) pair sitting in the queue.
type Entry struct {
	ID   uint64
	Path string
}

// Queue is the global, mutex-guarded playback queue. All operations
// complete quickly and never block on I/O while holding the lock, per
// spec.md §5.
type Queue struct {
	mu sync.Mutex

	entries []Entry
	current int // index into entries, -1 when none

	mode Mode
	pool map[uint64]struct{} // unplayed pool for Random mode
	last uint64              // most recently played id, for Random's "previous"
	hasLast bool

	nextID atomic.Uint64
}

// New creates an empty queue in Sequential mode.
func New() *Queue {
	return &Queue{current: -1, mode: Sequential, pool: make(map[uint64]struct{})}
}

// Add appends paths to the queue, or inserts them at pos when pos is
// within [0, len(queue)]; pos outside that range (or absent, signalled
// by a negative value) appends. Returns the ids assigned to the inserted
// entries.
func (q *Queue) Add(paths []string, pos int) []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]uint64, len(paths))
	newEntries := make([]Entry, len(paths))
	for i, p := range paths {
		id := q.nextID.Add(1) - 1
		ids[i] = id
		newEntries[i] = Entry{ID: id, Path: p}
	}

	if pos < 0 || pos > len(q.entries) {
		pos = len(q.entries)
	}

	before := q.current
	q.entries = append(q.entries[:pos:pos], append(newEntries, q.entries[pos:]...)...)
	if before >= pos {
		q.current = before + len(newEntries)
	}

	return ids
}

// Remove deletes the entries matching ids, preserving relative order;
// stale ids are ignored.
func (q *Queue) Remove(ids []uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	toRemove := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		toRemove[id] = struct{}{}
	}

	var currentID uint64
	var hadCurrent bool
	if q.current >= 0 && q.current < len(q.entries) {
		currentID = q.entries[q.current].ID
		hadCurrent = true
	}

	kept := q.entries[:0:0]
	for _, e := range q.entries {
		if _, drop := toRemove[e.ID]; drop {
			delete(q.pool, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept

	switch {
	case !hadCurrent:
		q.current = -1
	default:
		q.current = -1
		for i, e := range q.entries {
			if e.ID == currentID {
				q.current = i
				break
			}
		}
	}
}

// Clear empties the queue and resets the unplayed pool and current
// position.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = nil
	q.current = -1
	q.pool = make(map[uint64]struct{})
	q.hasLast = false
}

// SetMode switches the playback mode. Switching into Random regenerates
// the unplayed pool from the full current queue.
func (q *Queue) SetMode(m Mode) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.mode = m
	if m == Random {
		q.regeneratePoolExcluding(false, 0)
	}
}

// CurrentMode returns the current playback mode.
func (q *Queue) CurrentMode() Mode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mode
}

// Play sets the current position to the entry with the given id. Returns
// false if no such entry exists.
func (q *Queue) Play(id uint64) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.ID == id {
			q.current = i
			q.markPlayed(e.ID)
			return e, true
		}
	}
	return Entry{}, false
}

// Current returns the entry at the current position, if any.
func (q *Queue) Current() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentLocked()
}

func (q *Queue) currentLocked() (Entry, bool) {
	if q.current < 0 || q.current >= len(q.entries) {
		return Entry{}, false
	}
	return q.entries[q.current], true
}

// Next advances the queue according to the current mode. Returns false
// (with playback expected to stop) when there is no next entry.
func (q *Queue) Next() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.mode {
	case Single:
		return Entry{}, false
	case Random:
		return q.nextRandomLocked()
	default:
		return q.nextSequentialLocked(1)
	}
}

// Previous moves the queue backward according to the current mode.
func (q *Queue) Previous() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.mode == Random {
		return q.previousRandomLocked()
	}
	return q.nextSequentialLocked(-1)
}

func (q *Queue) nextSequentialLocked(delta int) (Entry, bool) {
	target := q.current + delta
	if target < 0 || target >= len(q.entries) {
		q.current = -1
		return Entry{}, false
	}
	q.current = target
	q.markPlayed(q.entries[target].ID)
	return q.entries[target], true
}

func (q *Queue) nextRandomLocked() (Entry, bool) {
	if len(q.entries) == 0 {
		q.current = -1
		return Entry{}, false
	}

	if len(q.pool) == 0 {
		current, hasCurrent := q.currentLocked()
		var excludeID uint64
		if hasCurrent {
			excludeID = current.ID
		}
		q.regeneratePoolExcluding(hasCurrent, excludeID)
	}

	if len(q.pool) == 0 {
		q.current = -1
		return Entry{}, false
	}

	ids := make([]uint64, 0, len(q.pool))
	for id := range q.pool {
		ids = append(ids, id)
	}
	sortutil.UInt64s(ids)
	picked := ids[rand.Intn(len(ids))]
	delete(q.pool, picked)

	for i, e := range q.entries {
		if e.ID == picked {
			q.current = i
			q.markPlayed(picked)
			return e, true
		}
	}
	return Entry{}, false
}

func (q *Queue) previousRandomLocked() (Entry, bool) {
	if !q.hasLast {
		return Entry{}, false
	}
	for i, e := range q.entries {
		if e.ID == q.last {
			q.current = i
			return e, true
		}
	}
	return Entry{}, false
}

func (q *Queue) markPlayed(id uint64) {
	q.last = id
	q.hasLast = true
}

// regeneratePoolExcluding rebuilds the unplayed pool from the full
// current queue, optionally excluding the just-finished id.
func (q *Queue) regeneratePoolExcluding(hasExclude bool, excludeID uint64) {
	q.pool = make(map[uint64]struct{}, len(q.entries))
	for _, e := range q.entries {
		if hasExclude && e.ID == excludeID {
			continue
		}
		q.pool[e.ID] = struct{}{}
	}
}

// Entries returns a copy of the queue's current entries, in order.
func (q *Queue) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// CurrentIndex returns the current position index, or -1 when none.
func (q *Queue) CurrentIndex() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current
}
