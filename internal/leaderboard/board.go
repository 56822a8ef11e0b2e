// Package leaderboard implements the in-memory point ledger backing
// event standings. One board instance serves all events; entries are
// keyed by event so finished events can be dropped wholesale.
package leaderboard

import (
	"sort"
	"sync"
	"time"
)

// Entry is one participant's standing within an event.
type Entry struct {
	UserID int64
	Points float64
	// FirstAt is when the participant first scored.
	FirstAt time.Time
	// ReachedAt is when the participant reached their current total.
	// Used for tie-breaking: first to reach a total wins the tie.
	ReachedAt time.Time
	// seq orders entries deterministically when even timestamps tie.
	seq uint64
}

type eventBoard struct {
	entries map[int64]*Entry
	nextSeq uint64
}

// Board is a thread-safe multi-event leaderboard store.
//
// Ordering is points descending; ties go to whoever reached the total
// earlier, then to the earlier insertion. The ordering is stable across
// repeated queries against unchanged state.
type Board struct {
	mu     sync.RWMutex
	events map[string]*eventBoard
}

// New creates an empty Board.
func New() *Board {
	return &Board{events: make(map[string]*eventBoard)}
}

// Increment adds delta points to the user's total for the event,
// creating the entry on first touch. The caller supplies the clock so
// tie-break ordering is testable.
func (b *Board) Increment(eventID string, userID int64, delta float64, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	eb, ok := b.events[eventID]
	if !ok {
		eb = &eventBoard{entries: make(map[int64]*Entry)}
		b.events[eventID] = eb
	}

	e, ok := eb.entries[userID]
	if !ok {
		e = &Entry{UserID: userID, FirstAt: now, seq: eb.nextSeq}
		eb.nextSeq++
		eb.entries[userID] = e
	}
	e.Points += delta
	e.ReachedAt = now
}

// TopN returns the top n entries for the event in leaderboard order.
// Fewer entries are returned when the event has fewer participants.
func (b *Board) TopN(eventID string, n int) []Entry {
	all := b.Snapshot(eventID)
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// Rank returns the 1-based position of the user in the event, or false
// when the user never scored.
func (b *Board) Rank(eventID string, userID int64) (int, bool) {
	all := b.Snapshot(eventID)
	for i, e := range all {
		if e.UserID == userID {
			return i + 1, true
		}
	}
	return 0, false
}

// Points returns the user's accumulated points, zero if absent.
func (b *Board) Points(eventID string, userID int64) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if eb, ok := b.events[eventID]; ok {
		if e, ok := eb.entries[userID]; ok {
			return e.Points
		}
	}
	return 0
}

// Count returns the participant count for the event.
func (b *Board) Count(eventID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if eb, ok := b.events[eventID]; ok {
		return len(eb.entries)
	}
	return 0
}

// Snapshot returns all entries for the event in leaderboard order. The
// returned slice is a copy; mutating it does not affect the board.
func (b *Board) Snapshot(eventID string) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	eb, ok := b.events[eventID]
	if !ok {
		return nil
	}

	out := make([]Entry, 0, len(eb.entries))
	for _, e := range eb.entries {
		out = append(out, *e)
	}
	sortEntries(out)
	return out
}

// Drop removes all state for the event. Called after a finalized
// event's standings have been archived.
func (b *Board) Drop(eventID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, eventID)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		if !entries[i].ReachedAt.Equal(entries[j].ReachedAt) {
			return entries[i].ReachedAt.Before(entries[j].ReachedAt)
		}
		return entries[i].seq < entries[j].seq
	})
}
