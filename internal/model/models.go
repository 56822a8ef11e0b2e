// Package model defines the data models for the engagement reward engine.
package model

import "time"

// EventType determines how the reward for an event is distributed.
type EventType string

const (
	// EventTypePool splits the total reward evenly between all participants.
	EventTypePool EventType = "pool"
	// EventTypeRank pays fixed amounts to the top-ranked participants.
	EventTypeRank EventType = "rank"
)

// EventStatus is the lifecycle state of an event.
// Status is always derived lazily from wall-clock time; there is no
// background timer flipping it.
type EventStatus string

const (
	StatusNotStarted EventStatus = "not_started"
	StatusActive     EventStatus = "active"
	StatusEnded      EventStatus = "ended"
)

// PayoutState tracks finalization of an event's payout plan.
// The pending -> finalizing -> paid progression guarantees the plan is
// emitted at most once even under concurrent ticks.
type PayoutState string

const (
	PayoutPending    PayoutState = "pending"
	PayoutFinalizing PayoutState = "finalizing"
	PayoutPaid       PayoutState = "paid"
)

// ScoreSource records which scorer produced a message score.
type ScoreSource string

const (
	// SourceJudged means the primary AI judge produced the score.
	SourceJudged ScoreSource = "judged"
	// SourceFallback means the deterministic scorer produced it, either
	// via the zero-score pre-filter or because the judge failed.
	SourceFallback ScoreSource = "fallback"
)

// Group represents a chat group tracked by the engine.
type Group struct {
	ID        int64
	Title     string
	Listening bool
	// ActiveEventID is set while the group has a current (not yet
	// discarded) event. Empty otherwise.
	ActiveEventID string
}

// Event is a time-bounded reward event within a single group.
// Its configuration is immutable after creation; only Status and the
// payout state advance.
type Event struct {
	ID        string
	GroupID   int64
	Type      EventType
	StartTime time.Time
	EndTime   time.Time
	Status    EventStatus

	// TotalReward is the pool amount for pool events. For rank events it
	// is informational (the sum of RankRewards).
	TotalReward float64
	// RankRewards holds the per-rank amounts for rank events, index 0
	// being first place.
	RankRewards []float64

	CreatedAt time.Time
}

// StatusAt derives the event status at the given instant. It is pure
// and idempotent: callers pass the clock in, nothing is mutated.
// An event whose whole window elapsed unobserved goes straight from
// not_started to ended.
func (e *Event) StatusAt(now time.Time) EventStatus {
	if e.Status == StatusEnded {
		return StatusEnded
	}
	if !now.Before(e.EndTime) {
		return StatusEnded
	}
	if e.Status == StatusNotStarted && !now.Before(e.StartTime) {
		return StatusActive
	}
	return e.Status
}

// TimeRemaining reports how long the event still runs at the given
// instant. Zero once the window has elapsed.
func (e *Event) TimeRemaining(now time.Time) time.Duration {
	if !now.Before(e.EndTime) {
		return 0
	}
	return e.EndTime.Sub(now)
}

// Participant is one user's accumulated standing within an event.
// Created on the first qualifying score; points only grow while the
// event is active.
type Participant struct {
	UserID        int64
	GroupID       int64
	EventID       string
	Points        float64
	FirstScoredAt time.Time
	LastScoredAt  time.Time
}

// ScoredMessage is the transient result of scoring one inbound message.
// It is not persisted beyond updating the participant's points.
type ScoredMessage struct {
	Text      string
	UserID    int64
	GroupID   int64
	Timestamp time.Time
	Score     float64
	Source    ScoreSource
	// Counted reports whether the score was applied to an active event's
	// ledger. Messages are scored even when no event is running.
	Counted bool
}

// PayoutEntry is a single recipient line in a payout plan.
type PayoutEntry struct {
	UserID int64
	Amount float64
}

// PayoutPlan is the finalized distribution for one event. Produced at
// most once per event and immutable afterwards.
type PayoutPlan struct {
	ID        string
	EventID   string
	GroupID   int64
	Type      EventType
	Entries   []PayoutEntry
	CreatedAt time.Time
}

// Total sums the plan's entry amounts.
func (p *PayoutPlan) Total() float64 {
	var total float64
	for _, e := range p.Entries {
		total += e.Amount
	}
	return total
}
