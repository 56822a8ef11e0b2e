package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"telegram-engage-bot/internal/leaderboard"
	"telegram-engage-bot/internal/metrics"
	"telegram-engage-bot/internal/model"
	"telegram-engage-bot/internal/notifier"
	"telegram-engage-bot/internal/pkg/lock"
	"telegram-engage-bot/internal/reward"
	"telegram-engage-bot/internal/scorer"
)

// Archiver persists finalized events for audit. Optional collaborator:
// archive failures are logged, never block finalization, and the
// in-memory engine state stays authoritative.
type Archiver interface {
	ArchiveEvent(ctx context.Context, event *model.Event, standings []model.Participant, plan *model.PayoutPlan) error
}

// Engine composes the scorer, leaderboard, event state machine and
// reward calculator behind the surface the chat transport and admin
// collaborators consume.
//
// All mutations of one group's state run under that group's lock; the
// judge call in the scorer never does. Expiry is detected lazily on
// every message and on explicit ticks - there is no background timer
// owned by the engine.
type Engine struct {
	scorer    *scorer.Scorer
	board     *leaderboard.Board
	notifier  notifier.Notifier
	archive   Archiver
	locks     *lock.GroupLock
	precision int
	rankSplit []float64

	mu     sync.RWMutex
	groups map[int64]*groupState
}

// groupState is everything mutable about one group. Guarded by the
// group's lock except for map placement, which e.mu covers.
type groupState struct {
	group  model.Group
	event  *model.Event
	payout model.PayoutState
}

// pendingEmission carries a finalized event out of the locked section
// so collaborator I/O runs lock-free.
type pendingEmission struct {
	event     *model.Event
	standings []leaderboard.Entry
	plan      *model.PayoutPlan
}

// NewEngine creates an Engine. The archiver may be nil. rankSplit is
// the fractional distribution used to expand a rank event configured
// with only a total amount; nil falls back to 50/30/20.
func NewEngine(sc *scorer.Scorer, board *leaderboard.Board, n notifier.Notifier, archive Archiver, precision int, rankSplit []float64) *Engine {
	if precision <= 0 {
		precision = reward.DefaultPrecision
	}
	if len(rankSplit) == 0 {
		rankSplit = []float64{0.5, 0.3, 0.2}
	}
	return &Engine{
		scorer:    sc,
		board:     board,
		notifier:  n,
		archive:   archive,
		locks:     lock.NewGroupLock(),
		precision: precision,
		rankSplit: rankSplit,
		groups:    make(map[int64]*groupState),
	}
}

// RegisterGroup makes the engine track a group. Idempotent.
func (e *Engine) RegisterGroup(groupID int64, title string) {
	st := e.ensure(groupID)
	e.locks.Lock(groupID)
	if title != "" {
		st.group.Title = title
	}
	e.locks.Unlock(groupID)
}

// SetListening toggles whether scored messages in the group count
// toward its event. Registers the group on first use.
func (e *Engine) SetListening(groupID int64, on bool) {
	st := e.ensure(groupID)
	e.locks.Lock(groupID)
	st.group.Listening = on
	e.locks.Unlock(groupID)
	log.Info().Int64("group_id", groupID).Bool("listening", on).Msg("listening toggled")
}

// Listening reports the group's listening flag.
func (e *Engine) Listening(groupID int64) bool {
	st := e.lookup(groupID)
	if st == nil {
		return false
	}
	e.locks.Lock(groupID)
	defer e.locks.Unlock(groupID)
	return st.group.Listening
}

// CreateEvent starts a new event for the group. It fails with
// ErrEventAlreadyActive while the current event still runs and with
// ErrInvalidEventConfig for bad timeframes or reward amounts. An
// expired-but-unsettled predecessor is finalized on the way.
func (e *Engine) CreateEvent(ctx context.Context, groupID int64, cfg EventConfig, now time.Time) (*model.Event, error) {
	// A rank event given only a total gets the default rank split.
	if cfg.Type == model.EventTypeRank && len(cfg.RankRewards) == 0 && cfg.TotalReward > 0 {
		cfg.RankRewards = reward.SplitByRank(cfg.TotalReward, e.rankSplit, e.precision)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	st := e.ensure(groupID)

	var em *pendingEmission
	var created *model.Event
	var createErr error

	e.locks.Lock(groupID)
	em = e.finalizeLocked(st, now)
	if st.event != nil && st.event.StatusAt(now) == model.StatusActive {
		createErr = fmt.Errorf("%w: current event %s runs until %s",
			ErrEventAlreadyActive, st.event.ID, st.event.EndTime.Format(time.RFC3339))
	} else {
		if st.event != nil {
			// The predecessor's standings were snapshotted above if
			// they were still owed a payout; its ledger can go.
			e.board.Drop(st.event.ID)
		}
		created = newEvent(groupID, cfg, now)
		created.Status = created.StatusAt(now)
		st.event = created
		st.payout = model.PayoutPending
		st.group.ActiveEventID = created.ID
	}
	e.locks.Unlock(groupID)

	if em != nil {
		e.emit(ctx, groupID, em)
	}
	if createErr != nil {
		return nil, createErr
	}

	log.Info().
		Int64("group_id", groupID).
		Str("event_id", created.ID).
		Str("type", string(created.Type)).
		Time("start", created.StartTime).
		Time("end", created.EndTime).
		Float64("total_reward", created.TotalReward).
		Msg("event created")

	out := *created
	return &out, nil
}

// HandleMessage scores one inbound message and, when the group's event
// is active and listening is on, records the score on the leaderboard.
// The message is always scored; whether it counted is reported on the
// result. Scoring happens before the group lock is taken, so a slow
// judge never blocks the group.
func (e *Engine) HandleMessage(ctx context.Context, text string, userID, groupID int64, now time.Time) model.ScoredMessage {
	score, source := e.scorer.ScoreMessage(ctx, text, userID, groupID)
	msg := model.ScoredMessage{
		Text:      text,
		UserID:    userID,
		GroupID:   groupID,
		Timestamp: now,
		Score:     score,
		Source:    source,
	}

	st := e.lookup(groupID)
	if st == nil {
		return msg
	}

	var em *pendingEmission
	e.locks.Lock(groupID)
	em = e.finalizeLocked(st, now)
	// Gate: active event, listening on, caller not torn down, and a
	// score that actually earned something. Zero-score messages never
	// create participants.
	if st.event != nil && st.event.Status == model.StatusActive &&
		st.group.Listening && ctx.Err() == nil && score > 0 {
		e.board.Increment(st.event.ID, userID, score, now)
		msg.Counted = true
		metrics.ScoresRecorded.Inc()
	}
	e.locks.Unlock(groupID)

	if em != nil {
		e.emit(ctx, groupID, em)
	}
	return msg
}

// Tick advances the group's event against the clock and, on the first
// tick after expiry, finalizes it and emits the payout plan. Returns
// the plan when this call emitted it, nil otherwise. Safe to call
// repeatedly and concurrently; the plan is emitted exactly once.
func (e *Engine) Tick(ctx context.Context, groupID int64, now time.Time) *model.PayoutPlan {
	st := e.lookup(groupID)
	if st == nil {
		return nil
	}

	e.locks.Lock(groupID)
	em := e.finalizeLocked(st, now)
	e.locks.Unlock(groupID)

	if em == nil {
		return nil
	}
	e.emit(ctx, groupID, em)
	return em.plan
}

// TickAll ticks every tracked group. Used by the periodic poll that
// bounds how long an idle group's event can stay unfinalized.
func (e *Engine) TickAll(ctx context.Context, now time.Time) {
	e.mu.RLock()
	ids := make([]int64, 0, len(e.groups))
	for id := range e.groups {
		ids = append(ids, id)
	}
	e.mu.RUnlock()

	for _, id := range ids {
		e.Tick(ctx, id, now)
	}
}

// CurrentEvent returns a copy of the group's event with its status
// derived at now. Side-effect free.
func (e *Engine) CurrentEvent(groupID int64, now time.Time) (*model.Event, error) {
	st := e.lookup(groupID)
	if st == nil {
		return nil, ErrGroupNotFound
	}

	e.locks.Lock(groupID)
	defer e.locks.Unlock(groupID)
	if st.event == nil {
		return nil, ErrNoEvent
	}
	out := *st.event
	out.Status = out.StatusAt(now)
	return &out, nil
}

// TimeRemaining reports how long the group's event still runs.
func (e *Engine) TimeRemaining(groupID int64, now time.Time) (time.Duration, error) {
	event, err := e.CurrentEvent(groupID, now)
	if err != nil {
		return 0, err
	}
	return event.TimeRemaining(now), nil
}

// TopN returns the group's current standings, best first.
func (e *Engine) TopN(groupID int64, n int) ([]leaderboard.Entry, error) {
	eventID, err := e.currentEventID(groupID)
	if err != nil {
		return nil, err
	}
	return e.board.TopN(eventID, n), nil
}

// Rank returns the user's 1-based position in the group's current
// event, with ranked=false for users who never scored.
func (e *Engine) Rank(groupID, userID int64) (int, bool, error) {
	eventID, err := e.currentEventID(groupID)
	if err != nil {
		return 0, false, err
	}
	rank, ok := e.board.Rank(eventID, userID)
	return rank, ok, nil
}

func (e *Engine) currentEventID(groupID int64) (string, error) {
	st := e.lookup(groupID)
	if st == nil {
		return "", ErrGroupNotFound
	}
	e.locks.Lock(groupID)
	defer e.locks.Unlock(groupID)
	if st.event == nil {
		return "", ErrNoEvent
	}
	return st.event.ID, nil
}

// finalizeLocked advances the event against the clock and starts
// finalization on the pending -> finalizing edge. Must be called with
// the group lock held. Returns the emission work to run after the lock
// is released, or nil when there is nothing to finalize.
func (e *Engine) finalizeLocked(st *groupState, now time.Time) *pendingEmission {
	if st.event == nil {
		return nil
	}
	st.event.Status = st.event.StatusAt(now)
	if st.event.Status != model.StatusEnded || st.payout != model.PayoutPending {
		return nil
	}

	st.payout = model.PayoutFinalizing
	st.group.ActiveEventID = ""

	standings := e.board.Snapshot(st.event.ID)
	plan := reward.ComputePayout(st.event, standings, e.precision)
	plan.ID = uuid.NewString()
	plan.CreatedAt = now

	eventCopy := *st.event
	return &pendingEmission{event: &eventCopy, standings: standings, plan: plan}
}

// emit delivers a finalized event to the notifier and archiver, then
// marks the payout paid. Runs without the group lock; concurrent
// finalization attempts see the finalizing state and skip.
func (e *Engine) emit(ctx context.Context, groupID int64, em *pendingEmission) {
	metrics.EventsFinalized.Inc()

	if err := e.notifier.EmitPayout(ctx, em.plan); err != nil {
		// Delivery retries are the collaborator's job; the plan is
		// considered emitted either way.
		log.Error().Err(err).Str("event_id", em.event.ID).Msg("payout emission failed")
	}
	metrics.PayoutsEmitted.WithLabelValues(string(em.event.Type)).Inc()

	if e.archive != nil {
		participants := participantsFrom(em.event, em.standings)
		if err := e.archive.ArchiveEvent(ctx, em.event, participants, em.plan); err != nil {
			log.Error().Err(err).Str("event_id", em.event.ID).Msg("event archive failed")
		}
	}

	st := e.lookup(groupID)
	if st == nil {
		return
	}
	e.locks.Lock(groupID)
	// The event may already have been replaced; only mark our own.
	if st.event != nil && st.event.ID == em.event.ID {
		st.payout = model.PayoutPaid
	}
	e.locks.Unlock(groupID)

	log.Info().
		Int64("group_id", groupID).
		Str("event_id", em.event.ID).
		Int("participants", len(em.standings)).
		Float64("paid", em.plan.Total()).
		Msg("event finalized")
}

// participantsFrom freezes leaderboard entries into participant rows.
func participantsFrom(event *model.Event, standings []leaderboard.Entry) []model.Participant {
	out := make([]model.Participant, len(standings))
	for i, s := range standings {
		out[i] = model.Participant{
			UserID:        s.UserID,
			GroupID:       event.GroupID,
			EventID:       event.ID,
			Points:        s.Points,
			FirstScoredAt: s.FirstAt,
			LastScoredAt:  s.ReachedAt,
		}
	}
	return out
}

func (e *Engine) ensure(groupID int64) *groupState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.groups[groupID]
	if !ok {
		st = &groupState{group: model.Group{ID: groupID}, payout: model.PayoutPending}
		e.groups[groupID] = st
	}
	return st
}

func (e *Engine) lookup(groupID int64) *groupState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.groups[groupID]
}
