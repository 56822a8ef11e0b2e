// Package repository persists finalized events, their frozen standings
// and the emitted payout plans to PostgreSQL. The archive is an audit
// trail: the engine's in-memory state stays authoritative and keeps
// working when the database is down or disabled.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-engage-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrEventNotFound = errors.New("event not found")
	ErrPlanNotFound  = errors.New("payout plan not found")
)

// ArchiveRepository handles finalized-event persistence.
type ArchiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository creates a new ArchiveRepository instance.
func NewArchiveRepository(pool *pgxpool.Pool) *ArchiveRepository {
	return &ArchiveRepository{pool: pool}
}

// Migrate applies the archive schema. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			group_id BIGINT NOT NULL,
			type VARCHAR(16) NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			total_reward DOUBLE PRECISION NOT NULL,
			rank_rewards DOUBLE PRECISION[],
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_group ON events (group_id, end_time DESC);

		CREATE TABLE IF NOT EXISTS event_participants (
			event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL,
			points DOUBLE PRECISION NOT NULL,
			first_scored_at TIMESTAMPTZ NOT NULL,
			last_scored_at TIMESTAMPTZ NOT NULL,
			position INT NOT NULL,
			PRIMARY KEY (event_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS payout_plans (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL UNIQUE REFERENCES events(id) ON DELETE CASCADE,
			type VARCHAR(16) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS payout_entries (
			plan_id UUID NOT NULL REFERENCES payout_plans(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			position INT NOT NULL,
			PRIMARY KEY (plan_id, user_id)
		)
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply archive schema: %w", err)
	}
	return nil
}

// ArchiveEvent writes a finalized event, its frozen standings and the
// emitted payout plan in one transaction. Re-archiving the same event
// is a no-op, so an at-least-once caller stays safe.
func (r *ArchiveRepository) ArchiveEvent(ctx context.Context, event *model.Event, standings []model.Participant, plan *model.PayoutPlan) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const eventQuery = `
		INSERT INTO events (id, group_id, type, start_time, end_time, total_reward, rank_rewards, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, eventQuery,
		event.ID, event.GroupID, string(event.Type),
		event.StartTime, event.EndTime,
		event.TotalReward, event.RankRewards, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already archived by an earlier attempt.
		return nil
	}

	const participantQuery = `
		INSERT INTO event_participants (event_id, user_id, points, first_scored_at, last_scored_at, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, p := range standings {
		if _, err := tx.Exec(ctx, participantQuery,
			event.ID, p.UserID, p.Points, p.FirstScoredAt, p.LastScoredAt, i+1,
		); err != nil {
			return fmt.Errorf("failed to archive participant: %w", err)
		}
	}

	if plan != nil {
		const planQuery = `
			INSERT INTO payout_plans (id, event_id, type, created_at)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.Exec(ctx, planQuery, plan.ID, plan.EventID, string(plan.Type), plan.CreatedAt); err != nil {
			return fmt.Errorf("failed to archive payout plan: %w", err)
		}

		const entryQuery = `
			INSERT INTO payout_entries (plan_id, user_id, amount, position)
			VALUES ($1, $2, $3, $4)
		`
		for i, e := range plan.Entries {
			if _, err := tx.Exec(ctx, entryQuery, plan.ID, e.UserID, e.Amount, i+1); err != nil {
				return fmt.Errorf("failed to archive payout entry: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit archive transaction: %w", err)
	}
	return nil
}

// GetEvent retrieves an archived event by ID.
// Returns ErrEventNotFound if the event was never archived.
func (r *ArchiveRepository) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	const query = `
		SELECT id, group_id, type, start_time, end_time, total_reward, rank_rewards, created_at
		FROM events
		WHERE id = $1
	`

	var event model.Event
	var eventType string
	err := r.pool.QueryRow(ctx, query, eventID).Scan(
		&event.ID,
		&event.GroupID,
		&eventType,
		&event.StartTime,
		&event.EndTime,
		&event.TotalReward,
		&event.RankRewards,
		&event.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	event.Type = model.EventType(eventType)
	event.Status = model.StatusEnded
	return &event, nil
}

// ListGroupEvents retrieves a group's archived events, newest first.
func (r *ArchiveRepository) ListGroupEvents(ctx context.Context, groupID int64, limit int) ([]*model.Event, error) {
	const query = `
		SELECT id, group_id, type, start_time, end_time, total_reward, rank_rewards, created_at
		FROM events
		WHERE group_id = $1
		ORDER BY end_time DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list group events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		var event model.Event
		var eventType string
		err := rows.Scan(
			&event.ID,
			&event.GroupID,
			&eventType,
			&event.StartTime,
			&event.EndTime,
			&event.TotalReward,
			&event.RankRewards,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Type = model.EventType(eventType)
		event.Status = model.StatusEnded
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// GetParticipants retrieves an event's frozen standings in final
// leaderboard order.
func (r *ArchiveRepository) GetParticipants(ctx context.Context, eventID string) ([]model.Participant, error) {
	const query = `
		SELECT ep.user_id, e.group_id, ep.event_id, ep.points, ep.first_scored_at, ep.last_scored_at
		FROM event_participants ep
		JOIN events e ON ep.event_id = e.id
		WHERE ep.event_id = $1
		ORDER BY ep.position
	`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		err := rows.Scan(
			&p.UserID,
			&p.GroupID,
			&p.EventID,
			&p.Points,
			&p.FirstScoredAt,
			&p.LastScoredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating participants: %w", err)
	}

	return participants, nil
}

// GetPayoutPlan retrieves the payout plan emitted for an event.
// Returns ErrPlanNotFound when no plan was archived for it.
func (r *ArchiveRepository) GetPayoutPlan(ctx context.Context, eventID string) (*model.PayoutPlan, error) {
	const planQuery = `
		SELECT p.id, p.event_id, e.group_id, p.type, p.created_at
		FROM payout_plans p
		JOIN events e ON p.event_id = e.id
		WHERE p.event_id = $1
	`

	var plan model.PayoutPlan
	var planType string
	err := r.pool.QueryRow(ctx, planQuery, eventID).Scan(
		&plan.ID,
		&plan.EventID,
		&plan.GroupID,
		&planType,
		&plan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get payout plan: %w", err)
	}
	plan.Type = model.EventType(planType)

	const entryQuery = `
		SELECT user_id, amount
		FROM payout_entries
		WHERE plan_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, entryQuery, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payout entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry model.PayoutEntry
		if err := rows.Scan(&entry.UserID, &entry.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan payout entry: %w", err)
		}
		plan.Entries = append(plan.Entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payout entries: %w", err)
	}

	return &plan, nil
}

// GetUserTotals sums a user's archived points and received payouts
// across all finalized events in a group.
func (r *ArchiveRepository) GetUserTotals(ctx context.Context, groupID, userID int64) (points, paid float64, err error) {
	const query = `
		SELECT
			COALESCE(SUM(ep.points), 0),
			COALESCE(SUM(pe.amount), 0)
		FROM event_participants ep
		JOIN events e ON ep.event_id = e.id
		LEFT JOIN payout_plans pp ON pp.event_id = e.id
		LEFT JOIN payout_entries pe ON pe.plan_id = pp.id AND pe.user_id = ep.user_id
		WHERE e.group_id = $1 AND ep.user_id = $2
	`

	if err := r.pool.QueryRow(ctx, query, groupID, userID).Scan(&points, &paid); err != nil {
		return 0, 0, fmt.Errorf("failed to get user totals: %w", err)
	}
	return points, paid, nil
}
