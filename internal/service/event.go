// Package service provides the engagement engine business logic.
package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"telegram-engage-bot/internal/model"
)

// EventConfig is the admin-supplied configuration for a new event.
// Exactly one of TotalReward (pool) or RankRewards (rank) carries the
// distribution; rank events may also be given just a total, which the
// engine expands with the default rank split before calling CreateEvent.
type EventConfig struct {
	Type        model.EventType
	StartTime   time.Time
	EndTime     time.Time
	TotalReward float64
	RankRewards []float64
}

// validate rejects configurations the engine would otherwise have to
// fail on later. All violations wrap ErrInvalidEventConfig.
func (c *EventConfig) validate() error {
	if c.Type != model.EventTypePool && c.Type != model.EventTypeRank {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidEventConfig, c.Type)
	}
	if !c.EndTime.After(c.StartTime) {
		return fmt.Errorf("%w: end time %s is not after start time %s",
			ErrInvalidEventConfig, c.EndTime.Format(time.RFC3339), c.StartTime.Format(time.RFC3339))
	}
	switch c.Type {
	case model.EventTypePool:
		if c.TotalReward <= 0 {
			return fmt.Errorf("%w: pool total reward must be positive, got %v",
				ErrInvalidEventConfig, c.TotalReward)
		}
	case model.EventTypeRank:
		if len(c.RankRewards) == 0 {
			return fmt.Errorf("%w: rank event needs at least one rank reward", ErrInvalidEventConfig)
		}
		for i, amount := range c.RankRewards {
			if amount <= 0 {
				return fmt.Errorf("%w: rank reward %d must be positive, got %v",
					ErrInvalidEventConfig, i+1, amount)
			}
		}
	}
	return nil
}

// newEvent builds an immutable event from a validated config.
func newEvent(groupID int64, cfg EventConfig, now time.Time) *model.Event {
	e := &model.Event{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		Type:        cfg.Type,
		StartTime:   cfg.StartTime,
		EndTime:     cfg.EndTime,
		Status:      model.StatusNotStarted,
		TotalReward: cfg.TotalReward,
		CreatedAt:   now,
	}
	if cfg.Type == model.EventTypeRank {
		e.RankRewards = append([]float64(nil), cfg.RankRewards...)
		var total float64
		for _, amount := range cfg.RankRewards {
			total += amount
		}
		e.TotalReward = total
	}
	return e
}
