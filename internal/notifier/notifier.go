// Package notifier defines the payout collaborator surface. The engine
// hands each finalized payout plan to a Notifier exactly once; delivery
// retries are the collaborator's concern (plans carry the event ID for
// de-duplication).
package notifier

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"telegram-engage-bot/internal/model"
)

// Notifier receives finalized payout plans.
type Notifier interface {
	EmitPayout(ctx context.Context, plan *model.PayoutPlan) error
}

// LogNotifier writes payout plans to the log. It stands in for the
// on-chain payout collaborator in development and tests.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// EmitPayout logs the plan. Never fails.
func (n *LogNotifier) EmitPayout(_ context.Context, plan *model.PayoutPlan) error {
	recipients := zerolog.Dict()
	for _, e := range plan.Entries {
		recipients = recipients.Float64(strconv.FormatInt(e.UserID, 10), e.Amount)
	}

	n.logger.Info().
		Str("plan_id", plan.ID).
		Str("event_id", plan.EventID).
		Int64("group_id", plan.GroupID).
		Str("type", string(plan.Type)).
		Int("recipients", len(plan.Entries)).
		Float64("total", plan.Total()).
		Dict("amounts", recipients).
		Msg("payout plan emitted")
	return nil
}
