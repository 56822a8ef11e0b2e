// Package judge defines the message-quality judge contract and its
// AI-backed implementation. A judge rates a single message for
// engagement quality on a 0-10 scale.
package judge

import "context"

// Judge scores a message for engagement quality.
//
// Implementations must return a value in [0,10]. Network, timeout and
// auth failures are reported as ErrJudgeUnavailable; a payload that
// cannot be parsed into an in-range numeric score is
// ErrMalformedResponse. Callers distinguish the two but recover from
// both by falling back to the deterministic scorer.
type Judge interface {
	Score(ctx context.Context, text string, userID, groupID int64) (float64, error)
}
