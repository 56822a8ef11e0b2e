// Package scorer turns raw message text into an engagement score.
//
// The pipeline is: zero-score pre-filter (no judge call for trivially
// low-effort content), then the primary AI judge with a bounded
// timeout, then the deterministic fallback when the judge fails.
// Messages are never dropped; every one gets a score in [0,10].
package scorer

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"telegram-engage-bot/internal/judge"
	"telegram-engage-bot/internal/metrics"
	"telegram-engage-bot/internal/model"
)

// maxScore is the upper bound of the scoring scale.
const maxScore = 10.0

// Config holds scorer construction parameters.
type Config struct {
	// MinLength is the trimmed rune count at or below which a message
	// scores zero outright.
	MinLength int
	// ZeroPatterns are low-effort texts (greetings, acks) that score
	// zero after trimming and lower-casing.
	ZeroPatterns []string
	// FallbackCap bounds the deterministic fallback score.
	FallbackCap float64

	LongMessageBonus  float64
	ExtraLengthBonus  float64
	QuestionBonus     float64
	EngagementBonus   float64
	DiversityWeight   float64
	SpamPenalty       float64
	LongThreshold     int
	ExtraThreshold    int
	QuestionThreshold int
	EngagementWords   []string
}

// Scorer orchestrates the judge and the deterministic fallback.
type Scorer struct {
	judge judge.Judge
	cfg   Config
	zero  map[string]struct{}
}

// New creates a Scorer. A nil judge is allowed; every message is then
// scored by the fallback path.
func New(j judge.Judge, cfg Config) *Scorer {
	zero := make(map[string]struct{}, len(cfg.ZeroPatterns))
	for _, p := range cfg.ZeroPatterns {
		zero[p] = struct{}{}
	}
	return &Scorer{judge: j, cfg: cfg, zero: zero}
}

// ScoreMessage scores one message. The returned source tells the caller
// whether the primary judge or the deterministic path produced the
// value. Pure with respect to shared state: safe to call without any
// group lock held.
func (s *Scorer) ScoreMessage(ctx context.Context, text string, userID, groupID int64) (float64, model.ScoreSource) {
	if s.isZeroScore(text) {
		metrics.MessagesScored.WithLabelValues(string(model.SourceFallback)).Inc()
		metrics.JudgeFallbacks.WithLabelValues("prefilter").Inc()
		return 0, model.SourceFallback
	}

	if s.judge != nil {
		score, err := s.judge.Score(ctx, text, userID, groupID)
		if err == nil {
			metrics.MessagesScored.WithLabelValues(string(model.SourceJudged)).Inc()
			return clamp(score, 0, maxScore), model.SourceJudged
		}

		reason := "unavailable"
		if errors.Is(err, judge.ErrMalformedResponse) {
			reason = "malformed"
		}
		metrics.JudgeFallbacks.WithLabelValues(reason).Inc()
		log.Warn().
			Err(err).
			Int64("user_id", userID).
			Int64("group_id", groupID).
			Msg("judge failed, using fallback scorer")
	}

	metrics.MessagesScored.WithLabelValues(string(model.SourceFallback)).Inc()
	return s.fallbackScore(text), model.SourceFallback
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
