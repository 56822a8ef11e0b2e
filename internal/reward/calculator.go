// Package reward computes payout plans from finalized event standings.
// Everything here is pure arithmetic: no clock, no I/O, no shared
// state, so the same standings always produce the same plan.
package reward

import (
	"math"

	"telegram-engage-bot/internal/leaderboard"
	"telegram-engage-bot/internal/model"
)

// DefaultPrecision is the fractional precision used when a caller
// passes a non-positive precision.
const DefaultPrecision = 2

// ComputePayout turns a finalized event plus its standings into a
// payout plan. Standings must already be in leaderboard order (points
// descending, deterministic ties). Zero participants yield an empty
// plan, not an error. The returned plan carries no ID or timestamp;
// the engine stamps those when it emits.
func ComputePayout(event *model.Event, standings []leaderboard.Entry, precision int) *model.PayoutPlan {
	plan := &model.PayoutPlan{
		EventID: event.ID,
		GroupID: event.GroupID,
		Type:    event.Type,
	}

	if len(standings) == 0 {
		return plan
	}

	switch event.Type {
	case model.EventTypeRank:
		plan.Entries = rankEntries(event.RankRewards, standings)
	default:
		plan.Entries = poolEntries(event.TotalReward, standings, precision)
	}
	return plan
}

// poolEntries splits the total evenly: each participant's share is
// floored at the given fractional precision and the rounding residual
// goes to the top-ranked participant, so the entry amounts always sum
// to the total exactly.
func poolEntries(total float64, standings []leaderboard.Entry, precision int) []model.PayoutEntry {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	scale := math.Pow10(precision)

	// Work in integer units of 10^-precision so the conservation
	// invariant holds without float drift.
	totalUnits := int64(math.Round(total * scale))
	n := int64(len(standings))
	shareUnits := totalUnits / n
	residualUnits := totalUnits - shareUnits*n

	entries := make([]model.PayoutEntry, len(standings))
	for i, s := range standings {
		units := shareUnits
		if i == 0 {
			units += residualUnits
		}
		entries[i] = model.PayoutEntry{
			UserID: s.UserID,
			Amount: float64(units) / scale,
		}
	}
	return entries
}

// rankEntries assigns rankRewards[i] to the i-th participant.
// Participants beyond the reward tiers get nothing and are excluded.
func rankEntries(rankRewards []float64, standings []leaderboard.Entry) []model.PayoutEntry {
	n := len(rankRewards)
	if len(standings) < n {
		n = len(standings)
	}

	entries := make([]model.PayoutEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, model.PayoutEntry{
			UserID: standings[i].UserID,
			Amount: rankRewards[i],
		})
	}
	return entries
}

// SplitByRank expands a total amount into per-rank rewards using a
// fractional distribution (e.g. 0.5/0.3/0.2). Amounts are floored at
// the given precision with the residual added to first place, so the
// per-rank rewards sum to the total exactly. Used when an admin
// configures a rank event with only a total.
func SplitByRank(total float64, split []float64, precision int) []float64 {
	if len(split) == 0 || total <= 0 {
		return nil
	}
	if precision <= 0 {
		precision = DefaultPrecision
	}
	scale := math.Pow10(precision)

	totalUnits := int64(math.Round(total * scale))
	amounts := make([]float64, len(split))
	var assigned int64
	for i, frac := range split {
		// The epsilon keeps products like 0.3*100000 from flooring one
		// unit low due to binary representation.
		units := int64(math.Floor(float64(totalUnits)*frac + 1e-9))
		amounts[i] = float64(units) / scale
		assigned += units
	}
	amounts[0] += float64(totalUnits-assigned) / scale
	return amounts
}
