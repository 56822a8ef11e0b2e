package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBoard_IncrementAndTopN(t *testing.T) {
	b := New()
	const event = "ev-1"

	b.Increment(event, 1, 5.0, base)
	b.Increment(event, 2, 5.0, base.Add(time.Second))
	b.Increment(event, 3, 10.0, base.Add(2*time.Second))

	top := b.TopN(event, 10)
	require.Len(t, top, 3)

	// Highest points first; the 5.0 tie goes to the earlier scorer.
	assert.Equal(t, int64(3), top[0].UserID)
	assert.Equal(t, int64(1), top[1].UserID)
	assert.Equal(t, int64(2), top[2].UserID)
}

func TestBoard_TopNTruncates(t *testing.T) {
	b := New()
	const event = "ev-1"

	for i := int64(1); i <= 5; i++ {
		b.Increment(event, i, float64(i), base.Add(time.Duration(i)*time.Second))
	}

	top := b.TopN(event, 2)
	require.Len(t, top, 2)
	assert.Equal(t, int64(5), top[0].UserID)
	assert.Equal(t, int64(4), top[1].UserID)
}

func TestBoard_Rank(t *testing.T) {
	b := New()
	const event = "ev-1"

	b.Increment(event, 10, 3.0, base)
	b.Increment(event, 20, 8.0, base.Add(time.Second))

	rank, ok := b.Rank(event, 10)
	require.True(t, ok)
	assert.Equal(t, 2, rank)

	rank, ok = b.Rank(event, 20)
	require.True(t, ok)
	assert.Equal(t, 1, rank)

	_, ok = b.Rank(event, 99)
	assert.False(t, ok, "user who never scored is unranked")
}

func TestBoard_TieBreakByTimeReached(t *testing.T) {
	b := New()
	const event = "ev-1"

	// User 2 reaches 10 points before user 1 does, even though user 1
	// scored first.
	b.Increment(event, 1, 4.0, base)
	b.Increment(event, 2, 10.0, base.Add(time.Second))
	b.Increment(event, 1, 6.0, base.Add(2*time.Second))

	top := b.TopN(event, 2)
	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].UserID)
	assert.Equal(t, int64(1), top[1].UserID)
}

func TestBoard_CountAndDrop(t *testing.T) {
	b := New()

	b.Increment("ev-1", 1, 1.0, base)
	b.Increment("ev-1", 2, 1.0, base)
	b.Increment("ev-2", 3, 1.0, base)

	assert.Equal(t, 2, b.Count("ev-1"))
	assert.Equal(t, 1, b.Count("ev-2"))
	assert.Equal(t, 0, b.Count("ev-absent"))

	b.Drop("ev-1")
	assert.Equal(t, 0, b.Count("ev-1"))
	assert.Equal(t, 1, b.Count("ev-2"), "dropping one event leaves others intact")
}

func TestBoard_EventIsolation(t *testing.T) {
	b := New()

	b.Increment("ev-1", 1, 5.0, base)
	b.Increment("ev-2", 1, 9.0, base)

	assert.Equal(t, 5.0, b.Points("ev-1", 1))
	assert.Equal(t, 9.0, b.Points("ev-2", 1))
}

// TestOrderingProperty: for any sequence of increments, the snapshot is
// sorted by points descending with deterministic ties, and repeated
// queries agree.
func TestOrderingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := New()
		const event = "ev-prop"

		numOps := rapid.IntRange(1, 60).Draw(t, "numOps")
		for i := 0; i < numOps; i++ {
			userID := rapid.Int64Range(1, 10).Draw(t, "userID")
			// Whole points keep accumulation exact.
			delta := float64(rapid.IntRange(0, 10).Draw(t, "delta"))
			b.Increment(event, userID, delta, base.Add(time.Duration(i)*time.Second))
		}

		snap := b.Snapshot(event)
		for i := 1; i < len(snap); i++ {
			prev, cur := snap[i-1], snap[i]
			if prev.Points < cur.Points {
				t.Fatalf("snapshot not sorted: %v before %v", prev.Points, cur.Points)
			}
			if prev.Points == cur.Points && prev.ReachedAt.After(cur.ReachedAt) {
				t.Fatalf("tie not broken by time reached: %v after %v", prev.ReachedAt, cur.ReachedAt)
			}
		}

		again := b.Snapshot(event)
		if len(again) != len(snap) {
			t.Fatalf("snapshot length changed between queries: %d vs %d", len(snap), len(again))
		}
		for i := range snap {
			if snap[i].UserID != again[i].UserID {
				t.Fatalf("ordering unstable at %d: %d vs %d", i, snap[i].UserID, again[i].UserID)
			}
		}
	})
}

// TestMonotonicPointsProperty: increments never decrease a
// participant's total.
func TestMonotonicPointsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := New()
		const event = "ev-mono"
		const userID = int64(7)

		numOps := rapid.IntRange(1, 40).Draw(t, "numOps")
		var prev float64
		for i := 0; i < numOps; i++ {
			delta := float64(rapid.IntRange(0, 10).Draw(t, "delta"))
			b.Increment(event, userID, delta, base.Add(time.Duration(i)*time.Second))

			cur := b.Points(event, userID)
			if cur < prev {
				t.Fatalf("points decreased: %v -> %v", prev, cur)
			}
			prev = cur
		}
	})
}
