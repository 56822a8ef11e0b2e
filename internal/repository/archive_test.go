// Tests use testcontainers-go to spin up a PostgreSQL container and are
// skipped when Docker is not available.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"telegram-engage-bot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = Migrate(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func archivedFixture() (*model.Event, []model.Participant, *model.PayoutPlan) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := &model.Event{
		ID:          uuid.NewString(),
		GroupID:     100,
		Type:        model.EventTypePool,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Status:      model.StatusEnded,
		TotalReward: 30,
		CreatedAt:   start,
	}
	participants := []model.Participant{
		{UserID: 1, GroupID: 100, EventID: event.ID, Points: 6, FirstScoredAt: start.Add(time.Minute), LastScoredAt: start.Add(10 * time.Minute)},
		{UserID: 2, GroupID: 100, EventID: event.ID, Points: 4, FirstScoredAt: start.Add(2 * time.Minute), LastScoredAt: start.Add(12 * time.Minute)},
		{UserID: 3, GroupID: 100, EventID: event.ID, Points: 2, FirstScoredAt: start.Add(3 * time.Minute), LastScoredAt: start.Add(14 * time.Minute)},
	}
	plan := &model.PayoutPlan{
		ID:      uuid.NewString(),
		EventID: event.ID,
		GroupID: 100,
		Type:    model.EventTypePool,
		Entries: []model.PayoutEntry{
			{UserID: 1, Amount: 10},
			{UserID: 2, Amount: 10},
			{UserID: 3, Amount: 10},
		},
		CreatedAt: start.Add(time.Hour),
	}
	return event, participants, plan
}

func TestArchiveRepository_ArchiveAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArchiveRepository(pool)
	ctx := context.Background()

	event, participants, plan := archivedFixture()
	require.NoError(t, repo.ArchiveEvent(ctx, event, participants, plan))

	got, err := repo.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, event.GroupID, got.GroupID)
	assert.Equal(t, model.EventTypePool, got.Type)
	assert.Equal(t, model.StatusEnded, got.Status)
	assert.Equal(t, 30.0, got.TotalReward)
	assert.True(t, got.EndTime.Equal(event.EndTime))
}

func TestArchiveRepository_GetEventNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArchiveRepository(pool)
	_, err := repo.GetEvent(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestArchiveRepository_ArchiveIdempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArchiveRepository(pool)
	ctx := context.Background()

	event, participants, plan := archivedFixture()
	require.NoError(t, repo.ArchiveEvent(ctx, event, participants, plan))

	// Second delivery of the same event must not duplicate rows.
	require.NoError(t, repo.ArchiveEvent(ctx, event, participants, plan))

	got, err := repo.GetParticipants(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestArchiveRepository_ParticipantsKeepOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArchiveRepository(pool)
	ctx := context.Background()

	event, participants, plan := archivedFixture()
	require.NoError(t, repo.ArchiveEvent(ctx, event, participants, plan))

	got, err := repo.GetParticipants(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Final leaderboard order survives the round trip.
	assert.Equal(t, int64(1), got[0].UserID)
	assert.Equal(t, 6.0, got[0].Points)
	assert.Equal(t, int64(3), got[2].UserID)
	assert.Equal(t, int64(100), got[0].GroupID)
}

func TestArchiveRepository_GetPayoutPlan(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArchiveRepository(pool)
	ctx := context.Background()

	event, participants, plan := archivedFixture()
	require.NoError(t, repo.ArchiveEvent(ctx, event, participants, plan))

	got, err := repo.GetPayoutPlan(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, got.ID)
	assert.Equal(t, model.EventTypePool, got.Type)
	require.Len(t, got.Entries, 3)
	assert.Equal(t, int64(1), got.Entries[0].UserID)
	assert.Equal(t, 10.0, got.Entries[0].Amount)
	assert.Equal(t, 30.0, got.Total())

	_, err = repo.GetPayoutPlan(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestArchiveRepository_RankRewardsRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArchiveRepository(pool)
	ctx := context.Background()

	event, participants, plan := archivedFixture()
	event.Type = model.EventTypeRank
	event.RankRewards = []float64{50, 30, 20}
	event.TotalReward = 100
	plan.Type = model.EventTypeRank

	require.NoError(t, repo.ArchiveEvent(ctx, event, participants, plan))

	got, err := repo.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventTypeRank, got.Type)
	assert.Equal(t, []float64{50, 30, 20}, got.RankRewards)
}

func TestArchiveRepository_ListGroupEvents(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArchiveRepository(pool)
	ctx := context.Background()

	first, participants, plan := archivedFixture()
	require.NoError(t, repo.ArchiveEvent(ctx, first, participants, plan))

	second, _, _ := archivedFixture()
	second.StartTime = first.EndTime
	second.EndTime = first.EndTime.Add(time.Hour)
	require.NoError(t, repo.ArchiveEvent(ctx, second, nil, nil))

	// Other group's event must not show up.
	other, _, _ := archivedFixture()
	other.GroupID = 200
	require.NoError(t, repo.ArchiveEvent(ctx, other, nil, nil))

	events, err := repo.ListGroupEvents(ctx, 100, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, second.ID, events[0].ID)
	assert.Equal(t, first.ID, events[1].ID)
}

func TestArchiveRepository_GetUserTotals(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewArchiveRepository(pool)
	ctx := context.Background()

	event, participants, plan := archivedFixture()
	require.NoError(t, repo.ArchiveEvent(ctx, event, participants, plan))

	points, paid, err := repo.GetUserTotals(ctx, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, 6.0, points)
	assert.Equal(t, 10.0, paid)

	// Unknown user sums to zero.
	points, paid, err = repo.GetUserTotals(ctx, 100, 42)
	require.NoError(t, err)
	assert.Zero(t, points)
	assert.Zero(t, paid)
}
