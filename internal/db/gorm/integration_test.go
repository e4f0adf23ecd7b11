package gorm

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildkeeper/insight/internal/trust"
	"github.com/guildkeeper/insight/pkg/models"
)

// memberDirectory is a fixed membership source for integration tests.
type memberDirectory struct {
	members map[int64]*models.MemberSnapshot
}

func (d *memberDirectory) GetMember(ctx context.Context, groupID, userID int64) (*models.MemberSnapshot, error) {
	m, ok := d.members[userID]
	if !ok {
		return nil, models.ErrMemberNotFound
	}
	return m, nil
}

func (d *memberDirectory) ListMembers(ctx context.Context, groupID int64) ([]*models.MemberSnapshot, error) {
	out := make([]*models.MemberSnapshot, 0, len(d.members))
	for _, m := range d.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// TestIntegration_TrustLifecycle runs the trust service against the real
// store: recalculation, events, clamping, trend windows, and the report.
func TestIntegration_TrustLifecycle(t *testing.T) {
	store := testStore(t)
	trustStore := NewTrustStore(store)
	directory := &memberDirectory{members: map[int64]*models.MemberSnapshot{
		100: {
			GroupID:      1,
			UserID:       100,
			MessageCount: 150,
			MediaCount:   60,
			StreakDays:   10,
			XP:           650,
			Level:        6,
			Role:         models.RoleMember,
			JoinedAt:     time.Now().Add(-120 * 24 * time.Hour),
		},
	}}
	svc := trust.NewService(trustStore, directory, zerolog.Nop())
	ctx := context.Background()

	// Initial recalculation lands mid 70s and records one history row.
	score, err := svc.CalculateTrustScore(ctx, 1, 100, false)
	require.NoError(t, err)
	assert.InDelta(t, 75.9, score, 0.2)

	entries, err := trustStore.RecentHistory(ctx, 1, 100, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "recalculation", entries[0].EventType)
	assert.Contains(t, entries[0].Factors, "moderation_history")

	// Idempotence: immediate recalculation writes nothing new.
	again, err := svc.CalculateTrustScore(ctx, 1, 100, false)
	require.NoError(t, err)
	assert.Equal(t, score, again)
	entries, err = trustStore.RecentHistory(ctx, 1, 100, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Events move the projection and the trail together.
	ev, err := svc.ProcessEvent(ctx, 1, 100, models.EventWarnReceived, models.EventData{Key: "warn-1"})
	require.NoError(t, err)
	assert.Equal(t, -15.0, ev.Delta)

	current, exists, err := trustStore.CurrentScore(ctx, 1, 100)
	require.NoError(t, err)
	require.True(t, exists)
	assert.InDelta(t, score-15, current, 0.001)

	// Sum property: the 7-day trend equals the sum of recorded deltas.
	change7d, err := trustStore.ChangeSince(ctx, 1, 100, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	var want float64
	entries, err = trustStore.RecentHistory(ctx, 1, 100, 50)
	require.NoError(t, err)
	for _, e := range entries {
		want += e.Delta
	}
	assert.InDelta(t, want, change7d, 0.001)

	// Report view.
	report, err := svc.BuildReport(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, current, report.CurrentScore)
	assert.Equal(t, models.TierForScore(current), report.Tier)
	assert.Len(t, report.RecentEvents, 2)
}

// TestIntegration_ConcurrentEventsSameMember verifies that concurrent
// deltas for one member all land; none may be silently dropped by a
// read-modify-write race.
func TestIntegration_ConcurrentEventsSameMember(t *testing.T) {
	store := testStore(t)
	trustStore := NewTrustStore(store)
	directory := &memberDirectory{members: map[int64]*models.MemberSnapshot{}}
	svc := trust.NewService(trustStore, directory, zerolog.Nop())
	ctx := context.Background()

	const events = 20
	var wg sync.WaitGroup
	errs := make(chan error, events)
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.ProcessEvent(ctx, 1, 100, models.EventMessageSent, models.EventData{})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	score, _, err := trustStore.CurrentScore(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 70.0, score, "all 20 +1 deltas applied on top of 50")

	entries, err := trustStore.RecentHistory(ctx, 1, 100, 50)
	require.NoError(t, err)
	assert.Len(t, entries, events)
}

// TestIntegration_ConcurrentDuplicateDeliveries races several deliveries
// of the same event key. However they interleave, exactly one may apply;
// the rest must come back as duplicate no-ops, never as storage errors.
func TestIntegration_ConcurrentDuplicateDeliveries(t *testing.T) {
	store := testStore(t)
	trustStore := NewTrustStore(store)
	svc := trust.NewService(trustStore, &memberDirectory{members: map[int64]*models.MemberSnapshot{}}, zerolog.Nop())
	ctx := context.Background()

	type outcome struct {
		ev  *models.TrustEvent
		err error
	}
	const deliveries = 10
	var wg sync.WaitGroup
	results := make(chan outcome, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev, err := svc.ProcessEvent(ctx, 1, 100, models.EventWarnReceived, models.EventData{Key: "warn-race"})
			results <- outcome{ev: ev, err: err}
		}()
	}
	wg.Wait()
	close(results)

	applied := 0
	for res := range results {
		require.NoError(t, res.err)
		if !res.ev.Duplicate {
			applied++
		}
	}
	assert.Equal(t, 1, applied)

	score, _, err := trustStore.CurrentScore(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 35.0, score)

	entries, err := trustStore.RecentHistory(ctx, 1, 100, 50)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// TestIntegration_BanFromNeutralClampsToZero is the canonical event
// correctness check.
func TestIntegration_BanFromNeutralClampsToZero(t *testing.T) {
	store := testStore(t)
	trustStore := NewTrustStore(store)
	svc := trust.NewService(trustStore, &memberDirectory{members: map[int64]*models.MemberSnapshot{}}, zerolog.Nop())
	ctx := context.Background()

	ev, err := svc.ProcessEvent(ctx, 1, 500, models.EventBanReceived, models.EventData{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, ev.NewScore)
	assert.Equal(t, -50.0, ev.Delta)

	entries, err := trustStore.RecentHistory(ctx, 1, 500, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, -50.0, entries[0].Delta)
	assert.Equal(t, 0.0, entries[0].NewScore)
}
