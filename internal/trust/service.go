package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/guildkeeper/insight/internal/signals"
	"github.com/guildkeeper/insight/pkg/models"
)

// historyThreshold is the minimum absolute score change a non-forced
// recalculation must produce before a history row is written. Smaller
// drifts are absorbed silently to keep the audit trail readable.
const historyThreshold = 2.0

// recentEventLimit caps the history rows a report aggregates over.
const recentEventLimit = 50

// ApplyResult reports the outcome of an atomic score mutation.
type ApplyResult struct {
	OldScore  float64
	NewScore  float64
	Delta     float64
	Duplicate bool
}

// Store is the persistence interface the trust service needs. Implemented
// by db/gorm.TrustStore.
type Store interface {
	// GetOrCreateConfig returns the group's trust config, creating it
	// with defaults on first access.
	GetOrCreateConfig(ctx context.Context, groupID int64) (*models.TrustConfig, error)

	// CurrentScore returns the projection score and whether a row exists.
	CurrentScore(ctx context.Context, groupID, userID int64) (float64, bool, error)

	// ApplyDelta atomically applies a signed delta to the projection,
	// clamping to [0, 100], and appends a history row. A previously seen
	// event key makes the call a no-op with Duplicate set.
	ApplyDelta(ctx context.Context, groupID, userID int64, delta float64, eventType models.EventType, eventKey, reason string, factors models.JSONFloat64Map) (*ApplyResult, error)

	// SetScore atomically overwrites the projection with a recalculated
	// value and appends a history row recording the change.
	SetScore(ctx context.Context, groupID, userID int64, newScore float64, reason string, factors models.JSONFloat64Map) (*ApplyResult, error)

	// ChangeSince sums history deltas for the member since the cutoff.
	ChangeSince(ctx context.Context, groupID, userID int64, since time.Time) (float64, error)

	// RecentHistory returns the newest history rows, newest first.
	RecentHistory(ctx context.Context, groupID, userID int64, limit int) ([]models.HistoryEntry, error)
}

// Service is the trust score calculator and event processor.
type Service struct {
	store   Store
	members signals.MembershipSource
	log     zerolog.Logger
	now     func() time.Time
}

// NewService creates a trust service.
func NewService(store Store, members signals.MembershipSource, log zerolog.Logger) *Service {
	return &Service{
		store:   store,
		members: members,
		log:     log.With().Str("component", "trust").Logger(),
		now:     time.Now,
	}
}

// CalculateTrustScore recomputes the member's composite trust score from
// the current membership snapshot. A missing membership yields the
// neutral default without error. The projection and history are only
// written when the change clears the noise threshold or recalculation
// was forced.
func (s *Service) CalculateTrustScore(ctx context.Context, groupID, userID int64, force bool) (float64, error) {
	member, err := s.members.GetMember(ctx, groupID, userID)
	if errors.Is(err, models.ErrMemberNotFound) {
		return models.NeutralScore, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get member: %w", err)
	}

	cfg, err := s.store.GetOrCreateConfig(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("get trust config: %w", err)
	}

	current, exists, err := s.store.CurrentScore(ctx, groupID, userID)
	if err != nil {
		return 0, fmt.Errorf("current score: %w", err)
	}
	if !exists {
		current = models.NeutralScore
	}

	if !cfg.Enabled {
		return current, nil
	}

	comp := NewCalculator(cfg).Components(member, s.now())
	change := comp.FinalScore - current
	if !force && change < historyThreshold && change > -historyThreshold {
		return current, nil
	}

	res, err := s.store.SetScore(ctx, groupID, userID, comp.FinalScore, "recalculation", comp.FactorMap())
	if err != nil {
		return 0, fmt.Errorf("persist score: %w", err)
	}

	s.log.Debug().
		Int64("group", groupID).
		Int64("user", userID).
		Float64("old", res.OldScore).
		Float64("new", res.NewScore).
		Bool("forced", force).
		Msg("trust score recalculated")

	return res.NewScore, nil
}

// ProcessEvent maps a named behavioral event to a signed delta and
// applies it atomically to the member's trust score. Unknown event types
// produce a zero delta and no history write. Duplicate event keys are
// recorded no-ops.
func (s *Service) ProcessEvent(ctx context.Context, groupID, userID int64, eventType models.EventType, data models.EventData) (*models.TrustEvent, error) {
	cfg, err := s.store.GetOrCreateConfig(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("get trust config: %w", err)
	}

	event := &models.TrustEvent{Type: eventType, Key: data.Key}

	delta, reason, ok := eventDelta(cfg, eventType, data)
	if !ok {
		s.log.Debug().
			Str("event", string(eventType)).
			Int64("group", groupID).
			Int64("user", userID).
			Msg("ignoring unknown trust event type")
		return event, nil
	}
	if !cfg.Enabled || delta == 0 {
		return event, nil
	}
	if data.Note != "" {
		reason = reason + ": " + data.Note
	}
	if event.Key == "" {
		event.Key = uuid.NewString()
	}

	factors := models.JSONFloat64Map{string(eventType): delta}
	res, err := s.store.ApplyDelta(ctx, groupID, userID, delta, eventType, event.Key, reason, factors)
	if err != nil {
		return nil, fmt.Errorf("apply delta: %w", err)
	}

	event.Reason = reason
	event.Factors = factors
	event.Duplicate = res.Duplicate
	if res.Duplicate {
		s.log.Warn().
			Str("event", string(eventType)).
			Str("key", event.Key).
			Int64("group", groupID).
			Int64("user", userID).
			Msg("duplicate trust event ignored")
		return event, nil
	}

	event.OldScore = res.OldScore
	event.NewScore = res.NewScore
	event.Delta = res.Delta
	return event, nil
}

// BuildReport assembles the user-facing trust report. Unlike the scoring
// calls, a missing membership is surfaced as models.ErrMemberNotFound so
// the UI can say so.
func (s *Service) BuildReport(ctx context.Context, groupID, userID int64) (*models.TrustReport, error) {
	if _, err := s.members.GetMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, models.ErrMemberNotFound) {
			return nil, models.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	current, exists, err := s.store.CurrentScore(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("current score: %w", err)
	}
	if !exists {
		current = models.NeutralScore
	}

	now := s.now()
	change7d, err := s.store.ChangeSince(ctx, groupID, userID, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("7d change: %w", err)
	}
	change30d, err := s.store.ChangeSince(ctx, groupID, userID, now.Add(-30*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("30d change: %w", err)
	}

	events, err := s.store.RecentHistory(ctx, groupID, userID, recentEventLimit)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}

	report := &models.TrustReport{
		GroupID:       groupID,
		UserID:        userID,
		CurrentScore:  current,
		PreviousScore: current,
		Change7d:      change7d,
		Change30d:     change30d,
		Tier:          models.TierForScore(current),
		RecentEvents:  events,
	}
	if len(events) > 0 {
		report.PreviousScore = events[0].OldScore
		// The latest recalculation carries the full factor breakdown;
		// event rows only record their own contribution.
		for _, e := range events {
			if len(e.Factors) > 1 {
				report.Factors = e.Factors
				break
			}
		}
	}
	report.Recommendations = reportRecommendations(report)
	return report, nil
}

// reportRecommendations derives display hints from the report. Pure
// function of its inputs, evaluated in insertion order.
func reportRecommendations(r *models.TrustReport) []string {
	var recs []string
	if r.Tier == models.TierSuspicious {
		recs = append(recs, "review_recent_moderation_actions")
	}
	if r.Change7d < -10 {
		recs = append(recs, "investigate_score_drop")
	}
	if r.Tier == models.TierTrusted {
		recs = append(recs, "eligible_for_trusted_shortcuts")
	}
	if r.Change30d > 20 {
		recs = append(recs, "acknowledge_improvement")
	}
	return recs
}
