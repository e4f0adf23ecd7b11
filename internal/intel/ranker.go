package intel

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/guildkeeper/insight/internal/signals"
	"github.com/guildkeeper/insight/pkg/models"
)

// spotlightMinMessages is the activity floor for spotlight eligibility.
const spotlightMinMessages = 10

// Profiler is the profile access the ranker needs. Implemented by Composer.
type Profiler interface {
	CalculateMemberIntelligence(ctx context.Context, groupID, userID int64, force bool) (*models.MemberIntelligence, error)
}

// Ranker produces tier-balanced shortlists from intelligence profiles
// across a group's population.
type Ranker struct {
	store    ProfileStore
	profiles Profiler
	members  signals.MembershipSource
	log      zerolog.Logger
}

// NewRanker creates a ranker.
func NewRanker(store ProfileStore, profiles Profiler, members signals.MembershipSource, log zerolog.Logger) *Ranker {
	return &Ranker{
		store:    store,
		profiles: profiles,
		members:  members,
		log:      log.With().Str("component", "ranker").Logger(),
	}
}

// GetSpotlightCandidates returns the top members to highlight, ordered
// by descending spotlight score. When intelligence weighting is disabled
// the selection degrades to raw message-count order.
func (r *Ranker) GetSpotlightCandidates(ctx context.Context, groupID int64, limit int) ([]models.SpotlightCandidate, error) {
	cfg, err := r.store.GetOrCreateConfig(ctx, groupID)
	if err != nil {
		return nil, err
	}

	members, err := r.members.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	eligible := make([]*models.MemberSnapshot, 0, len(members))
	for _, m := range members {
		if m.Banned || m.MessageCount <= spotlightMinMessages {
			continue
		}
		eligible = append(eligible, m)
	}

	if !cfg.Enabled || !cfg.SpotlightEnabled {
		return basicSpotlight(eligible, limit), nil
	}

	candidates := make([]models.SpotlightCandidate, 0, len(eligible))
	for _, m := range eligible {
		p, err := r.profiles.CalculateMemberIntelligence(ctx, groupID, m.UserID, false)
		if err != nil {
			return nil, fmt.Errorf("profile for %d: %w", m.UserID, err)
		}

		score := 100*p.VisibilityBoost + 0.3*p.ActivityScore + 0.2*p.ReputationScore + 0.1*p.BadgeScore
		if p.ActivityTier == models.ActivityVeryActive {
			score += 10
		}
		candidates = append(candidates, models.SpotlightCandidate{
			UserID:  m.UserID,
			Score:   score,
			Reasons: spotlightReasons(p),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].UserID < candidates[j].UserID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// GetChallengeParticipants selects up to limit members balanced across
// engagement tiers: each tier contributes up to limit/3 slots, filled in
// member-id order so the selection is reproducible.
func (r *Ranker) GetChallengeParticipants(ctx context.Context, groupID int64, challengeType string, limit int) ([]models.ChallengeParticipant, error) {
	cfg, err := r.store.GetOrCreateConfig(ctx, groupID)
	if err != nil {
		return nil, err
	}

	members, err := r.members.ListMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	eligible := make([]*models.MemberSnapshot, 0, len(members))
	for _, m := range members {
		if m.Banned {
			continue
		}
		eligible = append(eligible, m)
	}

	if !cfg.Enabled || !cfg.ChallengeEnabled {
		return basicParticipants(eligible, limit), nil
	}

	quota := limit / 3
	if quota == 0 {
		quota = 1
	}

	byTier := map[models.EngagementTier][]models.ChallengeParticipant{}
	for _, m := range eligible {
		p, err := r.profiles.CalculateMemberIntelligence(ctx, groupID, m.UserID, false)
		if err != nil {
			return nil, fmt.Errorf("profile for %d: %w", m.UserID, err)
		}
		byTier[p.EngagementTier] = append(byTier[p.EngagementTier], models.ChallengeParticipant{
			UserID: m.UserID,
			Tier:   p.EngagementTier,
			Reason: fmt.Sprintf("%s engagement representation for %s challenge", p.EngagementTier, challengeType),
		})
	}

	var selected []models.ChallengeParticipant
	for _, tier := range []models.EngagementTier{models.EngagementHigh, models.EngagementAverage, models.EngagementLow} {
		taken := 0
		for _, participant := range byTier[tier] {
			if taken >= quota || len(selected) >= limit {
				break
			}
			selected = append(selected, participant)
			taken++
		}
	}

	r.log.Debug().
		Int64("group", groupID).
		Str("challenge", challengeType).
		Int("selected", len(selected)).
		Msg("challenge participants selected")

	return selected, nil
}

// basicSpotlight is the degraded selection: raw message volume only.
func basicSpotlight(eligible []*models.MemberSnapshot, limit int) []models.SpotlightCandidate {
	sorted := sortByMessages(eligible)
	candidates := make([]models.SpotlightCandidate, 0, limit)
	for _, m := range sorted {
		if len(candidates) >= limit {
			break
		}
		candidates = append(candidates, models.SpotlightCandidate{
			UserID:  m.UserID,
			Score:   float64(m.MessageCount),
			Reasons: []string{"active member"},
		})
	}
	return candidates
}

// basicParticipants is the degraded selection: raw message volume only.
func basicParticipants(eligible []*models.MemberSnapshot, limit int) []models.ChallengeParticipant {
	sorted := sortByMessages(eligible)
	participants := make([]models.ChallengeParticipant, 0, limit)
	for _, m := range sorted {
		if len(participants) >= limit {
			break
		}
		participants = append(participants, models.ChallengeParticipant{
			UserID: m.UserID,
			Reason: "selected by message volume",
		})
	}
	return participants
}

func sortByMessages(members []*models.MemberSnapshot) []*models.MemberSnapshot {
	sorted := make([]*models.MemberSnapshot, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MessageCount != sorted[j].MessageCount {
			return sorted[i].MessageCount > sorted[j].MessageCount
		}
		return sorted[i].UserID < sorted[j].UserID
	})
	return sorted
}

func spotlightReasons(p *models.MemberIntelligence) []string {
	var reasons []string
	if p.ActivityTier == models.ActivityVeryActive {
		reasons = append(reasons, "very active recently")
	}
	if p.ModerationInfluence > 0.5 {
		reasons = append(reasons, "positive community influence")
	}
	if p.BadgeScore >= 50 {
		reasons = append(reasons, "badge achiever")
	}
	if p.TrustTier == models.TierTrusted {
		reasons = append(reasons, "trusted member")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "consistent contributor")
	}
	return reasons
}
