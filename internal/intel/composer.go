// Package intel composes cross-module intelligence profiles and the
// decision objects derived from them.
package intel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/guildkeeper/insight/internal/signals"
	"github.com/guildkeeper/insight/pkg/models"
)

// DefaultStaleness is how long a stored profile stays fresh before the
// next access triggers recalculation.
const DefaultStaleness = time.Hour

// activityWindow is the trailing window the activity signal counts
// messages over.
const activityWindow = 7 * 24 * time.Hour

// ProfileStore is the persistence interface the composer needs.
// Implemented by db/gorm.IntelligenceStore.
type ProfileStore interface {
	GetOrCreateConfig(ctx context.Context, groupID int64) (*models.IntelligenceConfig, error)
	GetProfile(ctx context.Context, groupID, userID int64) (*models.MemberIntelligence, bool, error)
	UpsertProfile(ctx context.Context, profile *models.MemberIntelligence) error
}

// TrustScorer provides the trust signal. Implemented by trust.Service.
type TrustScorer interface {
	CalculateTrustScore(ctx context.Context, groupID, userID int64, force bool) (float64, error)
}

// Composer calculates and caches composite member intelligence profiles.
type Composer struct {
	store     ProfileStore
	trust     TrustScorer
	sources   signals.Sources
	staleness time.Duration
	group     singleflight.Group
	log       zerolog.Logger
	now       func() time.Time
}

// NewComposer creates a composer. A zero staleness falls back to
// DefaultStaleness.
func NewComposer(store ProfileStore, trust TrustScorer, sources signals.Sources, staleness time.Duration, log zerolog.Logger) *Composer {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Composer{
		store:     store,
		trust:     trust,
		sources:   sources,
		staleness: staleness,
		log:       log.With().Str("component", "intel").Logger(),
		now:       time.Now,
	}
}

// CalculateMemberIntelligence returns the member's composite profile,
// recalculating when the stored one is stale or recalculation is forced.
// Concurrent recalculations of the same member are coalesced; the upsert
// is idempotent either way since the computation is deterministic over
// the same inputs.
func (c *Composer) CalculateMemberIntelligence(ctx context.Context, groupID, userID int64, force bool) (*models.MemberIntelligence, error) {
	if !force {
		profile, found, err := c.store.GetProfile(ctx, groupID, userID)
		if err != nil {
			return nil, err
		}
		if found && c.now().Sub(profile.CalculatedAt) < c.staleness {
			return profile, nil
		}
	}

	key := fmt.Sprintf("%d:%d", groupID, userID)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.recalculate(ctx, groupID, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.MemberIntelligence), nil
}

// recalculate pulls all six signals, normalizes them, derives the
// influence scores and tiers, and persists the result.
func (c *Composer) recalculate(ctx context.Context, groupID, userID int64) (*models.MemberIntelligence, error) {
	cfg, err := c.store.GetOrCreateConfig(ctx, groupID)
	if err != nil {
		return nil, err
	}

	member, err := c.sources.Members.GetMember(ctx, groupID, userID)
	if err != nil && !errors.Is(err, models.ErrMemberNotFound) {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if member == nil {
		member = &models.MemberSnapshot{GroupID: groupID, UserID: userID, Role: models.RoleMember}
	}

	trustScore, err := c.trust.CalculateTrustScore(ctx, groupID, userID, false)
	if err != nil {
		return nil, fmt.Errorf("trust signal: %w", err)
	}

	reputation, err := c.sources.ReputationOrDefault(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("reputation signal: %w", err)
	}
	balance, err := c.sources.BalanceOrDefault(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("economy signal: %w", err)
	}
	badges, err := c.sources.BadgeCountOrDefault(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("badge signal: %w", err)
	}
	activity, err := c.sources.ActivityOrDefault(ctx, groupID, userID, activityWindow)
	if err != nil {
		return nil, fmt.Errorf("activity signal: %w", err)
	}

	p := &models.MemberIntelligence{
		GroupID:         groupID,
		UserID:          userID,
		CalculatedAt:    c.now(),
		TrustScore:      trustScore,
		XPScore:         math.Min(float64(member.XP)/10, 100),
		ReputationScore: normalizeReputation(reputation),
		ActivityScore:   math.Min(float64(activity), 100),
		EconomyScore:    normalizeEconomy(balance, cfg.EconomyCeiling),
		BadgeScore:      math.Min(float64(badges)*5, 100),
	}

	p.Factors = models.JSONFloat64Map{
		"trust":      p.TrustScore * cfg.TrustWeight,
		"xp":         p.XPScore * cfg.XPWeight,
		"reputation": p.ReputationScore * cfg.ReputationWeight,
		"activity":   p.ActivityScore * cfg.ActivityWeight,
		"economy":    p.EconomyScore * cfg.EconomyWeight,
		"badges":     p.BadgeScore * cfg.BadgeWeight,
	}

	p.ModerationInfluence = moderationInfluence(p, member)
	p.VisibilityBoost = visibilityBoost(p)
	p.PrivilegeLevel = privilegeLevel(p, member.Role)

	p.TrustTier = models.TierForScore(p.TrustScore)
	p.EngagementTier = engagementTier(p)
	p.ActivityTier = activityTier(p.ActivityScore)
	p.ReputationTier = reputationTier(p.ReputationScore)

	p.Recommendations = recommendations(p, member)

	if err := c.store.UpsertProfile(ctx, p); err != nil {
		return nil, err
	}

	c.log.Debug().
		Int64("group", groupID).
		Int64("user", userID).
		Str("trust_tier", string(p.TrustTier)).
		Float64("visibility", p.VisibilityBoost).
		Msg("profile recalculated")

	return p, nil
}

// normalizeReputation maps the signed -100..100 reputation into 0-100.
func normalizeReputation(score float64) float64 {
	return models.Clamp((score + 100) / 2)
}

// normalizeEconomy maps a balance linearly up to the "very rich" ceiling.
func normalizeEconomy(balance, ceiling float64) float64 {
	if ceiling <= 0 || balance <= 0 {
		return 0
	}
	return math.Min(balance/ceiling*100, 100)
}

// moderationInfluence derives the -1..1 leniency signal from trust,
// reputation, and the member's infraction record.
func moderationInfluence(p *models.MemberIntelligence, m *models.MemberSnapshot) float64 {
	penalty := math.Min(0.7, 0.05*float64(m.WarnCount)+0.1*float64(m.MuteCount)+0.2*float64(m.BanCount))
	influence := 0.4*p.TrustScore/100 + 0.3*p.ReputationScore/100 - penalty
	return math.Max(-1, math.Min(1, influence))
}

// visibilityBoost derives the 0..1 ranking signal.
func visibilityBoost(p *models.MemberIntelligence) float64 {
	boost := 0.3*p.ActivityScore/100 + 0.3*p.ReputationScore/100 + 0.2*p.TrustScore/100 + 0.2*p.BadgeScore/100
	return math.Max(0, math.Min(1, boost))
}

// privilegeLevel buckets overall standing into 0-5.
func privilegeLevel(p *models.MemberIntelligence, role models.Role) int {
	mean := (p.TrustScore + p.XPScore + p.ReputationScore + p.ActivityScore) / 4
	switch standing := mean + models.RoleBonus(role); {
	case standing >= 90:
		return 5
	case standing >= 75:
		return 4
	case standing >= 60:
		return 3
	case standing >= 40:
		return 2
	case standing >= 20:
		return 1
	default:
		return 0
	}
}

func engagementTier(p *models.MemberIntelligence) models.EngagementTier {
	switch score := 0.6*p.ActivityScore + 0.4*p.ReputationScore; {
	case score >= 75:
		return models.EngagementHigh
	case score >= 40:
		return models.EngagementAverage
	default:
		return models.EngagementLow
	}
}

func activityTier(score float64) models.ActivityTier {
	switch {
	case score >= 80:
		return models.ActivityVeryActive
	case score >= 40:
		return models.ActivityRegular
	default:
		return models.ActivityInactive
	}
}

func reputationTier(score float64) models.ReputationTier {
	switch {
	case score >= 65:
		return models.ReputationPositive
	case score >= 35:
		return models.ReputationNeutral
	default:
		return models.ReputationNegative
	}
}

// recommendations evaluates the fixed rule list in insertion order.
// Multiple rules may fire.
func recommendations(p *models.MemberIntelligence, m *models.MemberSnapshot) models.JSONStringArray {
	var recs models.JSONStringArray
	if p.TrustTier == models.TierSuspicious {
		recs = append(recs, "enable_enhanced_monitoring", "flag_for_review")
	}
	if p.EngagementTier == models.EngagementLow && p.ActivityTier == models.ActivityInactive {
		recs = append(recs, "re_engagement_campaign")
	}
	if p.TrustTier == models.TierTrusted && p.EngagementTier == models.EngagementHigh {
		recs = append(recs, "spotlight_candidate", "mentor_candidate")
	}
	if p.ModerationInfluence < -0.5 {
		recs = append(recs, "moderation_intervention")
	}
	if m.StreakDays >= 30 {
		recs = append(recs, "loyalty_reward")
	}
	return recs
}
