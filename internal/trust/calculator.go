// Package trust implements per-member trust score calculation and
// event-driven score updates.
package trust

import (
	"math"
	"time"

	"github.com/guildkeeper/insight/pkg/models"
)

// Fixed category weights for the six sub-factors. They sum to 1.0, so a
// member scoring 50 on every sub-factor lands exactly on the neutral base.
const (
	weightMessageQuality = 0.20
	weightConsistency    = 0.15
	weightEngagement     = 0.20
	weightModeration     = 0.25
	weightAccountAge     = 0.10
	weightProfile        = 0.10
)

// Calculator computes trust scores from membership snapshots.
type Calculator struct {
	config *models.TrustConfig
}

// NewCalculator creates a calculator for the given group config.
// A nil config falls back to the built-in defaults.
func NewCalculator(config *models.TrustConfig) *Calculator {
	if config == nil {
		config = models.DefaultTrustConfig(0)
	}
	return &Calculator{config: config}
}

// ScoreComponents is the per-sub-factor breakdown of a trust score.
// Each sub-factor is independently normalized to roughly 0-100.
type ScoreComponents struct {
	MessageQuality      float64 `json:"message_quality"`
	Consistency         float64 `json:"consistency"`
	Engagement          float64 `json:"engagement"`
	ModerationHistory   float64 `json:"moderation_history"`
	AccountAge          float64 `json:"account_age"`
	ProfileCompleteness float64 `json:"profile_completeness"`
	FinalScore          float64 `json:"final_score"`
}

// FactorMap returns the breakdown as a map for history persistence.
func (c ScoreComponents) FactorMap() models.JSONFloat64Map {
	return models.JSONFloat64Map{
		"message_quality":      c.MessageQuality,
		"consistency":          c.Consistency,
		"engagement":           c.Engagement,
		"moderation_history":   c.ModerationHistory,
		"account_age":          c.AccountAge,
		"profile_completeness": c.ProfileCompleteness,
	}
}

// Score computes the composite 0-100 trust score for a member at the
// given time. Calculate delegates to Components.
func (c *Calculator) Score(m *models.MemberSnapshot, now time.Time) float64 {
	return c.Components(m, now).FinalScore
}

// Components computes the full sub-factor breakdown.
//
// The composite formula anchors on the neutral base of 50: each
// sub-factor's deviation from 50 is scaled by its configured weight and
// its fixed category weight, summed, and the result clamped to [0, 100].
func (c *Calculator) Components(m *models.MemberSnapshot, now time.Time) ScoreComponents {
	comp := ScoreComponents{
		MessageQuality:      c.messageQuality(m),
		Consistency:         c.consistency(m, now),
		Engagement:          c.engagement(m),
		ModerationHistory:   c.moderationHistory(m),
		AccountAge:          c.accountAge(m, now),
		ProfileCompleteness: c.profileCompleteness(m),
	}

	sum := weightMessageQuality * c.config.MessageWeight * (comp.MessageQuality - models.NeutralScore)
	sum += weightConsistency * c.config.ConsistencyWeight * (comp.Consistency - models.NeutralScore)
	sum += weightEngagement * c.config.EngagementWeight * (comp.Engagement - models.NeutralScore)
	sum += weightModeration * c.config.ModerationWeight * (comp.ModerationHistory - models.NeutralScore)
	sum += weightAccountAge * (comp.AccountAge - models.NeutralScore)
	sum += weightProfile * (comp.ProfileCompleteness - models.NeutralScore)

	comp.FinalScore = models.Clamp(models.NeutralScore + sum)
	return comp
}

// messageQuality saturates at 70 on volume, plus up to +20 for the
// fraction of messages carrying media.
func (c *Calculator) messageQuality(m *models.MemberSnapshot) float64 {
	volume := math.Min(float64(m.MessageCount)*0.5, 70)
	mediaBonus := math.Min(m.MediaRatio()*20, 20)
	return volume + mediaBonus
}

// consistency is half capped streak length, half the streak-to-tenure ratio.
func (c *Calculator) consistency(m *models.MemberSnapshot, now time.Time) float64 {
	streakHalf := math.Min(float64(m.StreakDays)*2, 50)

	days := daysSince(m.JoinedAt, now)
	ratioHalf := 0.0
	if days > 0 {
		ratio := math.Min(float64(m.StreakDays)/days, 1.0)
		ratioHalf = ratio * 50
	}
	return streakHalf + ratioHalf
}

// engagement is XP/10 capped at 100 plus a level bonus capped at 20,
// with the total capped at 100.
func (c *Calculator) engagement(m *models.MemberSnapshot) float64 {
	xpScore := math.Min(float64(m.XP)/10, 100)
	levelBonus := math.Min(float64(m.Level)*2, 20)
	return math.Min(xpScore+levelBonus, 100)
}

// moderationHistory is a step function on the weighted violation count.
func (c *Calculator) moderationHistory(m *models.MemberSnapshot) float64 {
	switch v := m.WeightedViolations(); {
	case v == 0:
		return 100
	case v <= 2:
		return 80
	case v <= 5:
		return 60
	case v <= 10:
		return 40
	default:
		return 20
	}
}

// accountAge steps through 20/40/60, then grows linearly from 80 past
// 90 days, capped at 100.
func (c *Calculator) accountAge(m *models.MemberSnapshot, now time.Time) float64 {
	switch days := daysSince(m.JoinedAt, now); {
	case days < 7:
		return 20
	case days < 30:
		return 40
	case days < 90:
		return 60
	default:
		return math.Min(80+(days-90)*0.1, 100)
	}
}

// profileCompleteness starts at 50 with bonuses for a custom title,
// accumulated XP, and level, capped at 100.
func (c *Calculator) profileCompleteness(m *models.MemberSnapshot) float64 {
	score := 50.0
	if m.CustomTitle != "" {
		score += 20
	}
	if m.XP > 100 {
		score += 20
	}
	if m.Level > 5 {
		score += 10
	}
	return math.Min(score, 100)
}

func daysSince(t time.Time, now time.Time) float64 {
	days := now.Sub(t).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}
