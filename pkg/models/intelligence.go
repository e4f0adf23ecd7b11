package models

import "time"

// EngagementTier buckets combined activity/reputation engagement.
type EngagementTier string

const (
	EngagementHigh    EngagementTier = "high"
	EngagementAverage EngagementTier = "average"
	EngagementLow     EngagementTier = "low"
)

// ActivityTier buckets trailing-window message activity.
type ActivityTier string

const (
	ActivityVeryActive ActivityTier = "very_active"
	ActivityRegular    ActivityTier = "regular"
	ActivityInactive   ActivityTier = "inactive"
)

// ReputationTier buckets the normalized 0-100 reputation signal.
type ReputationTier string

const (
	ReputationPositive ReputationTier = "positive"
	ReputationNeutral  ReputationTier = "neutral"
	ReputationNegative ReputationTier = "negative"
)

// IntelligenceConfig holds per-group composite-profile tunables.
// One row per group, created lazily with DefaultIntelligenceConfig values.
type IntelligenceConfig struct {
	GroupID int64 `json:"group_id"`
	Enabled bool  `json:"enabled"`

	// Per-signal weights applied to the normalized 0-100 signal scores.
	TrustWeight      float64 `json:"trust_weight"`
	XPWeight         float64 `json:"xp_weight"`
	ReputationWeight float64 `json:"reputation_weight"`
	ActivityWeight   float64 `json:"activity_weight"`
	EconomyWeight    float64 `json:"economy_weight"`
	BadgeWeight      float64 `json:"badge_weight"`

	// EconomyCeiling is the balance at which the economy signal saturates.
	EconomyCeiling float64 `json:"economy_ceiling"`

	// Feature flags: whether the composite score influences selection.
	SpotlightEnabled bool `json:"spotlight_enabled"`
	ChallengeEnabled bool `json:"challenge_enabled"`
}

// DefaultIntelligenceConfig returns the documented default configuration.
func DefaultIntelligenceConfig(groupID int64) *IntelligenceConfig {
	return &IntelligenceConfig{
		GroupID:          groupID,
		Enabled:          true,
		TrustWeight:      0.25,
		XPWeight:         0.15,
		ReputationWeight: 0.20,
		ActivityWeight:   0.20,
		EconomyWeight:    0.10,
		BadgeWeight:      0.10,
		EconomyCeiling:   10000,
		SpotlightEnabled: true,
		ChallengeEnabled: true,
	}
}

// MemberIntelligence is the composite cross-module profile for one member,
// upserted by the composer and cached for the staleness window.
type MemberIntelligence struct {
	GroupID      int64     `json:"group_id"`
	UserID       int64     `json:"user_id"`
	CalculatedAt time.Time `json:"calculated_at"`

	// Normalized 0-100 signal scores.
	TrustScore      float64 `json:"trust_score"`
	XPScore         float64 `json:"xp_score"`
	ReputationScore float64 `json:"reputation_score"`
	ActivityScore   float64 `json:"activity_score"`
	EconomyScore    float64 `json:"economy_score"`
	BadgeScore      float64 `json:"badge_score"`

	// Tier classifications.
	TrustTier      TrustTier      `json:"trust_tier"`
	EngagementTier EngagementTier `json:"engagement_tier"`
	ReputationTier ReputationTier `json:"reputation_tier"`
	ActivityTier   ActivityTier   `json:"activity_tier"`

	// Derived influence scores.
	ModerationInfluence float64 `json:"moderation_influence"` // -1..1
	VisibilityBoost     float64 `json:"visibility_boost"`     // 0..1
	PrivilegeLevel      int     `json:"privilege_level"`      // 0-5

	// The six weighted factor contributions.
	Factors JSONFloat64Map `json:"factors,omitempty"`

	Recommendations JSONStringArray `json:"recommendations,omitempty"`
}

// ActionType identifies the moderation action a context is built for.
type ActionType string

const (
	ActionWarn ActionType = "warn"
	ActionMute ActionType = "mute"
	ActionBan  ActionType = "ban"
	ActionKick ActionType = "kick"
)

// ModerationContext holds the decision modifiers the moderation caller
// applies to its own thresholds and durations. The engine never performs
// the moderation action itself.
type ModerationContext struct {
	ApplyLeniency         bool     `json:"apply_leniency"`
	WarnThresholdModifier float64  `json:"warn_threshold_modifier"`
	MuteDurationModifier  float64  `json:"mute_duration_modifier"`
	AutoApprove           bool     `json:"auto_approve"`
	ReviewRequired        bool     `json:"review_required"`
	NotifyAdmins          bool     `json:"notify_admins"`
	Reasoning             []string `json:"reasoning"`
}

// SpotlightCandidate is one ranked entry of a spotlight shortlist.
type SpotlightCandidate struct {
	UserID  int64    `json:"user_id"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// ChallengeParticipant is one tier-balanced challenge selection entry.
type ChallengeParticipant struct {
	UserID int64          `json:"user_id"`
	Tier   EngagementTier `json:"tier"`
	Reason string         `json:"reason"`
}
