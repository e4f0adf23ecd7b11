// Package models contains domain models for the insight engine.
package models

import (
	"errors"
	"time"
)

// ErrMemberNotFound is returned by report-style calls when the
// (group, user) membership does not exist. Scoring calls never return
// it; they fall back to the neutral default instead.
var ErrMemberNotFound = errors.New("member not found")

// NeutralScore is the trust score assigned when no behavioral data exists.
const NeutralScore = 50.0

// EventType identifies a behavioral event that moves a trust score.
type EventType string

const (
	EventMessageSent         EventType = "message_sent"
	EventQualityContribution EventType = "quality_contribution"
	EventHelpfulReaction     EventType = "helpful_reaction"
	EventReportReceived      EventType = "report_received"
	EventWarnReceived        EventType = "warn_received"
	EventMuteReceived        EventType = "mute_received"
	EventBanReceived         EventType = "ban_received"
	EventDailyStreak         EventType = "daily_streak"
	EventHelpfulAction       EventType = "helpful_action"
	EventViolationResolved   EventType = "violation_resolved"
	EventMentorActivity      EventType = "mentor_activity"
)

// TrustTier is a named bucket derived from thresholding a trust score.
type TrustTier string

const (
	TierTrusted    TrustTier = "trusted"
	TierNeutral    TrustTier = "neutral"
	TierSuspicious TrustTier = "suspicious"
)

// TierForScore classifies a 0-100 trust score.
func TierForScore(score float64) TrustTier {
	switch {
	case score >= 80:
		return TierTrusted
	case score >= 50:
		return TierNeutral
	default:
		return TierSuspicious
	}
}

// TrustConfig holds per-group trust scoring tunables. One row per group,
// created lazily with DefaultTrustConfig values on first access.
type TrustConfig struct {
	GroupID int64 `json:"group_id"`
	Enabled bool  `json:"enabled"`

	// Factor weight multipliers applied on top of the fixed category weights.
	MessageWeight     float64 `json:"message_weight"`
	ConsistencyWeight float64 `json:"consistency_weight"`
	EngagementWeight  float64 `json:"engagement_weight"`
	ModerationWeight  float64 `json:"moderation_weight"`

	// Per-event point deltas. Penalties are stored as positive magnitudes;
	// the event processor fixes the sign per event type.
	QualityBonus  float64 `json:"quality_bonus"`
	ReactionBonus float64 `json:"reaction_bonus"`
	ReportPenalty float64 `json:"report_penalty"`
	WarnPenalty   float64 `json:"warn_penalty"`
	MutePenalty   float64 `json:"mute_penalty"`
	BanPenalty    float64 `json:"ban_penalty"`
	StreakBonus   float64 `json:"streak_bonus"`
	HelpfulBonus  float64 `json:"helpful_bonus"`
	MentorBonus   float64 `json:"mentor_bonus"`

	// Bypass thresholds consumed by moderation callers.
	HighTrustThreshold   float64 `json:"high_trust_threshold"`
	MediumTrustThreshold float64 `json:"medium_trust_threshold"`
	LowTrustThreshold    float64 `json:"low_trust_threshold"`
}

// DefaultTrustConfig returns the documented default trust configuration.
func DefaultTrustConfig(groupID int64) *TrustConfig {
	return &TrustConfig{
		GroupID:              groupID,
		Enabled:              true,
		MessageWeight:        1.0,
		ConsistencyWeight:    1.0,
		EngagementWeight:     1.0,
		ModerationWeight:     1.0,
		QualityBonus:         5,
		ReactionBonus:        2,
		ReportPenalty:        10,
		WarnPenalty:          15,
		MutePenalty:          25,
		BanPenalty:           50,
		StreakBonus:          3,
		HelpfulBonus:         5,
		MentorBonus:          10,
		HighTrustThreshold:   80,
		MediumTrustThreshold: 60,
		LowTrustThreshold:    40,
	}
}

// EventData carries optional per-event context supplied by the caller.
type EventData struct {
	// Key deduplicates retried deliveries of the same real-world event.
	// When empty the engine generates one, which disables deduplication
	// for that event.
	Key string `json:"key,omitempty"`

	// StreakDays annotates daily_streak events (reason text only).
	StreakDays int `json:"streak_days,omitempty"`

	// Note is free-form caller context appended to the reason.
	Note string `json:"note,omitempty"`
}

// TrustEvent is the outcome of processing one behavioral event.
type TrustEvent struct {
	Type      EventType      `json:"type"`
	Key       string         `json:"key"`
	Delta     float64        `json:"delta"`
	OldScore  float64        `json:"old_score"`
	NewScore  float64        `json:"new_score"`
	Reason    string         `json:"reason"`
	Factors   JSONFloat64Map `json:"factors,omitempty"`
	Duplicate bool           `json:"duplicate,omitempty"`
}

// HistoryEntry is one row of the append-only trust score audit trail.
type HistoryEntry struct {
	GroupID   int64          `json:"group_id"`
	UserID    int64          `json:"user_id"`
	EventType string         `json:"event_type"`
	EventKey  string         `json:"event_key"`
	OldScore  float64        `json:"old_score"`
	NewScore  float64        `json:"new_score"`
	Delta     float64        `json:"delta"`
	Reason    string         `json:"reason"`
	Factors   JSONFloat64Map `json:"factors,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TrustReport is the user-facing view of a member's trust standing.
type TrustReport struct {
	GroupID         int64          `json:"group_id"`
	UserID          int64          `json:"user_id"`
	CurrentScore    float64        `json:"current_score"`
	PreviousScore   float64        `json:"previous_score"`
	Change7d        float64        `json:"change_7d"`
	Change30d       float64        `json:"change_30d"`
	Tier            TrustTier      `json:"tier"`
	RecentEvents    []HistoryEntry `json:"recent_events"`
	Factors         JSONFloat64Map `json:"factors,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// Clamp bounds a trust score to the valid [0, 100] range.
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
