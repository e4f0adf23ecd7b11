package models

import "time"

// Role is the member's standing within a group as reported by the
// membership collaborator.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

// RoleBonus returns the privilege-level bonus points for a role.
func RoleBonus(r Role) float64 {
	switch r {
	case RoleOwner:
		return 50
	case RoleAdmin:
		return 40
	case RoleModerator:
		return 30
	default:
		return 0
	}
}

// MemberSnapshot is the read-only membership record the engine consumes.
// The membership collaborator owns the underlying data; the engine never
// writes any of these fields.
type MemberSnapshot struct {
	GroupID      int64     `json:"group_id"`
	UserID       int64     `json:"user_id"`
	WarnCount    int       `json:"warn_count"`
	MuteCount    int       `json:"mute_count"`
	BanCount     int       `json:"ban_count"`
	MessageCount int64     `json:"message_count"`
	MediaCount   int64     `json:"media_count"`
	XP           int64     `json:"xp"`
	Level        int       `json:"level"`
	StreakDays   int       `json:"streak_days"`
	JoinedAt     time.Time `json:"joined_at"`
	Role         Role      `json:"role"`
	CustomTitle  string    `json:"custom_title,omitempty"`
	Banned       bool      `json:"banned"`
}

// MediaRatio returns the fraction of messages that include media.
func (m *MemberSnapshot) MediaRatio() float64 {
	if m.MessageCount <= 0 {
		return 0
	}
	return float64(m.MediaCount) / float64(m.MessageCount)
}

// WeightedViolations returns the moderation-history severity count
// (warns + 2x mutes + 5x bans).
func (m *MemberSnapshot) WeightedViolations() int {
	return m.WarnCount + 2*m.MuteCount + 5*m.BanCount
}
