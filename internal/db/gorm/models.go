package gorm

import (
	"time"

	"gorm.io/gorm"

	"github.com/guildkeeper/insight/pkg/models"
)

// GORM models. Engine-owned tables only; membership, reputation, economy
// and badge records belong to their collaborator subsystems.

// TrustConfig holds per-group trust scoring tunables.
type TrustConfig struct {
	GroupID              int64 `gorm:"primaryKey;autoIncrement:false"`
	Enabled              bool  `gorm:"default:true"`
	MessageWeight        float64
	ConsistencyWeight    float64
	EngagementWeight     float64
	ModerationWeight     float64
	QualityBonus         float64
	ReactionBonus        float64
	ReportPenalty        float64
	WarnPenalty          float64
	MutePenalty          float64
	BanPenalty           float64
	StreakBonus          float64
	HelpfulBonus         float64
	MentorBonus          float64
	HighTrustThreshold   float64
	MediumTrustThreshold float64
	LowTrustThreshold    float64
	UpdatedAtEpoch       int64
}

func (TrustConfig) TableName() string { return "trust_configs" }

// TrustScoreHistory is the append-only audit trail. Rows are never
// updated or deleted.
type TrustScoreHistory struct {
	ID             int64                 `gorm:"primaryKey;autoIncrement"`
	GroupID        int64                 `gorm:"index:idx_history_member,priority:1;index:idx_history_key,unique,priority:1;not null"`
	UserID         int64                 `gorm:"index:idx_history_member,priority:2;index:idx_history_key,unique,priority:2;not null"`
	EventType      string                `gorm:"type:text;not null"`
	EventKey       string                `gorm:"type:text;index:idx_history_key,unique,priority:3;not null"`
	OldScore       float64               `gorm:"not null"`
	NewScore       float64               `gorm:"not null"`
	Delta          float64               `gorm:"not null"`
	Reason         string                `gorm:"type:text"`
	Factors        models.JSONFloat64Map `gorm:"type:text"`
	CreatedAtEpoch int64                 `gorm:"index:idx_history_member,priority:3,sort:desc;not null"`
}

func (TrustScoreHistory) TableName() string { return "trust_score_history" }

// BeforeCreate hook to ensure timestamps are set.
func (h *TrustScoreHistory) BeforeCreate(tx *gorm.DB) error {
	if h.CreatedAtEpoch == 0 {
		h.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// MemberTrust is the mutable projection of the current score,
// denormalized for fast reads. Always equals the most recent
// history new_score for that member.
type MemberTrust struct {
	GroupID int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID  int64 `gorm:"primaryKey;autoIncrement:false"`
	// No column default: a default would make GORM omit a legitimate
	// zero score from the INSERT and store the default instead.
	Score          float64 `gorm:"not null"`
	UpdatedAtEpoch int64
}

func (MemberTrust) TableName() string { return "member_trust" }

// IntelligenceConfig holds per-group composite-profile tunables.
type IntelligenceConfig struct {
	GroupID          int64 `gorm:"primaryKey;autoIncrement:false"`
	Enabled          bool  `gorm:"default:true"`
	TrustWeight      float64
	XPWeight         float64
	ReputationWeight float64
	ActivityWeight   float64
	EconomyWeight    float64
	BadgeWeight      float64
	EconomyCeiling   float64
	SpotlightEnabled bool `gorm:"default:true"`
	ChallengeEnabled bool `gorm:"default:true"`
	UpdatedAtEpoch   int64
}

func (IntelligenceConfig) TableName() string { return "intelligence_configs" }

// MemberIntelligence is the upserted composite profile per member.
type MemberIntelligence struct {
	GroupID             int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID              int64 `gorm:"primaryKey;autoIncrement:false"`
	CalculatedAtEpoch   int64 `gorm:"index;not null"`
	TrustScore          float64
	XPScore             float64
	ReputationScore     float64
	ActivityScore       float64
	EconomyScore        float64
	BadgeScore          float64
	TrustTier           string `gorm:"type:text"`
	EngagementTier      string `gorm:"type:text"`
	ReputationTier      string `gorm:"type:text"`
	ActivityTier        string `gorm:"type:text"`
	ModerationInfluence float64
	VisibilityBoost     float64
	PrivilegeLevel      int
	Factors             models.JSONFloat64Map  `gorm:"type:text"`
	Recommendations     models.JSONStringArray `gorm:"type:text"`
}

func (MemberIntelligence) TableName() string { return "member_intelligence" }
