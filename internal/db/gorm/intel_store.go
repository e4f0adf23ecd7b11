package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/guildkeeper/insight/pkg/models"
)

// IntelligenceStore persists intelligence configs and composite member
// profiles. Implements intel.ProfileStore.
type IntelligenceStore struct {
	store *Store
}

// NewIntelligenceStore creates an intelligence store over the shared connection.
func NewIntelligenceStore(store *Store) *IntelligenceStore {
	return &IntelligenceStore{store: store}
}

// GetOrCreateConfig returns the group's intelligence config, inserting
// the documented defaults on first access.
func (s *IntelligenceStore) GetOrCreateConfig(ctx context.Context, groupID int64) (*models.IntelligenceConfig, error) {
	var row IntelligenceConfig
	err := s.store.DB.WithContext(ctx).First(&row, "group_id = ?", groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = toIntelConfigRow(models.DefaultIntelligenceConfig(groupID))
		row.UpdatedAtEpoch = time.Now().UnixMilli()
		err = s.store.DB.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row).Error
		if err == nil {
			err = s.store.DB.WithContext(ctx).First(&row, "group_id = ?", groupID).Error
		}
	}
	if err != nil {
		return nil, fmt.Errorf("intelligence config: %w", err)
	}
	return toIntelConfigModel(&row), nil
}

// UpdateConfig overwrites the group's intelligence config.
func (s *IntelligenceStore) UpdateConfig(ctx context.Context, cfg *models.IntelligenceConfig) error {
	row := toIntelConfigRow(cfg)
	row.UpdatedAtEpoch = time.Now().UnixMilli()
	return s.store.DB.WithContext(ctx).Save(&row).Error
}

// GetProfile returns the stored profile, or found=false when the member
// has never been calculated.
func (s *IntelligenceStore) GetProfile(ctx context.Context, groupID, userID int64) (*models.MemberIntelligence, bool, error) {
	var row MemberIntelligence
	err := s.store.DB.WithContext(ctx).
		First(&row, "group_id = ? AND user_id = ?", groupID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("member intelligence: %w", err)
	}
	return toProfileModel(&row), true, nil
}

// UpsertProfile writes the profile, replacing any previous calculation.
// Last write wins between concurrent recalculations; the computation is
// deterministic over the same inputs so either result is valid.
func (s *IntelligenceStore) UpsertProfile(ctx context.Context, profile *models.MemberIntelligence) error {
	row := toProfileRow(profile)
	err := s.store.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func toIntelConfigRow(cfg *models.IntelligenceConfig) IntelligenceConfig {
	return IntelligenceConfig{
		GroupID:          cfg.GroupID,
		Enabled:          cfg.Enabled,
		TrustWeight:      cfg.TrustWeight,
		XPWeight:         cfg.XPWeight,
		ReputationWeight: cfg.ReputationWeight,
		ActivityWeight:   cfg.ActivityWeight,
		EconomyWeight:    cfg.EconomyWeight,
		BadgeWeight:      cfg.BadgeWeight,
		EconomyCeiling:   cfg.EconomyCeiling,
		SpotlightEnabled: cfg.SpotlightEnabled,
		ChallengeEnabled: cfg.ChallengeEnabled,
	}
}

func toIntelConfigModel(row *IntelligenceConfig) *models.IntelligenceConfig {
	return &models.IntelligenceConfig{
		GroupID:          row.GroupID,
		Enabled:          row.Enabled,
		TrustWeight:      row.TrustWeight,
		XPWeight:         row.XPWeight,
		ReputationWeight: row.ReputationWeight,
		ActivityWeight:   row.ActivityWeight,
		EconomyWeight:    row.EconomyWeight,
		BadgeWeight:      row.BadgeWeight,
		EconomyCeiling:   row.EconomyCeiling,
		SpotlightEnabled: row.SpotlightEnabled,
		ChallengeEnabled: row.ChallengeEnabled,
	}
}

func toProfileRow(p *models.MemberIntelligence) MemberIntelligence {
	return MemberIntelligence{
		GroupID:             p.GroupID,
		UserID:              p.UserID,
		CalculatedAtEpoch:   p.CalculatedAt.UnixMilli(),
		TrustScore:          p.TrustScore,
		XPScore:             p.XPScore,
		ReputationScore:     p.ReputationScore,
		ActivityScore:       p.ActivityScore,
		EconomyScore:        p.EconomyScore,
		BadgeScore:          p.BadgeScore,
		TrustTier:           string(p.TrustTier),
		EngagementTier:      string(p.EngagementTier),
		ReputationTier:      string(p.ReputationTier),
		ActivityTier:        string(p.ActivityTier),
		ModerationInfluence: p.ModerationInfluence,
		VisibilityBoost:     p.VisibilityBoost,
		PrivilegeLevel:      p.PrivilegeLevel,
		Factors:             p.Factors,
		Recommendations:     p.Recommendations,
	}
}

func toProfileModel(row *MemberIntelligence) *models.MemberIntelligence {
	return &models.MemberIntelligence{
		GroupID:             row.GroupID,
		UserID:              row.UserID,
		CalculatedAt:        time.UnixMilli(row.CalculatedAtEpoch),
		TrustScore:          row.TrustScore,
		XPScore:             row.XPScore,
		ReputationScore:     row.ReputationScore,
		ActivityScore:       row.ActivityScore,
		EconomyScore:        row.EconomyScore,
		BadgeScore:          row.BadgeScore,
		TrustTier:           models.TrustTier(row.TrustTier),
		EngagementTier:      models.EngagementTier(row.EngagementTier),
		ReputationTier:      models.ReputationTier(row.ReputationTier),
		ActivityTier:        models.ActivityTier(row.ActivityTier),
		ModerationInfluence: row.ModerationInfluence,
		VisibilityBoost:     row.VisibilityBoost,
		PrivilegeLevel:      row.PrivilegeLevel,
		Factors:             row.Factors,
		Recommendations:     row.Recommendations,
	}
}
