package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/guildkeeper/insight/internal/trust"
	"github.com/guildkeeper/insight/pkg/models"
)

// TrustStore persists trust configs, the score projection, and the
// append-only history. Implements trust.Store.
type TrustStore struct {
	store *Store
}

// NewTrustStore creates a trust store over the shared connection.
func NewTrustStore(store *Store) *TrustStore {
	return &TrustStore{store: store}
}

// GetOrCreateConfig returns the group's trust config, inserting the
// documented defaults on first access.
func (s *TrustStore) GetOrCreateConfig(ctx context.Context, groupID int64) (*models.TrustConfig, error) {
	var row TrustConfig
	err := s.store.DB.WithContext(ctx).First(&row, "group_id = ?", groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = toConfigRow(models.DefaultTrustConfig(groupID))
		row.UpdatedAtEpoch = time.Now().UnixMilli()
		// Clause guards the lazy-create race: first writer wins, both
		// callers read back identical defaults.
		err = s.store.DB.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row).Error
		if err == nil {
			err = s.store.DB.WithContext(ctx).First(&row, "group_id = ?", groupID).Error
		}
	}
	if err != nil {
		return nil, fmt.Errorf("trust config: %w", err)
	}
	return toConfigModel(&row), nil
}

// UpdateConfig overwrites the group's trust config. Used by the admin
// configuration caller only.
func (s *TrustStore) UpdateConfig(ctx context.Context, cfg *models.TrustConfig) error {
	row := toConfigRow(cfg)
	row.UpdatedAtEpoch = time.Now().UnixMilli()
	return s.store.DB.WithContext(ctx).Save(&row).Error
}

// CurrentScore returns the projection score and whether a row exists.
func (s *TrustStore) CurrentScore(ctx context.Context, groupID, userID int64) (float64, bool, error) {
	var row MemberTrust
	err := s.store.DB.WithContext(ctx).
		First(&row, "group_id = ? AND user_id = ?", groupID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("member trust: %w", err)
	}
	return row.Score, true, nil
}

// ApplyDelta applies a signed delta to the member's score inside one
// transaction: read the projection under lock, clamp, write projection
// and history. A previously recorded event key short-circuits into a
// duplicate no-op, which is how retried deliveries stay harmless.
func (s *TrustStore) ApplyDelta(ctx context.Context, groupID, userID int64, delta float64, eventType models.EventType, eventKey, reason string, factors models.JSONFloat64Map) (*trust.ApplyResult, error) {
	res := &trust.ApplyResult{}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		var seen int64
		err := tx.Model(&TrustScoreHistory{}).
			Where("group_id = ? AND user_id = ? AND event_key = ?", groupID, userID, eventKey).
			Count(&seen).Error
		if err != nil {
			return fmt.Errorf("dedup check: %w", err)
		}
		if seen > 0 {
			res.Duplicate = true
			return nil
		}

		if err := s.ensureProjection(tx, groupID, userID); err != nil {
			return err
		}
		old, err := s.lockedScore(tx, groupID, userID)
		if err != nil {
			return err
		}

		newScore := models.Clamp(old + delta)
		return s.writeScore(tx, groupID, userID, old, newScore, string(eventType), eventKey, reason, factors, res)
	})
	// A concurrent delivery of the same key passes the count check and
	// then trips the unique history index instead; that interleaving is
	// still a duplicate, not a storage failure.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &trust.ApplyResult{Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetScore overwrites the projection with a recalculated value and
// records the change in history.
func (s *TrustStore) SetScore(ctx context.Context, groupID, userID int64, newScore float64, reason string, factors models.JSONFloat64Map) (*trust.ApplyResult, error) {
	res := &trust.ApplyResult{}
	err := s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.ensureProjection(tx, groupID, userID); err != nil {
			return err
		}
		old, err := s.lockedScore(tx, groupID, userID)
		if err != nil {
			return err
		}
		return s.writeScore(tx, groupID, userID, old, models.Clamp(newScore), "recalculation", uuid.NewString(), reason, factors, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ensureProjection inserts the neutral projection row when the member has
// never been scored. Without a row, the locked read below has nothing to
// lock on PostgreSQL: two concurrent first events would both read the
// neutral default and the upsert would drop one of the deltas.
func (s *TrustStore) ensureProjection(tx *gorm.DB, groupID, userID int64) error {
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&MemberTrust{
			GroupID:        groupID,
			UserID:         userID,
			Score:          models.NeutralScore,
			UpdatedAtEpoch: time.Now().UnixMilli(),
		}).Error
	if err != nil {
		return fmt.Errorf("ensure projection: %w", err)
	}
	return nil
}

// lockedScore reads the current projection score, taking a row lock on
// PostgreSQL so concurrent events for the same member serialize. On
// SQLite the store runs on a single connection, which serializes the
// transactions themselves.
func (s *TrustStore) lockedScore(tx *gorm.DB, groupID, userID int64) (float64, error) {
	query := tx
	if s.store.isPostgres() {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row MemberTrust
	err := query.First(&row, "group_id = ? AND user_id = ?", groupID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NeutralScore, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lock member trust: %w", err)
	}
	return row.Score, nil
}

// writeScore upserts the projection and appends the history row.
func (s *TrustStore) writeScore(tx *gorm.DB, groupID, userID int64, old, newScore float64, eventType, eventKey, reason string, factors models.JSONFloat64Map, res *trust.ApplyResult) error {
	now := time.Now().UnixMilli()

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "group_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"score": newScore, "updated_at_epoch": now}),
	}).Create(&MemberTrust{GroupID: groupID, UserID: userID, Score: newScore, UpdatedAtEpoch: now}).Error
	if err != nil {
		return fmt.Errorf("update projection: %w", err)
	}

	entry := TrustScoreHistory{
		GroupID:   groupID,
		UserID:    userID,
		EventType: eventType,
		EventKey:  eventKey,
		OldScore:  old,
		NewScore:  newScore,
		Delta:     newScore - old,
		Reason:    reason,
		Factors:   factors,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	res.OldScore = old
	res.NewScore = newScore
	res.Delta = newScore - old
	return nil
}

// ChangeSince sums history deltas for the member since the cutoff.
func (s *TrustStore) ChangeSince(ctx context.Context, groupID, userID int64, since time.Time) (float64, error) {
	var sum float64
	err := s.store.DB.WithContext(ctx).
		Model(&TrustScoreHistory{}).
		Select("COALESCE(SUM(delta), 0)").
		Where("group_id = ? AND user_id = ? AND created_at_epoch >= ?", groupID, userID, since.UnixMilli()).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("sum deltas: %w", err)
	}
	return sum, nil
}

// RecentHistory returns the newest history rows, newest first.
func (s *TrustStore) RecentHistory(ctx context.Context, groupID, userID int64, limit int) ([]models.HistoryEntry, error) {
	var rows []TrustScoreHistory
	err := s.store.DB.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Order("created_at_epoch DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}

	entries := make([]models.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, models.HistoryEntry{
			GroupID:   r.GroupID,
			UserID:    r.UserID,
			EventType: r.EventType,
			EventKey:  r.EventKey,
			OldScore:  r.OldScore,
			NewScore:  r.NewScore,
			Delta:     r.Delta,
			Reason:    r.Reason,
			Factors:   r.Factors,
			CreatedAt: time.UnixMilli(r.CreatedAtEpoch),
		})
	}
	return entries, nil
}

func toConfigRow(cfg *models.TrustConfig) TrustConfig {
	return TrustConfig{
		GroupID:              cfg.GroupID,
		Enabled:              cfg.Enabled,
		MessageWeight:        cfg.MessageWeight,
		ConsistencyWeight:    cfg.ConsistencyWeight,
		EngagementWeight:     cfg.EngagementWeight,
		ModerationWeight:     cfg.ModerationWeight,
		QualityBonus:         cfg.QualityBonus,
		ReactionBonus:        cfg.ReactionBonus,
		ReportPenalty:        cfg.ReportPenalty,
		WarnPenalty:          cfg.WarnPenalty,
		MutePenalty:          cfg.MutePenalty,
		BanPenalty:           cfg.BanPenalty,
		StreakBonus:          cfg.StreakBonus,
		HelpfulBonus:         cfg.HelpfulBonus,
		MentorBonus:          cfg.MentorBonus,
		HighTrustThreshold:   cfg.HighTrustThreshold,
		MediumTrustThreshold: cfg.MediumTrustThreshold,
		LowTrustThreshold:    cfg.LowTrustThreshold,
	}
}

func toConfigModel(row *TrustConfig) *models.TrustConfig {
	return &models.TrustConfig{
		GroupID:              row.GroupID,
		Enabled:              row.Enabled,
		MessageWeight:        row.MessageWeight,
		ConsistencyWeight:    row.ConsistencyWeight,
		EngagementWeight:     row.EngagementWeight,
		ModerationWeight:     row.ModerationWeight,
		QualityBonus:         row.QualityBonus,
		ReactionBonus:        row.ReactionBonus,
		ReportPenalty:        row.ReportPenalty,
		WarnPenalty:          row.WarnPenalty,
		MutePenalty:          row.MutePenalty,
		BanPenalty:           row.BanPenalty,
		StreakBonus:          row.StreakBonus,
		HelpfulBonus:         row.HelpfulBonus,
		MentorBonus:          row.MentorBonus,
		HighTrustThreshold:   row.HighTrustThreshold,
		MediumTrustThreshold: row.MediumTrustThreshold,
		LowTrustThreshold:    row.LowTrustThreshold,
	}
}
