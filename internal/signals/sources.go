// Package signals defines the read-only collaborator interfaces the
// engine pulls behavioral signals through. Each collaborator subsystem
// owns its records; the engine only reads them and must tolerate their
// absence by falling back to neutral defaults.
package signals

import (
	"context"
	"errors"
	"time"

	"github.com/guildkeeper/insight/pkg/models"
)

// MembershipSource provides membership records.
type MembershipSource interface {
	// GetMember returns the membership snapshot for (group, user), or
	// models.ErrMemberNotFound when the membership does not exist.
	GetMember(ctx context.Context, groupID, userID int64) (*models.MemberSnapshot, error)

	// ListMembers returns all members of a group ordered by user id.
	// The ordering is part of the contract: the candidate ranker fills
	// tier quotas in iteration order and must be deterministic.
	ListMembers(ctx context.Context, groupID int64) ([]*models.MemberSnapshot, error)
}

// ReputationSource provides the signed reputation score, nominally -100..100.
type ReputationSource interface {
	Score(ctx context.Context, groupID, userID int64) (float64, error)
}

// EconomySource provides the current virtual-currency balance.
type EconomySource interface {
	Balance(ctx context.Context, groupID, userID int64) (float64, error)
}

// BadgeSource provides the achievement badge count.
type BadgeSource interface {
	Count(ctx context.Context, groupID, userID int64) (int, error)
}

// ActivitySource provides the message count within a trailing window.
type ActivitySource interface {
	MessageCount(ctx context.Context, groupID, userID int64, window time.Duration) (int, error)
}

// Sources bundles the collaborator accessors. Any field may be nil; the
// accessor methods below substitute the neutral default in that case and
// when the collaborator reports the record as missing.
type Sources struct {
	Members    MembershipSource
	Reputation ReputationSource
	Economy    EconomySource
	Badges     BadgeSource
	Activity   ActivitySource
}

// ReputationOrDefault returns the signed reputation score, defaulting to 0.
func (s Sources) ReputationOrDefault(ctx context.Context, groupID, userID int64) (float64, error) {
	if s.Reputation == nil {
		return 0, nil
	}
	score, err := s.Reputation.Score(ctx, groupID, userID)
	if errors.Is(err, models.ErrMemberNotFound) {
		return 0, nil
	}
	return score, err
}

// BalanceOrDefault returns the currency balance, defaulting to 0.
func (s Sources) BalanceOrDefault(ctx context.Context, groupID, userID int64) (float64, error) {
	if s.Economy == nil {
		return 0, nil
	}
	balance, err := s.Economy.Balance(ctx, groupID, userID)
	if errors.Is(err, models.ErrMemberNotFound) {
		return 0, nil
	}
	return balance, err
}

// BadgeCountOrDefault returns the badge count, defaulting to 0.
func (s Sources) BadgeCountOrDefault(ctx context.Context, groupID, userID int64) (int, error) {
	if s.Badges == nil {
		return 0, nil
	}
	count, err := s.Badges.Count(ctx, groupID, userID)
	if errors.Is(err, models.ErrMemberNotFound) {
		return 0, nil
	}
	return count, err
}

// ActivityOrDefault returns the trailing-window message count, defaulting to 0.
func (s Sources) ActivityOrDefault(ctx context.Context, groupID, userID int64, window time.Duration) (int, error) {
	if s.Activity == nil {
		return 0, nil
	}
	count, err := s.Activity.MessageCount(ctx, groupID, userID, window)
	if errors.Is(err, models.ErrMemberNotFound) {
		return 0, nil
	}
	return count, err
}
