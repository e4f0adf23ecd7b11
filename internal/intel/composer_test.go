package intel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/guildkeeper/insight/internal/signals"
	"github.com/guildkeeper/insight/pkg/models"
)

// profileStoreStub is an in-memory ProfileStore.
type profileStoreStub struct {
	mu      sync.Mutex
	config  *models.IntelligenceConfig
	profile *models.MemberIntelligence
	upserts int
}

func (s *profileStoreStub) GetOrCreateConfig(ctx context.Context, groupID int64) (*models.IntelligenceConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		s.config = models.DefaultIntelligenceConfig(groupID)
	}
	return s.config, nil
}

func (s *profileStoreStub) GetProfile(ctx context.Context, groupID, userID int64) (*models.MemberIntelligence, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil || s.profile.UserID != userID {
		return nil, false, nil
	}
	return s.profile, true, nil
}

func (s *profileStoreStub) UpsertProfile(ctx context.Context, profile *models.MemberIntelligence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = profile
	s.upserts++
	return nil
}

// trustStub returns one fixed trust score.
type trustStub struct{ score float64 }

func (t *trustStub) CalculateTrustScore(ctx context.Context, groupID, userID int64, force bool) (float64, error) {
	return t.score, nil
}

// signalStubs implements every collaborator interface from one value set.
type signalStubs struct {
	member     *models.MemberSnapshot
	reputation float64
	balance    float64
	badges     int
	activity   int
}

func (s *signalStubs) GetMember(ctx context.Context, groupID, userID int64) (*models.MemberSnapshot, error) {
	if s.member == nil {
		return nil, models.ErrMemberNotFound
	}
	return s.member, nil
}

func (s *signalStubs) ListMembers(ctx context.Context, groupID int64) ([]*models.MemberSnapshot, error) {
	if s.member == nil {
		return nil, nil
	}
	return []*models.MemberSnapshot{s.member}, nil
}

func (s *signalStubs) Score(ctx context.Context, groupID, userID int64) (float64, error) {
	return s.reputation, nil
}

func (s *signalStubs) Balance(ctx context.Context, groupID, userID int64) (float64, error) {
	return s.balance, nil
}

func (s *signalStubs) Count(ctx context.Context, groupID, userID int64) (int, error) {
	return s.badges, nil
}

func (s *signalStubs) MessageCount(ctx context.Context, groupID, userID int64, window time.Duration) (int, error) {
	return s.activity, nil
}

func sourcesFor(s *signalStubs) signals.Sources {
	return signals.Sources{
		Members:    s,
		Reputation: s,
		Economy:    s,
		Badges:     s,
		Activity:   s,
	}
}

type ComposerSuite struct {
	suite.Suite

	store *profileStoreStub
	now   time.Time
	ctx   context.Context
}

func (s *ComposerSuite) SetupTest() {
	s.store = &profileStoreStub{}
	s.now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	s.ctx = context.Background()
}

func (s *ComposerSuite) composer(trustScore float64, stubs *signalStubs, staleness time.Duration) *Composer {
	c := NewComposer(s.store, &trustStub{score: trustScore}, sourcesFor(stubs), staleness, zerolog.Nop())
	c.now = func() time.Time { return s.now }
	return c
}

func TestComposerSuite(t *testing.T) {
	suite.Run(t, new(ComposerSuite))
}

// ==== GOOD SCENARIOS ====

func (s *ComposerSuite) TestRecalculate_EstablishedMember() {
	stubs := &signalStubs{
		member:     &models.MemberSnapshot{GroupID: 1, UserID: 7, XP: 800, Role: models.RoleMember},
		reputation: 40,
		balance:    2500,
		badges:     4,
		activity:   60,
	}
	c := s.composer(82, stubs, 0)

	p, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)

	s.Equal(82.0, p.TrustScore)
	s.Equal(80.0, p.XPScore, "800 xp over the /10 scale")
	s.Equal(70.0, p.ReputationScore, "+40 signed maps to 70")
	s.Equal(60.0, p.ActivityScore)
	s.Equal(25.0, p.EconomyScore, "2500 of the 10000 ceiling")
	s.Equal(20.0, p.BadgeScore)

	s.InDelta(0.538, p.ModerationInfluence, 0.001)
	s.InDelta(0.594, p.VisibilityBoost, 0.001)
	s.Equal(3, p.PrivilegeLevel, "standing 73 lands in the 60-75 bucket")

	s.Equal(models.TierTrusted, p.TrustTier)
	s.Equal(models.EngagementAverage, p.EngagementTier, "0.6*60+0.4*70 = 64")
	s.Equal(models.ActivityRegular, p.ActivityTier)
	s.Equal(models.ReputationPositive, p.ReputationTier)

	s.InDelta(82*0.25, p.Factors["trust"], 0.001)
	s.InDelta(80*0.15, p.Factors["xp"], 0.001)
	s.Empty(p.Recommendations)
	s.Equal(1, s.store.upserts)
}

func (s *ComposerSuite) TestRecalculate_RoleBonusRaisesPrivilege() {
	stubs := &signalStubs{
		member:     &models.MemberSnapshot{GroupID: 1, UserID: 7, XP: 800, Role: models.RoleAdmin},
		reputation: 40,
		activity:   60,
	}
	c := s.composer(82, stubs, 0)

	p, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)
	s.Equal(5, p.PrivilegeLevel, "admin bonus pushes standing past 90")
}

func (s *ComposerSuite) TestSignalSaturation() {
	stubs := &signalStubs{
		member:     &models.MemberSnapshot{GroupID: 1, UserID: 7, XP: 5000},
		reputation: 100,
		balance:    50000,
		badges:     30,
		activity:   400,
	}
	c := s.composer(100, stubs, 0)

	p, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)
	s.Equal(100.0, p.XPScore)
	s.Equal(100.0, p.ReputationScore)
	s.Equal(100.0, p.ActivityScore)
	s.Equal(100.0, p.EconomyScore)
	s.Equal(100.0, p.BadgeScore)
	s.Equal(1.0, p.VisibilityBoost)
	s.InDelta(0.7, p.ModerationInfluence, 0.001)
}

func (s *ComposerSuite) TestStalenessCache() {
	stubs := &signalStubs{member: &models.MemberSnapshot{GroupID: 1, UserID: 7}}
	c := s.composer(50, stubs, time.Hour)

	first, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)
	s.Equal(1, s.store.upserts)

	// Within the window the stored profile is returned untouched.
	s.now = s.now.Add(30 * time.Minute)
	cached, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)
	s.Equal(first.CalculatedAt, cached.CalculatedAt)
	s.Equal(1, s.store.upserts)

	// Past the window the next access recalculates.
	s.now = s.now.Add(45 * time.Minute)
	fresh, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)
	s.True(fresh.CalculatedAt.After(first.CalculatedAt))
	s.Equal(2, s.store.upserts)
}

func (s *ComposerSuite) TestForceBypassesCache() {
	stubs := &signalStubs{member: &models.MemberSnapshot{GroupID: 1, UserID: 7}}
	c := s.composer(50, stubs, time.Hour)

	_, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)
	_, err = c.CalculateMemberIntelligence(s.ctx, 1, 7, true)
	s.Require().NoError(err)
	s.Equal(2, s.store.upserts)
}

// ==== RECOMMENDATION RULES ====

func (s *ComposerSuite) TestRecommendations_SuspiciousInactive() {
	stubs := &signalStubs{
		member:     &models.MemberSnapshot{GroupID: 1, UserID: 7, WarnCount: 3, MuteCount: 1},
		reputation: -60,
		activity:   10,
	}
	c := s.composer(25, stubs, 0)

	p, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)
	s.Equal(models.TierSuspicious, p.TrustTier)
	s.Equal(models.EngagementLow, p.EngagementTier)
	s.Equal(models.ActivityInactive, p.ActivityTier)
	s.Equal(models.JSONStringArray{
		"enable_enhanced_monitoring",
		"flag_for_review",
		"re_engagement_campaign",
	}, p.Recommendations)
}

func (s *ComposerSuite) TestRecommendations_TrustedHighEngagement() {
	stubs := &signalStubs{
		member:     &models.MemberSnapshot{GroupID: 1, UserID: 7, XP: 900, StreakDays: 45},
		reputation: 80,
		activity:   90,
	}
	c := s.composer(88, stubs, 0)

	p, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)
	s.Equal(models.EngagementHigh, p.EngagementTier)
	s.Contains(p.Recommendations, "spotlight_candidate")
	s.Contains(p.Recommendations, "mentor_candidate")
	s.Contains(p.Recommendations, "loyalty_reward")
}

func (s *ComposerSuite) TestRecommendations_NegativeInfluence() {
	stubs := &signalStubs{
		member:     &models.MemberSnapshot{GroupID: 1, UserID: 7, WarnCount: 2, MuteCount: 3, BanCount: 2, MessageCount: 500},
		reputation: -100,
		activity:   50,
	}
	c := s.composer(0, stubs, 0)

	p, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)
	s.InDelta(-0.7, p.ModerationInfluence, 0.001, "infraction penalty is capped at 0.7")
	s.Contains(p.Recommendations, "moderation_intervention")
}

// ==== EDGE CASES ====

func (s *ComposerSuite) TestMissingMember_NeutralProfile() {
	c := s.composer(models.NeutralScore, &signalStubs{}, 0)

	p, err := c.CalculateMemberIntelligence(s.ctx, 1, 404, false)
	s.Require().NoError(err)
	s.Equal(models.NeutralScore, p.TrustScore)
	s.Equal(0.0, p.XPScore)
	s.Equal(50.0, p.ReputationScore, "zero signed reputation is neutral")
	s.Equal(0.0, p.ActivityScore)
	s.Equal(1, p.PrivilegeLevel, "standing 25 from neutral trust and reputation")
	s.Equal(models.TierNeutral, p.TrustTier)
	s.Equal(models.EngagementLow, p.EngagementTier)
	s.InDelta(0.35, p.ModerationInfluence, 0.001)
	s.InDelta(0.25, p.VisibilityBoost, 0.001)
}

func (s *ComposerSuite) TestZeroEconomyCeilingScoresZero() {
	stubs := &signalStubs{
		member:  &models.MemberSnapshot{GroupID: 1, UserID: 7},
		balance: 9999,
	}
	s.store.config = models.DefaultIntelligenceConfig(1)
	s.store.config.EconomyCeiling = 0
	c := s.composer(50, stubs, 0)

	p, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
	s.Require().NoError(err)
	s.Equal(0.0, p.EconomyScore)
}

func (s *ComposerSuite) TestConcurrentRecalculationsCoalesce() {
	stubs := &signalStubs{member: &models.MemberSnapshot{GroupID: 1, UserID: 7}}
	c := s.composer(50, stubs, time.Hour)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := c.CalculateMemberIntelligence(s.ctx, 1, 7, false)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		s.Require().NoError(<-done)
	}
	p, found, err := s.store.GetProfile(s.ctx, 1, 7)
	s.Require().NoError(err)
	s.True(found)
	s.NotNil(p)
}
