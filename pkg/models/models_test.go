package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierForScore_Boundaries(t *testing.T) {
	assert.Equal(t, TierTrusted, TierForScore(100))
	assert.Equal(t, TierTrusted, TierForScore(80), "80 is inclusive")
	assert.Equal(t, TierNeutral, TierForScore(79.99))
	assert.Equal(t, TierNeutral, TierForScore(50), "50 is inclusive")
	assert.Equal(t, TierSuspicious, TierForScore(49.99))
	assert.Equal(t, TierSuspicious, TierForScore(0))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-12))
	assert.Equal(t, 100.0, Clamp(140))
	assert.Equal(t, 63.5, Clamp(63.5))
}

func TestRoleBonus_UnknownRoleIsZero(t *testing.T) {
	assert.Equal(t, 50.0, RoleBonus(RoleOwner))
	assert.Equal(t, 0.0, RoleBonus(Role("vip")))
}

func TestMemberSnapshot_Derived(t *testing.T) {
	m := &MemberSnapshot{MessageCount: 200, MediaCount: 50, WarnCount: 2, MuteCount: 1, BanCount: 1}
	assert.Equal(t, 0.25, m.MediaRatio())
	assert.Equal(t, 9, m.WeightedViolations())

	empty := &MemberSnapshot{}
	assert.Equal(t, 0.0, empty.MediaRatio(), "no messages means no ratio")
}

func TestJSONColumns_RoundTrip(t *testing.T) {
	factors := JSONFloat64Map{"trust": 20.5, "moderation_history": 25}
	v, err := factors.Value()
	require.NoError(t, err)

	var decoded JSONFloat64Map
	require.NoError(t, decoded.Scan(v))
	assert.Equal(t, factors, decoded)

	recs := JSONStringArray{"spotlight_candidate", "loyalty_reward"}
	v, err = recs.Value()
	require.NoError(t, err)

	var decodedRecs JSONStringArray
	require.NoError(t, decodedRecs.Scan(v))
	assert.Equal(t, recs, decodedRecs)

	var fromNil JSONStringArray
	require.NoError(t, fromNil.Scan(nil))
	assert.Nil(t, fromNil)
}
