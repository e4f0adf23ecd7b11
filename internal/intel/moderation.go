package intel

import (
	"context"
	"fmt"

	"github.com/guildkeeper/insight/pkg/models"
)

// GetModerationContext converts the member's intelligence profile into
// concrete decision modifiers for the given action type. The caller
// multiplies its own thresholds and durations by the modifiers and
// honors the gating flags; the engine never performs the action.
func (c *Composer) GetModerationContext(ctx context.Context, groupID, userID int64, action models.ActionType) (*models.ModerationContext, error) {
	mc := &models.ModerationContext{
		WarnThresholdModifier: 1.0,
		MuteDurationModifier:  1.0,
	}

	cfg, err := c.store.GetOrCreateConfig(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		mc.Reasoning = append(mc.Reasoning, "intelligence disabled for group, neutral moderation context")
		return mc, nil
	}

	p, err := c.CalculateMemberIntelligence(ctx, groupID, userID, false)
	if err != nil {
		return nil, fmt.Errorf("member intelligence: %w", err)
	}

	if p.TrustTier == models.TierTrusted && p.ModerationInfluence > 0.5 {
		mc.ApplyLeniency = true
		mc.Reasoning = append(mc.Reasoning, "trusted member with strong positive influence")
	}
	if p.EngagementTier == models.EngagementHigh && p.ReputationScore > 70 {
		mc.ApplyLeniency = true
		mc.Reasoning = append(mc.Reasoning, "highly engaged member with strong reputation")
	}

	if mc.ApplyLeniency {
		mc.WarnThresholdModifier = 1.5 + 0.5*p.ModerationInfluence
		mc.MuteDurationModifier = 1.0 - p.ModerationInfluence
		if mc.MuteDurationModifier < 0.3 {
			mc.MuteDurationModifier = 0.3
		}
		mc.Reasoning = append(mc.Reasoning,
			fmt.Sprintf("leniency applied: warn threshold x%.2f, mute duration x%.2f", mc.WarnThresholdModifier, mc.MuteDurationModifier))

		if p.PrivilegeLevel >= 4 && p.TrustScore >= 90 {
			mc.AutoApprove = true
			mc.Reasoning = append(mc.Reasoning, "high privilege and trust, action auto-approved")
		}
	} else if p.TrustTier == models.TierSuspicious {
		mc.WarnThresholdModifier = 0.7
		mc.MuteDurationModifier = 1.3
		mc.Reasoning = append(mc.Reasoning, "suspicious trust tier, stricter thresholds")
	}

	severe := action == models.ActionBan || action == models.ActionMute
	if p.PrivilegeLevel >= 3 && severe {
		mc.ReviewRequired = true
		mc.Reasoning = append(mc.Reasoning, "privileged member, manual review required for "+string(action))
	}
	if p.TrustTier == models.TierSuspicious && severe {
		mc.NotifyAdmins = true
		mc.Reasoning = append(mc.Reasoning, "suspicious member, admins notified of "+string(action))
	}

	return mc, nil
}
