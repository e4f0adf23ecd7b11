package trust

import (
	"fmt"

	"github.com/guildkeeper/insight/pkg/models"
)

// eventDelta maps a behavioral event to its signed score delta and
// human-readable reason. The magnitude comes from the group config; the
// sign is fixed per event type. Unknown event types return ok=false and
// are treated as a silent no-op to keep the event surface
// forward-compatible.
func eventDelta(cfg *models.TrustConfig, eventType models.EventType, data models.EventData) (delta float64, reason string, ok bool) {
	switch eventType {
	case models.EventMessageSent:
		return 1, "message sent", true
	case models.EventQualityContribution:
		return cfg.QualityBonus, "quality contribution", true
	case models.EventHelpfulReaction:
		return cfg.ReactionBonus, "received a positive reaction", true
	case models.EventReportReceived:
		return -cfg.ReportPenalty, "reported by another member", true
	case models.EventWarnReceived:
		return -cfg.WarnPenalty, "warning received", true
	case models.EventMuteReceived:
		return -cfg.MutePenalty, "mute received", true
	case models.EventBanReceived:
		return -cfg.BanPenalty, "ban received", true
	case models.EventDailyStreak:
		reason = "daily activity streak"
		if data.StreakDays > 0 {
			reason = fmt.Sprintf("daily activity streak (%d days)", data.StreakDays)
		}
		return cfg.StreakBonus, reason, true
	case models.EventHelpfulAction:
		return cfg.HelpfulBonus, "helpful action", true
	case models.EventViolationResolved:
		// Partial recovery: half of the warn penalty magnitude.
		return cfg.WarnPenalty / 2, "violation resolved", true
	case models.EventMentorActivity:
		return cfg.MentorBonus, "mentor activity", true
	default:
		return 0, "", false
	}
}
