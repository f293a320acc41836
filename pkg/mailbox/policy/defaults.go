package policy

import "mercator-hq/mailsweep/pkg/mailbox"

// Built-in category names.
const (
	CategoryTransferConfirmations = "transfer_confirmations"
	CategoryCBLApplications       = "cbl_applications"
	CategoryDisputeResolutions    = "dispute_resolutions"
	CategoryPlayerNotifications   = "player_notifications"
	CategoryCBLCommunications     = "cbl_communications"
	CategorySystemAlerts          = "system_alerts"
	CategoryPromotional           = "promotional"
	CategoryAutomatedReports      = "automated_reports"
	CategorySpamFiltered          = "spam_filtered"
	CategoryBounceNotifications   = "bounce_notifications"
)

// DefaultPolicies returns the built-in retention table.
func DefaultPolicies() []mailbox.RetentionPolicy {
	return []mailbox.RetentionPolicy{
		// Critical business mail, archived before deletion.
		{
			Category:            CategoryTransferConfirmations,
			RetentionDays:       90,
			Priority:            mailbox.PriorityHigh,
			ArchiveBeforeDelete: true,
			Description:         "Player transfer confirmations and related communications",
		},
		{
			Category:            CategoryCBLApplications,
			RetentionDays:       60,
			Priority:            mailbox.PriorityHigh,
			ArchiveBeforeDelete: true,
			Description:         "League applications and approvals",
		},
		{
			Category:            CategoryDisputeResolutions,
			RetentionDays:       120,
			Priority:            mailbox.PriorityHigh,
			ArchiveBeforeDelete: true,
			Description:         "Dispute resolution communications",
		},

		// Operational mail.
		{
			Category:      CategoryPlayerNotifications,
			RetentionDays: 30,
			Priority:      mailbox.PriorityMedium,
			Description:   "General player notifications and updates",
		},
		{
			Category:            CategoryCBLCommunications,
			RetentionDays:       45,
			Priority:            mailbox.PriorityMedium,
			ArchiveBeforeDelete: true,
			Description:         "League milestone and reward communications",
		},
		{
			Category:      CategorySystemAlerts,
			RetentionDays: 21,
			Priority:      mailbox.PriorityMedium,
			Description:   "System alerts and administrative notifications",
		},

		// Disposable mail.
		{
			Category:      CategoryPromotional,
			RetentionDays: 14,
			Priority:      mailbox.PriorityLow,
			Description:   "Promotional emails and marketing communications",
		},
		{
			Category:      CategoryAutomatedReports,
			RetentionDays: 7,
			Priority:      mailbox.PriorityLow,
			Description:   "Automated daily and weekly reports",
		},
		{
			Category:      CategorySpamFiltered,
			RetentionDays: 3,
			Priority:      mailbox.PriorityLow,
			Description:   "Spam and filtered emails",
		},
		{
			Category:      CategoryBounceNotifications,
			RetentionDays: 7,
			Priority:      mailbox.PriorityLow,
			Description:   "Email bounce and delivery failure notifications",
		},
	}
}
