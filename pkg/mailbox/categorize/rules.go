package categorize

import "mercator-hq/mailsweep/pkg/mailbox/policy"

// DefaultRules returns the built-in rule list. Order matters.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "transfer-confirmation", Category: policy.CategoryTransferConfirmations, Field: FieldSubject, All: []string{"transfer", "confirm"}},
		{Name: "league-application", Category: policy.CategoryCBLApplications, Field: FieldSubject, All: []string{"cbl"}, Any: []string{"application", "apply"}},
		{Name: "dispute", Category: policy.CategoryDisputeResolutions, Field: FieldSubject, Any: []string{"dispute", "complaint"}},
		{Name: "league-milestone", Category: policy.CategoryCBLCommunications, Field: FieldSubject, Any: []string{"milestone", "reward"}},
		{Name: "player-notification", Category: policy.CategoryPlayerNotifications, Field: FieldSubject, Any: []string{"notification", "alert"}},
		{Name: "system-sender", Category: policy.CategorySystemAlerts, Field: FieldSender, Any: []string{"system", "admin"}},
		{Name: "periodic-report", Category: policy.CategoryAutomatedReports, Field: FieldSubject, All: []string{"report"}, Any: []string{"daily", "weekly"}},
		{Name: "bounce", Category: policy.CategoryBounceNotifications, Field: FieldSubject, Any: []string{"bounce", "delivery failed"}},
		{Name: "unsubscribe-footer", Category: policy.CategoryPromotional, Field: FieldBody, Any: []string{"unsubscribe"}},
		{Name: "promo-subject", Category: policy.CategoryPromotional, Field: FieldSubject, Any: []string{"promo"}},
	}
}
