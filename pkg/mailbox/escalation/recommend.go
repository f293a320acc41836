package escalation

// Recommendations returns operator advice for a utilization percentage.
func Recommendations(utilizationPercent float64) []string {
	switch {
	case utilizationPercent > 90:
		return []string{
			"CRITICAL: storage is nearly full, run an emergency cleanup",
			"Reduce retention periods by 50% for non-critical categories",
			"Upgrade the mailbox plan for more storage",
			"Archive important messages to external storage",
		}
	case utilizationPercent > 80:
		return []string{
			"WARNING: storage usage is high",
			"Clean up promotional and automated messages",
			"Reduce retention for low-priority categories to 7 days",
		}
	case utilizationPercent > 70:
		return []string{
			"Schedule a monthly cleanup",
			"Archive old transfer confirmations",
		}
	default:
		return nil
	}
}
