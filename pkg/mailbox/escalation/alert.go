package escalation

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// Alert builds the subject and body of a storage notification for mode.
func Alert(stats mailbox.StorageStats, mode mailbox.Mode) (subject, body string) {
	urgency := "NOTICE"
	switch mode {
	case mailbox.ModeCritical:
		urgency = "CRITICAL"
	case mailbox.ModeWarning:
		urgency = "WARNING"
	}

	subject = fmt.Sprintf("[%s] Mailbox storage at %.1f%%", urgency, stats.UtilizationPercent)

	var b strings.Builder
	fmt.Fprintf(&b, "Mailbox storage usage has reached %.1f%% of quota.\n\n", stats.UtilizationPercent)
	fmt.Fprintf(&b, "Used:     %s\n", humanize.IBytes(uint64(max(stats.EstimatedUsedBytes, 0))))
	fmt.Fprintf(&b, "Quota:    %s\n", humanize.IBytes(uint64(max(stats.QuotaBytes, 0))))
	fmt.Fprintf(&b, "Messages: %s\n", humanize.Comma(stats.TotalMessages))
	if !stats.OldestMessage.IsZero() {
		fmt.Fprintf(&b, "Oldest:   %s\n", stats.OldestMessage.Format("2006-01-02"))
	}

	switch mode {
	case mailbox.ModeCritical:
		b.WriteString("\nAn emergency cleanup is running with reduced retention periods. Archival is skipped.\n")
	case mailbox.ModeWarning:
		b.WriteString("\nA cleanup is running with the configured retention periods.\n")
	}

	if recs := Recommendations(stats.UtilizationPercent); len(recs) > 0 {
		b.WriteString("\nRecommended actions:\n")
		for _, r := range recs {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}

	return subject, b.String()
}
