package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"mercator-hq/mailsweep/pkg/mailbox"
	"mercator-hq/mailsweep/pkg/mailbox/lifecycle"
)

// StatsView renders storage statistics.
type StatsView struct {
	Stats mailbox.StorageStats `json:"stats"`
	Mode  mailbox.Mode         `json:"mode"`
}

// RenderText implements TextRenderer.
func (v StatsView) RenderText(w io.Writer) error {
	tw := newTabWriter(w)
	renderStats(tw, v.Stats)
	fmt.Fprintf(tw, "Mode:\t%s\n", v.Mode)
	return tw.Flush()
}

func renderStats(tw *tabwriter.Writer, s mailbox.StorageStats) {
	used := formatBytes(s.EstimatedUsedBytes)
	if !s.Exact {
		used += " (estimated)"
	}
	fmt.Fprintf(tw, "Messages:\t%s\n", humanize.Comma(s.TotalMessages))
	fmt.Fprintf(tw, "Used:\t%s\n", used)
	fmt.Fprintf(tw, "Quota:\t%s\n", formatBytes(s.QuotaBytes))
	fmt.Fprintf(tw, "Utilization:\t%.1f%%\n", s.UtilizationPercent)
	if !s.OldestMessage.IsZero() {
		fmt.Fprintf(tw, "Oldest message:\t%s\n", humanize.Time(s.OldestMessage))
	}
	if s.RecommendedCleanup {
		fmt.Fprintf(tw, "Cleanup:\trecommended\n")
	}
}

// CleanupView renders the result of one cleanup run.
type CleanupView struct {
	mailbox.CleanupResult
}

// RenderText implements TextRenderer.
func (v CleanupView) RenderText(w io.Writer) error {
	r := v.CleanupResult
	tw := newTabWriter(w)

	fmt.Fprintf(tw, "Run:\t%s (%s, %s mode)\n", r.ID, r.Trigger, r.Mode)
	if r.Category != "" {
		fmt.Fprintf(tw, "Category:\t%s\n", r.Category)
	}
	if r.Skipped {
		fmt.Fprintf(tw, "Result:\tskipped, mailbox below the warning threshold\n")
		return tw.Flush()
	}

	fmt.Fprintf(tw, "Deleted:\t%s messages (%s freed)\n", humanize.Comma(int64(r.DeletedCount)), formatBytes(r.StorageFreedBytes))
	fmt.Fprintf(tw, "Archived:\t%s messages\n", humanize.Comma(int64(r.ArchivedCount)))
	if r.ArchivalSuppressed {
		fmt.Fprintf(tw, "Archival:\tsuppressed in critical mode\n")
	}
	if r.Aborted {
		fmt.Fprintf(tw, "Result:\taborted\n")
	}
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(tw, "Duration:\t%s\n", d.Round(time.Millisecond))
	}

	for _, category := range sortedKeys(r.PerCategory) {
		fmt.Fprintf(tw, "  %s\t%d\n", category, r.PerCategory[category])
	}
	for _, n := range r.Notes {
		fmt.Fprintf(tw, "Note:\t%s\n", n)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(tw, "Error:\t%s\n", e)
	}
	return tw.Flush()
}

// HistoryView renders audited runs, one per line.
type HistoryView []mailbox.CleanupResult

// RenderText implements TextRenderer.
func (v HistoryView) RenderText(w io.Writer) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "No cleanup runs recorded.")
		return err
	}

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "STARTED\tTRIGGER\tMODE\tCATEGORY\tDELETED\tARCHIVED\tFREED\tERRORS")
	for _, r := range v {
		category := r.Category
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%d\n",
			r.StartTime.UTC().Format(time.RFC3339),
			r.Trigger, r.Mode, category,
			r.DeletedCount, r.ArchivedCount, formatBytes(r.StorageFreedBytes), len(r.Errors),
		)
	}
	return tw.Flush()
}

// PoliciesView renders the retention policy table.
type PoliciesView []mailbox.RetentionPolicy

// RenderText implements TextRenderer.
func (v PoliciesView) RenderText(w io.Writer) error {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "CATEGORY\tRETENTION\tPRIORITY\tARCHIVE\tDESCRIPTION")
	for _, p := range v {
		archive := "no"
		if p.ArchiveBeforeDelete {
			archive = "yes"
		}
		fmt.Fprintf(tw, "%s\t%dd\t%s\t%s\t%s\n", p.Category, p.RetentionDays, p.Priority, archive, p.Description)
	}
	return tw.Flush()
}

// ReportView renders a usage report.
type ReportView struct {
	lifecycle.Report
}

// RenderText implements TextRenderer.
func (v ReportView) RenderText(w io.Writer) error {
	r := v.Report
	tw := newTabWriter(w)

	renderStats(tw, r.Stats)
	fmt.Fprintf(tw, "Mode:\t%s (warning at %.0f%%, critical at %.0f%%)\n",
		r.Mode, r.WarningThreshold*100, r.CriticalThreshold*100)
	if r.LastCleanup != nil {
		fmt.Fprintf(tw, "Last cleanup:\t%s\n", humanize.Time(*r.LastCleanup))
	} else {
		fmt.Fprintf(tw, "Last cleanup:\tnever\n")
	}
	if r.NextRun != nil {
		fmt.Fprintf(tw, "Next run:\t%s\n", r.NextRun.Local().Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
	if len(r.Unregistered) > 0 {
		fmt.Fprintf(w, "\nCategories without a retention policy: %s\n", strings.Join(r.Unregistered, ", "))
	}
	if len(r.Policies) > 0 {
		fmt.Fprintln(w, "\nPolicies:")
		return PoliciesView(r.Policies).RenderText(w)
	}
	return nil
}

// CategorizeView renders the category assigned to a message.
type CategorizeView struct {
	Category string                   `json:"category"`
	Policy   *mailbox.RetentionPolicy `json:"policy,omitempty"`
}

// RenderText implements TextRenderer.
func (v CategorizeView) RenderText(w io.Writer) error {
	if v.Policy == nil {
		_, err := fmt.Fprintf(w, "%s (no retention policy, never cleaned up)\n", v.Category)
		return err
	}
	_, err := fmt.Fprintf(w, "%s (kept %d days, %s priority)\n", v.Category, v.Policy.RetentionDays, v.Policy.Priority)
	return err
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
