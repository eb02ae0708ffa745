package bot

import (
	"fmt"
	"strings"
	"time"

	"freshrss_filter/internal/model"
	"freshrss_filter/internal/status"
	"freshrss_filter/internal/storage"
)

const timeFormat = "2006-01-02 15:04 UTC"

// FormatSummary formats a finished run for a notification.
func FormatSummary(s model.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scan finished: %d of %d items reviewed\n", s.Reviewed(), s.Total)

	lines := []struct {
		label string
		n     int
	}{
		{"marked read", s.MarkedRead},
		{"labeled", s.Labeled},
		{"deleted", s.Deleted},
		{"would act (dry run)", s.WouldAct},
		{"kept", s.Kept},
		{"already reviewed", s.SkippedExists},
		{"errors", s.Errors},
	}
	for _, l := range lines {
		if l.n > 0 {
			fmt.Fprintf(&b, "\n%s: %d", l.label, l.n)
		}
	}
	return b.String()
}

// FormatStatus formats the current state, store totals and next run.
func FormatStatus(snap status.Snapshot, counts storage.Counts, next time.Time) string {
	var b strings.Builder
	if snap.Running {
		fmt.Fprintf(&b, "Scan in progress: %d/%d items\n", snap.Done, snap.Total)
	} else {
		b.WriteString("Idle\n")
	}

	if snap.Last != nil {
		fmt.Fprintf(&b, "\nLast run (%s):\n%s\n", snap.Last.FinishedAt.UTC().Format(timeFormat), snap.Last)
	} else {
		b.WriteString("\nNo run finished yet.\n")
	}

	fmt.Fprintf(&b, "\nReviewed items: %d, ads: %d", counts.Total, counts.Ads)
	if !next.IsZero() {
		fmt.Fprintf(&b, "\nNext run: %s", next.UTC().Format(timeFormat))
	}
	return b.String()
}

// FormatReviewList formats ad verdicts, newest first.
func FormatReviewList(reviews []model.Review) string {
	if len(reviews) == 0 {
		return "No ads caught yet."
	}
	var b strings.Builder
	b.WriteString("Recent ads:\n")
	for _, r := range reviews {
		fmt.Fprintf(&b, "\n#%s %s (%.0f%%)", r.ItemID, r.Title, r.Confidence*100)
	}
	return b.String()
}

// FormatReview formats the details of one review.
func FormatReview(r *model.Review) string {
	var b strings.Builder
	verdict := "not an ad"
	if r.IsAd {
		verdict = "ad"
	}
	fmt.Fprintf(&b, "#%s %s\n", r.ItemID, r.Title)
	if r.URL != "" {
		fmt.Fprintf(&b, "%s\n", r.URL)
	}
	fmt.Fprintf(&b, "\nVerdict: %s (confidence %.2f)\n", verdict, r.Confidence)
	if r.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", r.Reason)
	}
	fmt.Fprintf(&b, "Reviewed: %s", r.ReviewedAt.UTC().Format(timeFormat))
	return b.String()
}
