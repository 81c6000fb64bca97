package core

import "fmt"

// String formats the issue the way operators see it: "Line 3: SKU is required."
func (i ValidationIssue) String() string {
	if i.Line <= ReportLevelLine {
		return i.Message
	}
	return fmt.Sprintf("Line %d: %s", i.Line, i.Message)
}

// Messages returns every issue formatted for display.
func (r ValidationReport) Messages() []string {
	out := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		out[i] = issue.String()
	}
	return out
}

// Preview returns at most limit formatted issues and the number left out.
// The report itself always keeps the full list.
func (r ValidationReport) Preview(limit int) ([]string, int) {
	msgs := r.Messages()
	if limit < 0 || len(msgs) <= limit {
		return msgs, 0
	}
	return msgs[:limit], len(msgs) - limit
}

// Summarize tallies outcomes by status.
func Summarize(outcomes []ReconciliationOutcome) BatchSummary {
	s := BatchSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// String renders the tally for logs and the CLI.
func (s BatchSummary) String() string {
	return fmt.Sprintf("%d rows: %d succeeded, %d failed, %d skipped",
		s.Total, s.Succeeded, s.Failed, s.Skipped)
}
