// Package templates renders the HTML fragments returned to HTMX requests.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/stocksync/internal/core"
)

// IssuePreviewLimit is how many validation messages a fragment shows
// before collapsing the rest into a count.
const IssuePreviewLimit = 5

// ErrorAlert renders a user-facing error with its suggested action.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<p class="alert-message">%s</p>`, templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, `<p class="alert-action">%s</p>`, templ.EscapeString(action))
		}
		if code != "" {
			fmt.Fprintf(&b, `<span class="alert-code">%s</span>`, templ.EscapeString(code))
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ValidationSummary renders the validation result for a pending import.
// Valid reports get an apply button; invalid ones list the first few issues.
func ValidationSummary(sess core.ImportSession) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		report := sess.Report
		fmt.Fprintf(&b, `<div id="import-%s" class="import-report">`, templ.EscapeString(sess.ID))
		fmt.Fprintf(&b, `<h3>%s</h3>`, templ.EscapeString(sess.FileName))

		if report.Valid {
			fmt.Fprintf(&b, `<p class="report-valid">%d rows ready to import.</p>`, len(report.Rows))
			if !sess.Applied {
				fmt.Fprintf(&b,
					`<button hx-post="/api/imports/%s/apply" hx-target="#import-%s" hx-swap="outerHTML">Apply to catalog</button>`,
					templ.EscapeString(sess.ID), templ.EscapeString(sess.ID))
			}
		} else {
			shown, more := report.Preview(IssuePreviewLimit)
			fmt.Fprintf(&b, `<p class="report-invalid">%d issue(s) found. Fix the file and upload it again.</p>`, len(report.Issues))
			b.WriteString(`<ul class="issue-list">`)
			for _, msg := range shown {
				fmt.Fprintf(&b, `<li>%s</li>`, templ.EscapeString(msg))
			}
			if more > 0 {
				fmt.Fprintf(&b, `<li class="issue-more">... and %d more</li>`, more)
			}
			b.WriteString(`</ul>`)
		}

		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ApplyStarted renders the progress placeholder that subscribes to the
// SSE stream for an apply.
func ApplyStarted(importID string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		id := templ.EscapeString(importID)
		_, err := fmt.Fprintf(w,
			`<div id="import-%s" class="apply-progress" hx-ext="sse" sse-connect="/api/imports/%s/progress" sse-swap="progress">`+
				`<p>Applying stock changes...</p>`+
				`<button hx-post="/api/imports/%s/cancel" hx-swap="none">Cancel</button>`+
				`</div>`,
			id, id, id)
		return err
	})
}

// OutcomeList renders the per-SKU results of an apply plus the tally.
func OutcomeList(result *core.ApplyResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div id="import-%s" class="apply-result">`, templ.EscapeString(result.ImportID))
		fmt.Fprintf(&b, `<p class="summary">%s</p>`, templ.EscapeString(result.Summary.String()))
		b.WriteString(`<table class="outcomes"><thead><tr><th>Line</th><th>SKU</th><th>Status</th><th>Detail</th></tr></thead><tbody>`)
		for _, o := range result.Outcomes {
			detail := o.ErrorDetail
			if o.NewQuantity != nil {
				detail = fmt.Sprintf("New stock: %d", *o.NewQuantity)
			}
			fmt.Fprintf(&b, `<tr class="outcome-%s"><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				o.Status, o.Line, templ.EscapeString(o.SKU), o.Status, templ.EscapeString(detail))
		}
		b.WriteString(`</tbody></table>`)
		fmt.Fprintf(&b, `<a href="/api/imports/%s/outcomes.csv">Download results</a>`, templ.EscapeString(result.ImportID))
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// CatalogConnected renders the healthy store connection badge.
func CatalogConnected(checkedAt time.Time) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<span class="catalog-status catalog-ok" title="Checked %s">Store connected</span>`,
			checkedAt.Format(time.RFC3339))
		return err
	})
}

// SalesTable renders units sold per SKU.
func SalesTable(report core.SalesReport) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="sales-summary">`)
		fmt.Fprintf(&b, `<p class="summary">%d %s orders</p>`, report.Orders, templ.EscapeString(report.Status))
		if len(report.Items) == 0 {
			b.WriteString(`<p class="empty">No items sold.</p></div>`)
			_, err := io.WriteString(w, b.String())
			return err
		}
		b.WriteString(`<table class="sales"><thead><tr><th>SKU</th><th>Units</th><th>Orders</th></tr></thead><tbody>`)
		for _, item := range report.Items {
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%d</td><td>%d</td></tr>`,
				templ.EscapeString(item.SKU), item.Units, item.Orders)
		}
		b.WriteString(`</tbody></table></div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
