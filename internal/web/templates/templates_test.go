package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stocksync/internal/core"
)

func renderString(t *testing.T, fn func(*strings.Builder) error) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, fn(&b))
	return b.String()
}

func TestErrorAlertEscapes(t *testing.T) {
	out := renderString(t, func(b *strings.Builder) error {
		return ErrorAlert(`<script>alert(1)</script>`, "Retry", "ERR000").Render(context.Background(), b)
	})

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "Retry")
	assert.Contains(t, out, "ERR000")
}

func TestValidationSummary(t *testing.T) {
	valid := core.ImportSession{
		ID:       "abc",
		FileName: "stock.csv",
		Report:   core.ValidationReport{Valid: true, Rows: make([]core.ImportRow, 3)},
	}
	out := renderString(t, func(b *strings.Builder) error {
		return ValidationSummary(valid).Render(context.Background(), b)
	})
	assert.Contains(t, out, "3 rows ready to import.")
	assert.Contains(t, out, `hx-post="/api/imports/abc/apply"`)

	valid.Applied = true
	out = renderString(t, func(b *strings.Builder) error {
		return ValidationSummary(valid).Render(context.Background(), b)
	})
	assert.NotContains(t, out, "hx-post")

	issues := make([]core.ValidationIssue, 0, 7)
	for line := 2; line <= 8; line++ {
		issues = append(issues, core.ValidationIssue{Line: line, Message: "SKU is required."})
	}
	invalid := core.ImportSession{ID: "def", FileName: "bad.csv", Report: core.ValidationReport{Issues: issues}}
	out = renderString(t, func(b *strings.Builder) error {
		return ValidationSummary(invalid).Render(context.Background(), b)
	})
	assert.Contains(t, out, "7 issue(s) found.")
	assert.Contains(t, out, "Line 6: SKU is required.")
	assert.NotContains(t, out, "Line 7: SKU is required.")
	assert.Contains(t, out, "... and 2 more")
}

func TestOutcomeList(t *testing.T) {
	qty := 25
	result := &core.ApplyResult{
		ImportID: "abc",
		Summary:  core.BatchSummary{Total: 2, Succeeded: 1, Failed: 1},
		Outcomes: []core.ReconciliationOutcome{
			{Line: 2, SKU: "VDJ-001", Status: core.StatusSucceeded, NewQuantity: &qty},
			{Line: 3, SKU: "<b>", Status: core.StatusFailed, ErrorDetail: core.DetailSKUNotFound},
		},
	}
	out := renderString(t, func(b *strings.Builder) error {
		return OutcomeList(result).Render(context.Background(), b)
	})

	assert.Contains(t, out, "2 rows: 1 succeeded, 1 failed, 0 skipped")
	assert.Contains(t, out, "New stock: 25")
	assert.Contains(t, out, "SKU not found in catalog")
	assert.Contains(t, out, "&lt;b&gt;")
	assert.Contains(t, out, "/api/imports/abc/outcomes.csv")
}

func TestSalesTable(t *testing.T) {
	report := core.SalesReport{
		Status: "completed",
		Orders: 2,
		Items: []core.SKUSales{
			{SKU: "TEE-RED-M", Units: 4, Orders: 2},
			{SKU: "<i>", Units: 1, Orders: 1},
		},
	}
	out := renderString(t, func(b *strings.Builder) error {
		return SalesTable(report).Render(context.Background(), b)
	})

	assert.Contains(t, out, "2 completed orders")
	assert.Contains(t, out, "<td>TEE-RED-M</td><td>4</td><td>2</td>")
	assert.Contains(t, out, "&lt;i&gt;")

	out = renderString(t, func(b *strings.Builder) error {
		return SalesTable(core.SalesReport{Status: "refunded"}).Render(context.Background(), b)
	})
	assert.Contains(t, out, "No items sold.")
}
