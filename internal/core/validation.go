package core

// validation.go applies business rules to parsed rows.
//
// All rules run for every row; a row can collect several issues. The
// report never drops rows: callers gate on Valid for the whole batch, so a
// single bad row blocks reconciliation entirely.

import "strings"

// Validation messages shown to operators. "positive" means non-negative:
// zero is accepted.
const (
	MsgNoRows           = "CSV file is empty or has no valid data rows."
	MsgSKURequired      = "SKU is required."
	MsgQuantityRequired = "Quantity is required."
	MsgQuantityInvalid  = "Quantity must be a positive number."
	MsgUnitCostInvalid  = "Unit cost must be a positive number."
)

// Validate checks every row and returns the aggregated report.
// It is pure: validating the same rows twice yields identical reports.
func Validate(rows []ImportRow) ValidationReport {
	issues := []ValidationIssue{}

	if len(rows) == 0 {
		issues = append(issues, ValidationIssue{Line: ReportLevelLine, Message: MsgNoRows})
	}

	for i, row := range rows {
		issues = append(issues, ValidateRow(row, i+2)...)
	}

	kept := make([]ImportRow, len(rows))
	copy(kept, rows)

	return ValidationReport{
		Valid:  len(issues) == 0,
		Issues: issues,
		Rows:   kept,
	}
}

// ValidateRow returns all issues for a single row tagged with line.
func ValidateRow(row ImportRow, line int) []ValidationIssue {
	var issues []ValidationIssue
	add := func(msg string) {
		issues = append(issues, ValidationIssue{Line: line, Message: msg})
	}

	if strings.TrimSpace(row.SKU) == "" {
		add(MsgSKURequired)
	}

	if strings.TrimSpace(row.QuantityRaw) == "" {
		add(MsgQuantityRequired)
	} else if _, err := ParseNonNegative(row.QuantityRaw); err != nil {
		add(MsgQuantityInvalid)
	}

	if strings.TrimSpace(row.UnitCostRaw) != "" {
		if _, err := ParseNonNegative(row.UnitCostRaw); err != nil {
			add(MsgUnitCostInvalid)
		}
	}

	return issues
}
