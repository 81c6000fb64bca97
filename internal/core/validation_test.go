package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_NoRows(t *testing.T) {
	for _, rows := range [][]ImportRow{nil, {}} {
		report := Validate(rows)
		assert.False(t, report.Valid)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, ValidationIssue{Line: ReportLevelLine, Message: MsgNoRows}, report.Issues[0])
		assert.NotNil(t, report.Rows)
		assert.Empty(t, report.Rows)
	}
}

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name string
		row  ImportRow
		want []string
	}{
		{
			name: "valid with all fields",
			row:  ImportRow{SKU: "A", QuantityRaw: "5", Supplier: "S", UnitCostRaw: "1.50"},
		},
		{
			name: "valid without optional fields",
			row:  ImportRow{SKU: "A", QuantityRaw: "5"},
		},
		{
			name: "zero quantity and cost accepted",
			row:  ImportRow{SKU: "A", QuantityRaw: "0", UnitCostRaw: "0"},
		},
		{
			name: "fractional quantity passes validation",
			row:  ImportRow{SKU: "A", QuantityRaw: "2.5"},
		},
		{
			name: "missing sku",
			row:  ImportRow{QuantityRaw: "5"},
			want: []string{MsgSKURequired},
		},
		{
			name: "whitespace sku counts as missing",
			row:  ImportRow{SKU: "   ", QuantityRaw: "5"},
			want: []string{MsgSKURequired},
		},
		{
			name: "missing quantity",
			row:  ImportRow{SKU: "A"},
			want: []string{MsgQuantityRequired},
		},
		{
			name: "non-numeric quantity",
			row:  ImportRow{SKU: "A", QuantityRaw: "ten"},
			want: []string{MsgQuantityInvalid},
		},
		{
			name: "negative quantity",
			row:  ImportRow{SKU: "A", QuantityRaw: "-3"},
			want: []string{MsgQuantityInvalid},
		},
		{
			name: "NaN quantity",
			row:  ImportRow{SKU: "A", QuantityRaw: "NaN"},
			want: []string{MsgQuantityInvalid},
		},
		{
			name: "bad unit cost",
			row:  ImportRow{SKU: "A", QuantityRaw: "1", UnitCostRaw: "$4"},
			want: []string{MsgUnitCostInvalid},
		},
		{
			name: "negative unit cost",
			row:  ImportRow{SKU: "A", QuantityRaw: "1", UnitCostRaw: "-0.01"},
			want: []string{MsgUnitCostInvalid},
		},
		{
			name: "every rule reported",
			row:  ImportRow{QuantityRaw: "x", UnitCostRaw: "y"},
			want: []string{MsgSKURequired, MsgQuantityInvalid, MsgUnitCostInvalid},
		},
		{
			name: "empty row",
			row:  ImportRow{},
			want: []string{MsgSKURequired, MsgQuantityRequired},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := ValidateRow(tt.row, 7)
			var got []string
			for _, issue := range issues {
				assert.Equal(t, 7, issue.Line)
				got = append(got, issue.Message)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate_LineNumbersAndRowsRetained(t *testing.T) {
	rows := []ImportRow{
		{SKU: "A", QuantityRaw: "1"},
		{SKU: "", QuantityRaw: "2"},
		{SKU: "C", QuantityRaw: "-1"},
	}

	report := Validate(rows)

	assert.False(t, report.Valid)
	assert.Equal(t, []ValidationIssue{
		{Line: 3, Message: MsgSKURequired},
		{Line: 4, Message: MsgQuantityInvalid},
	}, report.Issues)
	assert.Equal(t, rows, report.Rows)
}

func TestValidate_ValidBatch(t *testing.T) {
	report := Validate(Parse(TemplateCSV()))
	assert.True(t, report.Valid)
	assert.NotNil(t, report.Issues)
	assert.Empty(t, report.Issues)
	assert.Len(t, report.Rows, 3)
}

func TestValidate_Deterministic(t *testing.T) {
	rows := []ImportRow{{SKU: "", QuantityRaw: "abc"}, {SKU: "B", QuantityRaw: "4"}}
	assert.Equal(t, Validate(rows), Validate(rows))
}

func TestValidate_DoesNotAliasInput(t *testing.T) {
	rows := []ImportRow{{SKU: "A", QuantityRaw: "1"}}
	report := Validate(rows)
	rows[0].SKU = "changed"
	assert.Equal(t, "A", report.Rows[0].SKU)
}
