package core

// parser.go turns raw delimited text into ImportRows.
//
// The format is deliberately simple: lines split on '\n', fields split on
// FieldDelimiter, no quoting or escaping. A field containing the delimiter
// is not a supported input. Structural problems (short or long lines) are
// tolerated here; correctness is enforced by the validator.

import "strings"

// FieldDelimiter separates fields within a line.
const FieldDelimiter = ","

type rowField int

const (
	fieldUnknown rowField = iota
	fieldSKU
	fieldQuantity
	fieldSupplier
	fieldUnitCost
)

// headerSynonyms maps normalized header names to canonical fields.
// Keys have all whitespace removed, so "Unit Cost" and "unitcost" match.
var headerSynonyms = map[string]rowField{
	"sku":      fieldSKU,
	"quantity": fieldQuantity,
	"supplier": fieldSupplier,
	"unitcost": fieldUnitCost,
}

// Parse converts delimited text into rows in input order.
// An empty input or a header-only input yields an empty slice.
func Parse(text string) []ImportRow {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return []ImportRow{}
	}

	fields := headerFields(lines[0])

	rows := make([]ImportRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, buildRow(strings.Split(line, FieldDelimiter), fields))
	}
	return rows
}

// headerFields resolves each header column to a canonical field.
func headerFields(header string) []rowField {
	tokens := strings.Split(header, FieldDelimiter)
	fields := make([]rowField, len(tokens))
	for i, tok := range tokens {
		fields[i] = canonicalField(tok)
	}
	return fields
}

func canonicalField(header string) rowField {
	key := strings.ToLower(strings.TrimSpace(header))
	key = strings.Join(strings.Fields(key), "")
	return headerSynonyms[key]
}

// buildRow maps values onto fields by header position. Missing trailing
// values read as "" and values past the header width are dropped. When two
// columns map to the same field the last one wins, even if it is empty.
func buildRow(values []string, fields []rowField) ImportRow {
	var row ImportRow

	for i, f := range fields {
		if f == fieldUnknown {
			continue
		}

		var v string
		if i < len(values) {
			v = strings.TrimSpace(values[i])
		}

		switch f {
		case fieldSKU:
			row.SKU = v
		case fieldQuantity:
			row.QuantityRaw = v
		case fieldSupplier:
			row.Supplier = v
		case fieldUnitCost:
			row.UnitCostRaw = v
		}
	}
	return row
}
