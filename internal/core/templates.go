package core

import "strings"

// TemplateFileName is the download name for the sample import file.
const TemplateFileName = "inventory_import_template.csv"

var templateHeader = []string{"SKU", "Quantity", "Supplier", "UnitCost"}

var templateRows = [][]string{
	{"VDJ-001", "20", "Supplier A", "15.50"},
	{"SCN-002", "50", "Supplier B", "12.00"},
	{"FSD-003", "15", "Supplier C", "22.75"},
}

// TemplateCSV returns a sample import file that passes validation.
func TemplateCSV() string {
	lines := make([]string, 0, len(templateRows)+1)
	lines = append(lines, strings.Join(templateHeader, FieldDelimiter))
	for _, row := range templateRows {
		lines = append(lines, strings.Join(row, FieldDelimiter))
	}
	return strings.Join(lines, "\n")
}
