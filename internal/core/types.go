package core

import "time"

// ImportRow is one data line of an import file after parsing.
// All values are kept as trimmed text; typing happens in the validator
// and the reconciler.
type ImportRow struct {
	SKU         string `json:"sku"`
	QuantityRaw string `json:"quantity"`
	Supplier    string `json:"supplier,omitempty"`
	UnitCostRaw string `json:"unit_cost,omitempty"`
}

// ReportLevelLine is the line number attached to issues that concern the
// whole file rather than one row (the header line).
const ReportLevelLine = 1

// ValidationIssue is a single business-rule violation.
// Line counts the header as line 1, so the first data row is line 2.
type ValidationIssue struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ValidationReport aggregates validator output for one import attempt.
// Rows always holds every parsed row, valid or not.
type ValidationReport struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues"`
	Rows   []ImportRow       `json:"rows"`
}

// RecordKind distinguishes simple products from variations.
type RecordKind string

const (
	KindProduct   RecordKind = "product"
	KindVariation RecordKind = "variation"
)

// CatalogRecord is a product or variation as exposed by the catalog gateway.
// ParentID is set for variations only. VariationIDs is set for variable products.
type CatalogRecord struct {
	ID            int64      `json:"id"`
	ParentID      int64      `json:"parent_id,omitempty"`
	Kind          RecordKind `json:"kind"`
	SKU           string     `json:"sku"`
	StockQuantity int        `json:"stock_quantity"`
	ManageStock   bool       `json:"manage_stock"`
	VariationIDs  []int64    `json:"variation_ids,omitempty"`
}

// OutcomeStatus is the result of applying one row to the catalog.
type OutcomeStatus string

const (
	StatusSucceeded OutcomeStatus = "succeeded"
	StatusFailed    OutcomeStatus = "failed"
	StatusSkipped   OutcomeStatus = "skipped"
)

// ReconciliationOutcome is the per-row result of a stock reconciliation.
// NewQuantity is set only on success; ErrorDetail only on failure or skip.
type ReconciliationOutcome struct {
	Line        int           `json:"line"`
	SKU         string        `json:"sku"`
	Status      OutcomeStatus `json:"status"`
	NewQuantity *int          `json:"new_quantity,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
}

// BatchSummary tallies the outcomes of one reconciliation run.
type BatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ImportSession is a validated file waiting to be applied.
type ImportSession struct {
	ID          string           `json:"id"`
	FileName    string           `json:"file_name"`
	CreatedAt   time.Time        `json:"created_at"`
	RequestedBy string           `json:"requested_by,omitempty"`
	Report      ValidationReport `json:"report"`
	Applied     bool             `json:"applied"`
}

// ApplyPhase indicates the current stage of an apply operation.
type ApplyPhase string

const (
	PhaseLoadingCatalog ApplyPhase = "loading_catalog"
	PhaseApplying       ApplyPhase = "applying"
	PhaseComplete       ApplyPhase = "complete"
	PhaseCancelled      ApplyPhase = "cancelled"
)

// ApplyProgress represents the current state of an apply operation.
type ApplyProgress struct {
	ImportID  string     `json:"import_id"`
	Phase     ApplyPhase `json:"phase"`
	Total     int        `json:"total"`
	Done      int        `json:"done"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Skipped   int        `json:"skipped"`
}

// Percent returns the progress as a percentage (0-100).
func (p ApplyProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Done * 100) / p.Total
}

// ApplyResult contains the final result of an apply operation.
type ApplyResult struct {
	ImportID string                  `json:"import_id"`
	FileName string                  `json:"file_name"`
	Summary  BatchSummary            `json:"summary"`
	Outcomes []ReconciliationOutcome `json:"outcomes"`
	Duration time.Duration           `json:"duration"`
}

// ProgressCallback is called after each row completes during apply.
type ProgressCallback func(ApplyProgress)
