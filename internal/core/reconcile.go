package core

// reconcile.go applies validated quantity deltas to the catalog.
//
// Each row is independent: a lookup miss or a failed write becomes a Failed
// outcome for that row and never stops its siblings. Rows that resolve to
// the same record are applied one after another in input order, each
// reading the level the previous one wrote. The returned slice has
// exactly one outcome per input row, in input order, whatever order the
// workers finish in.
//
// Two conditions are treated as systemic rather than per-row: failing to
// load the catalog index, and a write that fails with an auth or
// connectivity error. In both cases rows that have not yet issued a write
// are failed with a shared detail instead of sending doomed requests.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Outcome details produced by the reconciler itself.
const (
	DetailSKUNotFound      = "SKU not found in catalog"
	DetailNotWholeNumber   = "Quantity must be a whole number"
	DetailQuantityTooLarge = "Quantity exceeds the largest stock level the store accepts"
	DetailCancelled        = "import cancelled before this row was applied"
)

// ErrReportInvalid is returned when reconciliation is requested for a
// report that did not pass validation.
var ErrReportInvalid = errors.New("validation report is not valid")

// SKUMatch selects how import SKUs are compared with catalog SKUs.
type SKUMatch int

const (
	// MatchExact compares SKUs byte for byte. Visually similar SKUs that
	// differ in case never cross-match.
	MatchExact SKUMatch = iota
	// MatchFold compares SKUs case-insensitively.
	MatchFold
)

// ParseSKUMatch converts a config value ("exact" or "fold").
func ParseSKUMatch(s string) (SKUMatch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return MatchExact, nil
	case "fold", "insensitive":
		return MatchFold, nil
	default:
		return MatchExact, fmt.Errorf("unknown SKU match mode %q", s)
	}
}

// DefaultReconcileWorkers bounds concurrent gateway writes.
const DefaultReconcileWorkers = 4

// ReconcileOptions tunes a Reconciler.
type ReconcileOptions struct {
	Workers  int
	Match    SKUMatch
	Progress ProgressCallback
	Logger   *slog.Logger
}

// Reconciler applies import rows to a CatalogGateway.
type Reconciler struct {
	gateway CatalogGateway
	opts    ReconcileOptions
}

// NewReconciler creates a reconciler for gateway.
func NewReconciler(gateway CatalogGateway, opts ReconcileOptions) *Reconciler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultReconcileWorkers
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Reconciler{gateway: gateway, opts: opts}
}

// Apply reconciles the rows of a valid report. Reports with any issue are
// refused with ErrReportInvalid.
func (r *Reconciler) Apply(ctx context.Context, report ValidationReport) ([]ReconciliationOutcome, error) {
	if !report.Valid {
		return nil, ErrReportInvalid
	}
	return r.Reconcile(ctx, report.Rows), nil
}

// Reconcile applies rows without re-validating them. Callers must only
// pass rows taken from a valid report.
func (r *Reconciler) Reconcile(ctx context.Context, rows []ImportRow) []ReconciliationOutcome {
	outcomes := make([]ReconciliationOutcome, len(rows))
	if len(rows) == 0 {
		return outcomes
	}

	tracker := newProgressTracker(len(rows), r.opts.Progress)
	tracker.phase(PhaseLoadingCatalog)

	index, err := loadCatalogIndex(ctx, r.gateway, r.opts.Match, r.opts.Logger)
	if err != nil {
		status, detail := StatusFailed, fmt.Sprintf("catalog unavailable: %v", err)
		if ctx.Err() != nil {
			status, detail = StatusSkipped, DetailCancelled
		}
		r.opts.Logger.Error("catalog load failed, failing all rows", "error", err, "rows", len(rows))
		for i, row := range rows {
			outcomes[i] = ReconciliationOutcome{Line: i + 2, SKU: row.SKU, Status: status, ErrorDetail: detail}
			tracker.done(outcomes[i])
		}
		return outcomes
	}

	tracker.phase(PhaseApplying)

	var halt haltLatch
	g := new(errgroup.Group)
	g.SetLimit(r.opts.Workers)

	for _, grp := range groupRows(rows, index) {
		g.Go(func() error {
			for _, i := range grp.rows {
				outcomes[i] = r.reconcileRow(ctx, i+2, rows[i], grp.rec, &halt)
				tracker.done(outcomes[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// rowGroup is the set of rows that resolve to one catalog record. Its rows
// run in input order on a single worker, and rec carries the running stock
// level so a SKU repeated in one file accumulates every delta.
type rowGroup struct {
	rec  *CatalogRecord
	rows []int
}

// groupRows buckets row indexes by resolved record. Rows with no match get
// a group of their own with a nil rec.
func groupRows(rows []ImportRow, index *catalogIndex) []*rowGroup {
	type recordKey struct {
		kind RecordKind
		id   int64
	}
	var groups []*rowGroup
	byRecord := make(map[recordKey]*rowGroup)

	for i, row := range rows {
		rec, ok := index.lookup(row.SKU)
		if !ok {
			groups = append(groups, &rowGroup{rows: []int{i}})
			continue
		}
		k := recordKey{kind: rec.Kind, id: rec.ID}
		if grp, seen := byRecord[k]; seen {
			grp.rows = append(grp.rows, i)
			continue
		}
		grp := &rowGroup{rec: &rec, rows: []int{i}}
		byRecord[k] = grp
		groups = append(groups, grp)
	}
	return groups
}

// reconcileRow writes existing + delta for one row to its resolved record.
// On success rec.StockQuantity is advanced to the written level.
func (r *Reconciler) reconcileRow(ctx context.Context, line int, row ImportRow, rec *CatalogRecord, halt *haltLatch) ReconciliationOutcome {
	out := ReconciliationOutcome{Line: line, SKU: row.SKU, Status: StatusFailed}

	if ctx.Err() != nil {
		out.Status = StatusSkipped
		out.ErrorDetail = DetailCancelled
		return out
	}
	if detail, halted := halt.get(); halted {
		out.ErrorDetail = detail
		return out
	}

	delta, err := ParseQuantity(row.QuantityRaw)
	if err != nil {
		out.ErrorDetail = DetailNotWholeNumber
		if errors.Is(err, errQuantityRange) {
			out.ErrorDetail = DetailQuantityTooLarge
		}
		return out
	}

	if rec == nil {
		out.ErrorDetail = DetailSKUNotFound
		return out
	}

	newQty := rec.StockQuantity + delta
	if newQty > MaxStockQuantity {
		out.ErrorDetail = DetailQuantityTooLarge
		return out
	}

	var written CatalogRecord
	if rec.Kind == KindVariation {
		written, err = r.gateway.UpdateVariationStock(ctx, rec.ParentID, rec.ID, newQty)
	} else {
		written, err = r.gateway.UpdateProductStock(ctx, rec.ID, newQty)
	}
	if err != nil {
		if IsSystemic(err) {
			halt.set(fmt.Sprintf("catalog unavailable: %v", err))
		}
		r.opts.Logger.Warn("stock update failed", "sku", row.SKU, "line", line, "error", err)
		out.ErrorDetail = err.Error()
		return out
	}

	if written.ID == rec.ID && written.StockQuantity != newQty {
		r.opts.Logger.Warn("store reported a different stock level than written",
			"sku", row.SKU, "written", newQty, "reported", written.StockQuantity)
		newQty = written.StockQuantity
	}
	rec.StockQuantity = newQty

	out.Status = StatusSucceeded
	out.NewQuantity = &newQty
	out.ErrorDetail = ""
	return out
}

// haltLatch records the first systemic failure seen during a batch.
type haltLatch struct {
	mu      sync.Mutex
	detail  string
	tripped bool
}

func (h *haltLatch) set(detail string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.tripped {
		h.detail, h.tripped = detail, true
	}
}

func (h *haltLatch) get() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detail, h.tripped
}

// progressTracker serializes progress callbacks from concurrent workers.
type progressTracker struct {
	mu       sync.Mutex
	progress ApplyProgress
	cb       ProgressCallback
}

func newProgressTracker(total int, cb ProgressCallback) *progressTracker {
	return &progressTracker{progress: ApplyProgress{Total: total}, cb: cb}
}

func (t *progressTracker) phase(p ApplyPhase) {
	if t.cb == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.Phase = p
	t.cb(t.progress)
}

func (t *progressTracker) done(o ReconciliationOutcome) {
	if t.cb == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.Done++
	switch o.Status {
	case StatusSucceeded:
		t.progress.Succeeded++
	case StatusFailed:
		t.progress.Failed++
	case StatusSkipped:
		t.progress.Skipped++
	}
	t.cb(t.progress)
}

// catalogIndex resolves SKUs to catalog records.
type catalogIndex struct {
	match SKUMatch
	bySKU map[string]CatalogRecord
}

func (idx *catalogIndex) key(sku string) string {
	if idx.match == MatchFold {
		return strings.ToLower(sku)
	}
	return sku
}

func (idx *catalogIndex) lookup(sku string) (CatalogRecord, bool) {
	rec, ok := idx.bySKU[idx.key(sku)]
	return rec, ok
}

// add inserts rec unless its SKU is already indexed; the first match wins.
func (idx *catalogIndex) add(rec CatalogRecord, logger *slog.Logger) {
	if rec.SKU == "" {
		return
	}
	k := idx.key(rec.SKU)
	if existing, dup := idx.bySKU[k]; dup {
		logger.Warn("duplicate SKU in catalog, keeping first match",
			"sku", rec.SKU, "kept_id", existing.ID, "ignored_id", rec.ID)
		return
	}
	idx.bySKU[k] = rec
}

// loadCatalogIndex reads every product, plus the variations of variable
// products, in gateway order. Any listing failure fails the whole load:
// a partial index would report present SKUs as missing.
func loadCatalogIndex(ctx context.Context, gw CatalogGateway, match SKUMatch, logger *slog.Logger) (*catalogIndex, error) {
	products, err := gw.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	idx := &catalogIndex{match: match, bySKU: make(map[string]CatalogRecord, len(products))}
	for _, p := range products {
		p.Kind = KindProduct
		idx.add(p, logger)

		if len(p.VariationIDs) == 0 {
			continue
		}
		variations, err := gw.ListVariations(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list variations of product %d: %w", p.ID, err)
		}
		for _, v := range variations {
			v.Kind = KindVariation
			v.ParentID = p.ID
			idx.add(v, logger)
		}
	}

	logger.Debug("catalog index loaded", "products", len(products), "skus", len(idx.bySKU))
	return idx, nil
}
