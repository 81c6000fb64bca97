// Package core provides the business logic for stock imports.
//
// This package contains all domain logic independent of any UI or transport
// layer. It can be used by web handlers, the CLI, or tests without
// modification.
//
// # Pipeline
//
// An import file flows through four stages:
//
//  1. [ReadImportText] strips a byte order mark and repairs invalid UTF-8.
//  2. [Parse] maps header columns (SKU, Quantity, Supplier, Unit Cost) onto
//     [ImportRow] values. It never fails; structural problems surface later.
//  3. [Validate] applies every business rule to every row and returns a
//     [ValidationReport]. A report with any issue blocks the whole batch.
//  4. [Reconciler] adds each row's quantity to the catalog's current stock
//     through a [CatalogGateway], producing one [ReconciliationOutcome] per
//     row in input order.
//
// Quantities are deltas: an import of 5 for a SKU holding 10 leaves 15.
// Applying the same file twice adds twice, so [Service] refuses to apply a
// session more than once.
//
// # Service
//
// [Service] ties the stages together for the HTTP server. Validated files
// are kept as [ImportSession] values in a [SessionStore]; applies run in the
// background under an [ImportLimiter] and publish [ApplyProgress] to
// subscribers. Finished runs are written to a [HistoryStore].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code prefix for support reference:
//
//   - VAL: validation errors
//   - FILE: file errors (size, missing upload)
//   - IMP: import session errors (not found, already applied, busy)
//   - CAT: catalog errors (credentials, connectivity, rejected writes)
//   - RATE: rate limiting
package core
