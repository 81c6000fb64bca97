package core

import (
	"context"
	"errors"
	"time"
)

// ErrImportNotFound is returned when an import session or history run does
// not exist (or has expired).
var ErrImportNotFound = errors.New("import not found")

// ErrImportAlreadyApplied is returned when an import is applied twice.
var ErrImportAlreadyApplied = errors.New("import already applied")

// ErrApplyInProgress is returned when a finished result is requested while
// the apply is still running.
var ErrApplyInProgress = errors.New("apply still in progress")

// ImportRun is the persisted record of one applied import.
type ImportRun struct {
	ID          string                  `json:"id"`
	FileName    string                  `json:"file_name"`
	RequestedBy string                  `json:"requested_by,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	FinishedAt  time.Time               `json:"finished_at"`
	Summary     BatchSummary            `json:"summary"`
	Outcomes    []ReconciliationOutcome `json:"outcomes,omitempty"`
}

// HistoryStore persists applied imports.
//
// ListRuns returns the newest runs first and may leave Outcomes empty.
// GetRun returns ErrImportNotFound for unknown ids.
type HistoryStore interface {
	SaveRun(ctx context.Context, run ImportRun) error
	ListRuns(ctx context.Context, limit int) ([]ImportRun, error)
	GetRun(ctx context.Context, id string) (ImportRun, error)
	PruneRuns(ctx context.Context, before time.Time) (int64, error)
}

// SessionStore holds validated imports until they are applied or expire.
//
// Get returns ErrImportNotFound for unknown or expired ids. MarkApplied
// returns ErrImportAlreadyApplied when the session was already claimed, so
// concurrent apply requests for one import cannot both succeed.
type SessionStore interface {
	Save(ctx context.Context, sess ImportSession) error
	Get(ctx context.Context, id string) (ImportSession, error)
	MarkApplied(ctx context.Context, id string) error
}

// Observer receives pipeline events for metrics.
type Observer interface {
	ImportValidated(valid bool, rows int)
	ImportApplied(summary BatchSummary, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ImportValidated(bool, int) {}
func (nopObserver) ImportApplied(BatchSummary, time.Duration) {}
