package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultApplyTimeout is the maximum duration of one apply operation.
const DefaultApplyTimeout = 10 * time.Minute

// resultRetention is how long a finished apply stays in memory for
// progress subscribers before lookups fall back to the history store.
const resultRetention = 5 * time.Minute

// historySaveTimeout bounds persisting a finished run.
const historySaveTimeout = 30 * time.Second

// ServiceConfig tunes the import pipeline.
type ServiceConfig struct {
	MaxFileSize          int64
	MaxConcurrentImports int
	MaxWaitTime          time.Duration
	ApplyTimeout         time.Duration
	Workers              int
	Match                SKUMatch
}

// Service orchestrates validation, apply and history for stock imports.
type Service struct {
	gateway  CatalogGateway
	sessions SessionStore
	history  HistoryStore
	observer Observer
	logger   *slog.Logger
	cfg      ServiceConfig
	limiter  *ImportLimiter

	mu      sync.RWMutex
	applies map[string]*activeApply
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithObserver reports pipeline events to o.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// WithLogger sets the base logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

type activeApply struct {
	id       string
	fileName string
	cancel   context.CancelFunc
	done     chan struct{}

	mu        sync.Mutex
	progress  ApplyProgress
	result    *ApplyResult
	finished  bool
	listeners []chan ApplyProgress
}

// NewService creates a Service.
func NewService(gateway CatalogGateway, sessions SessionStore, history HistoryStore, cfg ServiceConfig, opts ...ServiceOption) *Service {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = DefaultApplyTimeout
	}

	s := &Service{
		gateway:  gateway,
		sessions: sessions,
		history:  history,
		observer: nopObserver{},
		logger:   slog.Default(),
		cfg:      cfg,
		limiter:  NewImportLimiter(cfg.MaxConcurrentImports, cfg.MaxWaitTime),
		applies:  make(map[string]*activeApply),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxFileSize returns the configured upload size limit in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// Validate reads, parses and validates an import file and stores the result
// as a pending session. An invalid report is still stored and returned; only
// read and storage failures produce an error.
func (s *Service) Validate(ctx context.Context, fileName string, r io.Reader) (ImportSession, error) {
	text, err := ReadImportText(r, s.cfg.MaxFileSize)
	if err != nil {
		return ImportSession{}, err
	}

	report := Validate(Parse(text))

	sess := ImportSession{
		ID:          uuid.NewString(),
		FileName:    fileName,
		CreatedAt:   time.Now().UTC(),
		RequestedBy: RequestedByFromContext(ctx),
		Report:      report,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return ImportSession{}, fmt.Errorf("save import session: %w", err)
	}

	s.observer.ImportValidated(report.Valid, len(report.Rows))
	s.logger.Info("import validated",
		"import_id", sess.ID,
		"file", fileName,
		"rows", len(report.Rows),
		"issues", len(report.Issues),
		"valid", report.Valid,
	)
	return sess, nil
}

// Session returns a stored import session.
func (s *Service) Session(ctx context.Context, importID string) (ImportSession, error) {
	return s.sessions.Get(ctx, importID)
}

// Apply starts reconciling a validated import in the background.
//
// It returns ErrReportInvalid for reports with issues, ErrImportAlreadyApplied
// on a second apply, and ErrTooManyImports when no apply slot frees up in
// time. Use SubscribeProgress and Result to follow the run.
func (s *Service) Apply(ctx context.Context, importID string) error {
	sess, err := s.sessions.Get(ctx, importID)
	if err != nil {
		return err
	}
	if !sess.Report.Valid {
		return ErrReportInvalid
	}
	if sess.Applied {
		return ErrImportAlreadyApplied
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return err
	}
	if err := s.sessions.MarkApplied(ctx, importID); err != nil {
		s.limiter.Release()
		return err
	}

	applyCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ApplyTimeout)
	a := &activeApply{
		id:       importID,
		fileName: sess.FileName,
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: ApplyProgress{
			ImportID: importID,
			Phase:    PhaseLoadingCatalog,
			Total:    len(sess.Report.Rows),
		},
	}

	s.mu.Lock()
	s.applies[importID] = a
	s.mu.Unlock()

	logger := s.logger.With("import_id", importID, "file", sess.FileName)

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in apply", "panic", r)
				a.finish(&ApplyResult{ImportID: importID, FileName: sess.FileName}, PhaseCancelled)
				s.cleanup(importID, resultRetention)
			}
		}()
		s.runApply(applyCtx, a, sess, logger)
	}()

	return nil
}

// runApply reconciles the session rows and records the run.
func (s *Service) runApply(ctx context.Context, a *activeApply, sess ImportSession, logger *slog.Logger) {
	started := time.Now().UTC()
	logger.Info("apply started", "rows", len(sess.Report.Rows))

	rec := NewReconciler(s.gateway, ReconcileOptions{
		Workers:  s.cfg.Workers,
		Match:    s.cfg.Match,
		Progress: a.update,
		Logger:   logger,
	})
	outcomes := rec.Reconcile(ctx, sess.Report.Rows)
	finished := time.Now().UTC()

	summary := Summarize(outcomes)
	phase := PhaseComplete
	if ctx.Err() != nil && summary.Skipped > 0 {
		phase = PhaseCancelled
	}

	result := &ApplyResult{
		ImportID: sess.ID,
		FileName: sess.FileName,
		Summary:  summary,
		Outcomes: outcomes,
		Duration: finished.Sub(started),
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), historySaveTimeout)
	defer cancel()
	err := s.history.SaveRun(saveCtx, ImportRun{
		ID:          sess.ID,
		FileName:    sess.FileName,
		RequestedBy: sess.RequestedBy,
		StartedAt:   started,
		FinishedAt:  finished,
		Summary:     summary,
		Outcomes:    outcomes,
	})
	if err != nil {
		logger.Error("failed to record import history", "error", err)
	}

	s.observer.ImportApplied(summary, result.Duration)
	logger.Info("apply finished",
		"phase", phase,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration_ms", result.Duration.Milliseconds(),
	)

	a.finish(result, phase)
	s.cleanup(a.id, resultRetention)
}

func (s *Service) active(importID string) (*activeApply, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.applies[importID]
	return a, ok
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the apply finishes. Subscribing to a finished
// apply yields its final progress and a closed channel.
func (s *Service) SubscribeProgress(importID string) (<-chan ApplyProgress, error) {
	a, ok := s.active(importID)
	if !ok {
		return nil, fmt.Errorf("apply %s: %w", importID, ErrImportNotFound)
	}

	ch := make(chan ApplyProgress, 10)

	a.mu.Lock()
	defer a.mu.Unlock()
	ch <- a.progress
	if a.finished {
		close(ch)
		return ch, nil
	}
	a.listeners = append(a.listeners, ch)
	return ch, nil
}

// Progress returns the current progress without blocking.
func (s *Service) Progress(importID string) (ApplyProgress, error) {
	a, ok := s.active(importID)
	if !ok {
		return ApplyProgress{}, fmt.Errorf("apply %s: %w", importID, ErrImportNotFound)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress, nil
}

// CancelApply stops an in-progress apply. Rows that have not started are
// reported as skipped; writes already sent are not rolled back.
func (s *Service) CancelApply(importID string) error {
	a, ok := s.active(importID)
	if !ok {
		return fmt.Errorf("apply %s: %w", importID, ErrImportNotFound)
	}
	a.cancel()
	return nil
}

// Result returns the outcome of an apply, waiting for it if still running.
// Results older than the in-memory retention are read from history.
func (s *Service) Result(ctx context.Context, importID string) (*ApplyResult, error) {
	if a, ok := s.active(importID); ok {
		select {
		case <-a.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.result, nil
	}

	run, err := s.history.GetRun(ctx, importID)
	if err != nil {
		return nil, err
	}
	return &ApplyResult{
		ImportID: run.ID,
		FileName: run.FileName,
		Summary:  run.Summary,
		Outcomes: run.Outcomes,
		Duration: run.FinishedAt.Sub(run.StartedAt),
	}, nil
}

// History lists recent applied imports, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.history.ListRuns(ctx, limit)
}

// HistoryRun returns one applied import with its outcomes.
func (s *Service) HistoryRun(ctx context.Context, importID string) (ImportRun, error) {
	return s.history.GetRun(ctx, importID)
}

// CatalogStatus reports whether the catalog accepts our credentials.
type CatalogStatus struct {
	Connected bool        `json:"connected"`
	Error     string      `json:"error,omitempty"`
	Detail    UserMessage `json:"detail,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}

// CatalogStatus checks catalog connectivity. Gateways without a Ping fall
// back to listing products.
func (s *Service) CatalogStatus(ctx context.Context) CatalogStatus {
	var err error
	if p, ok := s.gateway.(CatalogPinger); ok {
		err = p.Ping(ctx)
	} else {
		_, err = s.gateway.ListProducts(ctx)
	}

	status := CatalogStatus{Connected: err == nil, CheckedAt: time.Now().UTC()}
	if err != nil {
		status.Error = err.Error()
		status.Detail = MapError(err)
		s.logger.Warn("catalog connection check failed", "error", err)
	}
	return status
}

// Template returns the sample import file.
func (s *Service) Template() string {
	return TemplateCSV()
}

// LimiterStatus returns the apply limiter state.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until all running applies finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// update records progress reported by the reconciler.
func (a *activeApply) update(p ApplyProgress) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p.ImportID = a.id
	a.progress = p
	a.notifyProgress()
}

// notifyProgress sends progress to all listeners. Caller holds a.mu.
func (a *activeApply) notifyProgress() {
	for _, ch := range a.listeners {
		select {
		case ch <- a.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

// finish stores the result, publishes the final progress and closes listeners.
func (a *activeApply) finish(result *ApplyResult, phase ApplyPhase) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		return
	}

	a.result = result
	a.progress.Phase = phase
	a.progress.Done = result.Summary.Total
	a.progress.Succeeded = result.Summary.Succeeded
	a.progress.Failed = result.Summary.Failed
	a.progress.Skipped = result.Summary.Skipped
	a.notifyProgress()

	for _, ch := range a.listeners {
		close(ch)
	}
	a.listeners = nil
	a.finished = true
	close(a.done)
}

// cleanup removes the apply from tracking after a delay.
func (s *Service) cleanup(importID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.applies, importID)
		s.mu.Unlock()
	})
}
