package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"NutriScan/internal/database"
	"NutriScan/internal/geminiservice"
	"NutriScan/internal/imagehost"
	"NutriScan/internal/nutrition"
	"NutriScan/internal/utility"
)

type Stage string

const (
	StageUploading Stage = "uploading"
	StageAnalyzing Stage = "analyzing"
	StageChecking  Stage = "checking"
	StageSaving    Stage = "saving"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

// ProgressEvent is pushed to the user's open sockets as the pipeline advances.
type ProgressEvent struct {
	ScanID  string `json:"scanId"`
	Stage   Stage  `json:"stage"`
	Message string `json:"message,omitempty"`
}

// Notifier delivers progress events to a user. utility.ProgressHub implements it.
type Notifier interface {
	Send(userID string, v any)
}

type nopNotifier struct{}

func (nopNotifier) Send(string, any) {}

var ErrPendingNotFound = errors.New("pending scan not found")

// PendingError reports a finished scan whose record could not be stored. The record is
// kept under PendingID for a later retry.
type PendingError struct {
	PendingID string
	Err       error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("scan %s not saved: %v", e.PendingID, e.Err)
}

func (e *PendingError) Unwrap() error { return e.Err }

// Result is the outcome of one successful scan.
type Result struct {
	Record  database.NutritionRecord `json:"record"`
	Outcome nutrition.ParseOutcome   `json:"-"`
	Alert   *nutrition.SafetyAlert   `json:"alert,omitempty"`
}

type pendingScan struct {
	userID  string
	record  database.NutritionRecord
	outcome nutrition.ParseOutcome
	alert   *nutrition.SafetyAlert
}

// Service runs the scan pipeline: upload, profile, prompt, completion, parse, safety check, persist.
type Service struct {
	store     database.Store
	uploader  imagehost.Uploader
	completer geminiservice.Completer
	profiles  *ProfileCache
	notifier  Notifier
	pending   *expirable.LRU[string, pendingScan]
	now       func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithPendingCapacity bounds how many unsaved scans are kept for retry, and for how long.
func WithPendingCapacity(size int, ttl time.Duration) Option {
	return func(s *Service) { s.pending = expirable.NewLRU[string, pendingScan](size, nil, ttl) }
}

func NewService(store database.Store, uploader imagehost.Uploader, completer geminiservice.Completer, profiles *ProfileCache, opts ...Option) *Service {
	s := &Service{
		store:     store,
		uploader:  uploader,
		completer: completer,
		profiles:  profiles,
		notifier:  nopNotifier{},
		pending:   expirable.NewLRU[string, pendingScan](256, nil, 30*time.Minute),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scan uploads img and analyzes it for userID. A cancelled ctx stops the pipeline at the next
// stage boundary and no record is written.
func (s *Service) Scan(ctx context.Context, userID string, img imagehost.Image) (Result, error) {
	scanID := uuid.NewString()
	logger := utility.Logger(ctx).With().Str("scan_id", scanID).Str("user_id", userID).Logger()
	ctx = logger.WithContext(ctx)

	res, err := s.run(ctx, scanID, userID, img)
	if err != nil {
		s.notify(userID, scanID, StageFailed, err.Error())
		return Result{}, err
	}
	s.notify(userID, scanID, StageDone, "")
	return res, nil
}

func (s *Service) run(ctx context.Context, scanID, userID string, img imagehost.Image) (Result, error) {
	logger := utility.Logger(ctx)

	// --- Upload ---
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.notify(userID, scanID, StageUploading, "")
	prepared, err := imagehost.Prepare(img)
	if err != nil {
		return Result{}, err
	}
	imageURL, err := s.uploader.Upload(ctx, prepared)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		logger.Error().Err(err).Msg("Image upload failed")
		return Result{}, err
	}

	// --- Profile + prompt ---
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	profile, err := s.profiles.Profile(ctx, userID)
	if err != nil {
		logger.Warn().Err(err).Msg("Health profile unavailable, analyzing without personalization")
		profile = nutrition.EmptyProfile()
	}
	prompt := geminiservice.ComposeScanPrompt(profile, imageURL)

	// --- Completion ---
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.notify(userID, scanID, StageAnalyzing, "")
	raw, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		var ce *geminiservice.CompletionError
		kind := "unknown"
		if errors.As(err, &ce) {
			kind = string(ce.Kind)
		}
		logger.Warn().Err(err).Str("kind", kind).Msg("Completion failed, using generated placeholder data")
		raw = ""
	}

	// --- Parse + safety ---
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.notify(userID, scanID, StageChecking, "")
	parsed, outcome := nutrition.ParseCompletion(raw, imageURL, profile)
	report := nutrition.CrossCheck(parsed, profile)
	record := nutrition.BuildRecord(userID, imageURL, parsed, report, s.now())

	logger.Info().
		Str("outcome", string(outcome)).
		Float64("calories", record.CaloriesNum).
		Bool("conflicts", report.HasConflicts()).
		Msg("Scan analyzed")

	// --- Persist ---
	if err := ctx.Err(); err != nil {
		logger.Info().Msg("Scan cancelled before saving, record discarded")
		return Result{}, err
	}
	s.notify(userID, scanID, StageSaving, "")
	p := pendingScan{userID: userID, record: record, outcome: outcome, alert: report.Alert()}
	return s.persist(ctx, scanID, p)
}

func (s *Service) persist(ctx context.Context, pendingID string, p pendingScan) (Result, error) {
	saved, err := s.store.CreateNutritionRecord(ctx, p.record)
	if err != nil {
		s.pending.Add(pendingID, p)
		utility.Logger(ctx).Error().Err(err).Str("pending_id", pendingID).Msg("Failed to save scan, kept for retry")
		return Result{}, &PendingError{PendingID: pendingID, Err: err}
	}
	return Result{Record: saved, Outcome: p.outcome, Alert: p.alert}, nil
}

// RetryPending stores a scan that previously failed to save. The completion is not repeated.
// The entry is taken out before saving so concurrent retries save it at most once; a failed
// save puts it back.
func (s *Service) RetryPending(ctx context.Context, userID, pendingID string) (Result, error) {
	p, ok := s.pending.Peek(pendingID)
	if !ok || p.userID != userID {
		return Result{}, ErrPendingNotFound
	}
	if !s.pending.Remove(pendingID) {
		return Result{}, ErrPendingNotFound
	}
	res, err := s.persist(ctx, pendingID, p)
	if err != nil {
		return Result{}, err
	}
	s.notify(userID, pendingID, StageDone, "")
	return res, nil
}

func (s *Service) notify(userID, scanID string, stage Stage, msg string) {
	s.notifier.Send(userID, ProgressEvent{ScanID: scanID, Stage: stage, Message: msg})
}
