package database

import (
	"context"
	"errors"
	"fmt"

	"NutriScan/internal/questionnaire"
)

// ErrNotFound is returned when a record or preference set does not exist or belongs to
// another user.
var ErrNotFound = errors.New("not found")

// StorageError wraps a failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Store is the persistence surface used by the scan pipeline and the HTTP handlers.
type Store interface {
	// CreateNutritionRecord writes rec as a new record and returns it with its id and
	// timestamp assigned.
	CreateNutritionRecord(ctx context.Context, rec NutritionRecord) (NutritionRecord, error)
	GetNutritionRecord(ctx context.Context, userID, id string) (NutritionRecord, error)
	// MarkRecordConsumed sets isConsumed and consumedAt. Repeating it keeps the first
	// consumedAt.
	MarkRecordConsumed(ctx context.Context, userID, id string) (NutritionRecord, error)
	ListNutritionRecords(ctx context.Context, arg ListRecordsParams) ([]NutritionRecord, error)
	DeleteNutritionRecords(ctx context.Context, userID string, ids []string) (int64, error)

	GetUserPreferences(ctx context.Context, userID string) (UserPreferences, error)
	UpsertUserPreferences(ctx context.Context, userID string, answers questionnaire.Answers) (UserPreferences, error)
	GetPreferencesRevision(ctx context.Context, userID string) (int64, error)
}

var (
	_ Store = (*Queries)(nil)
	_ Store = (*MemoryStore)(nil)
)
