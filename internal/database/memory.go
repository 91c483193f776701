package database

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"NutriScan/internal/questionnaire"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store for tests and STORE_DRIVER=memory runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]NutritionRecord
	prefs   map[string]UserPreferences
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]NutritionRecord),
		prefs:   make(map[string]UserPreferences),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for timestamps.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func cloneRecord(r NutritionRecord) NutritionRecord {
	r.Ingredients = slices.Clone(nonNil(r.Ingredients))
	r.Allergens = slices.Clone(nonNil(r.Allergens))
	r.DietaryConflicts = slices.Clone(nonNil(r.DietaryConflicts))
	r.AllergenConflicts = slices.Clone(nonNil(r.AllergenConflicts))
	if r.ConsumedAt != nil {
		t := *r.ConsumedAt
		r.ConsumedAt = &t
	}
	return r
}

func (m *MemoryStore) CreateNutritionRecord(ctx context.Context, rec NutritionRecord) (NutritionRecord, error) {
	if err := ctx.Err(); err != nil {
		return NutritionRecord{}, storageErr("create nutrition record", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec = cloneRecord(rec)
	rec.ID = uuid.NewString()
	rec.Timestamp = m.now().UTC()
	rec.IsConsumed = false
	rec.ConsumedAt = nil
	m.records[rec.ID] = rec
	return cloneRecord(rec), nil
}

func (m *MemoryStore) GetNutritionRecord(ctx context.Context, userID, id string) (NutritionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok || rec.UserID != userID {
		return NutritionRecord{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *MemoryStore) MarkRecordConsumed(ctx context.Context, userID, id string) (NutritionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok || rec.UserID != userID {
		return NutritionRecord{}, ErrNotFound
	}
	if rec.ConsumedAt == nil {
		t := m.now().UTC()
		rec.ConsumedAt = &t
	}
	rec.IsConsumed = true
	m.records[id] = rec
	return cloneRecord(rec), nil
}

func (m *MemoryStore) ListNutritionRecords(ctx context.Context, arg ListRecordsParams) ([]NutritionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := []NutritionRecord{}
	for _, rec := range m.records {
		if rec.UserID != arg.UserID {
			continue
		}
		if arg.ConsumedOnly && !rec.IsConsumed {
			continue
		}
		if arg.FromDate != "" && rec.ScanDate < arg.FromDate {
			continue
		}
		if arg.ToDate != "" && rec.ScanDate > arg.ToDate {
			continue
		}
		items = append(items, cloneRecord(rec))
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].ID > items[j].ID
		}
		return items[i].Timestamp.After(items[j].Timestamp)
	})

	if arg.Limit > 0 && len(items) > int(arg.Limit) {
		items = items[:arg.Limit]
	}
	return items, nil
}

func (m *MemoryStore) DeleteNutritionRecords(ctx context.Context, userID string, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, id := range ids {
		rec, ok := m.records[id]
		if !ok || rec.UserID != userID {
			continue
		}
		delete(m.records, id)
		n++
	}
	return n, nil
}

func (m *MemoryStore) GetUserPreferences(ctx context.Context, userID string) (UserPreferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.prefs[userID]
	if !ok {
		return UserPreferences{}, ErrNotFound
	}
	p.DietaryPreferences = cloneAnswers(p.DietaryPreferences)
	return p, nil
}

func (m *MemoryStore) UpsertUserPreferences(ctx context.Context, userID string, answers questionnaire.Answers) (UserPreferences, error) {
	if err := ctx.Err(); err != nil {
		return UserPreferences{}, storageErr("upsert user preferences", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	p, ok := m.prefs[userID]
	if !ok {
		p = UserPreferences{UserID: userID, CompletedAt: now}
	}
	p.DietaryPreferences = cloneAnswers(answers)
	p.UpdatedAt = now
	p.Revision++
	m.prefs[userID] = p

	p.DietaryPreferences = cloneAnswers(p.DietaryPreferences)
	return p, nil
}

func (m *MemoryStore) GetPreferencesRevision(ctx context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.prefs[userID]
	if !ok {
		return 0, ErrNotFound
	}
	return p.Revision, nil
}

func cloneAnswers(a questionnaire.Answers) questionnaire.Answers {
	out := make(questionnaire.Answers, len(a))
	for id, v := range a {
		v.Values = slices.Clone(v.Values)
		out[id] = v
	}
	return out
}
