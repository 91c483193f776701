package database

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"NutriScan/internal/questionnaire"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCall struct {
	sql  string
	args []any
}

// fakeDB records every statement and answers from canned rows.
type fakeDB struct {
	calls []fakeCall
	row   fakeRow
	rows  [][]any
	tag   string
	err   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, fakeCall{sql: sql, args: args})
	return pgconn.NewCommandTag(f.tag), f.err
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	f.calls = append(f.calls, fakeCall{sql: sql, args: args})
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{rows: f.rows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	f.calls = append(f.calls, fakeCall{sql: sql, args: args})
	return f.row
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

func assign(values, dest []any) error {
	if len(values) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, v := range values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.pos++; return r.pos < len(r.rows) }
func (r *fakeRows) Scan(dest ...any) error                       { return assign(r.rows[r.pos], dest) }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

// recordRow lays rec out in the column order of nutritionRecordColumns.
func recordRow(rec NutritionRecord) []any {
	return []any{
		rec.ID, rec.UserID, rec.FoodName,
		rec.Calories, rec.CaloriesNum, rec.Protein, rec.ProteinNum, rec.Carbs, rec.CarbsNum,
		rec.Fat, rec.FatNum, rec.Fiber, rec.FiberNum, rec.Sugar, rec.SugarNum,
		rec.Ingredients, rec.Allergens, rec.AdditionalInfo, rec.HealthTips, rec.PersonalizedRecommendation,
		rec.ImageURL, rec.ScanDate, rec.Timestamp, rec.IsConsumed, rec.ConsumedAt,
		rec.DietaryConflicts, rec.AllergenConflicts, rec.IsPlaceholder,
	}
}

const recordID = "7f1d4c2e-7a43-4a55-9a55-3e2b9d1c0a11"

func TestQueriesCreateNutritionRecordArgs(t *testing.T) {
	saved := NutritionRecord{
		ID: recordID, UserID: "u1", FoodName: "Apple", Calories: "95 kcal", CaloriesNum: 95,
		Ingredients: []string{}, Allergens: []string{}, DietaryConflicts: []string{}, AllergenConflicts: []string{},
		ScanDate: "2026-03-01", Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	db := &fakeDB{row: fakeRow{values: recordRow(saved)}}

	got, err := New(db).CreateNutritionRecord(context.Background(), NutritionRecord{
		UserID: "u1", FoodName: "Apple", Calories: "95 kcal", CaloriesNum: 95, ScanDate: "2026-03-01",
	})
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	require.Len(t, db.calls, 1)
	call := db.calls[0]
	assert.Contains(t, call.sql, "INSERT INTO nutrition_records")
	assert.Contains(t, call.sql, "$21::date")
	require.Len(t, call.args, 24)
	assert.Equal(t, "u1", call.args[0])
	assert.Equal(t, "2026-03-01", call.args[20])
	for _, i := range []int{14, 15, 21, 22} {
		assert.Equal(t, []string{}, call.args[i], "nil lists are sent as empty arrays")
	}
}

func TestQueriesRecordLookupsAreOwnerScoped(t *testing.T) {
	ctx := context.Background()

	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := New(db).GetNutritionRecord(ctx, "u1", recordID)
	assert.ErrorIs(t, err, ErrNotFound)
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "WHERE id = $1::uuid AND user_id = $2")
	assert.Equal(t, []any{recordID, "u1"}, db.calls[0].args)

	db = &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	_, err = New(db).MarkRecordConsumed(ctx, "u2", recordID)
	assert.ErrorIs(t, err, ErrNotFound)
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "consumed_at = COALESCE(consumed_at, now())")
	assert.Contains(t, db.calls[0].sql, "user_id = $2")
	assert.Equal(t, []any{recordID, "u2"}, db.calls[0].args)

	// Malformed ids never reach the database.
	db = &fakeDB{}
	_, err = New(db).GetNutritionRecord(ctx, "u1", "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = New(db).MarkRecordConsumed(ctx, "u1", "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, db.calls)
}

func TestQueriesStorageFailuresAreWrapped(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: errors.New("connection reset")}}
	_, err := New(db).GetNutritionRecord(context.Background(), "u1", recordID)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "get nutrition record", se.Op)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestQueriesListNutritionRecords(t *testing.T) {
	a := NutritionRecord{ID: "a", UserID: "u1", FoodName: "Soup", ScanDate: "2026-03-02"}
	b := NutritionRecord{ID: "b", UserID: "u1", FoodName: "Salad", ScanDate: "2026-03-01"}
	db := &fakeDB{rows: [][]any{recordRow(a), recordRow(b)}}

	got, err := New(db).ListNutritionRecords(context.Background(), ListRecordsParams{
		UserID: "u1", ConsumedOnly: true, FromDate: "2026-03-01", ToDate: "2026-03-07",
	})
	require.NoError(t, err)
	assert.Equal(t, []NutritionRecord{a, b}, got)

	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "LIMIT NULLIF($5::int, 0)")
	assert.Contains(t, db.calls[0].sql, "ORDER BY created_at DESC")
	assert.Equal(t, []any{"u1", true, "2026-03-01", "2026-03-07", int32(0)}, db.calls[0].args)

	db = &fakeDB{}
	got, err = New(db).ListNutritionRecords(context.Background(), ListRecordsParams{UserID: "u1"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQueriesDeleteNutritionRecords(t *testing.T) {
	db := &fakeDB{tag: "DELETE 2"}
	n, err := New(db).DeleteNutritionRecords(context.Background(), "u1", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "WHERE user_id = $1")
	assert.Equal(t, []any{"u1", []string{"a", "b", "c"}}, db.calls[0].args)

	db = &fakeDB{}
	n, err = New(db).DeleteNutritionRecords(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, db.calls)
}

func TestQueriesUserPreferences(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	db := &fakeDB{row: fakeRow{values: []any{"u1", []byte(`{"1":"No","3":["Vegan"]}`), now, now, int64(3)}}}

	prefs, err := New(db).UpsertUserPreferences(ctx, "u1", questionnaire.Answers{
		1: questionnaire.Text("No"),
		3: questionnaire.List("Vegan"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), prefs.Revision)
	assert.Equal(t, []string{"Vegan"}, prefs.DietaryPreferences[3].Values)

	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "revision = user_preferences.revision + 1")
	require.Len(t, db.calls[0].args, 2)
	assert.Equal(t, "u1", db.calls[0].args[0])
	assert.JSONEq(t, `{"1":"No","3":["Vegan"]}`, db.calls[0].args[1].(string))

	db = &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	_, err = New(db).GetUserPreferences(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = New(db).GetPreferencesRevision(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	db = &fakeDB{row: fakeRow{values: []any{int64(4)}}}
	rev, err := New(db).GetPreferencesRevision(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), rev)
}
