package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"NutriScan/internal/questionnaire"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

const nutritionRecordColumns = `id::text, user_id, food_name,
    calories, calories_num, protein, protein_num, carbs, carbs_num,
    fat, fat_num, fiber, fiber_num, sugar, sugar_num,
    ingredients, allergens, additional_info, health_tips, personalized_recommendation,
    image_url, to_char(scan_date, 'YYYY-MM-DD'), created_at, is_consumed, consumed_at,
    dietary_conflicts, allergen_conflicts, is_placeholder`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNutritionRecord(row rowScanner) (NutritionRecord, error) {
	var i NutritionRecord
	err := row.Scan(
		&i.ID, &i.UserID, &i.FoodName,
		&i.Calories, &i.CaloriesNum, &i.Protein, &i.ProteinNum, &i.Carbs, &i.CarbsNum,
		&i.Fat, &i.FatNum, &i.Fiber, &i.FiberNum, &i.Sugar, &i.SugarNum,
		&i.Ingredients, &i.Allergens, &i.AdditionalInfo, &i.HealthTips, &i.PersonalizedRecommendation,
		&i.ImageURL, &i.ScanDate, &i.Timestamp, &i.IsConsumed, &i.ConsumedAt,
		&i.DietaryConflicts, &i.AllergenConflicts, &i.IsPlaceholder,
	)
	return i, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const createNutritionRecord = `-- name: CreateNutritionRecord :one
INSERT INTO nutrition_records (
    user_id, food_name,
    calories, calories_num, protein, protein_num, carbs, carbs_num,
    fat, fat_num, fiber, fiber_num, sugar, sugar_num,
    ingredients, allergens, additional_info, health_tips, personalized_recommendation,
    image_url, scan_date, dietary_conflicts, allergen_conflicts, is_placeholder
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
    $15, $16, $17, $18, $19, $20, $21::date, $22, $23, $24
)
RETURNING ` + nutritionRecordColumns

func (q *Queries) CreateNutritionRecord(ctx context.Context, arg NutritionRecord) (NutritionRecord, error) {
	row := q.db.QueryRow(ctx, createNutritionRecord,
		arg.UserID, arg.FoodName,
		arg.Calories, arg.CaloriesNum, arg.Protein, arg.ProteinNum, arg.Carbs, arg.CarbsNum,
		arg.Fat, arg.FatNum, arg.Fiber, arg.FiberNum, arg.Sugar, arg.SugarNum,
		nonNil(arg.Ingredients), nonNil(arg.Allergens), arg.AdditionalInfo, arg.HealthTips, arg.PersonalizedRecommendation,
		arg.ImageURL, arg.ScanDate, nonNil(arg.DietaryConflicts), nonNil(arg.AllergenConflicts), arg.IsPlaceholder,
	)
	rec, err := scanNutritionRecord(row)
	if err != nil {
		return NutritionRecord{}, storageErr("create nutrition record", err)
	}
	return rec, nil
}

const getNutritionRecord = `-- name: GetNutritionRecord :one
SELECT ` + nutritionRecordColumns + `
FROM nutrition_records
WHERE id = $1::uuid AND user_id = $2`

func (q *Queries) GetNutritionRecord(ctx context.Context, userID, id string) (NutritionRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return NutritionRecord{}, ErrNotFound
	}
	rec, err := scanNutritionRecord(q.db.QueryRow(ctx, getNutritionRecord, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return NutritionRecord{}, ErrNotFound
	}
	if err != nil {
		return NutritionRecord{}, storageErr("get nutrition record", err)
	}
	return rec, nil
}

const markRecordConsumed = `-- name: MarkRecordConsumed :one
UPDATE nutrition_records
SET is_consumed = true,
    consumed_at = COALESCE(consumed_at, now())
WHERE id = $1::uuid AND user_id = $2
RETURNING ` + nutritionRecordColumns

func (q *Queries) MarkRecordConsumed(ctx context.Context, userID, id string) (NutritionRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return NutritionRecord{}, ErrNotFound
	}
	rec, err := scanNutritionRecord(q.db.QueryRow(ctx, markRecordConsumed, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return NutritionRecord{}, ErrNotFound
	}
	if err != nil {
		return NutritionRecord{}, storageErr("mark record consumed", err)
	}
	return rec, nil
}

const listNutritionRecords = `-- name: ListNutritionRecords :many
SELECT ` + nutritionRecordColumns + `
FROM nutrition_records
WHERE user_id = $1
  AND ($2::bool = false OR is_consumed)
  AND ($3::text = '' OR scan_date >= $3::date)
  AND ($4::text = '' OR scan_date <= $4::date)
ORDER BY created_at DESC
LIMIT NULLIF($5::int, 0)`

func (q *Queries) ListNutritionRecords(ctx context.Context, arg ListRecordsParams) ([]NutritionRecord, error) {
	rows, err := q.db.Query(ctx, listNutritionRecords,
		arg.UserID, arg.ConsumedOnly, arg.FromDate, arg.ToDate, arg.Limit,
	)
	if err != nil {
		return nil, storageErr("list nutrition records", err)
	}
	defer rows.Close()

	items := []NutritionRecord{}
	for rows.Next() {
		i, err := scanNutritionRecord(rows)
		if err != nil {
			return nil, storageErr("list nutrition records", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list nutrition records", err)
	}
	return items, nil
}

const deleteNutritionRecords = `-- name: DeleteNutritionRecords :execrows
DELETE FROM nutrition_records
WHERE user_id = $1 AND id::text = ANY($2::text[])`

func (q *Queries) DeleteNutritionRecords(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := q.db.Exec(ctx, deleteNutritionRecords, userID, ids)
	if err != nil {
		return 0, storageErr("delete nutrition records", err)
	}
	return tag.RowsAffected(), nil
}

const getUserPreferences = `-- name: GetUserPreferences :one
SELECT user_id, dietary_preferences, completed_at, updated_at, revision
FROM user_preferences
WHERE user_id = $1`

func scanUserPreferences(row rowScanner) (UserPreferences, error) {
	var (
		i   UserPreferences
		raw []byte
	)
	if err := row.Scan(&i.UserID, &raw, &i.CompletedAt, &i.UpdatedAt, &i.Revision); err != nil {
		return UserPreferences{}, err
	}
	i.DietaryPreferences = questionnaire.Answers{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &i.DietaryPreferences); err != nil {
			return UserPreferences{}, fmt.Errorf("decode dietary preferences: %w", err)
		}
	}
	return i, nil
}

func (q *Queries) GetUserPreferences(ctx context.Context, userID string) (UserPreferences, error) {
	prefs, err := scanUserPreferences(q.db.QueryRow(ctx, getUserPreferences, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return UserPreferences{}, ErrNotFound
	}
	if err != nil {
		return UserPreferences{}, storageErr("get user preferences", err)
	}
	return prefs, nil
}

const upsertUserPreferences = `-- name: UpsertUserPreferences :one
INSERT INTO user_preferences (user_id, dietary_preferences, completed_at, updated_at, revision)
VALUES ($1, $2::jsonb, now(), now(), 1)
ON CONFLICT (user_id) DO UPDATE
SET dietary_preferences = EXCLUDED.dietary_preferences,
    updated_at = now(),
    revision = user_preferences.revision + 1
RETURNING user_id, dietary_preferences, completed_at, updated_at, revision`

func (q *Queries) UpsertUserPreferences(ctx context.Context, userID string, answers questionnaire.Answers) (UserPreferences, error) {
	if answers == nil {
		answers = questionnaire.Answers{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return UserPreferences{}, fmt.Errorf("encode dietary preferences: %w", err)
	}
	prefs, err := scanUserPreferences(q.db.QueryRow(ctx, upsertUserPreferences, userID, string(raw)))
	if err != nil {
		return UserPreferences{}, storageErr("upsert user preferences", err)
	}
	return prefs, nil
}

const getPreferencesRevision = `-- name: GetPreferencesRevision :one
SELECT revision FROM user_preferences WHERE user_id = $1`

func (q *Queries) GetPreferencesRevision(ctx context.Context, userID string) (int64, error) {
	var revision int64
	err := q.db.QueryRow(ctx, getPreferencesRevision, userID).Scan(&revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, storageErr("get preferences revision", err)
	}
	return revision, nil
}
