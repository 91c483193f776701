package database

import (
	"time"

	"NutriScan/internal/questionnaire"
)

// NutritionRecord is one persisted scan, owned by UserID.
type NutritionRecord struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	FoodName string `json:"foodName"`

	Calories    string  `json:"calories"`
	CaloriesNum float64 `json:"caloriesNum"`
	Protein     string  `json:"protein"`
	ProteinNum  float64 `json:"proteinNum"`
	Carbs       string  `json:"carbs"`
	CarbsNum    float64 `json:"carbsNum"`
	Fat         string  `json:"fat"`
	FatNum      float64 `json:"fatNum"`
	Fiber       string  `json:"fiber"`
	FiberNum    float64 `json:"fiberNum"`
	Sugar       string  `json:"sugar"`
	SugarNum    float64 `json:"sugarNum"`

	Ingredients                []string `json:"ingredients"`
	Allergens                  []string `json:"allergens"`
	AdditionalInfo             string   `json:"additionalInfo"`
	HealthTips                 string   `json:"healthTips"`
	PersonalizedRecommendation string   `json:"personalizedRecommendation"`

	ImageURL  string    `json:"imageUrl"`
	ScanDate  string    `json:"scanDate"` // YYYY-MM-DD, UTC
	Timestamp time.Time `json:"timestamp"`

	IsConsumed bool       `json:"isConsumed"`
	ConsumedAt *time.Time `json:"consumedAt,omitempty"`

	DietaryConflicts  []string `json:"dietaryConflicts"`
	AllergenConflicts []string `json:"allergenConflicts"`
	IsPlaceholder     bool     `json:"isPlaceholder"`
}

// HasConflicts reports whether the record was flagged by the safety check at creation.
func (r NutritionRecord) HasConflicts() bool {
	return len(r.DietaryConflicts) > 0 || len(r.AllergenConflicts) > 0
}

// UserPreferences is a user's questionnaire answer set. Revision is bumped on every write.
type UserPreferences struct {
	UserID             string                `json:"userId"`
	DietaryPreferences questionnaire.Answers `json:"dietaryPreferences"`
	CompletedAt        time.Time             `json:"completedAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
	Revision           int64                 `json:"revision"`
}

// ListRecordsParams filters a user's records. Dates are inclusive YYYY-MM-DD bounds; empty
// means unbounded. A zero Limit returns every match.
type ListRecordsParams struct {
	UserID       string
	ConsumedOnly bool
	FromDate     string
	ToDate       string
	Limit        int32
}
