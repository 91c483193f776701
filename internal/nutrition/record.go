package nutrition

import (
	"time"

	"NutriScan/internal/database"
)

// ScanDateLayout is the aggregation key format of a record's scanDate.
const ScanDateLayout = "2006-01-02"

// ScanDate returns the UTC calendar date of t as used by scanDate.
func ScanDate(t time.Time) string {
	return t.UTC().Format(ScanDateLayout)
}

// BuildRecord shapes parsed model output and the safety snapshot into a new, unconsumed
// record owned by userID. Every numeric field is normalized from its display value.
func BuildRecord(userID, imageURL string, parsed ParsedNutrition, report SafetyReport, now time.Time) database.NutritionRecord {
	return database.NutritionRecord{
		UserID:   userID,
		FoodName: orDefault(parsed.FoodName, "Unknown Food"),

		Calories:    orDefault(parsed.Calories, "0 kcal"),
		CaloriesNum: NormalizeNutrient(parsed.Calories),
		Protein:     orDefault(parsed.Protein, "0g"),
		ProteinNum:  NormalizeNutrient(parsed.Protein),
		Carbs:       orDefault(parsed.Carbs, "0g"),
		CarbsNum:    NormalizeNutrient(parsed.Carbs),
		Fat:         orDefault(parsed.Fat, "0g"),
		FatNum:      NormalizeNutrient(parsed.Fat),
		Fiber:       orDefault(parsed.Fiber, "0g"),
		FiberNum:    NormalizeNutrient(parsed.Fiber),
		Sugar:       orDefault(parsed.Sugar, "0g"),
		SugarNum:    NormalizeNutrient(parsed.Sugar),

		Ingredients:                nonEmpty(parsed.Ingredients),
		Allergens:                  nonEmpty(parsed.Allergens),
		AdditionalInfo:             parsed.AdditionalInfo,
		HealthTips:                 parsed.HealthTips,
		PersonalizedRecommendation: parsed.PersonalizedRecommendation,

		ImageURL:  imageURL,
		ScanDate:  ScanDate(now),
		Timestamp: now.UTC(),

		DietaryConflicts:  nonEmpty(report.DietaryConflicts),
		AllergenConflicts: nonEmpty(report.AllergenConflicts),
		IsPlaceholder:     parsed.Placeholder,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nonEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
