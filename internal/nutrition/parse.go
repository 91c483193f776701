package nutrition

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// ParsedNutrition is the model's answer after parsing. Every field is optional; absent ones
// are empty.
type ParsedNutrition struct {
	FoodName                   string   `json:"foodName"`
	Calories                   string   `json:"calories"`
	Protein                    string   `json:"protein"`
	Carbs                      string   `json:"carbs"`
	Fat                        string   `json:"fat"`
	Fiber                      string   `json:"fiber"`
	Sugar                      string   `json:"sugar"`
	Ingredients                []string `json:"ingredients"`
	Allergens                  []string `json:"allergens"`
	AdditionalInfo             string   `json:"additionalInfo"`
	HealthTips                 string   `json:"healthTips"`
	PersonalizedRecommendation string   `json:"personalizedRecommendation"`

	// Placeholder marks data synthesized by the fallback generator.
	Placeholder bool `json:"-"`
}

// ParseOutcome records which step of the repair cascade produced the result.
type ParseOutcome string

const (
	OutcomeDirect      ParseOutcome = "direct"
	OutcomeRepaired    ParseOutcome = "repaired"
	OutcomePlaceholder ParseOutcome = "placeholder"
)

var (
	jsonObject  = regexp.MustCompile(`(?s)\{.*\}`)
	textCleaner = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		"\n", " ",
	)
)

// ParseCompletion reads the model's raw text. It tries a direct JSON parse, then a cleaned
// re-parse of the outermost object, and finally falls back to the deterministic placeholder
// for imageURL. It never fails.
func ParseCompletion(raw, imageURL string, profile HealthProfile) (ParsedNutrition, ParseOutcome) {
	if fields, ok := decodeObject(raw); ok {
		return fromFields(fields), OutcomeDirect
	}

	cleaned := strings.TrimSpace(textCleaner.Replace(raw))
	if m := jsonObject.FindString(cleaned); m != "" {
		if fields, ok := decodeObject(m); ok {
			return fromFields(fields), OutcomeRepaired
		}
	}

	return Placeholder(imageURL, profile), OutcomePlaceholder
}

func decodeObject(s string) (map[string]any, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func fromFields(f map[string]any) ParsedNutrition {
	return ParsedNutrition{
		FoodName:                   stringField(f["foodName"]),
		Calories:                   stringField(f["calories"]),
		Protein:                    stringField(f["protein"]),
		Carbs:                      stringField(f["carbs"]),
		Fat:                        stringField(f["fat"]),
		Fiber:                      stringField(f["fiber"]),
		Sugar:                      stringField(f["sugar"]),
		Ingredients:                listField(f["ingredients"]),
		Allergens:                  listField(f["allergens"]),
		AdditionalInfo:             stringField(f["additionalInfo"]),
		HealthTips:                 stringField(f["healthTips"]),
		PersonalizedRecommendation: stringField(f["personalizedRecommendation"]),
	}
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// listField keeps the string elements of an array. Any other shape is an empty list.
func listField(v any) []string {
	out := []string{}
	arr, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
