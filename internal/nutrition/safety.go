package nutrition

import (
	"regexp"
	"slices"
	"strings"
)

const (
	ConflictNotVegetarian = "Contains meat products (not vegetarian)"
	ConflictNotVegan      = "Contains animal products (not vegan)"
	ConflictGluten        = "Contains gluten"

	SafetyAlertTitle = "Important Health Alert"
)

type dietaryRule struct {
	restriction string
	pattern     *regexp.Regexp
	conflict    string
}

var dietaryRules = []dietaryRule{
	{"Vegetarian", regexp.MustCompile(`(?i)beef|chicken|pork|meat|fish|seafood`), ConflictNotVegetarian},
	{"Vegan", regexp.MustCompile(`(?i)milk|cheese|egg|honey|meat|fish|seafood`), ConflictNotVegan},
	{"Gluten-Free", regexp.MustCompile(`(?i)wheat|barley|rye|gluten`), ConflictGluten},
}

// SafetyReport is a point-in-time snapshot of how a scan conflicts with the user's profile.
type SafetyReport struct {
	AllergenConflicts []string `json:"allergenConflicts"`
	DietaryConflicts  []string `json:"dietaryConflicts"`
}

func (r SafetyReport) HasConflicts() bool {
	return len(r.AllergenConflicts) > 0 || len(r.DietaryConflicts) > 0
}

type AlertAction struct {
	Label string `json:"label"`
	Style string `json:"style"`
}

// SafetyAlert is the blocking confirmation shown before a conflicted scan is treated as final.
type SafetyAlert struct {
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Actions []AlertAction `json:"actions"`
}

// Alert builds the confirmation for r, or nil when there is nothing to confirm.
func (r SafetyReport) Alert() *SafetyAlert {
	if !r.HasConflicts() {
		return nil
	}

	var msg strings.Builder
	if len(r.AllergenConflicts) > 0 {
		msg.WriteString("⚠️ ALLERGEN ALERT: This food contains ")
		msg.WriteString(strings.Join(r.AllergenConflicts, ", "))
		msg.WriteString(".\n\n")
	}
	if len(r.DietaryConflicts) > 0 {
		msg.WriteString("DIETARY CONFLICTS:\n")
		msg.WriteString(strings.Join(r.DietaryConflicts, "\n"))
	}

	return &SafetyAlert{
		Title:   SafetyAlertTitle,
		Message: msg.String(),
		Actions: []AlertAction{
			{Label: "Cancel", Style: "cancel"},
			{Label: "Continue Anyway", Style: "destructive"},
		},
	}
}

// CrossCheck compares the model-reported allergens and ingredients with the user's profile.
// An allergen conflicts when its lower-case form contains one of the user's allergy terms.
func CrossCheck(parsed ParsedNutrition, profile HealthProfile) SafetyReport {
	report := SafetyReport{
		AllergenConflicts: matchAllergens(parsed.Allergens, profile.Allergies),
		DietaryConflicts:  []string{},
	}

	for _, rule := range dietaryRules {
		if !profile.HasRestriction(rule.restriction) {
			continue
		}
		if slices.ContainsFunc(parsed.Ingredients, rule.pattern.MatchString) {
			report.DietaryConflicts = append(report.DietaryConflicts, rule.conflict)
		}
	}

	return report
}

func matchAllergens(found, userAllergies []string) []string {
	matches := []string{}
	for _, allergen := range found {
		lower := strings.ToLower(allergen)
		for _, term := range userAllergies {
			if term == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(term)) {
				matches = append(matches, allergen)
				break
			}
		}
	}
	return matches
}
