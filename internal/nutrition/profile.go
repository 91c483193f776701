// Package nutrition turns questionnaire answers and model output into safe, normalized
// nutrition records, and aggregates persisted records for the summary views.
package nutrition

import (
	"fmt"
	"slices"
	"strings"

	"NutriScan/internal/questionnaire"
)

// LifestyleFactors holds the optional lifestyle answers. Empty string means unanswered.
type LifestyleFactors struct {
	Exercise               string `json:"exercise,omitempty"`
	Lifestyle              string `json:"lifestyle,omitempty"`
	CalorieIntake          string `json:"calorieIntake,omitempty"`
	SaltIntake             string `json:"saltIntake,omitempty"`
	SugarIntake            string `json:"sugarIntake,omitempty"`
	ProcessedFoodFrequency string `json:"processedFoodFrequency,omitempty"`
	WaterIntake            string `json:"waterIntake,omitempty"`
	MealsPerDay            string `json:"mealsPerDay,omitempty"`
}

func (l LifestyleFactors) IsEmpty() bool {
	return l == LifestyleFactors{}
}

// HealthProfile is derived from a user's questionnaire answers. It is never persisted.
type HealthProfile struct {
	// Completed is set when the user has answered the questionnaire at all.
	Completed bool `json:"completed"`

	Allergies           []string         `json:"allergies"`
	DietaryRestrictions []string         `json:"dietaryRestrictions"`
	HealthConditions    []string         `json:"healthConditions"`
	LifestyleFactors    LifestyleFactors `json:"lifestyleFactors"`
	Supplements         []string         `json:"supplements"`
	Medications         string           `json:"medications"`
	DiabetesStatus      string           `json:"diabetesStatus"`
	Hypertension        bool             `json:"hypertension"`
}

// EmptyProfile is the profile of a user without questionnaire answers.
func EmptyProfile() HealthProfile {
	return HealthProfile{
		Allergies:           []string{},
		DietaryRestrictions: []string{},
		HealthConditions:    []string{},
		Supplements:         []string{},
	}
}

// HasRestriction reports whether the profile lists the restriction, ignoring case.
func (p HealthProfile) HasRestriction(name string) bool {
	return containsFold(p.DietaryRestrictions, name)
}

// ExtractHealthProfile derives a profile from named answers. It never fails: wrongly shaped or
// missing answers degrade to empty values, "None" is dropped from multi-selects, and answers
// to dependent questions only count when their gating question is "Yes".
func ExtractHealthProfile(answers questionnaire.NamedAnswers) HealthProfile {
	p := EmptyProfile()
	if len(answers) == 0 {
		return p
	}
	p.Completed = true

	if yes(answers, questionnaire.KeyHasAllergies) {
		if list, ok := answers.List(questionnaire.KeyAllergyList); ok {
			p.Allergies = append(p.Allergies, list...)
		}
	}

	p.DietaryRestrictions = appendChoices(p.DietaryRestrictions, answers, questionnaire.KeyDietaryRestrictions)
	p.HealthConditions = appendChoices(p.HealthConditions, answers, questionnaire.KeyDigestiveConditions)

	if status, ok := answers.String(questionnaire.KeyDiabetesStatus); ok && status != "" && status != "No" {
		p.DiabetesStatus = status
		p.HealthConditions = append(p.HealthConditions, fmt.Sprintf("Diabetes (%s)", status))
	}

	if yes(answers, questionnaire.KeyHypertension) {
		p.Hypertension = true
		p.HealthConditions = append(p.HealthConditions, "Hypertension")
	}

	if yes(answers, questionnaire.KeyTakesMedications) {
		p.Medications = "Unspecified medications"
		if meds, ok := answers.String(questionnaire.KeyMedicationList); ok && meds != "" {
			p.Medications = meds
		}
	}

	p.HealthConditions = appendChoices(p.HealthConditions, answers, questionnaire.KeyMetabolicDisorders)

	if freq, ok := answers.String(questionnaire.KeyBloatingFrequency); ok && freq != "" && freq != "Never" && freq != "Rarely" {
		p.HealthConditions = append(p.HealthConditions, fmt.Sprintf("Frequent bloating (%s)", freq))
	}

	p.LifestyleFactors = LifestyleFactors{
		CalorieIntake:          text(answers, questionnaire.KeyCalorieIntake),
		SaltIntake:             text(answers, questionnaire.KeySaltIntake),
		SugarIntake:            text(answers, questionnaire.KeySugarIntake),
		ProcessedFoodFrequency: text(answers, questionnaire.KeyProcessedFoodFrequency),
		Exercise:               text(answers, questionnaire.KeyExerciseFrequency),
		Lifestyle:              text(answers, questionnaire.KeyActivityLevel),
		MealsPerDay:            text(answers, questionnaire.KeyMealsPerDay),
		WaterIntake:            text(answers, questionnaire.KeyWaterIntake),
	}

	if yes(answers, questionnaire.KeyTakesSupplements) {
		if list, ok := answers.List(questionnaire.KeySupplementList); ok {
			p.Supplements = append(p.Supplements, list...)
		}
	}

	return p
}

func yes(answers questionnaire.NamedAnswers, key string) bool {
	v, ok := answers.String(key)
	return ok && v == "Yes"
}

func text(answers questionnaire.NamedAnswers, key string) string {
	v, _ := answers.String(key)
	return v
}

func appendChoices(dst []string, answers questionnaire.NamedAnswers, key string) []string {
	list, ok := answers.List(key)
	if !ok {
		return dst
	}
	for _, v := range list {
		if v != questionnaire.NoneOption {
			dst = append(dst, v)
		}
	}
	return dst
}

func containsFold(list []string, s string) bool {
	return slices.ContainsFunc(list, func(v string) bool {
		return strings.EqualFold(v, s)
	})
}
