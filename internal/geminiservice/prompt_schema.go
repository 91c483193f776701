package geminiservice

import (
	"fmt"
	"strings"

	"NutriScan/internal/nutrition"
)

/* =================================================================================
							GEMINI SCHEMA DEFINITION
	Tells Gemini how to format the nutrition JSON it returns for a food image
=================================================================================*/

// GeminiSchema defines the structure for "Controlled Generation" (Structured Output).
type GeminiSchema struct {
	// Type defines the data type (e.g., "OBJECT", "ARRAY", "STRING").
	Type string `json:"type"`

	// Description explains the field's purpose to the model.
	Description string `json:"description,omitempty"`

	// Properties maps field names to their child schemas (used when Type is "OBJECT").
	Properties map[string]*GeminiSchema `json:"properties,omitempty"`

	// Items defines the schema for elements within an array (used when Type is "ARRAY").
	Items *GeminiSchema `json:"items,omitempty"`

	Required []string `json:"required,omitempty"`
}

// NutritionFields is the ordered list of fields the model must return.
var NutritionFields = []struct {
	Name        string
	Description string
	List        bool
}{
	{"foodName", "Name of the food", false},
	{"calories", "Calorie content with units just numbers", false},
	{"protein", "Protein content with units just numbers", false},
	{"carbs", "Carbohydrate content with units just numbers", false},
	{"fat", "Fat content with units just numbers", false},
	{"fiber", "Fiber content with units just numbers", false},
	{"sugar", "Sugar content with units just numbers", false},
	{"ingredients", "Array of ingredients in the food", true},
	{"allergens", "Array of allergens present in the food", true},
	{"additionalInfo", "General nutritional information", false},
	{"healthTips", "General health advice related to this food", false},
	{"personalizedRecommendation", "Detailed personalized advice based on the user's health profile", false},
}

// NutritionSchema is sent as the responseSchema of every scan request.
var NutritionSchema = buildNutritionSchema()

func buildNutritionSchema() *GeminiSchema {
	s := &GeminiSchema{
		Type:       "OBJECT",
		Properties: make(map[string]*GeminiSchema, len(NutritionFields)),
	}
	for _, f := range NutritionFields {
		if f.List {
			s.Properties[f.Name] = &GeminiSchema{Type: "ARRAY", Description: f.Description, Items: &GeminiSchema{Type: "STRING"}}
		} else {
			s.Properties[f.Name] = &GeminiSchema{Type: "STRING", Description: f.Description}
		}
		s.Required = append(s.Required, f.Name)
	}
	return s
}

/* =================================================================================
								PROMPT COMPOSER
=================================================================================*/

const (
	baseSystemPrompt = "You are a nutrition expert specialized in analyzing food images and providing personalized dietary recommendations. " +
		"Provide detailed nutritional information based on the food image, including calories, macronutrients, and health insights.\n\n" +
		"YOUR TOP PRIORITY is to identify any common allergens present in the food (such as peanuts, tree nuts, milk, eggs, wheat, soy, fish, shellfish) " +
		"and how the food aligns with the user's health profile."

	baseUserPrompt = "Analyze this food image and provide detailed nutritional information as a JSON object. " +
		"I need specific information about its nutritional content, potential allergens, and how it fits with my health profile."

	personalizedUserPrompt = " Please provide personalized recommendations based on my dietary preferences, health conditions, and lifestyle factors."
)

// ScanPrompt is everything the completion endpoint needs for one food image.
type ScanPrompt struct {
	System   string
	User     string
	ImageURL string
}

// ComposeScanPrompt builds the instructions for analyzing imageURL. Profile clauses are added
// only for facets the user actually filled in. The output depends only on its inputs.
func ComposeScanPrompt(profile nutrition.HealthProfile, imageURL string) ScanPrompt {
	var sys strings.Builder
	sys.WriteString(baseSystemPrompt)

	if len(profile.DietaryRestrictions) > 0 {
		fmt.Fprintf(&sys, "\n\nDIETARY RESTRICTIONS: The user follows these dietary patterns: %s. Evaluate how well this food aligns with these restrictions and provide specific guidance.",
			strings.Join(profile.DietaryRestrictions, ", "))
	}
	if len(profile.Allergies) > 0 {
		fmt.Fprintf(&sys, "\n\nALLERGIES (CRITICAL): The user has reported allergies to: %s. These MUST be highlighted as allergens if present in the food. This is essential for the user's safety.",
			strings.Join(profile.Allergies, ", "))
	}
	if len(profile.HealthConditions) > 0 {
		fmt.Fprintf(&sys, "\n\nHEALTH CONDITIONS: The user has the following health conditions: %s. Provide specific nutritional recommendations that account for these conditions.",
			strings.Join(profile.HealthConditions, ", "))
	}
	if factors := lifestyleDetails(profile.LifestyleFactors); len(factors) > 0 {
		fmt.Fprintf(&sys, "\n\nLIFESTYLE FACTORS: The user's lifestyle includes: %s. Analyze how this food fits with these lifestyle factors.",
			strings.Join(factors, ", "))
	}
	if len(profile.Supplements) > 0 {
		fmt.Fprintf(&sys, "\n\nSUPPLEMENTS: The user takes the following supplements: %s. Consider nutrient interactions and complementary needs.",
			strings.Join(profile.Supplements, ", "))
	}
	if profile.Medications != "" {
		fmt.Fprintf(&sys, "\n\nMEDICATIONS: The user takes: %s. Consider potential food-drug interactions.", profile.Medications)
	}
	if profile.DiabetesStatus != "" {
		fmt.Fprintf(&sys, "\n\nDIABETES: The user has %s diabetes. Evaluate carbohydrate content and glycemic impact of this food.", profile.DiabetesStatus)
	}
	if profile.Hypertension {
		sys.WriteString("\n\nHYPERTENSION: The user has high blood pressure. Evaluate sodium content and blood pressure impact of this food.")
	}

	sys.WriteString("\n\nYour response should be a well-structured JSON object with the following fields:")
	for _, f := range NutritionFields {
		fmt.Fprintf(&sys, "\n- %s: %s", f.Name, f.Description)
	}

	user := baseUserPrompt
	if profile.Completed {
		user += personalizedUserPrompt
	}

	return ScanPrompt{System: sys.String(), User: user, ImageURL: imageURL}
}

func lifestyleDetails(l nutrition.LifestyleFactors) []string {
	var out []string
	add := func(v, suffix string) {
		if v != "" {
			out = append(out, v+suffix)
		}
	}
	add(l.CalorieIntake, " calorie intake")
	add(l.SaltIntake, " salt intake")
	add(l.SugarIntake, " sugar intake")
	add(l.ProcessedFoodFrequency, " processed food frequency")
	add(l.Exercise, " exercise frequency")
	add(l.Lifestyle, " activity level")
	add(l.MealsPerDay, "")
	add(l.WaterIntake, " water consumption")
	return out
}
