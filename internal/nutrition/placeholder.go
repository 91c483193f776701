package nutrition

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

const (
	PlaceholderFoodName   = "Food Item (Generated Data)"
	PlaceholderDisclaimer = "This is generated nutritional data. The image analysis couldn't determine the exact food item."
	placeholderHealthTip  = "For accurate nutritional information, try uploading a clearer image of a single food item."
)

var placeholderAllergens = []string{
	"Peanuts", "Tree Nuts", "Milk", "Eggs", "Wheat",
	"Soy", "Fish", "Shellfish", "Sesame", "Gluten",
}

var digestiveTerms = []string{"IBS", "Celiac", "Crohn", "Colitis", "GERD", "Acid Reflux", "bloating"}

// placeholderHash sums the UTF-16 code units of s.
func placeholderHash(s string) int {
	h := 0
	for _, u := range utf16.Encode([]rune(s)) {
		h += int(u)
	}
	return h
}

type placeholderValues struct {
	hash                          int
	calories, protein, carbs, fat int
	fiber, sugar                  int
	allergens                     []string
}

func newPlaceholderValues(imageURL string) placeholderValues {
	h := placeholderHash(imageURL)
	v := placeholderValues{
		hash:      h,
		calories:  250 + h%300,
		protein:   10 + h%20,
		carbs:     30 + h%30,
		fat:       8 + h%12,
		fiber:     3 + h%7,
		sugar:     5 + h%15,
		allergens: []string{},
	}
	if h%4 != 0 {
		n := 1 + h%3
		for i := 0; i < n; i++ {
			v.allergens = append(v.allergens, placeholderAllergens[(h+i*7)%len(placeholderAllergens)])
		}
	}
	return v
}

// Placeholder synthesizes nutrition data for an image the model could not describe. The
// result depends only on imageURL and profile, so repeated failures on the same image
// produce identical records.
func Placeholder(imageURL string, profile HealthProfile) ParsedNutrition {
	v := newPlaceholderValues(imageURL)

	rec := ""
	if profile.Completed {
		rec = placeholderRecommendation(v, profile)
	}

	return ParsedNutrition{
		FoodName:                   PlaceholderFoodName,
		Calories:                   fmt.Sprintf("%d kcal", v.calories),
		Protein:                    fmt.Sprintf("%dg", v.protein),
		Carbs:                      fmt.Sprintf("%dg", v.carbs),
		Fat:                        fmt.Sprintf("%dg", v.fat),
		Fiber:                      fmt.Sprintf("%dg", v.fiber),
		Sugar:                      fmt.Sprintf("%dg", v.sugar),
		Ingredients:                []string{},
		Allergens:                  v.allergens,
		AdditionalInfo:             PlaceholderDisclaimer,
		HealthTips:                 placeholderHealthTip,
		PersonalizedRecommendation: rec,
		Placeholder:                true,
	}
}

func placeholderRecommendation(v placeholderValues, p HealthProfile) string {
	var b strings.Builder
	h := v.hash

	if len(p.DietaryRestrictions) > 0 {
		b.WriteString("Dietary Fit: ")
		if p.HasRestriction("Vegetarian") {
			if h%2 == 0 {
				b.WriteString("This food is suitable for your vegetarian diet. It contains no meat products. ")
			} else {
				b.WriteString("CAUTION: This food may contain meat products that don't align with your vegetarian diet. Please verify ingredients. ")
			}
		}
		if p.HasRestriction("Vegan") {
			if h%3 == 0 {
				b.WriteString("This food appears to be plant-based and suitable for your vegan lifestyle. ")
			} else {
				b.WriteString("CAUTION: This food may contain animal products that don't align with your vegan diet. Please verify all ingredients carefully. ")
			}
		}
		if p.HasRestriction("Gluten-Free") {
			if slices.Contains(v.allergens, "Gluten") || slices.Contains(v.allergens, "Wheat") {
				b.WriteString("WARNING: This food contains gluten which conflicts with your gluten-free diet. ")
			} else {
				b.WriteString("This food appears to be gluten-free, but always verify packaged food labels for certainty. ")
			}
		}
		if p.HasRestriction("Keto") {
			if v.carbs < 10 {
				fmt.Fprintf(&b, "With only %dg of carbs, this food fits well within keto macros. ", v.carbs)
			} else {
				fmt.Fprintf(&b, "With %dg of carbs, this food may be too carb-heavy for strict keto. Consider smaller portions or alternatives. ", v.carbs)
			}
		}
	}

	if len(p.Allergies) > 0 {
		b.WriteString("Allergy Check: ")
		if matches := matchAllergens(v.allergens, p.Allergies); len(matches) > 0 {
			fmt.Fprintf(&b, "⚠️ ALLERGEN ALERT: This food contains %s that match your reported allergies. AVOID consuming this food for your safety. ", strings.Join(matches, ", "))
		} else {
			b.WriteString("Good news! We didn't detect any of your reported allergens in this food. Still, always check ingredient labels for certainty. ")
		}
	}

	if len(p.HealthConditions) > 0 {
		b.WriteString("Health Considerations: ")
		var digestive []string
		for _, c := range p.HealthConditions {
			if slices.ContainsFunc(digestiveTerms, func(term string) bool { return strings.Contains(c, term) }) {
				digestive = append(digestive, c)
			}
		}
		if len(digestive) > 0 {
			if v.fiber > 5 {
				fmt.Fprintf(&b, "With %dg of fiber, this food may trigger symptoms for your %s. Consider smaller portions and monitor your body's response. ", v.fiber, strings.Join(digestive, ", "))
			} else {
				fmt.Fprintf(&b, "With moderate fiber content (%dg), this food may be gentler on your digestive system. ", v.fiber)
			}
		}
	}

	if p.DiabetesStatus != "" {
		b.WriteString("Blood Sugar Management: ")
		if float64(v.sugar*2)+float64(v.carbs)/3 > 15 {
			fmt.Fprintf(&b, "This food contains %dg sugar and %dg carbs, which may cause significant blood glucose elevation. Consider consuming with protein or healthy fats to slow absorption, or reduce portion size. ", v.sugar, v.carbs)
		} else {
			fmt.Fprintf(&b, "With %dg sugar and %dg carbs, this food has a moderate glycemic impact when consumed in recommended portions. ", v.sugar, v.carbs)
		}
		b.WriteString("Remember to monitor your blood glucose levels as individual responses vary. ")
	}

	if p.Hypertension {
		b.WriteString("Blood Pressure Considerations: ")
		sodium := 50 + h%600
		if sodium > 400 {
			fmt.Fprintf(&b, "This food contains an estimated %dmg of sodium, which is relatively high. Given your hypertension, consider lower-sodium alternatives or balance with potassium-rich foods. ", sodium)
		} else {
			fmt.Fprintf(&b, "With approximately %dmg of sodium, this food is relatively low in sodium and better suited for your blood pressure management goals. ", sodium)
		}
	}

	if lf := p.LifestyleFactors; !lf.IsEmpty() {
		b.WriteString("Lifestyle Fit: ")
		if strings.Contains(lf.Exercise, "Daily") || strings.Contains(lf.Exercise, "3-5 times") {
			fmt.Fprintf(&b, "As someone who exercises %s, this food provides %dg of protein to support muscle recovery and %d calories for energy needs. ", lf.Exercise, v.protein, v.calories)
		}
		switch {
		case strings.Contains(lf.CalorieIntake, "Less than 1500"):
			fmt.Fprintf(&b, "At %d calories per serving, be mindful of portion sizes to stay within your daily calorie goals. ", v.calories)
		case strings.Contains(lf.CalorieIntake, "More than 3000"):
			fmt.Fprintf(&b, "With %d calories, this food can be incorporated into your higher-calorie meal plan. ", v.calories)
		}
		if strings.Contains(lf.WaterIntake, "Less than 1L") {
			b.WriteString("Remember to increase your water intake throughout the day, especially when consuming foods with fiber. ")
		}
	}

	if len(p.Supplements) > 0 {
		if containsFold(p.Supplements, "Iron") && (slices.Contains(v.allergens, "Milk") || slices.Contains(v.allergens, "Dairy")) {
			b.WriteString("Note that dairy products in this food may reduce iron absorption. Consider separating your iron supplement from this meal. ")
		}
		if containsFold(p.Supplements, "Calcium") && v.fat > 10 {
			b.WriteString("The higher fat content in this food may reduce calcium absorption if consumed together with your supplement. ")
		}
	}

	b.WriteString("Overall Assessment: ")
	switch score := h % 5; {
	case score > 3:
		b.WriteString("This food generally aligns well with your health profile when consumed in appropriate portions as part of a balanced diet. ")
	case score > 1:
		b.WriteString("This food can be included in your diet occasionally, but monitor how it affects your specific health conditions. ")
	default:
		b.WriteString("Based on your health profile, this food may present several challenges and should be consumed sparingly or with modifications. ")
	}
	b.WriteString("Remember that individual responses to foods vary, and these recommendations are general guidelines.")

	return b.String()
}
