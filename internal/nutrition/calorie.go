package nutrition

import (
	"errors"
	"math"
)

var activityMultipliers = map[string]float64{
	"sedentary":  1.2,
	"light":      1.375,
	"moderate":   1.55,
	"active":     1.725,
	"veryActive": 1.9,
}

type CalorieTargetInput struct {
	WeightKg      float64 `json:"weightKg"`
	HeightCm      float64 `json:"heightCm"`
	Age           float64 `json:"age"`
	Gender        string  `json:"gender"`        // male | female
	ActivityLevel string  `json:"activityLevel"` // sedentary | light | moderate | active | veryActive
	Goal          string  `json:"goal"`          // lose | maintain | gain
}

type CalorieTarget struct {
	BMR                 float64 `json:"bmr"`
	TDEE                float64 `json:"tdee"`
	RecommendedCalories float64 `json:"recommendedCalories"`
	BMI                 float64 `json:"bmi"`
	BMICategory         string  `json:"bmiCategory"`
}

var ErrInvalidBodyMetrics = errors.New("weight, height and age must be positive")

// CalculateCalorieTarget estimates daily calories with the Mifflin-St Jeor equation.
func CalculateCalorieTarget(in CalorieTargetInput) (CalorieTarget, error) {
	if in.WeightKg <= 0 || in.HeightCm <= 0 || in.Age <= 0 {
		return CalorieTarget{}, ErrInvalidBodyMetrics
	}

	bmr := 10*in.WeightKg + 6.25*in.HeightCm - 5*in.Age
	if in.Gender == "male" {
		bmr += 5
	} else {
		bmr -= 161
	}
	bmr = math.Round(bmr)

	mult, ok := activityMultipliers[in.ActivityLevel]
	if !ok {
		return CalorieTarget{}, errors.New("unknown activity level")
	}
	tdee := math.Round(bmr * mult)

	rec := tdee
	switch in.Goal {
	case "lose":
		rec -= 500
	case "gain":
		rec += 500
	}

	m := in.HeightCm / 100
	bmi := math.Round(in.WeightKg/(m*m)*10) / 10

	return CalorieTarget{
		BMR:                 bmr,
		TDEE:                tdee,
		RecommendedCalories: rec,
		BMI:                 bmi,
		BMICategory:         bmiCategory(bmi),
	}, nil
}

func bmiCategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Underweight"
	case bmi < 25:
		return "Normal weight"
	case bmi < 30:
		return "Overweight"
	default:
		return "Obese"
	}
}
