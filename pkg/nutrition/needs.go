// Package nutrition provides the deterministic daily-needs calculation:
// BMR (Mifflin-St Jeor), TDEE via activity multipliers, goal adjustment,
// and the macro split. No I/O, no hidden state.
package nutrition

import (
	"fmt"
	"math"
	"strings"
)

// Activity multipliers applied to BMR.
var activityFactors = map[string]float64{
	"sedentary": 1.2,
	"light":     1.375,
	"moderate":  1.55,
	"active":    1.725,
	"extra":     1.9,
}

// Goal adjustments applied to TDEE.
var goalAdjustments = map[string]float64{
	"cut":      -0.20,
	"maintain": 0.0,
	"bulk":     0.20,
}

// Input holds the parameters for a needs calculation.
type Input struct {
	Sex           string
	ActivityLevel string
	Goal          string
	WeightKg      float64
	HeightCm      float64
	Age           int
}

// Needs is the computed daily requirement.
type Needs struct {
	Calories           int     `json:"calories"`
	ProteinG           int     `json:"protein_g"`
	FatG               int     `json:"fat_g"`
	CarbsG             int     `json:"carbs_g"`
	BMR                int     `json:"bmr"`
	TDEE               int     `json:"tdee"`
	ActivityMultiplier float64 `json:"activity_multiplier"`
	Goal               string  `json:"goal"`
	GoalAdjustment     string  `json:"goal_adjustment"`
}

// Calculate computes daily caloric and macro needs.
//
// BMR uses the Mifflin-St Jeor equation (male: 10w + 6.25h - 5a + 5,
// female: 10w + 6.25h - 5a - 161). Protein is 1.6 g/kg body weight, fat is
// 25% of adjusted calories at 9 kcal/g, carbs take the remainder at 4 kcal/g.
// All rounding is math.Round, half away from zero.
func Calculate(in Input) (*Needs, error) {
	if in.WeightKg <= 0 || in.HeightCm <= 0 || in.Age <= 0 {
		return nil, fmt.Errorf("missing required parameters: weight_kg, height_cm, age")
	}

	sex := strings.ToLower(in.Sex)
	if sex != "male" && sex != "female" {
		return nil, fmt.Errorf("sex must be 'male' or 'female'")
	}

	factor, ok := activityFactors[in.ActivityLevel]
	if !ok {
		return nil, fmt.Errorf("invalid activity_level")
	}

	goal := in.Goal
	if goal == "" {
		goal = "maintain"
	}
	adjustment, ok := goalAdjustments[goal]
	if !ok {
		return nil, fmt.Errorf("invalid goal. Must be 'cut', 'maintain', or 'bulk'")
	}

	var bmr float64
	if sex == "male" {
		bmr = 10*in.WeightKg + 6.25*in.HeightCm - 5*float64(in.Age) + 5
	} else {
		bmr = 10*in.WeightKg + 6.25*in.HeightCm - 5*float64(in.Age) - 161
	}

	tdee := bmr * factor
	adjusted := tdee * (1.0 + adjustment)

	protein := int(math.Round(1.6 * in.WeightKg))
	fat := int(math.Round(adjusted * 0.25 / 9))
	carbs := int(math.Round((adjusted - float64(protein*4+fat*9)) / 4))

	return &Needs{
		Calories:           int(math.Round(adjusted)),
		ProteinG:           protein,
		FatG:               fat,
		CarbsG:             carbs,
		BMR:                int(math.Round(bmr)),
		TDEE:               int(math.Round(tdee)),
		ActivityMultiplier: factor,
		Goal:               goal,
		GoalAdjustment:     fmt.Sprintf("%.0f%%", adjustment*100),
	}, nil
}
