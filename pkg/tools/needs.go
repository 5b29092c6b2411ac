package tools

import (
	"context"
	"errors"
	"strings"

	"nutracoach/pkg/nutrition"
	"nutracoach/pkg/store"
)

// CalculateNeedsTool computes daily needs from explicit body parameters.
// It is a pure computation with no data access.
type CalculateNeedsTool struct{}

// NewCalculateNeedsTool creates a new calculate_daily_needs tool.
func NewCalculateNeedsTool() *CalculateNeedsTool {
	return &CalculateNeedsTool{}
}

// Name returns the tool name.
func (t *CalculateNeedsTool) Name() string {
	return ToolCalculateDailyNeed
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *CalculateNeedsTool) PromptDocumentation() string {
	return `- **calculate_daily_needs** - Calculate daily caloric and macro needs
  - Parameters:
    - sex (string, REQUIRED): "male" or "female"
    - weight_kg (number, REQUIRED): body weight in kilograms
    - height_cm (number, REQUIRED): height in centimeters
    - age (integer, REQUIRED): age in years
    - activity_level (string, REQUIRED): sedentary, light, moderate, active, or extra
    - goal (string, optional): cut, maintain, or bulk (default: maintain)
  - Returns calories, protein_g, fat_g, carbs_g, bmr, and tdee`
}

// Definition returns the tool definition for the LLM.
func (t *CalculateNeedsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolCalculateDailyNeed,
		Description: "Calculate daily caloric and macro needs from explicit body parameters",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"sex": {
					Type:        "string",
					Description: "Biological sex for the BMR equation",
					Enum:        []string{"male", "female"},
				},
				"weight_kg": {
					Type:        "number",
					Description: "Body weight in kilograms",
				},
				"height_cm": {
					Type:        "number",
					Description: "Height in centimeters",
				},
				"age": {
					Type:        "integer",
					Description: "Age in years",
				},
				"activity_level": {
					Type:        "string",
					Description: "Typical activity level",
					Enum:        []string{"sedentary", "light", "moderate", "active", "extra"},
				},
				"goal": {
					Type:        "string",
					Description: "Nutrition goal. Defaults to maintain.",
					Enum:        []string{"cut", "maintain", "bulk"},
				},
			},
			Required: []string{"sex", "weight_kg", "height_cm", "age", "activity_level"},
		},
	}
}

// Exec executes the tool with the given arguments.
// All validation failures are in-band errors; Exec never fails out-of-band
// on bad input.
func (t *CalculateNeedsTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	weight, wOK := floatArg(args, "weight_kg")
	height, hOK := floatArg(args, "height_cm")
	age, aOK := intArg(args, "age")
	if !wOK || !hOK || !aOK {
		return errorResult("missing required parameters: weight_kg, height_cm, age")
	}

	sex := stringArg(args, "sex")
	if sex == "" {
		sex = "male"
	}
	activity := stringArg(args, "activity_level")
	if activity == "" {
		activity = "moderate"
	}

	needs, err := nutrition.Calculate(nutrition.Input{
		Sex:           sex,
		WeightKg:      weight,
		HeightCm:      height,
		Age:           age,
		ActivityLevel: activity,
		Goal:          stringArg(args, "goal"),
	})
	if err != nil {
		return errorResult("%s", err.Error())
	}

	return jsonResult(needs)
}

// UserNeedsTool composes the profile lookup with the needs calculation.
// Profile-lookup errors propagate verbatim.
type UserNeedsTool struct {
	store NutritionStore
}

// NewUserNeedsTool creates a new get_user_daily_needs tool.
func NewUserNeedsTool(s NutritionStore) *UserNeedsTool {
	return &UserNeedsTool{store: s}
}

// Name returns the tool name.
func (t *UserNeedsTool) Name() string {
	return ToolGetUserDailyNeeds
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *UserNeedsTool) PromptDocumentation() string {
	return `- **get_user_daily_needs** - Calculate the user's daily needs from their stored profile
  - No parameters
  - Returns calories, protein_g, fat_g, carbs_g, bmr, tdee, and the profile used`
}

// Definition returns the tool definition for the LLM.
func (t *UserNeedsTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetUserDailyNeeds,
		Description: "Calculate the user's daily caloric and macro needs from their stored profile",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *UserNeedsTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	username := stringArg(args, "username")
	if username == "" {
		return errorResult("not authenticated")
	}

	profile, err := t.store.GetProfile(username)
	if errors.Is(err, store.ErrNotFound) {
		// Same payload get_user_profile produces for a missing user.
		return errorResult("user not found")
	}
	if err != nil {
		return errorResult("Failed to get profile: %v", err)
	}

	if profile.WeightKg <= 0 || profile.HeightCm <= 0 || profile.Age <= 0 {
		return errorResult("missing required profile data: weight_kg, height_cm, age")
	}

	sex := strings.ToLower(profile.Sex)
	needs, err := nutrition.Calculate(nutrition.Input{
		Sex:           sex,
		WeightKg:      profile.WeightKg,
		HeightCm:      profile.HeightCm,
		Age:           profile.Age,
		ActivityLevel: profile.ActivityLevel,
		Goal:          profile.Goal,
	})
	if err != nil {
		return errorResult("%s", err.Error())
	}

	return jsonResult(map[string]any{
		"calories":            needs.Calories,
		"protein_g":           needs.ProteinG,
		"fat_g":               needs.FatG,
		"carbs_g":             needs.CarbsG,
		"bmr":                 needs.BMR,
		"tdee":                needs.TDEE,
		"activity_multiplier": needs.ActivityMultiplier,
		"goal":                needs.Goal,
		"goal_adjustment":     needs.GoalAdjustment,
		"profile": map[string]any{
			"age_years":      profile.Age,
			"sex":            sex,
			"weight_kg":      profile.WeightKg,
			"height_cm":      profile.HeightCm,
			"activity_level": profile.ActivityLevel,
			"goal":           needs.Goal,
		},
	})
}
