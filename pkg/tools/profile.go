package tools

import (
	"context"
	"errors"

	"nutracoach/pkg/store"
)

// ProfileTool returns the authenticated user's stored profile.
type ProfileTool struct {
	store NutritionStore
}

// NewProfileTool creates a new get_user_profile tool.
func NewProfileTool(s NutritionStore) *ProfileTool {
	return &ProfileTool{store: s}
}

// Name returns the tool name.
func (t *ProfileTool) Name() string {
	return ToolGetUserProfile
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *ProfileTool) PromptDocumentation() string {
	return `- **get_user_profile** - Get the user's stored profile
  - No parameters
  - Returns age, sex, height_cm, weight_kg, activity_level, and goal`
}

// Definition returns the tool definition for the LLM.
func (t *ProfileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetUserProfile,
		Description: "Get the user's stored profile: age, sex, height, weight, activity level, and goal",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *ProfileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	username := stringArg(args, "username")
	if username == "" {
		return errorResult("not authenticated")
	}

	profile, err := t.store.GetProfile(username)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult("user not found")
	}
	if err != nil {
		return errorResult("Failed to get profile: %v", err)
	}

	return jsonResult(map[string]any{
		"username":       profile.Username,
		"age":            profile.Age,
		"sex":            profile.Sex,
		"height_cm":      profile.HeightCm,
		"weight_kg":      profile.WeightKg,
		"activity_level": profile.ActivityLevel,
		"goal":           profile.Goal,
	})
}
