package tools

import (
	"context"
	"errors"
	"time"

	"nutracoach/pkg/store"
)

// TodayNutritionTool sums the authenticated user's logged intake for today.
type TodayNutritionTool struct {
	store NutritionStore

	// now is replaceable in tests to pin "today".
	now func() time.Time
}

// NewTodayNutritionTool creates a new get_today_nutrition tool.
func NewTodayNutritionTool(s NutritionStore) *TodayNutritionTool {
	return &TodayNutritionTool{store: s, now: time.Now}
}

// Name returns the tool name.
func (t *TodayNutritionTool) Name() string {
	return ToolGetTodayNutrition
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *TodayNutritionTool) PromptDocumentation() string {
	return `- **get_today_nutrition** - Get today's total logged nutrition
  - No parameters
  - Returns the date and summed calories, protein, carbs, and fat
  - All values are zero when nothing has been logged today`
}

// Definition returns the tool definition for the LLM.
func (t *TodayNutritionTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetTodayNutrition,
		Description: "Get the user's total logged nutrition for today: calories, protein, carbs, and fat",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *TodayNutritionTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	username := stringArg(args, "username")
	if username == "" {
		return errorResult("not authenticated")
	}

	today := t.now().Format("2006-01-02")
	totals, err := t.store.SumDailyNutrition(username, today)
	if errors.Is(err, store.ErrNotFound) {
		return errorResult("user not found")
	}
	if err != nil {
		return errorResult("Failed to get nutrition: %v", err)
	}

	return jsonResult(map[string]any{
		"date":     totals.Date,
		"calories": totals.Calories,
		"protein":  totals.Protein,
		"carbs":    totals.Carbs,
		"fat":      totals.Fat,
	})
}
