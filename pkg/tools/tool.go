// Package tools provides the nutrition tool implementations, schema types,
// sealed registry, and the dispatch boundary used by the conversation loop.
package tools

import "context"

// Tool names. The set is closed: these four identifiers are the only tools
// the model may invoke, registered once at init and sealed before first use.
const (
	ToolGetUserProfile     = "get_user_profile"
	ToolGetTodayNutrition  = "get_today_nutrition"
	ToolCalculateDailyNeed = "calculate_daily_needs"
	ToolGetUserDailyNeeds  = "get_user_daily_needs"
)

// Property describes a single field in a tool's input schema.
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
}

// InputSchema is a JSON-schema-like description of a tool's accepted arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition describes a tool to the LLM provider.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// ExecResult is the serialized outcome of a tool execution.
// Content is always a JSON document: either the success payload or
// {"error": "..."} for in-band failures.
type ExecResult struct {
	Content string
}

// Tool is the interface implemented by all nutrition tools.
// Exec bodies are pure functions of (arguments, data access); they never
// mutate conversation state.
type Tool interface {
	// Name returns the tool name.
	Name() string

	// Definition returns the tool definition for the LLM.
	Definition() ToolDefinition

	// Exec executes the tool with the given arguments.
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)

	// PromptDocumentation returns formatted tool documentation for prompts.
	PromptDocumentation() string
}
