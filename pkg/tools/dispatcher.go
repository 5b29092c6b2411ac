package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"nutracoach/pkg/logx"
)

// Dispatcher resolves tool invocation requests from the conversation loop.
// It is the error boundary between tool bodies and the loop: every dispatch
// yields a serialized result, never a raised error. Unknown tool names and
// tool failures come back as JSON {"error": ...} payloads the model can see.
type Dispatcher struct {
	provider *Provider
	logger   *logx.Logger
}

// NewDispatcher creates a Dispatcher over the given provider.
func NewDispatcher(provider *Provider) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		logger:   logx.NewLogger("tools"),
	}
}

// Dispatch executes the named tool with the given arguments on behalf of the
// authenticated username. For tools whose semantics depend on the caller, the
// identity is injected into the arguments, overriding any caller-supplied
// value. The returned string is always valid JSON.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any, username string) string {
	meta, registered := d.provider.Meta(name)
	if !registered {
		d.logger.Warn("Dispatch of unregistered tool %q", name)
		return serializeError(fmt.Sprintf("Tool %s not found", name))
	}

	tool, err := d.provider.Get(name)
	if err != nil {
		d.logger.Error("Failed to create tool %s: %v", name, err)
		return serializeError(fmt.Sprintf("Tool %s not found", name))
	}

	// Copy the arguments so identity injection never mutates loop state.
	callArgs := make(map[string]any, len(args)+1)
	for k, v := range args {
		callArgs[k] = v
	}
	if meta.RequiresUser {
		callArgs["username"] = username
	}

	result, err := tool.Exec(ctx, callArgs)
	if err != nil {
		d.logger.Error("Tool %s failed: %v", name, err)
		return serializeError(err.Error())
	}
	if result == nil || result.Content == "" {
		return serializeError(fmt.Sprintf("Tool %s returned no result", name))
	}

	return result.Content
}

// serializeError renders an in-band error payload. Marshaling a flat string
// map cannot fail; the fallback exists for completeness.
func serializeError(msg string) string {
	content, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error": "internal error"}`
	}
	return string(content)
}
