package tools

import (
	"encoding/json"
	"fmt"
)

// jsonResult marshals a payload into an ExecResult.
func jsonResult(payload any) (*ExecResult, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &ExecResult{Content: string(content)}, nil
}

// errorResult creates a JSON error response. Tool failures stay in-band so
// the model can see them and react.
func errorResult(format string, args ...any) (*ExecResult, error) {
	return jsonResult(map[string]any{"error": fmt.Sprintf(format, args...)})
}

// stringArg extracts a string argument, returning "" if missing or wrong type.
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// floatArg extracts a numeric argument. JSON unmarshaling yields float64,
// but int and int64 are accepted for callers constructing args directly.
func floatArg(args map[string]any, key string) (float64, bool) {
	v, exists := args[key]
	if !exists {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

// intArg extracts an integer argument with the same type tolerance as floatArg.
func intArg(args map[string]any, key string) (int, bool) {
	f, ok := floatArg(args, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}
