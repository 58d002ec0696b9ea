// Package nodes holds helpers shared by the built-in node kinds.
package nodes

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/renflow/pkg/models"
)

// String returns params[key] as a string, or def when absent.
func String(params map[string]any, key, def string) string {
	switch v := params[key].(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

// Bool accepts booleans and their string forms.
func Bool(params map[string]any, key string, def bool) bool {
	switch v := params[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}

	return def
}

// Number accepts any numeric type or a numeric string.
func Number(params map[string]any, key string, def float64) float64 {
	if f, ok := ToFloat(params[key]); ok {
		return f
	}

	return def
}

// Millis reads a millisecond count as a duration.
func Millis(params map[string]any, key string, def time.Duration) time.Duration {
	f, ok := ToFloat(params[key])
	if !ok {
		return def
	}

	return time.Duration(f * float64(time.Millisecond))
}

func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)

		return f, err == nil
	}

	return 0, false
}

// JSONObject accepts an object or a JSON string encoding one. Empty means {}.
func JSONObject(params map[string]any, key string) (map[string]any, error) {
	switch v := params[key].(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]any{}, nil
		}

		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("%s is not a valid JSON object: %w", key, err)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an object or JSON string", key)
	}
}

// SchemaFor derives a JSON schema describing param types from metadata.
func SchemaFor(meta models.NodeMetadata) map[string]any {
	properties := map[string]any{}

	for _, p := range meta.Params {
		prop := map[string]any{}

		switch p.Type {
		case models.ParamTypeSettings:
			continue
		case "number":
			prop["type"] = []string{"number", "string"}
		case "switch", "boolean":
			prop["type"] = []string{"boolean", "string"}
		case "select":
			prop["type"] = "string"
			if len(p.Options) > 0 {
				prop["examples"] = p.Options
			}
		case "condition":
			prop["type"] = "object"
		case "list":
			prop["type"] = "array"
		case "json":
			prop["type"] = []string{"object", "string"}
		default:
			prop["type"] = "string"
		}

		if p.Description != "" {
			prop["description"] = p.Description
		}

		if p.Default != nil {
			prop["default"] = p.Default
		}

		properties[p.Key] = prop
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

// Truthy treats nil, false, "", 0 and NaN as false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}
