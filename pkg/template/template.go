// Package template fills node parameter templates from run input and global state.
package template

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// RenderWithScope renders a Go text/template over the run's input, state and environment.
func RenderWithScope(input string, scope Scope) (any, error) {
	var state map[string]any
	if scope.State != nil {
		state = scope.State.Snapshot()
	}

	data := map[string]any{
		"input": scope.Input,
		"state": state,
		"env":   getEnvVars(),
	}

	return Render(input, data)
}

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"rand": func(n int) int {
		if n <= 0 {
			return 0
		}

		return rand.IntN(n)
	},
}

// Render executes templateStr over data and decodes the output: JSON objects
// and arrays, numbers and booleans come back typed, anything else as a
// trimmed string.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.New("transform").Funcs(funcs).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return decodeOutput(templateStr, strings.TrimSpace(buf.String()))
}

func decodeOutput(templateStr, out string) (any, error) {
	if looksLikeJSON(out) {
		var v any
		if err := json.Unmarshal([]byte(out), &v); err != nil {
			return nil, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
		}

		return v, nil
	}

	if num, err := strconv.ParseFloat(out, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(out); err == nil {
		return b, nil
	}

	return out, nil
}

func looksLikeJSON(s string) bool {
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

func getEnvVars() map[string]any {
	env := map[string]any{}

	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	return env
}
