package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dukex/renflow/pkg/argv"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/kballard/go-shellquote"
	"github.com/tidwall/gjson"
)

// Trigger params read by ShouldRun.
const (
	FilterParamKey  = "filterParam"
	FilterModeKey   = "filterMode"
	IncludeSelfKey  = "includeSelf"
	RegexKey        = "regexExpression"
	PrefixKey       = "prefix"
	ShellCommandKey = "shellCommand"

	FilterModeRegex = "regex"
	FilterModeShell = "shell"
)

// FilterFunc decides whether payload should start a workflow with the given
// trigger params.
type FilterFunc func(params map[string]any, payload any) (bool, error)

// AlwaysRun bypasses trigger filtering.
func AlwaysRun(map[string]any, any) (bool, error) {
	return true, nil
}

// ShouldRun applies a workflow's trigger filter to an inbound payload. Only
// chat messages can pass; anything else, and absent params, yields false.
func ShouldRun(params map[string]any, payload any) (bool, error) {
	if params == nil {
		return false, nil
	}

	path, wildcard, err := gjsonPath(nodes.String(params, FilterParamKey, ""))
	if err != nil {
		return false, &TriggerEvalError{Err: err}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return false, &TriggerEvalError{Err: err}
	}

	results := query(raw, path, wildcard)

	msg, isMessage := payload.(*models.ChatMessage)
	if len(results) != 1 || !isMessage || msg == nil {
		return false, nil
	}

	if !nodes.Bool(params, IncludeSelfKey, false) && results[0].Get("isMine").Bool() {
		return false, &TriggerEvalError{Err: ErrSelfMessage}
	}

	text := msg.TextContent()

	switch nodes.String(params, FilterModeKey, "") {
	case FilterModeRegex:
		re, err := regexp.Compile(nodes.String(params, RegexKey, ""))
		if err != nil {
			return false, &TriggerEvalError{Err: fmt.Errorf("invalid regexExpression: %w", err)}
		}

		return re.MatchString(text), nil
	case FilterModeShell:
		return matchShell(params, text), nil
	default:
		return false, nil
	}
}

// matchShell triggers when the configured command's positionals lead the
// message's positionals. Untokenizable input never matches.
func matchShell(params map[string]any, text string) bool {
	prefix := nodes.String(params, PrefixKey, "")
	if !strings.HasPrefix(text, prefix) {
		return false
	}

	want, err := shellquote.Split(nodes.String(params, ShellCommandKey, ""))
	if err != nil {
		return false
	}

	got, err := shellquote.Split(strings.TrimSpace(text[len(prefix):]))
	if err != nil {
		return false
	}

	return argv.Parse(got).HasPrefix(argv.Parse(want))
}

func query(raw []byte, path string, wildcard bool) []gjson.Result {
	if path == "" {
		return []gjson.Result{gjson.ParseBytes(raw)}
	}

	res := gjson.GetBytes(raw, path)

	switch {
	case !res.Exists():
		return nil
	case wildcard && res.IsArray():
		return res.Array()
	default:
		return []gjson.Result{res}
	}
}

// gjsonPath translates the JSONPath subset used by trigger filters
// ($, .name, ['name'], [0], [*], .*) into a gjson path. An empty path
// selects the whole document. Recursive descent and filter expressions
// are rejected.
func gjsonPath(jsonPath string) (string, bool, error) {
	p := strings.TrimSpace(jsonPath)
	if p == "" || p == "$" {
		return "", false, nil
	}

	if !strings.HasPrefix(p, "$") || strings.Contains(p, "..") {
		return "", false, fmt.Errorf("%w: %q", ErrUnsupportedFilterPath, jsonPath)
	}

	var segments []string

	rest := p[1:]
	for rest != "" {
		switch rest[0] {
		case '.':
			end := strings.IndexAny(rest[1:], ".[")
			if end < 0 {
				end = len(rest) - 1
			}

			name := rest[1 : end+1]
			if name == "" {
				return "", false, fmt.Errorf("%w: %q", ErrUnsupportedFilterPath, jsonPath)
			}

			if name == "*" {
				segments = append(segments, "#")
			} else {
				segments = append(segments, escapeGJSON(name))
			}

			rest = rest[end+1:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return "", false, fmt.Errorf("%w: %q", ErrUnsupportedFilterPath, jsonPath)
			}

			inner := strings.TrimSpace(rest[1:end])

			switch {
			case inner == "*":
				segments = append(segments, "#")
			case len(inner) >= 2 && (inner[0] == '\'' || inner[0] == '"') && inner[len(inner)-1] == inner[0]:
				segments = append(segments, escapeGJSON(inner[1:len(inner)-1]))
			default:
				if _, err := strconv.Atoi(inner); err != nil {
					return "", false, fmt.Errorf("%w: %q", ErrUnsupportedFilterPath, jsonPath)
				}

				segments = append(segments, inner)
			}

			rest = rest[end+1:]
		default:
			return "", false, fmt.Errorf("%w: %q", ErrUnsupportedFilterPath, jsonPath)
		}
	}

	wildcard := false

	for _, s := range segments {
		if s == "#" {
			wildcard = true
		}
	}

	// A trailing "#" would make gjson count the array instead of returning it.
	if n := len(segments); n > 0 && segments[n-1] == "#" {
		segments = segments[:n-1]
	}

	if len(segments) == 0 {
		return "@this", wildcard, nil
	}

	return strings.Join(segments, "."), wildcard, nil
}

func escapeGJSON(name string) string {
	var b strings.Builder

	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}
