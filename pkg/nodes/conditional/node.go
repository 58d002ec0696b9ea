// Package conditional provides the if/else branching node.
package conditional

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"strings"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/script"
	"github.com/dukex/renflow/pkg/template"
)

// Comparison modes.
const (
	ModeExists          = "exists"
	ModeNotExists       = "not_exists"
	ModeEquals          = "equals"
	ModeNotEquals       = "not_equals"
	ModeStrictEquals    = "strict_equals"
	ModeStrictNotEquals = "strict_not_equals"
	ModeGreaterThan     = "greater_than"
	ModeLessThan        = "less_than"
	ModeGreaterOrEqual  = "greater_or_equal"
	ModeLessOrEqual     = "less_or_equal"
	ModeContains        = "contains"
	ModeNotContains     = "not_contains"
	ModeRegex           = "regex"
)

// ParameterCustom switches the condition to a script returning a boolean.
const ParameterCustom = "custom"

// Condition is the if/else node's condition parameter.
type Condition struct {
	Parameter  string
	Mode       string
	Value      any
	CustomCode string
}

// ConditionalNode evaluates a condition against its input and marks the
// branch to follow in its output.
type ConditionalNode struct {
	id        string
	condition Condition
}

// NewConditionalNode creates a new conditional branching node.
func NewConditionalNode(id string, config map[string]any) (*ConditionalNode, error) {
	raw, ok := config["condition"].(map[string]any)
	if !ok {
		return nil, errors.New("missing required field 'condition'")
	}

	cond := Condition{
		Parameter:  nodes.String(raw, "parameter", "input"),
		Mode:       nodes.String(raw, "mode", ModeExists),
		Value:      raw["value"],
		CustomCode: nodes.String(raw, "customCode", "return false"),
	}

	return &ConditionalNode{id: id, condition: cond}, nil
}

// ID returns the node ID.
func (n *ConditionalNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *ConditionalNode) Type() string {
	return models.NodeTypeIfElse
}

// Execute evaluates the condition and passes the input through with the result.
func (n *ConditionalNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	var (
		result     bool
		paramValue any
		err        error
	)

	if n.condition.Parameter == ParameterCustom {
		result, err = n.evaluateCustom(ctx, nctx, input)
	} else {
		paramValue = n.resolveParameter(nctx, input)
		result, err = Compare(n.condition.Mode, paramValue, n.condition.Value)
	}

	if err != nil {
		nctx.Log(models.LogLevelError, "condition evaluation failed: "+err.Error(), nil)

		return models.Failed(fmt.Sprintf("condition evaluation failed: %v", err)), nil
	}

	nctx.Log(models.LogLevelLog, fmt.Sprintf("condition %s: %t (%s / %s)", n.condition.Mode, result,
		template.Stringify(paramValue), template.Stringify(n.condition.Value)), nil)

	output := map[string]any{}
	switch v := input.(type) {
	case map[string]any:
		maps.Copy(output, v)
	case nil:
	default:
		output["input"] = v
	}

	output[models.OutputKeyBranch] = result
	output["_conditionResult"] = result

	return models.Succeeded(output), nil
}

// resolveParameter reads "input" or "input.a.b" from the input; any other
// root reads from global state, e.g. "trigger.rawMessage".
func (n *ConditionalNode) resolveParameter(nctx *models.NodeContext, input any) any {
	root, path, _ := strings.Cut(n.condition.Parameter, ".")

	var base any

	if root == "input" || root == "" {
		base = input
	} else if nctx != nil && nctx.State != nil {
		base, _ = nctx.State.Get(root)
	}

	value, _ := template.LookupPath(base, path)

	return value
}

func (n *ConditionalNode) evaluateCustom(ctx context.Context, nctx *models.NodeContext, input any) (bool, error) {
	out, err := script.Run(ctx, n.condition.CustomCode, script.Env{
		Globals: map[string]any{
			"input":   input,
			"context": map[string]any{"nodeId": nctx.NodeID, "nodeType": nctx.NodeType},
		},
		Log: func(level, message string) { nctx.Log(models.LogLevel(level), message, nil) },
	})
	if err != nil {
		return false, err
	}

	return script.Truthy(out), nil
}

// Compare applies mode to actual and expected.
func Compare(mode string, actual, expected any) (bool, error) {
	switch mode {
	case ModeExists:
		return actual != nil, nil
	case ModeNotExists:
		return actual == nil, nil
	case ModeEquals:
		return looseEqual(actual, expected), nil
	case ModeNotEquals:
		return !looseEqual(actual, expected), nil
	case ModeStrictEquals:
		return strictEqual(actual, expected), nil
	case ModeStrictNotEquals:
		return !strictEqual(actual, expected), nil
	case ModeGreaterThan, ModeLessThan, ModeGreaterOrEqual, ModeLessOrEqual:
		a, okA := nodes.ToFloat(actual)
		b, okB := nodes.ToFloat(expected)

		if !okA || !okB {
			return false, nil
		}

		switch mode {
		case ModeGreaterThan:
			return a > b, nil
		case ModeLessThan:
			return a < b, nil
		case ModeGreaterOrEqual:
			return a >= b, nil
		default:
			return a <= b, nil
		}
	case ModeContains:
		return strings.Contains(template.Stringify(actual), template.Stringify(expected)), nil
	case ModeNotContains:
		return !strings.Contains(template.Stringify(actual), template.Stringify(expected)), nil
	case ModeRegex:
		re, err := regexp.Compile(template.Stringify(expected))
		if err != nil {
			return false, fmt.Errorf("invalid regex: %w", err)
		}

		return re.MatchString(template.Stringify(actual)), nil
	default:
		return false, nil
	}
}

// looseEqual compares numerically when both sides are numbers or numeric
// strings, otherwise by string form.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	fa, okA := nodes.ToFloat(a)
	fb, okB := nodes.ToFloat(b)

	if okA && okB {
		return fa == fb
	}

	if ba, ok := a.(bool); ok {
		if bs, ok := b.(string); ok {
			return fmt.Sprint(ba) == bs
		}
	}

	return template.Stringify(a) == template.Stringify(b)
}

// strictEqual requires the same kind; numbers of different Go types compare by value.
func strictEqual(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		fa, _ := nodes.ToFloat(a)
		fb, _ := nodes.ToFloat(b)

		return fa == fb
	}

	return reflect.DeepEqual(a, b)
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, int32:
		return true
	}

	return false
}
