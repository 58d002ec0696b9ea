// Package switchnode provides the multi-way switch node.
package switchnode

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/template"
)

// SwitchNode routes execution to the branch whose case matches a value.
type SwitchNode struct {
	id    string
	value string            // placeholder template
	cases map[string]string // case value -> branch label
}

// SwitchCase represents a single case in the switch statement.
type SwitchCase struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// NewSwitchNode creates a new switch node.
func NewSwitchNode(id string, config map[string]any) (*SwitchNode, error) {
	value, ok := config["value"].(string)
	if !ok {
		return nil, errors.New("missing required field 'value'")
	}

	cases := make(map[string]string)

	if casesConfig, ok := config["cases"].([]any); ok {
		for i, caseAny := range casesConfig {
			caseMap, ok := caseAny.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("case %d must be an object", i)
			}

			caseValue, ok := caseMap["value"].(string)
			if !ok {
				return nil, fmt.Errorf("case %d missing 'value'", i)
			}

			label, _ := caseMap["label"].(string)
			if label == "" {
				label, _ = caseMap["output_port"].(string)
			}

			if label == "" {
				label = caseValue
			}

			cases[caseValue] = label
		}
	}

	return &SwitchNode{
		id:    id,
		value: value,
		cases: cases,
	}, nil
}

// ID returns the node ID.
func (n *SwitchNode) ID() string {
	return n.id
}

// Type returns the node type.
func (n *SwitchNode) Type() string {
	return models.NodeTypeSwitch
}

// Execute renders the value and sets _branchKey to the matching case label.
// Without a match the rendered value itself is the key, so edges labelled
// with a literal value still route.
func (n *SwitchNode) Execute(ctx context.Context, nctx *models.NodeContext, input any) (models.NodeResult, error) {
	valueStr, err := template.Fill(n.value, template.Scope{Input: input, State: nctx.State}, template.EmptyMissing())
	if err != nil {
		return models.Failed(fmt.Sprintf("value evaluation failed: %v", err)), nil
	}

	branchKey, matched := n.cases[valueStr]
	if !matched {
		branchKey = valueStr
	}

	nctx.Log(models.LogLevelLog, fmt.Sprintf("switch value %q -> branch %q", valueStr, branchKey), nil)

	output := map[string]any{}
	if m, ok := input.(map[string]any); ok {
		maps.Copy(output, m)
	} else if input != nil {
		output["input"] = input
	}

	output[models.OutputKeyBranchKey] = branchKey
	output["matched_value"] = valueStr
	output["no_match"] = !matched

	return models.Succeeded(output), nil
}
