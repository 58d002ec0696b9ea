package workflow

import (
	"log/slog"

	"github.com/dukex/renflow/pkg/models"
)

// TriggerMatcher selects the workflows an event should start.
type TriggerMatcher struct {
	logger *slog.Logger
}

func NewTriggerMatcher(logger *slog.Logger) *TriggerMatcher {
	return &TriggerMatcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// MatchEvent returns the workflows whose trigger name or label equals event,
// such as "message" or "message_mine".
func (tm *TriggerMatcher) MatchEvent(event string, workflows []*models.CompiledWorkflow) []*models.CompiledWorkflow {
	var matched []*models.CompiledWorkflow

	for _, wf := range workflows {
		if wf.Trigger.Matches(event) {
			matched = append(matched, wf)
		}
	}

	tm.logger.Debug("Completed trigger matching", "event", event, "workflows_count", len(workflows), "matches_found", len(matched))

	return matched
}

// MatchType returns the workflows whose trigger type is triggerType, such as
// "schedule" or "queue".
func (tm *TriggerMatcher) MatchType(triggerType string, workflows []*models.CompiledWorkflow) []*models.CompiledWorkflow {
	var matched []*models.CompiledWorkflow

	for _, wf := range workflows {
		if wf.Trigger.Type == triggerType {
			matched = append(matched, wf)
		}
	}

	tm.logger.Debug("Completed trigger type matching", "trigger_type", triggerType, "matches_found", len(matched))

	return matched
}
