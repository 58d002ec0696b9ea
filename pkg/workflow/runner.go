package workflow

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/protocol"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMinDelay = time.Second
	DefaultTimeout  = 60 * time.Second

	// NoDelay disables per-node padding; a zero MinDelay means the default.
	NoDelay time.Duration = -1
)

// RunConfig configures workflows started by the runner.
type RunConfig struct {
	MinDelay time.Duration
	Timeout  time.Duration
	// Bot is stored in the run state under "bot".
	Bot protocol.BotAdapter
	// Globals are extra initial state entries.
	Globals map[string]any
	// Filter defaults to ShouldRun.
	Filter FilterFunc
}

// TriggerHooks observe a batch of runs started by one trigger event.
type TriggerHooks struct {
	// OnWorkflowStart can veto a workflow by returning false.
	OnWorkflowStart    func(workflowID string) bool
	OnNodeStart        func(workflowID, nodeID string)
	OnNodeComplete     func(workflowID, nodeID string)
	OnNodeError        func(workflowID, nodeID string, err error)
	OnWorkflowComplete func(workflowID string, result *models.RunResult)
}

// Runner validates, filters and executes workflows against trigger payloads.
type Runner struct {
	engine *Engine
	logger *slog.Logger
}

func NewRunner(engine *Engine, logger *slog.Logger) *Runner {
	return &Runner{
		engine: engine,
		logger: logger.With("module", "workflow_runner"),
	}
}

// RunWorkflow runs wf once for payload. An invalid workflow or a trigger
// evaluation fault is returned as an error; a payload the filter rejects
// completes with an empty successful result.
func (r *Runner) RunWorkflow(ctx context.Context, wf *models.CompiledWorkflow, payload any, cfg RunConfig, cb Callbacks) (*models.RunResult, error) {
	if err := Validate(wf).Err(wf.ID); err != nil {
		return nil, err
	}

	filter := cfg.Filter
	if filter == nil {
		filter = ShouldRun
	}

	triggered, err := filter(wf.Trigger.Params, payload)
	if err != nil {
		var evalErr *TriggerEvalError
		if errors.As(err, &evalErr) && evalErr.WorkflowID == "" {
			evalErr.WorkflowID = wf.ID
		}

		return nil, err
	}

	if !triggered {
		result := &models.RunResult{Success: true, Logs: []models.ExecutionLog{}, FinalState: map[string]any{}}
		if cb.OnWorkflowComplete != nil {
			cb.OnWorkflowComplete(result)
		}

		return result, nil
	}

	return r.engine.Execute(ctx, wf, payload, r.options(cfg, cb)), nil
}

// RunByTrigger runs every valid workflow in wfs concurrently for one
// trigger payload and waits for all of them. Invalid workflows, vetoed
// workflows and trigger evaluation faults skip only the affected workflow.
func (r *Runner) RunByTrigger(ctx context.Context, wfs []*models.CompiledWorkflow, payload any, cfg RunConfig, hooks TriggerHooks) {
	var g errgroup.Group

	for _, wf := range wfs {
		logger := r.logger.With("workflow_id", wf.ID)

		if v := Validate(wf); !v.Valid {
			logger.Warn("Skipping invalid workflow", "errors", v.Errors)
			continue
		}

		if hooks.OnWorkflowStart != nil && !hooks.OnWorkflowStart(wf.ID) {
			logger.Debug("Workflow start vetoed")
			continue
		}

		g.Go(func() error {
			_, err := r.RunWorkflow(ctx, wf, payload, cfg, bindHooks(wf.ID, hooks))

			switch {
			case err == nil:
			case errors.Is(err, ErrSelfMessage):
				logger.Debug("Skipping self-sent message")
			default:
				logger.Error("Workflow not started", "error", err)
			}

			return nil
		})
	}

	_ = g.Wait()
}

func (r *Runner) options(cfg RunConfig, cb Callbacks) Options {
	minDelay := cfg.MinDelay
	switch {
	case minDelay == 0:
		minDelay = DefaultMinDelay
	case minDelay < 0:
		minDelay = 0
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	globals := maps.Clone(cfg.Globals)
	if globals == nil {
		globals = map[string]any{}
	}

	if cfg.Bot != nil {
		globals[models.GlobalKeyBot] = cfg.Bot
	}

	return Options{
		MinDelay:       minDelay,
		Timeout:        timeout,
		Callbacks:      cb,
		InitialGlobals: globals,
	}
}

func bindHooks(workflowID string, hooks TriggerHooks) Callbacks {
	var cb Callbacks

	if hooks.OnNodeStart != nil {
		cb.OnNodeStart = func(nodeID, _ string) { hooks.OnNodeStart(workflowID, nodeID) }
	}

	if hooks.OnNodeComplete != nil {
		cb.OnNodeComplete = func(nodeID string, _ models.NodeResult) { hooks.OnNodeComplete(workflowID, nodeID) }
	}

	if hooks.OnNodeError != nil {
		cb.OnNodeError = func(nodeID string, err error) { hooks.OnNodeError(workflowID, nodeID, err) }
	}

	if hooks.OnWorkflowComplete != nil {
		cb.OnWorkflowComplete = func(result *models.RunResult) { hooks.OnWorkflowComplete(workflowID, result) }
	}

	return cb
}
