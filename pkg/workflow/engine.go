package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukex/renflow/pkg/eventbus"
	"github.com/dukex/renflow/pkg/events"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/otelhelper"
	"github.com/dukex/renflow/pkg/protocol"
	"github.com/dukex/renflow/pkg/template"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Callbacks observe a run. Any of them may be nil.
type Callbacks struct {
	OnNodeStart        func(nodeID, nodeType string)
	OnNodeComplete     func(nodeID string, result models.NodeResult)
	OnNodeError        func(nodeID string, err error)
	OnWorkflowComplete func(result *models.RunResult)
}

// Options tune a single run.
type Options struct {
	// MinDelay pads every node to at least this long, for visualization.
	MinDelay time.Duration
	// Timeout bounds result delivery. Zero means no limit.
	Timeout        time.Duration
	Callbacks      Callbacks
	InitialGlobals map[string]any
}

// Engine executes compiled workflows through a node executor.
type Engine struct {
	executor  protocol.NodeExecutor
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	logger    *slog.Logger
}

type EngineOption func(*Engine)

// WithPublisher publishes run and node lifecycle events to p.
func WithPublisher(p eventbus.EventPublisher) EngineOption {
	return func(e *Engine) {
		e.publisher = p
	}
}

func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

func NewEngine(executor protocol.NodeExecutor, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		executor: executor,
		tracer:   otelhelper.NoopTracer(),
		logger:   logger.With("module", "workflow_engine"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs wf from its entry node with trigger as the first input.
// The result is delivered once, either when the graph settles or when the
// timeout elapses; in the latter case in-flight nodes keep running.
func (e *Engine) Execute(ctx context.Context, wf *models.CompiledWorkflow, trigger any, opts Options) *models.RunResult {
	r := e.newRun(wf, trigger, opts)

	logger := r.logger
	logger.Info("Starting workflow execution", "workflow_name", wf.Name)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.WorkflowIDKey, wf.ID),
		attribute.String(otelhelper.WorkflowNameKey, wf.Name),
		attribute.String(otelhelper.TriggerNameKey, wf.Trigger.Name),
		attribute.String(otelhelper.ExecutionIDKey, r.executionID),
	)
	defer span.End()

	started := events.WorkflowExecutionStarted{
		BaseEvent:    events.NewBaseEvent(events.WorkflowExecutionStartedEvent, wf.ID),
		ExecutionID:  r.executionID,
		WorkflowName: wf.Name,
		TriggerName:  wf.Trigger.Name,
	}
	r.publish(ctx, started)

	runCtx, cancel := context.WithCancelCause(ctx)
	r.ctx, r.cancel = runCtx, cancel

	done := make(chan error, 1)

	go func() {
		defer cancel(nil)
		done <- r.run(runCtx)
	}()

	var expired <-chan time.Time

	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()

		expired = timer.C
	}

	var (
		result *models.RunResult
		err    error
	)

	select {
	case err = <-done:
		result = r.result(err)
	case <-expired:
		err = newError("execute "+wf.ID, CodeTimeout, "execution timed out after %s", opts.Timeout)
		result = r.result(err)
		r.publish(ctx, events.WorkflowExecutionTimeout{
			BaseEvent:      events.NewBaseEvent(events.WorkflowExecutionTimeoutEvent, wf.ID),
			ExecutionID:    r.executionID,
			TimeoutLimitMs: opts.Timeout.Milliseconds(),
			NodesExecuted:  int(r.executed.Load()),
		})
	case <-ctx.Done():
		err = ctx.Err()
		result = r.result(err)
	}

	if err != nil {
		otelhelper.SetError(span, err)
		logger.Error("Workflow execution failed", "error", err, "duration", result.Duration)

		if !errors.Is(err, ErrTimeout) {
			r.publish(ctx, events.WorkflowExecutionFailed{
				BaseEvent:     events.NewBaseEvent(events.WorkflowExecutionFailedEvent, wf.ID),
				ExecutionID:   r.executionID,
				DurationMs:    result.Duration.Milliseconds(),
				NodeID:        r.failedNode(),
				Error:         err.Error(),
				NodesExecuted: int(r.executed.Load()),
			})
		}
	} else {
		logger.Info("Workflow execution completed", "duration", result.Duration)
		r.publish(ctx, events.WorkflowExecutionCompleted{
			BaseEvent:     events.NewBaseEvent(events.WorkflowExecutionCompletedEvent, wf.ID),
			ExecutionID:   r.executionID,
			DurationMs:    result.Duration.Milliseconds(),
			NodesExecuted: int(r.executed.Load()),
		})
	}

	r.complete(result)

	return result
}

// pendingMerge accumulates arrivals at a WaitModeAll merge node.
type pendingMerge struct {
	inputs   []any
	executed bool
	timer    *time.Timer
}

type run struct {
	engine      *Engine
	wf          *models.CompiledWorkflow
	opts        Options
	executionID string
	trigger     any
	state       *models.GlobalState
	logger      *slog.Logger
	startedAt   time.Time
	executed    atomic.Int64

	logMu sync.Mutex
	logs  []models.ExecutionLog

	mergeMu sync.Mutex
	merges  map[string]*pendingMerge
	timers  sync.WaitGroup

	// ctx outlives any single branch; merge timers run under it.
	ctx    context.Context
	cancel context.CancelCauseFunc

	failMu   sync.Mutex
	failErr  error
	failNode string

	completeOnce sync.Once
}

func (e *Engine) newRun(wf *models.CompiledWorkflow, trigger any, opts Options) *run {
	state := models.NewGlobalState(opts.InitialGlobals)
	if trigger != nil {
		state.Set(models.GlobalKeyTrigger, trigger)
	}

	executionID := "exec-" + uuid.New().String()[:8]

	return &run{
		engine:      e,
		wf:          wf,
		opts:        opts,
		executionID: executionID,
		trigger:     trigger,
		state:       state,
		logger:      e.logger.With("workflow_id", wf.ID, "execution_id", executionID),
		startedAt:   time.Now(),
		merges:      make(map[string]*pendingMerge),
	}
}

// run walks the graph and then waits for armed merge timers. The first
// failure anywhere cancels the rest of the run.
func (r *run) run(ctx context.Context) error {
	if r.wf.EntryNode == "" {
		return &WorkflowError{Op: "execute " + r.wf.ID, Code: CodeNoEntryNode, Message: ErrNoEntryNode.Message}
	}

	if err := r.visit(ctx, r.wf.EntryNode, r.trigger); err != nil {
		r.fail("", err)
	}

	r.timers.Wait()
	r.warnUnfiredMerges()

	r.failMu.Lock()
	defer r.failMu.Unlock()

	return r.failErr
}

func (r *run) visit(ctx context.Context, nodeID string, input any) error {
	if err := context.Cause(ctx); err != nil {
		return err
	}

	node := r.wf.Nodes[nodeID]
	if node == nil {
		return &WorkflowError{Op: "visit", Code: CodeNodeNotFound, Message: "node not found: " + nodeID}
	}

	if node.Type == models.NodeTypeMerge {
		req := models.MergeRequirements(node.Params, node.ExpectedInputs)
		if req.WaitMode == models.WaitModeAll {
			return r.arrive(ctx, node, req, input)
		}
	}

	return r.execute(ctx, node, input)
}

// arrive records one input at a WaitModeAll merge. The arrival that
// completes the set runs the node; earlier ones end their path here.
func (r *run) arrive(ctx context.Context, node *models.ExecutionNode, req models.InputRequirements, input any) error {
	r.mergeMu.Lock()

	pm := r.merges[node.ID]
	if pm == nil {
		pm = &pendingMerge{}
		r.merges[node.ID] = pm
	}

	if pm.executed {
		r.mergeMu.Unlock()
		r.logger.Debug("Late merge arrival ignored", "node_id", node.ID)

		return nil
	}

	if err := context.Cause(ctx); err != nil {
		r.mergeMu.Unlock()
		return err
	}

	pm.inputs = append(pm.inputs, input)

	if req.Expected > 0 && len(pm.inputs) >= req.Expected {
		pm.executed = true
		inputs := pm.inputs

		if pm.timer != nil && pm.timer.Stop() {
			r.timers.Done()
		}

		r.mergeMu.Unlock()

		return r.execute(ctx, node, inputs)
	}

	if req.Timeout > 0 && pm.timer == nil {
		r.timers.Add(1)
		pm.timer = time.AfterFunc(req.Timeout, func() {
			defer r.timers.Done()
			r.expire(r.ctx, node, req)
		})
	}

	r.mergeMu.Unlock()

	return nil
}

func (r *run) expire(ctx context.Context, node *models.ExecutionNode, req models.InputRequirements) {
	if context.Cause(ctx) != nil {
		return
	}

	r.mergeMu.Lock()

	pm := r.merges[node.ID]
	if pm.executed {
		r.mergeMu.Unlock()
		return
	}

	pm.executed = true
	inputs := pm.inputs
	r.mergeMu.Unlock()

	if req.TimeoutBehavior == models.TimeoutThrow {
		err := newError("merge "+node.ID, CodeMergeTimeout, "merge timed out with %d/%d inputs", len(inputs), req.Expected)
		r.nodeError(node.ID, err)
		r.fail(node.ID, err)

		return
	}

	r.logger.Warn("Merge timed out, executing with partial inputs",
		"node_id", node.ID, "received", len(inputs), "expected", req.Expected)

	if err := r.execute(ctx, node, inputs); err != nil {
		r.fail(node.ID, err)
	}
}

// execute runs one node and, on success, its successors.
func (r *run) execute(ctx context.Context, node *models.ExecutionNode, input any) error {
	start := time.Now()
	logger := r.logger.With("node_id", node.ID, "node_type", node.Type)

	if cb := r.opts.Callbacks.OnNodeStart; cb != nil {
		cb(node.ID, node.Type)
	}

	r.publish(ctx, events.NodeExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.NodeExecutionStartedEvent, r.wf.ID),
		ExecutionID: r.executionID,
		NodeID:      node.ID,
		NodeType:    node.Type,
	})

	nodeCtx, span := otelhelper.StartSpan(ctx, r.engine.tracer, "workflow.node",
		attribute.String(otelhelper.WorkflowIDKey, r.wf.ID),
		attribute.String(otelhelper.ExecutionIDKey, r.executionID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
	)

	logger.Info("Executing node")

	nctx := &models.NodeContext{
		WorkflowID: r.wf.ID,
		NodeID:     node.ID,
		NodeType:   node.Type,
		State:      r.state,
		Logger:     r.nodeLogger(node.ID),
	}

	result := r.engine.executor.ExecuteNode(nodeCtx, node.Type, input, node.Params, nctx)
	r.executed.Add(1)

	if !result.Success {
		err := &WorkflowError{Op: "execute " + node.ID, Code: CodeNodeFailed, Message: "node execution failed: " + result.Error}

		otelhelper.SetError(span, err)
		span.End()

		logger.Error("Node execution failed", "error", result.Error)
		r.publish(ctx, events.NodeExecutionFailed{
			BaseEvent:   events.NewBaseEvent(events.NodeExecutionFailedEvent, r.wf.ID),
			ExecutionID: r.executionID,
			NodeID:      node.ID,
			NodeType:    node.Type,
			Error:       result.Error,
			DurationMs:  time.Since(start).Milliseconds(),
		})
		r.nodeError(node.ID, err)
		r.fail(node.ID, err)

		return err
	}

	span.End()

	if wait := r.opts.MinDelay - time.Since(start); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}

	logger.Info("Node execution succeeded")
	r.publish(ctx, events.NodeExecutionFinished{
		BaseEvent:   events.NewBaseEvent(events.NodeExecutionFinishedEvent, r.wf.ID),
		ExecutionID: r.executionID,
		NodeID:      node.ID,
		NodeType:    node.Type,
		OutputData:  result.Output,
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if cb := r.opts.Callbacks.OnNodeComplete; cb != nil {
		cb(node.ID, result)
	}

	return r.dispatch(ctx, node, result.Output)
}

// dispatch follows a node's branches when it has any, otherwise fans out
// to every successor.
func (r *run) dispatch(ctx context.Context, node *models.ExecutionNode, output any) error {
	if node.Branches == nil {
		return r.fanOut(ctx, node.Next, output)
	}

	fields, _ := output.(map[string]any)

	if node.Type == models.NodeTypeIfElse {
		key := models.BranchFalse
		if nodes.Truthy(fields[models.OutputKeyBranch]) {
			key = models.BranchTrue
		}

		if target, ok := branchTarget(node, key); ok {
			return r.visit(ctx, target, output)
		}

		r.logger.Info("Branch has no connected node, path ends", "node_id", node.ID, "branch", key)

		return nil
	}

	var key string
	if v, ok := fields[models.OutputKeyBranchKey]; ok {
		key = template.Stringify(v)
	} else {
		key = template.Stringify(output)
	}

	if target, ok := branchTarget(node, key); ok {
		return r.visit(ctx, target, output)
	}

	if len(node.Next) > 0 {
		return r.fanOut(ctx, node.Next, output)
	}

	r.logger.Info("No branch matched, path ends", "node_id", node.ID, "branch", key)

	return nil
}

func branchTarget(node *models.ExecutionNode, key string) (string, bool) {
	if target := node.Branches[key]; target != "" {
		return target, true
	}

	if target := node.Branches[models.BranchDefault]; target != "" {
		return target, true
	}

	return "", false
}

// fanOut starts every successor in declaration order and waits for all of
// them. The first failure cancels the siblings.
func (r *run) fanOut(ctx context.Context, next []string, output any) error {
	switch len(next) {
	case 0:
		return nil
	case 1:
		return r.visit(ctx, next[0], output)
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, id := range next {
		g.Go(func() error {
			return r.visit(gctx, id, output)
		})
	}

	return g.Wait()
}

func (r *run) nodeLogger(nodeID string) models.NodeLogger {
	return func(level models.LogLevel, message string, data any) {
		r.addLog(nodeID, level, message, data)
	}
}

func (r *run) addLog(nodeID string, level models.LogLevel, message string, data any) {
	r.logMu.Lock()
	defer r.logMu.Unlock()

	r.logs = append(r.logs, models.ExecutionLog{
		Timestamp: time.Now().UnixMilli(),
		NodeID:    nodeID,
		Level:     level,
		Message:   message,
		Data:      data,
	})
}

func (r *run) nodeError(nodeID string, err error) {
	if cb := r.opts.Callbacks.OnNodeError; cb != nil {
		cb(nodeID, err)
	}
}

// fail records the first failure of the run and cancels everything still
// in flight.
func (r *run) fail(nodeID string, err error) {
	r.failMu.Lock()

	if r.failErr != nil {
		r.failMu.Unlock()
		return
	}

	r.failErr = err
	r.failNode = nodeID
	r.cancel(err)
	r.failMu.Unlock()

	r.disarmMerges()
}

// disarmMerges stops pending merge timers so a failed run settles without
// waiting for them. A timer that already fired sees the cancelled context.
func (r *run) disarmMerges() {
	r.mergeMu.Lock()
	defer r.mergeMu.Unlock()

	for _, pm := range r.merges {
		if pm.executed {
			continue
		}

		pm.executed = true

		if pm.timer != nil && pm.timer.Stop() {
			r.timers.Done()
		}
	}
}

func (r *run) failedNode() string {
	r.failMu.Lock()
	defer r.failMu.Unlock()

	return r.failNode
}

func (r *run) warnUnfiredMerges() {
	r.mergeMu.Lock()
	defer r.mergeMu.Unlock()

	for id, pm := range r.merges {
		if pm.executed {
			continue
		}

		r.logger.Warn("Merge node never fired", "node_id", id, "received", len(pm.inputs))
		r.addLog(id, models.LogLevelWarn, fmt.Sprintf("merge never fired: received %d inputs", len(pm.inputs)), nil)
	}
}

func (r *run) result(err error) *models.RunResult {
	r.logMu.Lock()
	logs := make([]models.ExecutionLog, len(r.logs))
	copy(logs, r.logs)
	r.logMu.Unlock()

	res := &models.RunResult{
		Success:    err == nil,
		Logs:       logs,
		FinalState: r.state.Snapshot(),
		Duration:   time.Since(r.startedAt),
	}

	if err != nil {
		res.Error = err.Error()
	}

	return res
}

func (r *run) complete(result *models.RunResult) {
	r.completeOnce.Do(func() {
		if cb := r.opts.Callbacks.OnWorkflowComplete; cb != nil {
			cb(result)
		}
	})
}

func (r *run) publish(ctx context.Context, event eventbus.Event) {
	if r.engine.publisher == nil {
		return
	}

	if err := r.engine.publisher.Publish(ctx, r.wf.ID, event); err != nil {
		r.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
