// Package dispatcher routes bot events and source events to the workflows
// they trigger.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/renflow/pkg/connectors"
	"github.com/dukex/renflow/pkg/eventbus"
	"github.com/dukex/renflow/pkg/events"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/protocol"
	"github.com/dukex/renflow/pkg/workflow"
)

// Dispatcher owns the loaded workflows, the bot adapters and the runner.
type Dispatcher struct {
	repo      *workflow.Repository
	manager   *connectors.Manager
	runner    *workflow.Runner
	matcher   *workflow.TriggerMatcher
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	minDelay time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	subs    protocol.Subscriptions
	wg      sync.WaitGroup
}

type Option func(*Dispatcher)

// WithMinDelay sets the per-node padding; workflow.NoDelay disables it.
func WithMinDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.minDelay = delay }
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithPublisher publishes adapter connection changes.
func WithPublisher(p eventbus.EventPublisher) Option {
	return func(d *Dispatcher) { d.publisher = p }
}

func New(repo *workflow.Repository, manager *connectors.Manager, runner *workflow.Runner, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		repo:    repo,
		manager: manager,
		runner:  runner,
		matcher: workflow.NewTriggerMatcher(logger),
		logger:  logger.With("module", "dispatcher"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// AddBots creates one adapter per bot. A token in tokens, keyed by bot id,
// overrides the configured one.
func (d *Dispatcher) AddBots(bots []models.BotConfig, tokens map[string]string) error {
	for _, bot := range bots {
		token := bot.Token
		if t, ok := tokens[bot.ID]; ok {
			token = t
		}

		_, err := d.manager.CreateBotAdapter(bot.Type, protocol.AdapterOptions{URL: bot.Address, Token: token, RateLimit: bot.RateLimit}, bot.ID)
		if err != nil {
			return fmt.Errorf("bot %s: %w", bot.ID, err)
		}
	}

	return nil
}

// Start subscribes to every registered adapter and connects it. A bot that
// fails to connect is logged and left to its own reconnect policy.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}

	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))

	adapters := d.manager.All()

	for _, adapter := range adapters {
		d.subs = append(d.subs,
			adapter.OnMessage(func(msg *models.ChatMessage) { d.onMessage(adapter, protocol.EventMessage, msg) }),
			adapter.OnMessageMine(func(msg *models.ChatMessage) { d.onMessage(adapter, protocol.EventMessageMine, msg) }),
			adapter.OnError(func(e protocol.ErrorEvent) {
				d.logger.Warn("Bot error", "adapter_id", e.ID, "event", protocol.EventError, "error", e.Err)
			}),
		)

		if d.publisher != nil {
			d.subs = append(d.subs,
				adapter.OnConnected(func(protocol.ConnectionEvent) { d.publishConnection(adapter, true) }),
				adapter.OnDisconnected(func(protocol.ConnectionEvent) { d.publishConnection(adapter, false) }),
			)
		}
	}

	d.started = true

	for _, adapter := range adapters {
		if err := adapter.Connect(ctx); err != nil {
			d.logger.Error("Failed to connect bot", "adapter_id", adapter.ID(), "error", err)
			continue
		}

		d.logger.Info("Bot connected", "adapter_id", adapter.ID(), "type", adapter.Type())
	}

	return nil
}

// Stop disconnects every adapter, drops the subscriptions and waits for
// in-flight runs, or for ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}

	d.started = false
	subs := d.subs
	d.subs = nil
	d.mu.Unlock()

	subs.Unsubscribe()

	for _, adapter := range d.manager.All() {
		if err := adapter.Disconnect(ctx); err != nil {
			d.logger.Warn("Failed to disconnect bot", "adapter_id", adapter.ID(), "error", err)
		}
	}

	d.cancel()

	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onMessage runs off the adapter's read loop so a slow workflow never stalls
// the connection.
func (d *Dispatcher) onMessage(bot protocol.BotAdapter, event string, msg *models.ChatMessage) {
	wfs := d.matcher.MatchEvent(event, d.repo.FetchAll())
	if len(wfs) == 0 {
		return
	}

	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}

	ctx := d.ctx
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		d.runner.RunByTrigger(ctx, wfs, msg, d.runConfig(bot, nil), d.hooks(event))
	}()
}

// Fire runs the workflows whose trigger name or label is event, bypassing the
// chat filter. It blocks until they finish.
func (d *Dispatcher) Fire(ctx context.Context, event string, payload any) {
	d.FireWorkflows(ctx, event, d.matcher.MatchEvent(event, d.repo.FetchAll()), payload)
}

// FireWorkflows runs wfs for one source event, bypassing the chat filter. It
// has the shape of a sources.Callback.
func (d *Dispatcher) FireWorkflows(ctx context.Context, event string, wfs []*models.CompiledWorkflow, payload any) {
	if len(wfs) == 0 {
		return
	}

	d.logger.Debug("Firing source event", "event", event, "workflows", len(wfs))

	d.runner.RunByTrigger(ctx, wfs, payload, d.runConfig(d.defaultBot(), workflow.AlwaysRun), d.hooks(event))
}

// Run runs one workflow by id for payload, bypassing the chat filter.
func (d *Dispatcher) Run(ctx context.Context, id string, payload any) (*models.RunResult, error) {
	wf, err := d.repo.FetchByID(id)
	if err != nil {
		return nil, err
	}

	return d.runner.RunWorkflow(ctx, wf, payload, d.runConfig(d.defaultBot(), workflow.AlwaysRun), workflow.Callbacks{})
}

// Workflows exposes the repository the dispatcher matches against.
func (d *Dispatcher) Workflows() *workflow.Repository {
	return d.repo
}

func (d *Dispatcher) Adapters() []protocol.BotAdapter {
	return d.manager.All()
}

// defaultBot is the first adapter by id, or nil; source events have no bot
// of their own.
func (d *Dispatcher) defaultBot() protocol.BotAdapter {
	if all := d.manager.All(); len(all) > 0 {
		return all[0]
	}

	return nil
}

func (d *Dispatcher) runConfig(bot protocol.BotAdapter, filter workflow.FilterFunc) workflow.RunConfig {
	return workflow.RunConfig{
		MinDelay: d.minDelay,
		Timeout:  d.timeout,
		Bot:      bot,
		Globals:  map[string]any{nodes.GlobalKeyConnectors: d.manager},
		Filter:   filter,
	}
}

func (d *Dispatcher) publishConnection(adapter protocol.BotAdapter, connected bool) {
	var event eventbus.Event

	name := protocol.EventDisconnected
	if connected {
		name = protocol.EventConnected
	}

	d.logger.Debug("Bot connection changed", "adapter_id", adapter.ID(), "event", name)

	if connected {
		event = events.AdapterConnected{
			BaseEvent:   events.NewBaseEvent(events.AdapterConnectedEvent, ""),
			AdapterID:   adapter.ID(),
			AdapterType: adapter.Type(),
		}
	} else {
		event = events.AdapterDisconnected{
			BaseEvent:   events.NewBaseEvent(events.AdapterDisconnectedEvent, ""),
			AdapterID:   adapter.ID(),
			AdapterType: adapter.Type(),
		}
	}

	if err := d.publisher.Publish(context.Background(), adapter.ID(), event); err != nil {
		d.logger.Warn("Failed to publish adapter event", "adapter_id", adapter.ID(), "error", err)
	}
}

func (d *Dispatcher) hooks(event string) workflow.TriggerHooks {
	return workflow.TriggerHooks{
		OnNodeError: func(workflowID, nodeID string, err error) {
			d.logger.Warn("Node failed", "event", event, "workflow_id", workflowID, "node_id", nodeID, "error", err)
		},
		OnWorkflowComplete: func(workflowID string, result *models.RunResult) {
			d.logger.Info("Workflow completed", "event", event, "workflow_id", workflowID,
				"success", result.Success, "duration", result.Duration)
		},
	}
}
