package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/dukex/renflow/pkg/cmd"
	"github.com/dukex/renflow/pkg/eventbus"
	"github.com/dukex/renflow/pkg/events"
	"github.com/dukex/renflow/pkg/metrics"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/otelhelper"
	"github.com/dukex/renflow/pkg/registry"
	"github.com/dukex/renflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "renflow"

// runtime is what every executing command shares: the catalog, the engine,
// the metrics collector and the optional event bus and tracer.
type runtime struct {
	logger   *slog.Logger
	registry *registry.Registry
	bus      eventbus.EventBus
	metrics  *metrics.Collector
	runner   *workflow.Runner

	closers []func(context.Context) error
}

func newRuntime(ctx context.Context, command *cli.Command, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{
		logger:   logger,
		registry: cmd.NewRegistry(logger),
	}

	var opts []workflow.EngineOption

	if command.Bool("otel") {
		tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		opts = append(opts, workflow.WithTracer(tracer))
		rt.closers = append(rt.closers, shutdown)
	}

	bus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}

	if bus != nil {
		rt.bus = bus
		rt.metrics = metrics.NewCollector(bus)
		rt.closers = append(rt.closers, func(context.Context) error { return bus.Close() })
	} else {
		rt.metrics = metrics.NewCollector(nil)
	}

	opts = append(opts, workflow.WithPublisher(rt.metrics))

	rt.runner = workflow.NewRunner(workflow.NewEngine(rt.registry, logger, opts...), logger)

	return rt, nil
}

// logEvents subscribes to the bus and writes every lifecycle event to the
// debug log.
func (rt *runtime) logEvents(ctx context.Context) error {
	if rt.bus == nil {
		return nil
	}

	for _, t := range []events.EventType{
		events.WorkflowExecutionStartedEvent,
		events.WorkflowExecutionCompletedEvent,
		events.WorkflowExecutionFailedEvent,
		events.WorkflowExecutionTimeoutEvent,
		events.NodeExecutionStartedEvent,
		events.NodeExecutionFinishedEvent,
		events.NodeExecutionFailedEvent,
		events.AdapterConnectedEvent,
		events.AdapterDisconnectedEvent,
	} {
		err := rt.bus.Handle(t, func(_ context.Context, event any) error {
			rt.logger.Debug("Lifecycle event", "event_type", t, "event", event)
			return nil
		})
		if err != nil {
			return err
		}
	}

	return rt.bus.Subscribe(ctx)
}

func (rt *runtime) close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			rt.logger.Error("Failed to shut down", "error", err)
		}
	}
}

// minDelay maps the CLI convention, where zero turns padding off, onto the
// runner's, where zero means the default.
func minDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return workflow.NoDelay
	}

	return d
}

// parsePayload decodes JSON, falling back to the raw string.
func parsePayload(raw string) any {
	if raw == "" {
		return nil
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}

	return v
}

// parseBotTokens reads repeated id=token pairs.
func parseBotTokens(pairs []string) (map[string]string, error) {
	tokens := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		id, token, ok := strings.Cut(pair, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid bot token %q, expected id=token", pair)
		}

		tokens[id] = token
	}

	return tokens, nil
}

// printableState drops the live objects the runner seeds into the state.
func printableState(result *models.RunResult) map[string]any {
	state := maps.Clone(result.FinalState)
	delete(state, models.GlobalKeyBot)
	delete(state, nodes.GlobalKeyConnectors)

	return state
}
