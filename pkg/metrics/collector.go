// Package metrics turns lifecycle events into Prometheus series.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/dukex/renflow/pkg/eventbus"
	"github.com/dukex/renflow/pkg/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "renflow"

// Collector is an EventPublisher that records every event it sees and then
// hands it to the next publisher, if any.
type Collector struct {
	gatherer prometheus.Gatherer
	next     eventbus.EventPublisher

	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	nodes        *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	adapters     *prometheus.GaugeVec
}

var _ eventbus.EventPublisher = (*Collector)(nil)

// NewCollector registers the renflow series on a fresh registry. next may be
// nil.
func NewCollector(next eventbus.EventPublisher) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		gatherer: reg,
		next:     next,
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Finished workflow runs by outcome",
		}, []string{"workflow_id", "status"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_duration_seconds",
			Help:      "Workflow run duration",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"workflow_id"}),
		nodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Finished node executions by outcome",
		}, []string{"node_type", "status"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_execution_duration_seconds",
			Help:      "Node execution duration, including min-delay padding",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_type"}),
		adapters: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adapter_connected",
			Help:      "1 while the bot adapter is connected",
		}, []string{"adapter_id", "adapter_type"}),
	}
}

func (c *Collector) Publish(ctx context.Context, key string, event eventbus.Event) error {
	c.observe(event)

	if c.next == nil {
		return nil
	}

	return c.next.Publish(ctx, key, event)
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) observe(event eventbus.Event) {
	switch e := event.(type) {
	case events.WorkflowExecutionCompleted:
		c.finishRun(e.WorkflowID, "completed", e.DurationMs)
	case events.WorkflowExecutionFailed:
		c.finishRun(e.WorkflowID, "failed", e.DurationMs)
	case events.WorkflowExecutionTimeout:
		c.finishRun(e.WorkflowID, "timeout", e.TimeoutLimitMs)
	case events.NodeExecutionFinished:
		c.finishNode(e.NodeType, "finished", e.DurationMs)
	case events.NodeExecutionFailed:
		c.finishNode(e.NodeType, "failed", e.DurationMs)
	case events.AdapterConnected:
		c.adapters.WithLabelValues(e.AdapterID, e.AdapterType).Set(1)
	case events.AdapterDisconnected:
		c.adapters.WithLabelValues(e.AdapterID, e.AdapterType).Set(0)
	}
}

func (c *Collector) finishRun(workflowID, status string, ms int64) {
	c.runs.WithLabelValues(workflowID, status).Inc()
	c.runDuration.WithLabelValues(workflowID).Observe(seconds(ms))
}

func (c *Collector) finishNode(nodeType, status string, ms int64) {
	c.nodes.WithLabelValues(nodeType, status).Inc()
	c.nodeDuration.WithLabelValues(nodeType).Observe(seconds(ms))
}

func seconds(ms int64) float64 {
	return (time.Duration(ms) * time.Millisecond).Seconds()
}
