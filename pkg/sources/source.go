// Package sources defines trigger sources that start workflows outside of
// bot adapters, such as cron schedules, queues and webhooks.
package sources

import (
	"context"

	"github.com/dukex/renflow/pkg/models"
)

// Trigger types served by sources.
const (
	TypeSchedule = "schedule"
	TypeQueue    = "queue"
	TypeWebhook  = "webhook"
)

// Callback runs workflows for one source event.
type Callback func(ctx context.Context, event string, workflows []*models.CompiledWorkflow, payload any)

// Source is a long-running producer of trigger events.
type Source interface {
	// Start begins emitting events through callback. It does not block.
	Start(ctx context.Context, callback Callback) error

	// Stop halts the source and waits for in-flight callbacks.
	Stop(ctx context.Context) error
}

// Param returns a string trigger param of wf, or "".
func Param(wf *models.CompiledWorkflow, key string) string {
	s, _ := wf.Trigger.Params[key].(string)

	return s
}
