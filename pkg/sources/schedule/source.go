// Package schedule starts workflows on cron schedules.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/sources"
	"github.com/robfig/cron/v3"
)

// EventName is the event passed to the callback on every tick.
const EventName = "schedule"

type job struct {
	workflow *models.CompiledWorkflow
	expr     string
}

// Source runs one cron job per workflow with a schedule trigger and a
// params.cron expression.
type Source struct {
	jobs    []job
	logger  *slog.Logger
	cron    *cron.Cron
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

var _ sources.Source = (*Source)(nil)

// New selects the scheduled workflows. An invalid cron expression is a
// configuration error.
func New(workflows []*models.CompiledWorkflow, logger *slog.Logger) (*Source, error) {
	s := &Source{logger: logger.With("module", "schedule_source")}

	for _, wf := range workflows {
		if wf.Trigger.Type != sources.TypeSchedule {
			continue
		}

		expr := sources.Param(wf, "cron")
		if expr == "" {
			s.logger.Warn("Scheduled workflow has no cron expression", "workflow_id", wf.ID)
			continue
		}

		if _, err := cron.ParseStandard(expr); err != nil {
			return nil, fmt.Errorf("invalid cron expression for workflow %s: %w", wf.ID, err)
		}

		s.jobs = append(s.jobs, job{workflow: wf, expr: expr})
	}

	return s, nil
}

// Len reports how many workflows are scheduled.
func (s *Source) Len() int {
	return len(s.jobs)
}

func (s *Source) Start(ctx context.Context, callback sources.Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	logger := cronLogger{s.logger}
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))

	for _, j := range s.jobs {
		id, err := s.cron.AddFunc(j.expr, func() { s.tick(ctx, j, callback) })
		if err != nil {
			return fmt.Errorf("failed to add cron job for workflow %s: %w", j.workflow.ID, err)
		}

		s.logger.Info("Scheduled workflow", "workflow_id", j.workflow.ID, "cron", j.expr, "entry_id", id)
	}

	s.cron.Start()
	s.started = true

	return nil
}

func (s *Source) tick(ctx context.Context, j job, callback sources.Callback) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.logger.Debug("Cron job triggered", "workflow_id", j.workflow.ID)

	callback(ctx, EventName, []*models.CompiledWorkflow{j.workflow}, map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"cron":       j.expr,
		"workflowId": j.workflow.ID,
	})
}

// Stop prevents new ticks and waits for running ones, or for ctx.
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.started = false

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.wg.Wait()
	s.logger.Info("Schedule source stopped")

	return nil
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
