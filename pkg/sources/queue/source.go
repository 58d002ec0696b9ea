// Package queue starts workflows from messages popped off Redis lists.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/sources"
	"github.com/redis/go-redis/v9"
)

// EventName is the event passed to the callback for every message.
const EventName = "queue"

const popTimeout = time.Second

// Source runs one BLPOP consumer per distinct params.queue among workflows
// with a queue trigger. The client is owned by the caller.
type Source struct {
	client redis.UniversalClient
	queues map[string][]*models.CompiledWorkflow
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ sources.Source = (*Source)(nil)

func New(client redis.UniversalClient, workflows []*models.CompiledWorkflow, logger *slog.Logger) *Source {
	s := &Source{
		client: client,
		queues: map[string][]*models.CompiledWorkflow{},
		logger: logger.With("module", "queue_source"),
	}

	for _, wf := range workflows {
		if wf.Trigger.Type != sources.TypeQueue {
			continue
		}

		name := sources.Param(wf, "queue")
		if name == "" {
			s.logger.Warn("Queue workflow has no queue name", "workflow_id", wf.ID)
			continue
		}

		s.queues[name] = append(s.queues[name], wf)
	}

	return s
}

// Queues lists the consumed queue names in order.
func (s *Source) Queues() []string {
	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (s *Source) Start(ctx context.Context, callback sources.Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	ctx, s.cancel = context.WithCancel(ctx)

	for _, name := range s.Queues() {
		s.wg.Add(1)

		go s.consume(ctx, name, s.queues[name], callback)

		s.logger.Info("Consuming queue", "queue", name, "workflows", len(s.queues[name]))
	}

	s.started = true

	return nil
}

func (s *Source) consume(ctx context.Context, name string, workflows []*models.CompiledWorkflow, callback sources.Callback) {
	defer s.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		result, err := s.client.BLPop(ctx, popTimeout, name).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}

			s.logger.Error("Failed to pop from queue", "queue", name, "error", err)

			select {
			case <-ctx.Done():
			case <-time.After(popTimeout):
			}

			continue
		}

		// BLPOP replies with [key, value].
		if len(result) < 2 {
			continue
		}

		s.wg.Add(1)

		go func(message string) {
			defer s.wg.Done()

			callback(ctx, EventName, workflows, payload(name, message))
		}(result[1])
	}
}

// payload passes JSON messages through and wraps anything else.
func payload(queue, message string) any {
	var decoded any
	if err := json.Unmarshal([]byte(message), &decoded); err == nil {
		return decoded
	}

	return map[string]any{
		"message":   message,
		"queue":     queue,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

// Stop cancels the consumers and waits for them and their callbacks.
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.started = false
	s.cancel()

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Queue source stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
