// Package webhook starts workflows from HTTP requests received on the admin
// API under /webhooks.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/sources"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// EventName is the event passed to the callback for every request.
const EventName = "webhook"

// Prefix is where the handler is mounted.
const Prefix = "/webhooks"

type route struct {
	method    string
	workflows []*models.CompiledWorkflow
}

// Source maps params.path (and params.method, POST by default) of workflows
// with a webhook trigger to HTTP routes.
type Source struct {
	routes map[string]*route
	logger *slog.Logger

	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	callback sources.Callback
	wg       sync.WaitGroup
}

var _ sources.Source = (*Source)(nil)

// New registers the webhook workflows. Two workflows on the same path must
// agree on the method.
func New(workflows []*models.CompiledWorkflow, logger *slog.Logger) (*Source, error) {
	s := &Source{
		routes: map[string]*route{},
		logger: logger.With("module", "webhook_source"),
	}

	for _, wf := range workflows {
		if wf.Trigger.Type != sources.TypeWebhook {
			continue
		}

		path := normalizePath(sources.Param(wf, "path"))
		if path == "/" {
			s.logger.Warn("Webhook workflow has no path", "workflow_id", wf.ID)
			continue
		}

		method := strings.ToUpper(sources.Param(wf, "method"))
		if method == "" {
			method = fiber.MethodPost
		}

		r, ok := s.routes[path]
		if !ok {
			r = &route{method: method}
			s.routes[path] = r
		}

		if r.method != method {
			return nil, fmt.Errorf("webhook path %s used with %s and %s", path, r.method, method)
		}

		r.workflows = append(r.workflows, wf)
	}

	return s, nil
}

func normalizePath(p string) string {
	return "/" + strings.Trim(p, "/")
}

// Len reports how many paths are served.
func (s *Source) Len() int {
	return len(s.routes)
}

func (s *Source) Start(ctx context.Context, callback sources.Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.callback != nil {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.callback = callback

	for path, r := range s.routes {
		s.logger.Info("Webhook registered", "path", Prefix+path, "method", r.method, "workflows", len(r.workflows))
	}

	return nil
}

// Stop rejects new requests and waits for in-flight runs, or for ctx.
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.callback == nil {
		s.mu.Unlock()
		return nil
	}

	s.callback = nil
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle serves Prefix + "/*". The request is acknowledged before the
// workflows run.
func (s *Source) Handle(c fiber.Ctx) error {
	path := normalizePath(strings.Clone(c.Params("*")))

	r, ok := s.routes[path]
	if !ok || r.method != c.Method() {
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("webhook_not_found").
			WithDetail("no webhook for " + c.Method() + " " + path)

		return c.Status(fiber.StatusNotFound).JSON(problem)
	}

	s.mu.RLock()
	callback, ctx := s.callback, s.ctx
	if callback != nil {
		s.wg.Add(1)
	}
	s.mu.RUnlock()

	if callback == nil {
		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("webhook_unavailable").
			WithDetail("webhook source is not running")

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
	}

	// fiber reuses request buffers once the handler returns.
	payload := requestPayload(c, path)

	s.logger.Info("Received webhook request", "method", c.Method(), "path", path)

	go func() {
		defer s.wg.Done()

		callback(ctx, EventName, r.workflows, payload)
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":    "accepted",
		"workflows": len(r.workflows),
	})
}

func requestPayload(c fiber.Ctx, path string) map[string]any {
	var body any

	if raw := c.Body(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
	}

	headers := map[string]any{}
	for name, values := range c.GetReqHeaders() {
		if len(values) == 1 {
			headers[strings.Clone(name)] = strings.Clone(values[0])
			continue
		}

		cloned := make([]string, len(values))
		for i, v := range values {
			cloned[i] = strings.Clone(v)
		}

		headers[strings.Clone(name)] = cloned
	}

	query := map[string]any{}
	for name, value := range c.Queries() {
		query[strings.Clone(name)] = strings.Clone(value)
	}

	return map[string]any{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"method":      strings.Clone(c.Method()),
		"path":        path,
		"query":       query,
		"headers":     headers,
		"body":        body,
		"remote_addr": strings.Clone(c.IP()),
	}
}
