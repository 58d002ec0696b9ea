// Package web provides the HTTP admin API for a running dispatcher.
package web

import (
	"errors"
	"maps"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/renflow/pkg/dispatcher"
	"github.com/dukex/renflow/pkg/models"
	"github.com/dukex/renflow/pkg/nodes"
	"github.com/dukex/renflow/pkg/registry"
	"github.com/dukex/renflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	dispatcher *dispatcher.Dispatcher
	registry   *registry.Registry
}

func NewAPIHandlers(d *dispatcher.Dispatcher, registry *registry.Registry) *APIHandlers {
	return &APIHandlers{
		dispatcher: d,
		registry:   registry,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	adapters := h.dispatcher.Adapters()

	connected := 0
	for _, a := range adapters {
		if a.Connected() {
			connected++
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":    "healthy",
		"workflows": h.dispatcher.Workflows().Len(),
		"adapters": fiber.Map{
			"total":     len(adapters),
			"connected": connected,
		},
		"timestamp": time.Now().UTC(),
	})
}

// GetNodes returns the visible catalog, or the catalog grouped by category
// with ?grouped=true.
func (h *APIHandlers) GetNodes(c fiber.Ctx) error {
	grouped := false

	if raw := c.Query("grouped"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "Invalid grouped parameter: "+err.Error())
		}

		grouped = v
	}

	if grouped {
		return c.JSON(fiber.Map{
			"categories": h.registry.GetCategories(),
			"nodes":      h.registry.GetGroupedNodes(),
		})
	}

	return c.JSON(h.registry.GetNodeList())
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows := h.dispatcher.Workflows().FetchAll()

	summaries := make([]WorkflowSummary, 0, len(workflows))
	for _, wf := range workflows {
		summaries = append(summaries, summarize(wf))
	}

	return c.JSON(fiber.Map{
		"workflows":   summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	wf, err := h.dispatcher.Workflows().FetchByID(c.Params("id"))
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			return notFound(c, "workflow_not_found", "workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(wf)
}

// ValidateWorkflow accepts an editor graph or a compiled workflow and reports
// its structural problems. A body that is neither is a bad request.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	wf, err := workflow.Decode(c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	result := workflow.Validate(wf)

	return c.JSON(ValidateResponse{
		WorkflowID: wf.ID,
		EntryNode:  wf.EntryNode,
		Valid:      result.Valid,
		Errors:     result.Errors,
	})
}

// RunWorkflow runs a loaded workflow once with the request body as the
// trigger payload. The trigger filter is bypassed.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	var payload any

	if body := c.Body(); len(body) > 0 {
		if err := c.Bind().JSON(&payload); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	result, err := h.dispatcher.Run(c.Context(), c.Params("id"), payload)
	if err != nil {
		return handleRunError(c, err)
	}

	// Adapters and lookups in the state are live objects, not data.
	state := maps.Clone(result.FinalState)
	delete(state, models.GlobalKeyBot)
	delete(state, nodes.GlobalKeyConnectors)

	return c.JSON(RunResponse{
		Success:    result.Success,
		Error:      result.Error,
		Logs:       result.Logs,
		FinalState: state,
		DurationMS: result.Duration.Milliseconds(),
	})
}

func (h *APIHandlers) GetAdapters(c fiber.Ctx) error {
	adapters := h.dispatcher.Adapters()

	out := make([]AdapterStatus, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, AdapterStatus{ID: a.ID(), Type: a.Type(), Connected: a.Connected()})
	}

	return c.JSON(out)
}
