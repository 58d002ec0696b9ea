package web

import (
	"errors"

	"github.com/dukex/renflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleRunError maps errors from starting a run to problems.
func handleRunError(c fiber.Ctx, err error) error {
	var evalErr *workflow.TriggerEvalError

	switch {
	case errors.Is(err, workflow.ErrWorkflowNotFound):
		return notFound(c, "workflow_not_found", "workflow not found")
	case errors.Is(err, workflow.ErrInvalidWorkflow):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("invalid_workflow").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
	case errors.As(err, &evalErr):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}
