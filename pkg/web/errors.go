package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/platewatch/platewatch/pkg/compiler"
	"github.com/platewatch/platewatch/pkg/persistence"
	"github.com/platewatch/platewatch/pkg/ratelimit"
	"github.com/platewatch/platewatch/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
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

// handleServiceError maps service layer errors onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("compile_error").
			WithDetail(compileErr.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"problem": problem,
			"issues":  compileErr.Issues,
		})
	}

	var limited *ratelimit.ErrLimited
	if errors.As(err, &limited) {
		problem := problems.NewStatusProblem(429).
			WithInstance(c.Path()).
			WithType("rate_limited").
			WithDetail(limited.Error())

		c.Set("Retry-After", limited.RetryAfter.String())

		return c.Status(fiber.StatusTooManyRequests).JSON(problem)
	}

	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, services.ErrCannotModifyPublished):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("published_immutable").
			WithDetail("published workflows cannot be modified")

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, services.ErrWorkflowNotExecutable):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("workflow_not_executable").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "Workflow not found")

	case persistence.IsCheckNotFound(err):
		return notFound(c, "Check not found")

	case persistence.IsCityNotFound(err):
		return notFound(c, "City not found")

	default:
		return internalError(c, err)
	}
}
