package controller

import (
	"errors"
	"fmt"

	"aig-pipeline-be/internal/dto"
	"aig-pipeline-be/internal/pkg/serverutils"
	"aig-pipeline-be/internal/service"
	"aig-pipeline-be/pkg/pipeline"
	"aig-pipeline-be/pkg/pool"

	"github.com/gofiber/fiber/v2"
)

type IRunController interface {
	RegisterRoutes(r fiber.Router)
	Submit(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Feedback(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type runController struct {
	service service.IRunService
}

func NewRunController(service service.IRunService) IRunController {
	return &runController{service: service}
}

func (c *runController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/runs/v1")
	h.Get("/health", c.Health) // unauthenticated liveness probe
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.List)
	h.Post("", c.Submit)
	h.Get(":id", c.Show)
	h.Delete(":id", c.Cancel)
	h.Post(":id/feedback", c.Feedback)
}

func (c *runController) Submit(ctx *fiber.Ctx) error {
	userID := localString(ctx, "user_id")
	userEmail := localString(ctx, "user_email")

	var req dto.SubmitRunRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.service.Submit(ctx.Context(), userID, userEmail, req)
	if err != nil {
		var rateErr *pool.ErrRateLimited
		if errors.As(err, &rateErr) {
			ctx.Set("Retry-After", fmt.Sprintf("%d", int(rateErr.RetryAfter.Seconds())+1))
			return ctx.Status(fiber.StatusTooManyRequests).JSON(serverutils.ErrorResponse(429, err.Error()))
		}
		if errors.Is(err, pool.ErrTooManyRuns) || errors.Is(err, pool.ErrQueueFull) {
			return ctx.Status(fiber.StatusTooManyRequests).JSON(serverutils.ErrorResponse(429, err.Error()))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Run accepted", res))
}

func (c *runController) List(ctx *fiber.Ctx) error {
	userID := localString(ctx, "user_id")
	page := ctx.QueryInt("page", 1)
	pageSize := ctx.QueryInt("page_size", 20)

	res, err := c.service.List(ctx.Context(), userID, page, pageSize)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Runs", res))
}

func (c *runController) Show(ctx *fiber.Ctx) error {
	userID := localString(ctx, "user_id")
	runID := ctx.Params("id")

	res, err := c.service.Status(ctx.Context(), userID, runID)
	if err != nil {
		if errors.Is(err, pool.ErrRunNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Run not found"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Run status", res))
}

func (c *runController) Cancel(ctx *fiber.Ctx) error {
	userID := localString(ctx, "user_id")
	runID := ctx.Params("id")

	res, err := c.service.Cancel(ctx.Context(), userID, runID)
	if err != nil {
		if errors.Is(err, pool.ErrRunNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Run not found"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Run cancelled", res))
}

func (c *runController) Feedback(ctx *fiber.Ctx) error {
	userID := localString(ctx, "user_id")
	runID := ctx.Params("id")

	var req dto.FeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.service.Feedback(ctx.Context(), userID, runID, req)
	if err != nil {
		if errors.Is(err, pool.ErrRunNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Run not found"))
		}
		if errors.Is(err, pipeline.ErrNotWaiting) {
			return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(409, "Run is not waiting for feedback"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Feedback accepted", res))
}

func (c *runController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Health", c.service.Health()))
}

func localString(ctx *fiber.Ctx, key string) string {
	if v, ok := ctx.Locals(key).(string); ok {
		return v
	}
	return ""
}
