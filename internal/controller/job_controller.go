package controller

import (
	"errors"

	"ai-notetaking-pipeline/internal/dto"
	"ai-notetaking-pipeline/internal/pkg/serverutils"
	"ai-notetaking-pipeline/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IJobController interface {
	RegisterRoutes(r fiber.Router, guard fiber.Handler)
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
	Retry(ctx *fiber.Ctx) error
}

type jobController struct {
	jobService service.IJobService
}

func NewJobController(jobService service.IJobService) IJobController {
	return &jobController{
		jobService: jobService,
	}
}

func (c *jobController) RegisterRoutes(r fiber.Router, guard fiber.Handler) {
	h := r.Group("/jobs")
	h.Get("", c.List)
	h.Get("stats", c.Stats)
	h.Get(":id", c.Show)
	h.Post(":id/retry", guard, c.Retry)
}

func (c *jobController) List(ctx *fiber.Ctx) error {
	var req dto.ListJobsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid query"))
	}

	res, err := c.jobService.List(ctx.Context(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Job list", res))
}

func (c *jobController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid job ID"))
	}

	res, err := c.jobService.Show(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		}
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Job detail", res))
}

func (c *jobController) Stats(ctx *fiber.Ctx) error {
	res, err := c.jobService.Stats(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Job stats", res))
}

func (c *jobController) Retry(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid job ID"))
	}

	if err := c.jobService.Retry(ctx.Context(), id); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		}
		return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(409, err.Error()))
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Job resubmitted", dto.EnqueueResponse{JobId: id}))
}
