package controller

import (
	"errors"

	"ai-notetaking-pipeline/internal/dto"
	"ai-notetaking-pipeline/internal/pkg/serverutils"
	"ai-notetaking-pipeline/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ISourceController interface {
	RegisterRoutes(r fiber.Router, guard fiber.Handler)
	CreateText(ctx *fiber.Ctx) error
	CreateFromObject(ctx *fiber.Ctx) error
	Enqueue(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Note(ctx *fiber.Ctx) error
}

type sourceController struct {
	sourceService service.ISourceService
	jobService    service.IJobService
}

func NewSourceController(sourceService service.ISourceService, jobService service.IJobService) ISourceController {
	return &sourceController{
		sourceService: sourceService,
		jobService:    jobService,
	}
}

func (c *sourceController) RegisterRoutes(r fiber.Router, guard fiber.Handler) {
	h := r.Group("/sources")
	h.Post("text", guard, c.CreateText)
	h.Post("object", guard, c.CreateFromObject)
	h.Post(":id/enqueue", guard, c.Enqueue)
	h.Get(":id/status", c.Status)
	h.Get(":id/note", c.Note)
}

func (c *sourceController) CreateText(ctx *fiber.Ctx) error {
	var req dto.CreateTextSourceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sourceService.CreateText(ctx.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrNoSourceText) {
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
		}
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Source accepted", res))
}

func (c *sourceController) CreateFromObject(ctx *fiber.Ctx) error {
	var req dto.CreateObjectSourceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sourceService.CreateFromObject(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Source accepted", res))
}

func (c *sourceController) Enqueue(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid source ID"))
	}

	jobId, err := c.jobService.EnqueueSource(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSourceNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		}
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Source enqueued", dto.EnqueueResponse{JobId: jobId}))
}

func (c *sourceController) Status(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid source ID"))
	}

	res, err := c.sourceService.Status(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSourceNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		}
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Source status", res))
}

func (c *sourceController) Note(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid source ID"))
	}

	res, err := c.sourceService.Note(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNoteNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		}
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Source note", res))
}
