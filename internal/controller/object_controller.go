package controller

import (
	"errors"
	"mime"
	"net/url"
	"path"

	"ai-notetaking-pipeline/internal/pkg/serverutils"
	"ai-notetaking-pipeline/pkg/storage"

	"github.com/gofiber/fiber/v2"
)

// IObjectController resolves signed object URLs issued by storage.Signer.
type IObjectController interface {
	RegisterRoutes(r fiber.Router)
	Get(ctx *fiber.Ctx) error
}

type objectController struct {
	objects storage.ObjectStorage
	signer  *storage.Signer
}

func NewObjectController(objects storage.ObjectStorage, signer *storage.Signer) IObjectController {
	return &objectController{
		objects: objects,
		signer:  signer,
	}
}

func (c *objectController) RegisterRoutes(r fiber.Router) {
	r.Get("/objects/*", c.Get)
}

func (c *objectController) Get(ctx *fiber.Ctx) error {
	key, err := url.PathUnescape(ctx.Params("*"))
	if err != nil || key == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid object key"))
	}
	if err := c.signer.Verify(key, ctx.Query("token")); err != nil {
		return ctx.Status(fiber.StatusForbidden).JSON(serverutils.ErrorResponse(403, err.Error()))
	}

	rc, err := c.objects.Open(ctx.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		}
		return err
	}

	if contentType := mime.TypeByExtension(path.Ext(key)); contentType != "" {
		ctx.Set(fiber.HeaderContentType, contentType)
	}
	// fasthttp closes the reader once the body is written.
	return ctx.SendStream(rc)
}
