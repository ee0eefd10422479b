package controller

import (
	"redline-be/internal/dto"
	"redline-be/internal/pkg/serverutils"
	"redline-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IThreadController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	AddComment(ctx *fiber.Ctx) error
	Collect(ctx *fiber.Ctx) error
}

type threadController struct {
	documentService service.IDocumentService
}

func NewThreadController(documentService service.IDocumentService) IThreadController {
	return &threadController{
		documentService: documentService,
	}
}

func (c *threadController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/documents/:id/threads")
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.List)
	h.Post("", c.Create)
	h.Post("collect", c.Collect)
	h.Post(":threadId/comments", c.AddComment)
}

func (c *threadController) List(ctx *fiber.Ctx) error {
	id, err := documentId(ctx)
	if err != nil {
		return err
	}

	res, err := c.documentService.ListThreads(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list threads", res))
}

func (c *threadController) Create(ctx *fiber.Ctx) error {
	id, err := documentId(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateThreadRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err = serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.documentService.CreateThread(ctx.UserContext(), author(ctx), id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create thread", res))
}

func (c *threadController) AddComment(ctx *fiber.Ctx) error {
	id, err := documentId(ctx)
	if err != nil {
		return err
	}

	var req dto.AddCommentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err = serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.documentService.AddComment(ctx.UserContext(), author(ctx), id, ctx.Params("threadId"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success add comment", res))
}

// Collect drops threads whose marks are all gone.
func (c *threadController) Collect(ctx *fiber.Ctx) error {
	id, err := documentId(ctx)
	if err != nil {
		return err
	}

	if err := c.documentService.CollectEmptyThreads(ctx.UserContext(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success collect threads", nil))
}
