package controller

import (
	"redline-be/internal/dto"
	"redline-be/internal/pkg/serverutils"
	"redline-be/internal/service"
	"redline-be/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	SocketToken(ctx *fiber.Ctx) error
	DownloadURL(ctx *fiber.Ctx) error
	AgentMessages(ctx *fiber.Ctx) error
	ApplyProposal(ctx *fiber.Ctx) error
	AcceptChange(ctx *fiber.Ctx) error
	RejectChange(ctx *fiber.Ctx) error
}

type documentController struct {
	documentService service.IDocumentService
}

func NewDocumentController(documentService service.IDocumentService) IDocumentController {
	return &documentController{
		documentService: documentService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/documents")
	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Get(":id/ws-token", c.SocketToken)
	h.Get(":id/download-url", c.DownloadURL)
	h.Get(":id/agent-messages", c.AgentMessages)
	h.Post(":id/proposals", c.ApplyProposal)
	h.Post(":id/changes/:key/accept", c.AcceptChange)
	h.Post(":id/changes/:key/reject", c.RejectChange)
}

func documentId(ctx *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid document id")
	}
	return id, nil
}

func author(ctx *fiber.Ctx) session.Author {
	return session.Author{ID: serverutils.UserID(ctx), FullName: serverutils.FullName(ctx)}
}

func (c *documentController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err := serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.documentService.Create(ctx.UserContext(), serverutils.UserID(ctx), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create document", res))
}

func (c *documentController) Show(ctx *fiber.Ctx) error {
	id, err := documentId(ctx)
	if err != nil {
		return err
	}

	res, err := c.documentService.Show(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show document", res))
}

func (c *documentController) SocketToken(ctx *fiber.Ctx) error {
	id, err := documentId(ctx)
	if err != nil {
		return err
	}

	res, err := c.documentService.IssueSocketToken(ctx.UserContext(), serverutils.UserID(ctx), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success issue socket token", res))
}

func (c *documentController) DownloadURL(ctx *fiber.Ctx) error {
	id, err := documentId(ctx)
	if err != nil {
		return err
	}

	res, err := c.documentService.DownloadURL(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create download url", res))
}

func (c *documentController) AgentMessages(ctx *fiber.Ctx) error {
	id, err := documentId(ctx)
	if err != nil {
		return err
	}

	res, err := c.documentService.ListAgentMessages(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list agent messages", res))
}

func (c *documentController) ApplyProposal(ctx *fiber.Ctx) error {
	id, err := documentId(ctx)
	if err != nil {
		return err
	}

	var req dto.ApplyProposalRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	err = serverutils.ValidateRequest(req)
	if err != nil {
		return err
	}

	res, err := c.documentService.ApplyProposal(ctx.UserContext(), author(ctx), id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success apply proposal", res))
}

func (c *documentController) AcceptChange(ctx *fiber.Ctx) error {
	return c.resolve(ctx, true)
}

func (c *documentController) RejectChange(ctx *fiber.Ctx) error {
	return c.resolve(ctx, false)
}

func (c *documentController) resolve(ctx *fiber.Ctx, accept bool) error {
	id, err := documentId(ctx)
	if err != nil {
		return err
	}

	res, err := c.documentService.ResolveChange(ctx.UserContext(), author(ctx), id, ctx.Params("key"), accept)
	if err != nil {
		return err
	}

	message := "Success reject change"
	if accept {
		message = "Success accept change"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}
