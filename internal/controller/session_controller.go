package controller

import (
	"errors"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	AddPrompt(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	AddFeedback(ctx *fiber.Ctx) error
	DeleteFeedback(ctx *fiber.Ctx) error
}

type sessionController struct {
	service service.ISessionService
	auth    *serverutils.Authorizer
}

func NewSessionController(service service.ISessionService, auth *serverutils.Authorizer) ISessionController {
	return &sessionController{service: service, auth: auth}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions")
	h.Use(serverutils.JwtMiddleware(c.auth))
	h.Get("", c.List)
	h.Post("", c.Create)
	h.Get(":id", c.Show)
	h.Post(":id/prompts", c.AddPrompt)
	h.Delete(":id", c.Delete)
	h.Post(":id/messages/:messageId/feedback", c.AddFeedback)
	h.Delete(":id/messages/:messageId/feedback", c.DeleteFeedback)
}

func (c *sessionController) List(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	var q dto.ListSessionsQuery
	if err := ctx.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, err := c.service.List(ctx.Context(), userId, q.All)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	res, err := c.service.Get(ctx.Context(), userId, ctx.Params("id"))
	if err != nil {
		return notFoundOr(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Create(ctx.Context(), userId, req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *sessionController) AddPrompt(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	var req dto.AddPromptRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.AddPrompt(ctx.Context(), userId, ctx.Params("id"), req)
	if err != nil {
		return notFoundOr(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success add prompt", res))
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	if err := c.service.Delete(ctx.Context(), userId, ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

func (c *sessionController) AddFeedback(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	var req dto.FeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.AddFeedback(ctx.Context(), userId, ctx.Params("id"), ctx.Params("messageId"), req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success add feedback", res))
}

func (c *sessionController) DeleteFeedback(ctx *fiber.Ctx) error {
	userId := ctx.Locals("user_id").(string)

	if err := c.service.DeleteFeedback(ctx.Context(), userId, ctx.Params("id"), ctx.Params("messageId")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete feedback", nil))
}

func notFoundOr(err error) error {
	if errors.Is(err, service.ErrSessionNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return err
}
