package controller

import (
	"errors"
	"fmt"
	"time"

	"rag-chat-be/internal/dto"
	"rag-chat-be/internal/pkg/serverutils"
	"rag-chat-be/internal/service"
	"rag-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	GetAllSessions(ctx *fiber.Ctx) error
	GetSessionDetail(ctx *fiber.Ctx) error
	UpdateReview(ctx *fiber.Ctx) error
	DeleteReview(ctx *fiber.Ctx) error
	GetDailyKpi(ctx *fiber.Ctx) error
	GetConnections(ctx *fiber.Ctx) error
	GetFeedback(ctx *fiber.Ctx) error
	DownloadFeedback(ctx *fiber.Ctx) error
	DeleteFeedback(ctx *fiber.Ctx) error
}

// ConnectionLister reports live gateway connections.
type ConnectionLister interface {
	Connections() []websocket.ConnectionContext
}

type adminController struct {
	service     service.ISessionService
	connections ConnectionLister
	auth        *serverutils.Authorizer
}

func NewAdminController(service service.ISessionService, connections ConnectionLister, auth *serverutils.Authorizer) IAdminController {
	return &adminController{service: service, connections: connections, auth: auth}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin")
	h.Use(serverutils.JwtMiddleware(c.auth))
	h.Use(serverutils.AdminMiddleware)

	h.Get("/sessions", c.GetAllSessions)
	h.Get("/sessions/:id", c.GetSessionDetail)
	h.Put("/sessions/:id/review", c.UpdateReview)
	h.Delete("/sessions/:id/review", c.DeleteReview)

	h.Get("/feedback", c.GetFeedback)
	h.Get("/feedback/download", c.DownloadFeedback)
	h.Delete("/sessions/:id/messages/:messageId/feedback", c.DeleteFeedback)

	h.Get("/kpi/daily", c.GetDailyKpi)
	h.Get("/connections", c.GetConnections)
}

func (c *adminController) GetAllSessions(ctx *fiber.Ctx) error {
	var q dto.AdminSessionsQuery
	if err := ctx.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}

	res, err := c.service.ListAll(ctx.Context(), q)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list sessions", res))
}

// GetSessionDetail reads any user's session; an empty user id skips the owner filter.
func (c *adminController) GetSessionDetail(ctx *fiber.Ctx) error {
	res, err := c.service.Get(ctx.Context(), "", ctx.Params("id"))
	if err != nil {
		return notFoundOr(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *adminController) UpdateReview(ctx *fiber.Ctx) error {
	reviewer := ctx.Locals("user_id").(string)

	var req dto.UpdateReviewRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Review(ctx.Context(), reviewer, ctx.Params("id"), req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success review session", res))
}

func (c *adminController) DeleteReview(ctx *fiber.Ctx) error {
	reviewer := ctx.Locals("user_id").(string)

	if err := c.service.DeleteReview(ctx.Context(), reviewer, ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete review", nil))
}

func (c *adminController) GetDailyKpi(ctx *fiber.Ctx) error {
	var q dto.KpiQuery
	if err := ctx.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(q); err != nil {
		return err
	}

	day := time.Now().UTC()
	if q.Date != "" {
		day, _ = time.Parse("2006-01-02", q.Date)
	}

	res, err := c.service.DailyKpi(ctx.Context(), day)
	if errors.Is(err, service.ErrKpiDisabled) {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get daily kpi", res))
}

func (c *adminController) GetConnections(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success list connections", c.connections.Connections()))
}

func (c *adminController) GetFeedback(ctx *fiber.Ctx) error {
	var q dto.FeedbackQuery
	if err := ctx.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, err := c.service.ListFeedback(ctx.Context(), q)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list feedback", res))
}

func (c *adminController) DownloadFeedback(ctx *fiber.Ctx) error {
	var q dto.FeedbackQuery
	if err := ctx.QueryParser(&q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	res, err := c.service.DownloadFeedback(ctx.Context(), q)
	if err != nil {
		return err
	}

	ctx.Attachment(fmt.Sprintf("feedback-%s.csv", time.Now().UTC().Format("20060102-150405")))
	return ctx.SendString(res)
}

// DeleteFeedback clears feedback on any user's message.
func (c *adminController) DeleteFeedback(ctx *fiber.Ctx) error {
	if err := c.service.DeleteFeedback(ctx.Context(), "", ctx.Params("id"), ctx.Params("messageId")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete feedback", nil))
}
