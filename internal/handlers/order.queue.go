package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

type OrderQueueService interface {
	ListOrders(ctx context.Context, branchID string, status domain.OrderStatus) ([]domain.Order, error)
	GetOrder(ctx context.Context, branchID, id string) (domain.Order, error)
	AcceptOrder(ctx context.Context, branchID, id string, prepMinutes int) (domain.Order, error)
	RejectOrder(ctx context.Context, branchID, id, reason string) (domain.Order, error)
}

type OrderQueueHandler struct {
	service OrderQueueService
	logger  *slog.Logger
}

func NewOrderQueueHandler(service OrderQueueService, logger *slog.Logger) *OrderQueueHandler {
	return &OrderQueueHandler{service: service, logger: logger}
}

func (h *OrderQueueHandler) Register(router fiber.Router) {
	router.Get("/orders", h.List)
	router.Get("/orders/:id", h.Get)
	router.Post("/orders/:id/accept", h.Accept)
	router.Post("/orders/:id/reject", h.Reject)
}

func (h *OrderQueueHandler) List(c fiber.Ctx) error {
	branch, ok := branchID(c)
	if !ok {
		return missingBranch(c)
	}

	orders, err := h.service.ListOrders(c.Context(), branch, domain.OrderStatus(c.Query("status")))
	if err != nil {
		return writeError(c, h.logger, "failed to list orders", err)
	}
	return c.Status(fiber.StatusOK).JSON(vo.OrderList{Orders: orders})
}

func (h *OrderQueueHandler) Get(c fiber.Ctx) error {
	branch, ok := branchID(c)
	if !ok {
		return missingBranch(c)
	}

	order, err := h.service.GetOrder(c.Context(), branch, c.Params("id"))
	if err != nil {
		return writeError(c, h.logger, "failed to get order", err)
	}
	return c.Status(fiber.StatusOK).JSON(order)
}

func (h *OrderQueueHandler) Accept(c fiber.Ctx) error {
	branch, ok := branchID(c)
	if !ok {
		return missingBranch(c)
	}

	var requestBody vo.AcceptOrder
	if err := c.Bind().JSON(&requestBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	order, err := h.service.AcceptOrder(c.Context(), branch, c.Params("id"), requestBody.PrepMinutes)
	if err != nil {
		return writeError(c, h.logger, "failed to accept order", err)
	}
	return c.Status(fiber.StatusOK).JSON(order)
}

func (h *OrderQueueHandler) Reject(c fiber.Ctx) error {
	branch, ok := branchID(c)
	if !ok {
		return missingBranch(c)
	}

	var requestBody vo.RejectOrder
	if err := c.Bind().JSON(&requestBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	order, err := h.service.RejectOrder(c.Context(), branch, c.Params("id"), requestBody.Reason)
	if err != nil {
		return writeError(c, h.logger, "failed to reject order", err)
	}
	return c.Status(fiber.StatusOK).JSON(order)
}
