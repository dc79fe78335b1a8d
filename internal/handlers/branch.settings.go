package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

type BranchSettingsService interface {
	Settings(ctx context.Context, branchID string) (domain.BranchSettings, error)
	UpdateDelivery(ctx context.Context, branchID string, delivery domain.DeliverySettings) (domain.BranchSettings, error)
	SetOpen(ctx context.Context, branchID string, open bool) (domain.BranchSettings, error)
}

type BranchSettingsHandler struct {
	service BranchSettingsService
	logger  *slog.Logger
}

func NewBranchSettingsHandler(service BranchSettingsService, logger *slog.Logger) *BranchSettingsHandler {
	return &BranchSettingsHandler{service: service, logger: logger}
}

func (h *BranchSettingsHandler) Register(router fiber.Router) {
	router.Get("/branch/settings", h.Get)
	router.Post("/branch/delivery", h.UpdateDelivery)
	router.Post("/branch/status", h.SetStatus)
}

func (h *BranchSettingsHandler) Get(c fiber.Ctx) error {
	branch, ok := branchID(c)
	if !ok {
		return missingBranch(c)
	}

	settings, err := h.service.Settings(c.Context(), branch)
	if err != nil {
		return writeError(c, h.logger, "failed to load branch settings", err)
	}
	return c.Status(fiber.StatusOK).JSON(settings)
}

func (h *BranchSettingsHandler) UpdateDelivery(c fiber.Ctx) error {
	branch, ok := branchID(c)
	if !ok {
		return missingBranch(c)
	}

	var requestBody domain.DeliverySettings
	if err := c.Bind().JSON(&requestBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	settings, err := h.service.UpdateDelivery(c.Context(), branch, requestBody)
	if err != nil {
		return writeError(c, h.logger, "failed to update delivery settings", err)
	}
	return c.Status(fiber.StatusOK).JSON(settings)
}

func (h *BranchSettingsHandler) SetStatus(c fiber.Ctx) error {
	branch, ok := branchID(c)
	if !ok {
		return missingBranch(c)
	}

	var requestBody vo.BranchStatus
	if err := c.Bind().JSON(&requestBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	settings, err := h.service.SetOpen(c.Context(), branch, requestBody.Open)
	if err != nil {
		return writeError(c, h.logger, "failed to update branch status", err)
	}
	return c.Status(fiber.StatusOK).JSON(settings)
}
