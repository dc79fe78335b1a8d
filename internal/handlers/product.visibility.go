package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

type ProductCatalogService interface {
	ListProducts(ctx context.Context, branchID string) ([]domain.Product, error)
	SetProductVisibility(ctx context.Context, branchID, id string, visible bool) (domain.Product, error)
}

type ProductCatalogHandler struct {
	service ProductCatalogService
	logger  *slog.Logger
}

func NewProductCatalogHandler(service ProductCatalogService, logger *slog.Logger) *ProductCatalogHandler {
	return &ProductCatalogHandler{service: service, logger: logger}
}

func (h *ProductCatalogHandler) Register(router fiber.Router) {
	router.Get("/products", h.List)
	router.Post("/products/:id/visibility", h.SetVisibility)
}

func (h *ProductCatalogHandler) List(c fiber.Ctx) error {
	branch, ok := branchID(c)
	if !ok {
		return missingBranch(c)
	}

	products, err := h.service.ListProducts(c.Context(), branch)
	if err != nil {
		return writeError(c, h.logger, "failed to list products", err)
	}
	return c.Status(fiber.StatusOK).JSON(vo.ProductList{Products: products})
}

func (h *ProductCatalogHandler) SetVisibility(c fiber.Ctx) error {
	branch, ok := branchID(c)
	if !ok {
		return missingBranch(c)
	}

	var requestBody vo.ProductVisibility
	if err := c.Bind().JSON(&requestBody); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	product, err := h.service.SetProductVisibility(c.Context(), branch, c.Params("id"), requestBody.Visible)
	if err != nil {
		return writeError(c, h.logger, "failed to update product visibility", err)
	}
	return c.Status(fiber.StatusOK).JSON(product)
}
