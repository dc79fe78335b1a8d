package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/joshuarp/branchdesk/internal/domain/vo"
	"github.com/joshuarp/branchdesk/internal/middlewares"
)

// writeError maps backend errors onto the admin API's JSON error contract.
// Conflicts carry a "code" so clients can tell them apart.
func writeError(c fiber.Ctx, logger *slog.Logger, action string, err error) error {
	switch {
	case errors.Is(err, vo.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid email or password"})
	case errors.Is(err, vo.ErrOrderNotFound), errors.Is(err, vo.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, vo.ErrForeignBranch):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, vo.ErrInvalidPrepTime), errors.Is(err, vo.ErrMissingRejectReason), errors.Is(err, vo.ErrInvalidDelivery):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, vo.ErrBranchTemporarilyClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
			"code":  vo.CodeBranchTemporarilyClosed,
		})
	case errors.Is(err, vo.ErrOrderAlreadyDecided):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
			"code":  vo.CodeOrderAlreadyDecided,
		})
	default:
		logger.Error(action, "request_id", middlewares.RequestIDFromContext(c), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error", "code": vo.CodeInternal})
	}
}

func branchID(c fiber.Ctx) (string, bool) {
	id, ok := c.Locals(middlewares.LocalBranchID).(string)
	return id, ok && id != ""
}

func missingBranch(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authenticated branch"})
}
