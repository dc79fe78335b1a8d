package middlewares

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
)

// NewHTTPRequestResponseLogMiddleware writes one line per request. Requests
// that passed the JWT middleware also carry the staff member and branch.
func NewHTTPRequestResponseLogMiddleware(logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c fiber.Ctx) error {
		start := time.Now().UTC()
		err := c.Next()
		latency := time.Since(start)

		attrs := []any{
			"request_id", RequestIDFromContext(c),
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.IP(),
		}
		if branchID, ok := c.Locals(LocalBranchID).(string); ok && branchID != "" {
			attrs = append(attrs, "branch_id", branchID)
		}
		if staffID, ok := c.Locals(LocalStaffID).(string); ok && staffID != "" {
			attrs = append(attrs, "staff_id", staffID)
		}

		switch {
		case err != nil:
			logger.Error("http_request", append(attrs, "error", err.Error())...)
			return err
		case c.Response().StatusCode() >= fiber.StatusInternalServerError:
			logger.Warn("http_request", attrs...)
		default:
			logger.Info("http_request", attrs...)
		}
		return nil
	}
}
