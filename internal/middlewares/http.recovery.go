package middlewares

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

const localPanicked = "panicked"

// NewHTTPRecoveryMiddleware logs handler panics and answers them with the
// admin error body. Errors returned without a panic pass through untouched.
func NewHTTPRecoveryMiddleware(logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	rec := recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			c.Locals(localPanicked, true)
			logger.Error("http_panic",
				"request_id", RequestIDFromContext(c),
				"method", c.Method(),
				"path", c.Path(),
				"panic", fmt.Sprint(e),
				"stack", string(debug.Stack()),
			)
		},
	})

	return func(c fiber.Ctx) error {
		err := rec(c)
		if err == nil {
			return nil
		}
		if panicked, _ := c.Locals(localPanicked).(bool); !panicked {
			return err
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
			"code":  vo.CodeInternal,
		})
	}
}
