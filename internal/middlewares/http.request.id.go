package middlewares

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"

	"github.com/joshuarp/branchdesk/internal/shared/uid"
)

// RequestIDHeader matches the header the API client stamps on every attempt,
// so client and backend log lines share one id.
const RequestIDHeader = uid.Header

// NewHTTPRequestIDMiddleware keeps an incoming request id and only mints one
// when the caller sent none.
func NewHTTPRequestIDMiddleware(generator uid.UIDGenerator) fiber.Handler {
	cfg := requestid.Config{Header: RequestIDHeader}
	if generator != nil {
		cfg.Generator = func() string {
			id, err := generator.Generate(context.Background())
			if err != nil {
				return uuid.NewString()
			}
			return id
		}
	}
	return requestid.New(cfg)
}

func RequestIDFromContext(c fiber.Ctx) string {
	requestID := requestid.FromContext(c)
	if requestID != "" {
		return requestID
	}

	return c.Get(RequestIDHeader)
}
