package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	sharedjwt "github.com/joshuarp/branchdesk/internal/shared/jwt"
)

const (
	LocalStaffID   = "staff_id"
	LocalBranchID  = "branch_id"
	LocalJWTClaims = "jwt_claims"
)

func NewHTTPJWTMiddleware(tokenManager sharedjwt.Verifier) fiber.Handler {
	return func(c fiber.Ctx) error {
		path := c.Path()
		if c.Method() == fiber.MethodPost && strings.HasSuffix(path, "/auth/login") {
			return c.Next()
		}

		authorizationHeader := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		parts := strings.SplitN(authorizationHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid authorization header",
			})
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}

		claims, err := tokenManager.Verify(c.Context(), tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}
		if claims.BranchID == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "token is not scoped to a branch",
			})
		}

		c.Locals(LocalStaffID, claims.Subject)
		c.Locals(LocalBranchID, claims.BranchID)
		c.Locals(LocalJWTClaims, claims)
		c.SetContext(sharedjwt.SetClaims(c.Context(), claims))
		return c.Next()
	}
}
