package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequireOperator ensures an operator is authenticated.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Subject != SubjectOperator || principal.Operator == nil {
			return fiber.NewError(http.StatusForbidden, "operator required")
		}
		return c.Next()
	}
}
