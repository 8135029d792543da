package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/repository"
	apperrors "github.com/sellerdesk/ozon-support/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"

	// SessionCookie carries the session token for browser requests such as
	// attachment links.
	SessionCookie = "session"
)

// Principal represents the authenticated caller.
type Principal struct {
	Subject  Subject
	Operator *domain.Operator
}

// OperatorLoader resolves the operator a token was issued to.
type OperatorLoader interface {
	GetByID(ctx context.Context, id string) (*domain.Operator, error)
}

// AuthMiddleware validates session tokens and loads principals.
type AuthMiddleware struct {
	tokens    *TokenManager
	operators OperatorLoader
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, operators OperatorLoader) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, operators: operators}
}

// Handle enforces authentication for protected routes. The token is taken
// from a bearer header or, failing that, from the session cookie.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := sessionToken(c)
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.Subject != SubjectOperator {
		return apperrors.NewUnauthorized("unknown subject")
	}

	operator, err := m.operators.GetByID(c.UserContext(), claims.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("operator not found")
		}
		return apperrors.MapError(err)
	}
	if !operator.Active {
		return apperrors.NewForbidden("operator inactive")
	}

	c.Locals(principalKey, &Principal{Subject: claims.Subject, Operator: operator})
	return c.Next()
}

func sessionToken(c *fiber.Ctx) (string, error) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie := c.Cookies(SessionCookie); cookie != "" {
		return cookie, nil
	}
	return "", apperrors.NewUnauthorized("missing authorization header")
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
