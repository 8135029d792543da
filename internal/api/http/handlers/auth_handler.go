package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/sellerdesk/ozon-support/internal/api/dto"
	"github.com/sellerdesk/ozon-support/internal/auth"
	"github.com/sellerdesk/ozon-support/internal/service"
)

// Authenticator is the slice of the auth service the handler needs.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*service.Session, error)
	ChangePassword(ctx context.Context, operatorID, currentPassword, newPassword string) error
}

// AuthHandler exposes operator login endpoints.
type AuthHandler struct {
	auth         Authenticator
	secureCookie bool
}

// NewAuthHandler constructs handler. secureCookie marks the session cookie
// as HTTPS-only.
func NewAuthHandler(authenticator Authenticator, secureCookie bool) *AuthHandler {
	return &AuthHandler{auth: authenticator, secureCookie: secureCookie}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapServiceError(err, "operator")
	}

	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{AccessToken: session.AccessToken, ExpiresAt: session.ExpiresAt},
	})
}

// ChangePassword handles POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return fiber.NewError(http.StatusBadRequest, "current and new password required")
	}

	if err := h.auth.ChangePassword(c.UserContext(), principal.Operator.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return mapServiceError(err, "operator")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password_changed"}})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Operator == nil {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}
	op := principal.Operator
	return c.JSON(fiber.Map{"data": dto.OperatorResponse{ID: op.ID, Email: op.Email, Name: op.Name}})
}
