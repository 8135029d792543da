package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/repository"
	apperrors "github.com/sellerdesk/ozon-support/pkg/util/errorutil"
)

type operatorStub map[string]*domain.Operator

func (s operatorStub) GetByID(_ context.Context, id string) (*domain.Operator, error) {
	op, ok := s[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return op, nil
}

func newTestApp(tm *TokenManager, ops operatorStub) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	mw := NewAuthMiddleware(tm, ops)
	app.Get("/me", mw.Handle, RequireOperator(), func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.Operator.Email)
	})
	return app
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken("op-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.SubjectID)
	assert.Equal(t, SubjectOperator, claims.Subject)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return issued }
	token, _, err := tm.GenerateToken("op-1")
	require.NoError(t, err)

	tm.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tm.ParseToken(token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	ops := operatorStub{
		"op-1": {ID: "op-1", Email: "a@example.com", Active: true},
		"op-2": {ID: "op-2", Email: "b@example.com", Active: false},
	}
	app := newTestApp(tm, ops)

	valid, _, _ := tm.GenerateToken("op-1")
	inactive, _, _ := tm.GenerateToken("op-2")
	unknown, _, _ := tm.GenerateToken("op-3")

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{name: "bearer", header: "Bearer " + valid, status: http.StatusOK},
		{name: "cookie", cookie: valid, status: http.StatusOK},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "malformed header", header: "Token " + valid, status: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "unknown operator", header: "Bearer " + unknown, status: http.StatusUnauthorized},
		{name: "inactive operator", header: "Bearer " + inactive, status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestPassword(t *testing.T) {
	_, err := HashPassword("short", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "correct horse"))
	assert.Error(t, ComparePassword(hash, "wrong horse"))
}
