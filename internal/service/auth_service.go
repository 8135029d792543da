package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sellerdesk/ozon-support/internal/auth"
	"github.com/sellerdesk/ozon-support/internal/config"
	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/repository"
)

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrOperatorInactive is returned when a disabled operator logs in.
var ErrOperatorInactive = errors.New("operator inactive")

// Session is an issued operator session token.
type Session struct {
	Operator    *domain.Operator
	AccessToken string
	ExpiresAt   time.Time
}

// AuthService coordinates operator accounts and login.
type AuthService struct {
	operators  repository.OperatorRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, operators repository.OperatorRepository, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		operators:  operators,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger.Named("auth"),
	}
}

// CreateOperator stores a new active operator.
func (s *AuthService) CreateOperator(ctx context.Context, email, name, password string) (*domain.Operator, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email is required")
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	operator := &domain.Operator{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.operators.Create(ctx, operator); err != nil {
		return nil, err
	}
	s.logger.Info("operator created", zap.String("operator_id", operator.ID))
	return operator, nil
}

// Login authenticates an operator and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	operator, err := s.operators.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(operator.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !operator.Active {
		return nil, ErrOperatorInactive
	}
	token, exp, err := s.tokenMgr.GenerateToken(operator.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Operator: operator, AccessToken: token, ExpiresAt: exp}, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, operatorID, currentPassword, newPassword string) error {
	operator, err := s.operators.GetByID(ctx, operatorID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(operator.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	operator.PasswordHash = hash
	return s.operators.Update(ctx, operator)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
