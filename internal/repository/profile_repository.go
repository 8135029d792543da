package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sellerdesk/ozon-support/internal/domain"
	"github.com/sellerdesk/ozon-support/internal/ozon"
)

// ProfileRepository covers seller profiles, their API tokens and the order
// index used to attribute chats.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	CreateToken(ctx context.Context, token *domain.Token) error
	GetToken(ctx context.Context, id string) (*domain.Token, error)
	// ListActiveTokens returns active tokens, optionally of one profile.
	ListActiveTokens(ctx context.Context, profileID *string) ([]domain.Token, error)
	// TokenForProfile returns an active token of the profile.
	TokenForProfile(ctx context.Context, profileID string) (*domain.Token, error)
	IndexOrder(ctx context.Context, number, profileID string) error
	// FindProfileByOrderNumber returns the owning profile id or ErrNotFound.
	FindProfileByOrderNumber(ctx context.Context, number string) (string, error)
	Credentials(ctx context.Context, tokenID string) (ozon.Credentials, error)
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository builds repository.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	const query = `
        INSERT INTO support_profiles (id, name) VALUES ($1, $2)
        RETURNING created_at`
	id := uuid.NewString()
	if err := r.pool.QueryRow(ctx, query, id, profile.Name).Scan(&profile.CreatedAt); err != nil {
		return err
	}
	profile.ID = id
	return nil
}

func (r *profileRepository) CreateToken(ctx context.Context, token *domain.Token) error {
	const query = `
        INSERT INTO support_tokens (id, profile_id, name, client_id, api_key, active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	id := uuid.NewString()
	if err := r.pool.QueryRow(ctx, query,
		id,
		token.ProfileID,
		token.Name,
		token.ClientID,
		token.APIKey,
		token.Active,
	).Scan(&token.CreatedAt); err != nil {
		return err
	}
	token.ID = id
	return nil
}

const tokenColumns = `id, profile_id, name, client_id, api_key, active, created_at`

func (r *profileRepository) GetToken(ctx context.Context, id string) (*domain.Token, error) {
	if !isID(id) {
		return nil, ErrNotFound
	}
	const query = `SELECT ` + tokenColumns + ` FROM support_tokens WHERE id=$1`
	return scanToken(r.pool.QueryRow(ctx, query, id))
}

func (r *profileRepository) TokenForProfile(ctx context.Context, profileID string) (*domain.Token, error) {
	const query = `SELECT ` + tokenColumns + `
        FROM support_tokens WHERE profile_id=$1 AND active ORDER BY created_at LIMIT 1`
	return scanToken(r.pool.QueryRow(ctx, query, profileID))
}

func (r *profileRepository) ListActiveTokens(ctx context.Context, profileID *string) ([]domain.Token, error) {
	const query = `SELECT ` + tokenColumns + `
        FROM support_tokens WHERE active AND ($1::uuid IS NULL OR profile_id=$1)
        ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, rows.Err()
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var token domain.Token
	if err := row.Scan(
		&token.ID,
		&token.ProfileID,
		&token.Name,
		&token.ClientID,
		&token.APIKey,
		&token.Active,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *profileRepository) IndexOrder(ctx context.Context, number, profileID string) error {
	const query = `
        INSERT INTO support_profile_orders (number, profile_id) VALUES ($1, $2)
        ON CONFLICT (number) DO UPDATE SET profile_id = EXCLUDED.profile_id`
	_, err := r.pool.Exec(ctx, query, number, profileID)
	return err
}

func (r *profileRepository) FindProfileByOrderNumber(ctx context.Context, number string) (string, error) {
	const query = `SELECT profile_id FROM support_profile_orders WHERE number=$1`
	var profileID string
	if err := r.pool.QueryRow(ctx, query, number).Scan(&profileID); err != nil {
		return "", err
	}
	return profileID, nil
}

// Credentials resolves a token into API credentials for the marketplace
// client. Inactive and missing tokens resolve to ozon.ErrUnknownToken.
func (r *profileRepository) Credentials(ctx context.Context, tokenID string) (ozon.Credentials, error) {
	token, err := r.GetToken(ctx, tokenID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ozon.Credentials{}, fmt.Errorf("token %s: %w", tokenID, ozon.ErrUnknownToken)
	}
	if err != nil {
		return ozon.Credentials{}, err
	}
	if !token.Active {
		return ozon.Credentials{}, fmt.Errorf("token %s is inactive: %w", tokenID, ozon.ErrUnknownToken)
	}
	return ozon.Credentials{ClientID: token.ClientID, APIKey: token.APIKey}, nil
}
