package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

// TokenRepository persists minted reference tokens. Expiry is checked by the
// vault, not here; expired rows are kept until swept.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Put(ctx context.Context, token domain.ReferenceToken) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO reference_tokens (token_id, storage_location, created_at, expires_at)
VALUES ($1,$2,$3,$4)
`, token.TokenID, token.StorageLocation, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert reference token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Get(ctx context.Context, tokenID string) (*domain.ReferenceToken, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT token_id, storage_location, created_at, expires_at
FROM reference_tokens
WHERE token_id = $1
`, tokenID)

	var token domain.ReferenceToken
	err := row.Scan(&token.TokenID, &token.StorageLocation, &token.CreatedAt, &token.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrReferenceNotFound, "get reference token", fmt.Errorf("token %s", tokenID))
		}
		return nil, fmt.Errorf("scan reference token: %w", err)
	}
	return &token, nil
}

// DeleteExpired removes tokens whose deadline has long passed.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM reference_tokens WHERE expires_at < NOW() - INTERVAL '24 hours'
`)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired tokens rows affected: %w", err)
	}
	return affected, nil
}
