package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// TokenRepository is the revocation list for issued token ids (jti claims).
// A revoked jti stays revoked; re-revoking is a no-op.
type TokenRepository interface {
	Revoke(ctx context.Context, jti string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type tokenRepository struct {
	db *sqlx.DB
}

func NewTokenRepository(db *sqlx.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Revoke(ctx context.Context, jti string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO revoked_tokens (jti) VALUES ($1)
ON CONFLICT (jti) DO NOTHING
`, jti)
	return err
}

func (r *tokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.db.GetContext(ctx, &revoked,
		"SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti=$1)", jti)
	return revoked, err
}
