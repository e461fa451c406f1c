package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/book-delivery/internal/model"
)

// TokenRepo persists refresh tokens.  The table is keyed by user_id so each
// user holds at most one token; every statement below is a single row
// operation and therefore atomic per user.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Replace stores tokenHash as the user's refresh token, overwriting any
// previous one in the same statement.
func (r *TokenRepo) Replace(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE token_hash=VALUES(token_hash), expires_at=VALUES(expires_at), created_at=CURRENT_TIMESTAMP`,
		userID, tokenHash, exp.UTC())
	return err
}

// FindByHash returns the token row with the given hash, or ErrNotFound.
func (r *TokenRepo) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, token_hash, expires_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.UserID, &t.TokenHash, &t.ExpiresAt)
	if err != nil {
		return model.RefreshToken{}, translate(err)
	}
	return t, nil
}

// DeleteByHash removes the token with the given hash.  It is a no-op when
// the token was already replaced.
func (r *TokenRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token_hash=?", tokenHash)
	return err
}

// DeleteByUserID revokes the user's refresh token.
func (r *TokenRepo) DeleteByUserID(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}
