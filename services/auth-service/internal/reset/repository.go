// Package reset stores single-use password reset tokens. Only the SHA-256
// hash of the token ever touches the database; the raw token goes out by
// email and dies with it.
package reset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fridakids/salon-api/libs/db"
)

var ErrInvalidToken = errors.New("invalid or expired reset token")

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CreateTx runs inside the caller's transaction so the token commits
// together with the outbox event that mails it out.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, userID, rawToken string, expiresAt time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), userID, HashToken(rawToken), expiresAt)
	return err
}

// Consume burns the token and returns its user. The UPDATE guards against
// reuse and expiry in one statement, so a token races with itself safely.
func (r *Repository) Consume(ctx context.Context, rawToken string) (string, error) {
	var userID string
	err := r.pool.QueryRow(ctx, `
		UPDATE password_reset_tokens
		SET used_at = now()
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > now()
		RETURNING user_id
	`, HashToken(rawToken)).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}
