package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postboard/internal/model"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Store(ctx context.Context, token string, username string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token, username, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		token, username, time.Now().UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Get(ctx context.Context, token string) (model.RefreshToken, error) {
	var record model.RefreshToken
	err := r.pool.QueryRow(ctx,
		`SELECT token, username, created_at, expires_at
		 FROM refresh_tokens WHERE token = $1`, token).
		Scan(&record.Token, &record.Username, &record.CreatedAt, &record.ExpiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("get refresh token: %w", err)
	}
	return record, nil
}

// Rotate atomically replaces old with next inside one transaction. The DELETE
// takes a row lock on the presented token, so of two concurrent rotations of
// the same token exactly one deletes the row; the other sees zero rows and
// gets ErrTokenNotFound. If the insert fails the delete rolls back and the
// presented token remains valid; rotation either fully happens or not at all.
func (r *TokenRepository) Rotate(ctx context.Context, old string, next string, username string, expiresAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, old)
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTokenNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO refresh_tokens (token, username, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		next, username, time.Now().UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("store rotated token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotation: %w", err)
	}
	return nil
}

// Revoke is idempotent: deleting an absent token is not an error.
func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) RevokeAllForUser(ctx context.Context, username string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return nil
}

func (r *TokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
