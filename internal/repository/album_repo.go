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

type AlbumRepository struct {
	pool *pgxpool.Pool
}

func NewAlbumRepository(pool *pgxpool.Pool) *AlbumRepository {
	return &AlbumRepository{pool: pool}
}

func (r *AlbumRepository) Create(ctx context.Context, a model.Album) (model.Album, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO albums (name, description, username, privacy, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 RETURNING id, created_at, updated_at`,
		a.Name, a.Description, a.Username, a.Privacy, time.Now().UTC()).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Album{}, fmt.Errorf("create album: %w", err)
	}
	return a, nil
}

func (r *AlbumRepository) FindByID(ctx context.Context, id int64) (model.Album, error) {
	var a model.Album
	err := r.pool.QueryRow(ctx,
		`SELECT a.id, a.name, a.description, a.username, a.privacy, a.created_at, a.updated_at,
		        (SELECT COUNT(*) FROM album_images ai WHERE ai.album_id = a.id)
		 FROM albums a WHERE a.id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Description, &a.Username, &a.Privacy,
			&a.CreatedAt, &a.UpdatedAt, &a.ImageCount)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Album{}, model.ErrAlbumNotFound
	}
	if err != nil {
		return model.Album{}, fmt.Errorf("find album by id: %w", err)
	}
	return a, nil
}

// ListVisible returns albums the viewer may see; empty viewer is anonymous.
func (r *AlbumRepository) ListVisible(ctx context.Context, viewer string) ([]model.Album, error) {
	query := `
		SELECT a.id, a.name, a.description, a.username, a.privacy, a.created_at, a.updated_at,
		       (SELECT COUNT(*) FROM album_images ai WHERE ai.album_id = a.id)
		FROM albums a
		WHERE a.privacy = 'public'
		ORDER BY a.created_at DESC`
	args := []any{}

	if viewer != "" {
		query = `
			SELECT a.id, a.name, a.description, a.username, a.privacy, a.created_at, a.updated_at,
			       (SELECT COUNT(*) FROM album_images ai WHERE ai.album_id = a.id)
			FROM albums a
			WHERE a.privacy IN ('public', 'community') OR a.username = $1
			ORDER BY a.created_at DESC`
		args = append(args, viewer)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	albums := make([]model.Album, 0)
	for rows.Next() {
		var a model.Album
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Username, &a.Privacy,
			&a.CreatedAt, &a.UpdatedAt, &a.ImageCount); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

func (r *AlbumRepository) Update(ctx context.Context, a model.Album) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE albums SET name = $2, description = $3, privacy = $4, updated_at = $5 WHERE id = $1`,
		a.ID, a.Name, a.Description, a.Privacy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update album: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAlbumNotFound
	}
	return nil
}

func (r *AlbumRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAlbumNotFound
	}
	return nil
}

// AddImage is idempotent: re-adding an image already in the album is a no-op.
func (r *AlbumRepository) AddImage(ctx context.Context, albumID int64, imageID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO album_images (album_id, image_id)
		 VALUES ($1, $2)
		 ON CONFLICT (album_id, image_id) DO NOTHING`, albumID, imageID)
	if err != nil {
		return fmt.Errorf("add album image: %w", err)
	}
	return nil
}

func (r *AlbumRepository) RemoveImage(ctx context.Context, albumID int64, imageID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM album_images WHERE album_id = $1 AND image_id = $2`, albumID, imageID)
	if err != nil {
		return fmt.Errorf("remove album image: %w", err)
	}
	return nil
}
