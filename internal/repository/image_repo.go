package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"postboard/internal/model"
)

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func (r *ImageRepository) Create(ctx context.Context, img model.Image) (model.Image, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO images (filename, original_filename, username, file_path, file_size, content_type, post_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		img.Filename, img.OriginalFilename, img.Username, img.FilePath,
		img.FileSize, img.ContentType, img.PostID).
		Scan(&img.ID, &img.CreatedAt)
	if err != nil {
		return model.Image{}, fmt.Errorf("create image: %w", err)
	}
	return img, nil
}

func (r *ImageRepository) FindByFilename(ctx context.Context, filename string) (model.Image, error) {
	var img model.Image
	err := r.pool.QueryRow(ctx,
		`SELECT id, filename, original_filename, username, file_path, file_size, content_type, post_id, created_at
		 FROM images WHERE filename = $1`, filename).
		Scan(&img.ID, &img.Filename, &img.OriginalFilename, &img.Username, &img.FilePath,
			&img.FileSize, &img.ContentType, &img.PostID, &img.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Image{}, model.ErrImageNotFound
	}
	if err != nil {
		return model.Image{}, fmt.Errorf("find image by filename: %w", err)
	}
	return img, nil
}

func (r *ImageRepository) ListForUser(ctx context.Context, username string) ([]model.Image, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, filename, original_filename, username, file_path, file_size, content_type, post_id, created_at
		 FROM images WHERE username = $1 ORDER BY created_at DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	return scanImages(rows)
}

func (r *ImageRepository) ListForAlbum(ctx context.Context, albumID int64) ([]model.Image, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT i.id, i.filename, i.original_filename, i.username, i.file_path,
		        i.file_size, i.content_type, i.post_id, i.created_at
		 FROM images i
		 JOIN album_images ai ON ai.image_id = i.id
		 WHERE ai.album_id = $1
		 ORDER BY ai.added_at`, albumID)
	if err != nil {
		return nil, fmt.Errorf("list album images: %w", err)
	}
	defer rows.Close()

	return scanImages(rows)
}

func (r *ImageRepository) AttachToPost(ctx context.Context, imageID int64, postID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE images SET post_id = $2 WHERE id = $1`, imageID, postID)
	if err != nil {
		return fmt.Errorf("attach image to post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrImageNotFound
	}
	return nil
}

func (r *ImageRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrImageNotFound
	}
	return nil
}

func scanImages(rows pgx.Rows) ([]model.Image, error) {
	images := make([]model.Image, 0)
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.ID, &img.Filename, &img.OriginalFilename, &img.Username,
			&img.FilePath, &img.FileSize, &img.ContentType, &img.PostID, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}
