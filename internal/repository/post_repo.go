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

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

func (r *PostRepository) Create(ctx context.Context, p model.Post) (model.Post, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO posts (username, message, privacy, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 RETURNING id, created_at, updated_at`,
		p.Username, p.Message, p.Privacy, time.Now().UTC()).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.Post{}, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

func (r *PostRepository) FindByID(ctx context.Context, id int64) (model.Post, error) {
	var p model.Post
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, message, privacy, is_deleted, deleted_at, created_at, updated_at
		 FROM posts WHERE id = $1`, id).
		Scan(&p.ID, &p.Username, &p.Message, &p.Privacy, &p.IsDeleted, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Post{}, model.ErrPostNotFound
	}
	if err != nil {
		return model.Post{}, fmt.Errorf("find post by id: %w", err)
	}
	return p, nil
}

// ListFeed returns non-deleted posts visible to viewer, newest first. An
// empty viewer is anonymous and sees public posts only.
func (r *PostRepository) ListFeed(ctx context.Context, viewer string, limit int, offset int) ([]model.Post, error) {
	query := `
		SELECT id, username, message, privacy, is_deleted, deleted_at, created_at, updated_at
		FROM posts
		WHERE NOT is_deleted AND privacy = 'public'
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	args := []any{limit, offset}

	if viewer != "" {
		query = `
			SELECT id, username, message, privacy, is_deleted, deleted_at, created_at, updated_at
			FROM posts
			WHERE NOT is_deleted
			  AND (privacy IN ('public', 'community') OR username = $3)
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`
		args = append(args, viewer)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// ListDeletedForUser returns the user's soft-deleted posts, newest first.
func (r *PostRepository) ListDeletedForUser(ctx context.Context, username string) ([]model.Post, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, message, privacy, is_deleted, deleted_at, created_at, updated_at
		 FROM posts
		 WHERE is_deleted AND username = $1
		 ORDER BY deleted_at DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("list deleted posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

func (r *PostRepository) Update(ctx context.Context, p model.Post) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts SET message = $2, privacy = $3, updated_at = $4 WHERE id = $1 AND NOT is_deleted`,
		p.ID, p.Message, p.Privacy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

func (r *PostRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts SET is_deleted = true, deleted_at = $2, updated_at = $2
		 WHERE id = $1 AND NOT is_deleted`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("soft delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

func (r *PostRepository) Restore(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE posts SET is_deleted = false, deleted_at = NULL, updated_at = $2
		 WHERE id = $1 AND is_deleted`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("restore post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPostNotFound
	}
	return nil
}

// AttachImages fills Images on each post from the images table.
func (r *PostRepository) AttachImages(ctx context.Context, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(posts))
	index := make(map[int64]int, len(posts))
	for i, p := range posts {
		ids = append(ids, p.ID)
		index[p.ID] = i
	}

	rows, err := r.pool.Query(ctx,
		`SELECT post_id, filename FROM images WHERE post_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("attach post images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID int64
		var filename string
		if err := rows.Scan(&postID, &filename); err != nil {
			return fmt.Errorf("scan post image: %w", err)
		}
		if i, ok := index[postID]; ok {
			posts[i].Images = append(posts[i].Images, model.PostImage{
				Filename: filename,
				URL:      "/api/v1/images/" + filename,
			})
		}
	}
	return rows.Err()
}

func scanPosts(rows pgx.Rows) ([]model.Post, error) {
	posts := make([]model.Post, 0)
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.Username, &p.Message, &p.Privacy, &p.IsDeleted,
			&p.DeletedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
