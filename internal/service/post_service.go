package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"postboard/internal/event"
	"postboard/internal/model"
)

const maxMessageLength = 5000

type PostStore interface {
	Create(ctx context.Context, p model.Post) (model.Post, error)
	FindByID(ctx context.Context, id int64) (model.Post, error)
	ListFeed(ctx context.Context, viewer string, limit int, offset int) ([]model.Post, error)
	ListDeletedForUser(ctx context.Context, username string) ([]model.Post, error)
	Update(ctx context.Context, p model.Post) error
	SoftDelete(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
	AttachImages(ctx context.Context, posts []model.Post) error
}

type PostService struct {
	posts  PostStore
	images ImageStore
	bus    event.Bus
}

func NewPostService(posts PostStore, images ImageStore, bus event.Bus) *PostService {
	return &PostService{posts: posts, images: images, bus: bus}
}

// Create stores a post and links the already-uploaded image to it. Public
// and community posts are announced on the bus; private ones are not.
func (s *PostService) Create(ctx context.Context, username string, message string, privacy model.Privacy, imageID *int64) (model.Post, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return model.Post{}, fmt.Errorf("%w: message is required", model.ErrInvalidInput)
	}
	if len(message) > maxMessageLength {
		return model.Post{}, fmt.Errorf("%w: message exceeds %d characters", model.ErrInvalidInput, maxMessageLength)
	}

	post, err := s.posts.Create(ctx, model.Post{
		Username: username,
		Message:  message,
		Privacy:  privacy,
	})
	if err != nil {
		return model.Post{}, err
	}

	if imageID != nil {
		if err := s.images.AttachToPost(ctx, *imageID, post.ID); err != nil {
			return model.Post{}, err
		}
	}

	posts := []model.Post{post}
	if err := s.posts.AttachImages(ctx, posts); err != nil {
		return model.Post{}, err
	}
	post = posts[0]

	if privacy == model.PrivacyPublic || privacy == model.PrivacyCommunity {
		s.bus.Publish(event.Event{
			ID:        uuid.NewString(),
			Type:      event.TypeNewPost,
			Actor:     username,
			Payload:   map[string]any{"post_id": post.ID},
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}

	return post, nil
}

// Feed lists posts visible to viewer, newest first. Empty viewer means
// anonymous and sees public posts only.
func (s *PostService) Feed(ctx context.Context, viewer string, limit int, offset int) ([]model.Post, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	posts, err := s.posts.ListFeed(ctx, viewer, limit, offset)
	if err != nil {
		return nil, err
	}

	if err := s.posts.AttachImages(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) Get(ctx context.Context, viewer string, isAdmin bool, id int64) (model.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return model.Post{}, err
	}

	if post.IsDeleted && !(isAdmin || post.Username == viewer) {
		return model.Post{}, model.ErrPostNotFound
	}
	if !post.VisibleTo(viewer, isAdmin) {
		return model.Post{}, model.ErrPostNotFound
	}

	posts := []model.Post{post}
	if err := s.posts.AttachImages(ctx, posts); err != nil {
		return model.Post{}, err
	}
	return posts[0], nil
}

// Update lets the owner edit message and privacy.
func (s *PostService) Update(ctx context.Context, actor string, id int64, req model.UpdatePostRequest) (model.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return model.Post{}, err
	}
	if post.Username != actor {
		return model.Post{}, model.ErrNotPostOwner
	}
	if post.IsDeleted {
		return model.Post{}, model.ErrPostDeleted
	}

	if req.Message != nil {
		message := strings.TrimSpace(*req.Message)
		if message == "" || len(message) > maxMessageLength {
			return model.Post{}, fmt.Errorf("%w: invalid message", model.ErrInvalidInput)
		}
		post.Message = message
	}
	if req.Privacy != nil {
		privacy, ok := model.ParsePrivacy(*req.Privacy)
		if !ok {
			return model.Post{}, fmt.Errorf("%w: invalid privacy %q", model.ErrInvalidInput, *req.Privacy)
		}
		post.Privacy = privacy
	}

	if err := s.posts.Update(ctx, post); err != nil {
		return model.Post{}, err
	}

	return s.Get(ctx, actor, false, id)
}

// Delete soft-deletes; owner or admin.
func (s *PostService) Delete(ctx context.Context, actor string, isAdmin bool, id int64) error {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if post.Username != actor && !isAdmin {
		return model.ErrNotPostOwner
	}
	if post.IsDeleted {
		return model.ErrPostNotFound
	}

	if err := s.posts.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.bus.Publish(event.Event{
		ID:        uuid.NewString(),
		Type:      event.TypePostDeleted,
		Actor:     actor,
		Payload:   map[string]any{"post_id": id},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

func (s *PostService) Restore(ctx context.Context, actor string, isAdmin bool, id int64) (model.Post, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return model.Post{}, err
	}
	if post.Username != actor && !isAdmin {
		return model.Post{}, model.ErrNotPostOwner
	}
	if !post.IsDeleted {
		return model.Post{}, model.ErrPostNotFound
	}

	if err := s.posts.Restore(ctx, id); err != nil {
		return model.Post{}, err
	}

	s.bus.Publish(event.Event{
		ID:        uuid.NewString(),
		Type:      event.TypePostRestored,
		Actor:     actor,
		Payload:   map[string]any{"post_id": id},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	return s.Get(ctx, actor, isAdmin, id)
}

// Trash lists the caller's soft-deleted posts.
func (s *PostService) Trash(ctx context.Context, username string) ([]model.Post, error) {
	posts, err := s.posts.ListDeletedForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.posts.AttachImages(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}
