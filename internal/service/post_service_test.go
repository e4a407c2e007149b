package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postboard/internal/event"
	"postboard/internal/model"
)

type memPostStore struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]model.Post
}

func newMemPostStore() *memPostStore {
	return &memPostStore{nextID: 1, posts: map[int64]model.Post{}}
}

func (s *memPostStore) Create(_ context.Context, p model.Post) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.posts[p.ID] = p
	return p, nil
}

func (s *memPostStore) FindByID(_ context.Context, id int64) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return model.Post{}, model.ErrPostNotFound
	}
	return p, nil
}

func (s *memPostStore) ListFeed(_ context.Context, viewer string, limit int, offset int) ([]model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visible := make([]model.Post, 0)
	for _, p := range s.posts {
		if p.IsDeleted {
			continue
		}
		if p.VisibleTo(viewer, false) {
			visible = append(visible, p)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].ID > visible[j].ID })

	if offset >= len(visible) {
		return nil, nil
	}
	visible = visible[offset:]
	if limit < len(visible) {
		visible = visible[:limit]
	}
	return visible, nil
}

func (s *memPostStore) ListDeletedForUser(_ context.Context, username string) ([]model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Post, 0)
	for _, p := range s.posts {
		if p.IsDeleted && p.Username == username {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memPostStore) Update(_ context.Context, p model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.posts[p.ID]
	if !ok || existing.IsDeleted {
		return model.ErrPostNotFound
	}
	existing.Message = p.Message
	existing.Privacy = p.Privacy
	existing.UpdatedAt = time.Now().UTC()
	s.posts[p.ID] = existing
	return nil
}

func (s *memPostStore) SoftDelete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.IsDeleted {
		return model.ErrPostNotFound
	}
	now := time.Now().UTC()
	p.IsDeleted = true
	p.DeletedAt = &now
	s.posts[id] = p
	return nil
}

func (s *memPostStore) Restore(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || !p.IsDeleted {
		return model.ErrPostNotFound
	}
	p.IsDeleted = false
	p.DeletedAt = nil
	s.posts[id] = p
	return nil
}

func (s *memPostStore) AttachImages(_ context.Context, _ []model.Post) error {
	return nil
}

type memImageStore struct {
	mu     sync.Mutex
	nextID int64
	images map[int64]model.Image
}

func newMemImageStore() *memImageStore {
	return &memImageStore{nextID: 1, images: map[int64]model.Image{}}
}

func (s *memImageStore) Create(_ context.Context, img model.Image) (model.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img.ID = s.nextID
	s.nextID++
	img.CreatedAt = time.Now().UTC()
	s.images[img.ID] = img
	return img, nil
}

func (s *memImageStore) FindByFilename(_ context.Context, filename string) (model.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, img := range s.images {
		if img.Filename == filename {
			return img, nil
		}
	}
	return model.Image{}, model.ErrImageNotFound
}

func (s *memImageStore) ListForUser(_ context.Context, username string) ([]model.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Image, 0)
	for _, img := range s.images {
		if img.Username == username {
			out = append(out, img)
		}
	}
	return out, nil
}

func (s *memImageStore) ListForAlbum(_ context.Context, _ int64) ([]model.Image, error) {
	return nil, nil
}

func (s *memImageStore) AttachToPost(_ context.Context, imageID int64, postID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[imageID]
	if !ok {
		return model.ErrImageNotFound
	}
	img.PostID = &postID
	s.images[imageID] = img
	return nil
}

func (s *memImageStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[id]; !ok {
		return model.ErrImageNotFound
	}
	delete(s.images, id)
	return nil
}

func newTestPostService() (*PostService, *memPostStore, *memImageStore, *event.InMemoryBus) {
	posts := newMemPostStore()
	images := newMemImageStore()
	bus := event.NewBus()
	return NewPostService(posts, images, bus), posts, images, bus
}

func TestCreatePostPublishesForPublicOnly(t *testing.T) {
	svc, _, _, bus := newTestPostService()
	ctx := context.Background()

	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	_, err := svc.Create(ctx, "alice", "hello world", model.PrivacyPublic, nil)
	require.NoError(t, err)

	select {
	case e := <-events:
		assert.Equal(t, event.TypeNewPost, e.Type)
		assert.Equal(t, "alice", e.Actor)
	case <-time.After(time.Second):
		t.Fatal("no event published for public post")
	}

	_, err = svc.Create(ctx, "alice", "just for me", model.PrivacyPrivate, nil)
	require.NoError(t, err)

	select {
	case e := <-events:
		t.Fatalf("unexpected event %q for private post", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCreatePostLinksImage(t *testing.T) {
	svc, _, images, _ := newTestPostService()
	ctx := context.Background()

	img, err := images.Create(ctx, model.Image{Filename: "abc_cat.jpg", Username: "alice"})
	require.NoError(t, err)

	post, err := svc.Create(ctx, "alice", "look at my cat", model.PrivacyPublic, &img.ID)
	require.NoError(t, err)

	linked, err := images.FindByFilename(ctx, "abc_cat.jpg")
	require.NoError(t, err)
	require.NotNil(t, linked.PostID)
	assert.Equal(t, post.ID, *linked.PostID)
}

func TestCreatePostValidation(t *testing.T) {
	svc, _, _, _ := newTestPostService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "   ", model.PrivacyPublic, nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestFeedVisibility(t *testing.T) {
	svc, _, _, _ := newTestPostService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "public post", model.PrivacyPublic, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", "community post", model.PrivacyCommunity, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", "private post", model.PrivacyPrivate, nil)
	require.NoError(t, err)

	t.Run("anonymous sees public only", func(t *testing.T) {
		feed, err := svc.Feed(ctx, "", 20, 0)
		require.NoError(t, err)
		require.Len(t, feed, 1)
		assert.Equal(t, "public post", feed[0].Message)
	})

	t.Run("other user sees public and community", func(t *testing.T) {
		feed, err := svc.Feed(ctx, "bob", 20, 0)
		require.NoError(t, err)
		assert.Len(t, feed, 2)
	})

	t.Run("owner sees everything", func(t *testing.T) {
		feed, err := svc.Feed(ctx, "alice", 20, 0)
		require.NoError(t, err)
		assert.Len(t, feed, 3)
	})
}

func TestGetPostHidesPrivateFromOthers(t *testing.T) {
	svc, _, _, _ := newTestPostService()
	ctx := context.Background()

	post, err := svc.Create(ctx, "alice", "private", model.PrivacyPrivate, nil)
	require.NoError(t, err)

	_, err = svc.Get(ctx, "bob", false, post.ID)
	assert.ErrorIs(t, err, model.ErrPostNotFound)

	got, err := svc.Get(ctx, "alice", false, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)

	// Admins see everything.
	_, err = svc.Get(ctx, "root", true, post.ID)
	assert.NoError(t, err)
}

func TestUpdatePostOwnerOnly(t *testing.T) {
	svc, _, _, _ := newTestPostService()
	ctx := context.Background()

	post, err := svc.Create(ctx, "alice", "original", model.PrivacyPublic, nil)
	require.NoError(t, err)

	edited := "edited"
	_, err = svc.Update(ctx, "bob", post.ID, model.UpdatePostRequest{Message: &edited})
	assert.ErrorIs(t, err, model.ErrNotPostOwner)

	updated, err := svc.Update(ctx, "alice", post.ID, model.UpdatePostRequest{Message: &edited})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Message)

	bad := "secret-level"
	_, err = svc.Update(ctx, "alice", post.ID, model.UpdatePostRequest{Privacy: &bad})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestDeleteRestoreLifecycle(t *testing.T) {
	svc, _, _, _ := newTestPostService()
	ctx := context.Background()

	post, err := svc.Create(ctx, "alice", "ephemeral", model.PrivacyPublic, nil)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, "bob", false, post.ID), model.ErrNotPostOwner)
	require.NoError(t, svc.Delete(ctx, "alice", false, post.ID))

	// Gone from the feed, present in trash.
	feed, err := svc.Feed(ctx, "alice", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, feed)

	trash, err := svc.Trash(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, trash, 1)

	// Deleting again reports not found.
	assert.ErrorIs(t, svc.Delete(ctx, "alice", false, post.ID), model.ErrPostNotFound)

	restored, err := svc.Restore(ctx, "alice", false, post.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)

	feed, err = svc.Feed(ctx, "alice", 20, 0)
	require.NoError(t, err)
	assert.Len(t, feed, 1)
}

func TestAdminCanDeleteOthersPosts(t *testing.T) {
	svc, _, _, _ := newTestPostService()
	ctx := context.Background()

	post, err := svc.Create(ctx, "alice", "moderated", model.PrivacyPublic, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "root", true, post.ID))
}
