package service

import (
	"context"
	"fmt"
	"strings"

	"postboard/internal/model"
)

type AlbumStore interface {
	Create(ctx context.Context, a model.Album) (model.Album, error)
	FindByID(ctx context.Context, id int64) (model.Album, error)
	ListVisible(ctx context.Context, viewer string) ([]model.Album, error)
	Update(ctx context.Context, a model.Album) error
	Delete(ctx context.Context, id int64) error
	AddImage(ctx context.Context, albumID int64, imageID int64) error
	RemoveImage(ctx context.Context, albumID int64, imageID int64) error
}

type AlbumService struct {
	albums AlbumStore
	images ImageStore
}

func NewAlbumService(albums AlbumStore, images ImageStore) *AlbumService {
	return &AlbumService{albums: albums, images: images}
}

func (s *AlbumService) Create(ctx context.Context, username string, req model.CreateAlbumRequest) (model.Album, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 100 {
		return model.Album{}, fmt.Errorf("%w: album name must be 1-100 characters", model.ErrInvalidInput)
	}

	privacy := model.PrivacyPrivate
	if req.Privacy != "" {
		parsed, ok := model.ParsePrivacy(req.Privacy)
		if !ok {
			return model.Album{}, fmt.Errorf("%w: invalid privacy %q", model.ErrInvalidInput, req.Privacy)
		}
		privacy = parsed
	}

	return s.albums.Create(ctx, model.Album{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Username:    username,
		Privacy:     privacy,
	})
}

func (s *AlbumService) Get(ctx context.Context, viewer string, isAdmin bool, id int64) (model.Album, error) {
	album, err := s.albums.FindByID(ctx, id)
	if err != nil {
		return model.Album{}, err
	}
	if !album.VisibleTo(viewer, isAdmin) {
		return model.Album{}, model.ErrAlbumNotFound
	}
	return album, nil
}

func (s *AlbumService) List(ctx context.Context, viewer string) ([]model.Album, error) {
	return s.albums.ListVisible(ctx, viewer)
}

func (s *AlbumService) Update(ctx context.Context, actor string, id int64, req model.UpdateAlbumRequest) (model.Album, error) {
	album, err := s.albums.FindByID(ctx, id)
	if err != nil {
		return model.Album{}, err
	}
	if album.Username != actor {
		return model.Album{}, model.ErrForbidden
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 100 {
			return model.Album{}, fmt.Errorf("%w: album name must be 1-100 characters", model.ErrInvalidInput)
		}
		album.Name = name
	}
	if req.Description != nil {
		album.Description = strings.TrimSpace(*req.Description)
	}
	if req.Privacy != nil {
		privacy, ok := model.ParsePrivacy(*req.Privacy)
		if !ok {
			return model.Album{}, fmt.Errorf("%w: invalid privacy %q", model.ErrInvalidInput, *req.Privacy)
		}
		album.Privacy = privacy
	}

	if err := s.albums.Update(ctx, album); err != nil {
		return model.Album{}, err
	}
	return s.albums.FindByID(ctx, id)
}

func (s *AlbumService) Delete(ctx context.Context, actor string, isAdmin bool, id int64) error {
	album, err := s.albums.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if album.Username != actor && !isAdmin {
		return model.ErrForbidden
	}
	return s.albums.Delete(ctx, id)
}

// AddImage links one of the caller's own images to the caller's album.
func (s *AlbumService) AddImage(ctx context.Context, actor string, albumID int64, filename string) error {
	album, err := s.albums.FindByID(ctx, albumID)
	if err != nil {
		return err
	}
	if album.Username != actor {
		return model.ErrForbidden
	}

	img, err := s.images.FindByFilename(ctx, filename)
	if err != nil {
		return err
	}
	if img.Username != actor {
		return model.ErrForbidden
	}

	return s.albums.AddImage(ctx, albumID, img.ID)
}

func (s *AlbumService) RemoveImage(ctx context.Context, actor string, albumID int64, filename string) error {
	album, err := s.albums.FindByID(ctx, albumID)
	if err != nil {
		return err
	}
	if album.Username != actor {
		return model.ErrForbidden
	}

	img, err := s.images.FindByFilename(ctx, filename)
	if err != nil {
		return err
	}

	return s.albums.RemoveImage(ctx, albumID, img.ID)
}

// Images lists an album's images; same visibility rule as the album itself.
func (s *AlbumService) Images(ctx context.Context, viewer string, isAdmin bool, albumID int64) ([]model.Image, error) {
	album, err := s.albums.FindByID(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if !album.VisibleTo(viewer, isAdmin) {
		return nil, model.ErrAlbumNotFound
	}

	return s.images.ListForAlbum(ctx, albumID)
}
