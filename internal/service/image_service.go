package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/google/uuid"

	"postboard/internal/model"
	"postboard/internal/storage"
	"postboard/pkg/apierror"
)

type ImageStore interface {
	Create(ctx context.Context, img model.Image) (model.Image, error)
	FindByFilename(ctx context.Context, filename string) (model.Image, error)
	ListForUser(ctx context.Context, username string) ([]model.Image, error)
	ListForAlbum(ctx context.Context, albumID int64) ([]model.Image, error)
	AttachToPost(ctx context.Context, imageID int64, postID int64) error
	Delete(ctx context.Context, id int64) error
}

// PostGetter is the sliver of the post store image serving needs for
// visibility checks on post-attached images.
type PostGetter interface {
	FindByID(ctx context.Context, id int64) (model.Post, error)
}

type ImageService struct {
	store         *storage.Store
	images        ImageStore
	posts         PostGetter
	allowedMIMEs  map[string]struct{}
	thumbnailRoot string
}

func NewImageService(store *storage.Store, images ImageStore, posts PostGetter, allowedMIMETypes []string, thumbnailRoot string) *ImageService {
	allowed := map[string]struct{}{}
	for _, mime := range allowedMIMETypes {
		trimmed := strings.ToLower(strings.TrimSpace(mime))
		if trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}

	if strings.TrimSpace(thumbnailRoot) == "" {
		thumbnailRoot = "./state/thumbnails"
	}

	return &ImageService{
		store:         store,
		images:        images,
		posts:         posts,
		allowedMIMEs:  allowed,
		thumbnailRoot: thumbnailRoot,
	}
}

// Upload sniffs the content type from the first bytes (the client header is
// not trusted), enforces the allow-list, stores the file under a unique name,
// and records the metadata row.
func (s *ImageService) Upload(ctx context.Context, username string, originalFilename string, content io.Reader) (model.Image, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return model.Image{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	mimeType := strings.ToLower(http.DetectContentType(head))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	if _, ok := s.allowedMIMEs[mimeType]; !ok {
		return model.Image{}, apierror.New("UNSUPPORTED_TYPE", "file type is not allowed", mimeType, http.StatusUnsupportedMediaType)
	}

	filename := uniqueFilename(originalFilename)
	written, err := s.store.Save(filename, io.MultiReader(bytes.NewReader(head), content))
	if err != nil {
		return model.Image{}, err
	}

	img, err := s.images.Create(ctx, model.Image{
		Filename:         filename,
		OriginalFilename: filepath.Base(originalFilename),
		Username:         username,
		FilePath:         filepath.Join(s.store.RootAbs(), filename),
		FileSize:         written,
		ContentType:      mimeType,
	})
	if err != nil {
		_ = s.store.Remove(filename)
		return model.Image{}, err
	}

	return img, nil
}

// Open returns the image file for serving after a visibility check: the
// owner and admins always may; anyone who can see the attached post may.
func (s *ImageService) Open(ctx context.Context, viewer string, isAdmin bool, filename string) (model.Image, *os.File, os.FileInfo, error) {
	img, err := s.images.FindByFilename(ctx, filename)
	if err != nil {
		return model.Image{}, nil, nil, err
	}

	if err := s.authorizeView(ctx, viewer, isAdmin, img); err != nil {
		return model.Image{}, nil, nil, err
	}

	file, info, err := s.store.Open(img.Filename)
	if os.IsNotExist(err) {
		return model.Image{}, nil, nil, model.ErrImageNotFound
	}
	if err != nil {
		return model.Image{}, nil, nil, err
	}

	return img, file, info, nil
}

// Thumbnail serves a cached scaled JPEG, generating it on first request.
func (s *ImageService) Thumbnail(ctx context.Context, viewer string, isAdmin bool, filename string, size int) (*os.File, os.FileInfo, error) {
	if size <= 0 || size > 1024 {
		size = 256
	}

	img, err := s.images.FindByFilename(ctx, filename)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorizeView(ctx, viewer, isAdmin, img); err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(s.thumbnailRoot, 0o755); err != nil {
		return nil, nil, err
	}

	original, info, err := s.store.Open(img.Filename)
	if os.IsNotExist(err) {
		return nil, nil, model.ErrImageNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	defer original.Close()

	thumbPath := s.thumbnailPath(img.Filename, size)
	if thumbInfo, statErr := os.Stat(thumbPath); statErr == nil {
		if !thumbInfo.ModTime().Before(info.ModTime()) {
			if thumbFile, openErr := os.Open(thumbPath); openErr == nil {
				return thumbFile, thumbInfo, nil
			}
		}
	}

	src, _, err := image.Decode(original)
	if err != nil {
		return nil, nil, apierror.New("UNSUPPORTED_TYPE", "cannot decode image", err.Error(), http.StatusUnsupportedMediaType)
	}

	return scaleAndSaveThumbnail(src, thumbPath, size, info)
}

// Delete removes the metadata row, the stored file, and any cached
// thumbnails. Owner or admin only.
func (s *ImageService) Delete(ctx context.Context, actor string, isAdmin bool, filename string) error {
	img, err := s.images.FindByFilename(ctx, filename)
	if err != nil {
		return err
	}
	if img.Username != actor && !isAdmin {
		return model.ErrForbidden
	}

	if err := s.images.Delete(ctx, img.ID); err != nil {
		return err
	}

	if err := s.store.Remove(img.Filename); err != nil {
		return err
	}

	s.removeThumbnails(img.Filename)
	return nil
}

func (s *ImageService) ListForUser(ctx context.Context, username string) ([]model.Image, error) {
	return s.images.ListForUser(ctx, username)
}

func (s *ImageService) authorizeView(ctx context.Context, viewer string, isAdmin bool, img model.Image) error {
	if isAdmin || img.Username == viewer {
		return nil
	}

	if img.PostID != nil {
		post, err := s.posts.FindByID(ctx, *img.PostID)
		if err == nil && !post.IsDeleted && post.VisibleTo(viewer, isAdmin) {
			return nil
		}
	}

	// Hide existence from unauthorized viewers.
	return model.ErrImageNotFound
}

func (s *ImageService) thumbnailPath(filename string, size int) string {
	hash := sha256.Sum256([]byte(filename + "|" + strconv.Itoa(size)))
	return filepath.Join(s.thumbnailRoot, hex.EncodeToString(hash[:])+".jpg")
}

func (s *ImageService) removeThumbnails(filename string) {
	for _, size := range []int{128, 256, 512, 1024} {
		_ = os.Remove(s.thumbnailPath(filename, size))
	}
}

// scaleAndSaveThumbnail scales src so its largest dimension is at most size
// (never upscaling) and caches it as a JPEG at thumbPath.
func scaleAndSaveThumbnail(src image.Image, thumbPath string, size int, info os.FileInfo) (*os.File, os.FileInfo, error) {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, nil, apierror.New("UNSUPPORTED_TYPE", "invalid image dimensions", "", http.StatusUnsupportedMediaType)
	}

	maxDim := width
	if height > maxDim {
		maxDim = height
	}

	scale := float64(size) / float64(maxDim)
	if scale > 1 {
		scale = 1
	}

	targetWidth := int(math.Round(float64(width) * scale))
	targetHeight := int(math.Round(float64(height) * scale))
	if targetWidth < 1 {
		targetWidth = 1
	}
	if targetHeight < 1 {
		targetHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	thumbWriter, err := os.OpenFile(thumbPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, err
	}

	encodeErr := jpeg.Encode(thumbWriter, dst, &jpeg.Options{Quality: 90})
	closeErr := thumbWriter.Close()
	if encodeErr != nil {
		return nil, nil, encodeErr
	}
	if closeErr != nil {
		return nil, nil, closeErr
	}

	_ = os.Chtimes(thumbPath, time.Now().UTC(), info.ModTime())

	thumbFile, err := os.Open(thumbPath)
	if err != nil {
		return nil, nil, err
	}

	thumbInfo, err := os.Stat(thumbPath)
	if err != nil {
		_ = thumbFile.Close()
		return nil, nil, err
	}

	return thumbFile, thumbInfo, nil
}

// uniqueFilename keeps a sanitized version of the original name for human
// readability but prefixes randomness so names never collide.
func uniqueFilename(original string) string {
	base := filepath.Base(strings.TrimSpace(original))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)

	if base == "" || base == "." {
		base = "upload"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}

	return uuid.NewString()[:8] + "_" + base
}
