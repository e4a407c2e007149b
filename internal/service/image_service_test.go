package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postboard/internal/model"
	"postboard/internal/storage"
)

func newTestImageService(t *testing.T) (*ImageService, *memImageStore, *memPostStore) {
	t.Helper()

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)

	images := newMemImageStore()
	posts := newMemPostStore()
	svc := NewImageService(store, images, posts, []string{"image/jpeg", "image/png", "image/gif", "image/webp"}, filepath.Join(t.TempDir(), "thumbs"))
	return svc, images, posts
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 64, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadSniffsContentType(t *testing.T) {
	svc, _, _ := newTestImageService(t)
	ctx := context.Background()

	// The stored content type comes from the bytes, not the filename.
	img, err := svc.Upload(ctx, "alice", "disguised.txt", bytes.NewReader(pngBytes(t, 8, 8)))
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, "disguised.txt", img.OriginalFilename)
	assert.NotEqual(t, "disguised.txt", img.Filename)
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	svc, _, _ := newTestImageService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "alice", "script.png", bytes.NewReader([]byte("#!/bin/sh\necho pwned\n")))
	require.Error(t, err)
}

func TestUploadUniqueFilenames(t *testing.T) {
	svc, _, _ := newTestImageService(t)
	ctx := context.Background()

	content := pngBytes(t, 8, 8)
	first, err := svc.Upload(ctx, "alice", "same.png", bytes.NewReader(content))
	require.NoError(t, err)
	second, err := svc.Upload(ctx, "alice", "same.png", bytes.NewReader(content))
	require.NoError(t, err)

	assert.NotEqual(t, first.Filename, second.Filename)
}

func TestOpenVisibility(t *testing.T) {
	svc, _, posts := newTestImageService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, "alice", "pic.png", bytes.NewReader(pngBytes(t, 8, 8)))
	require.NoError(t, err)

	t.Run("owner can open", func(t *testing.T) {
		_, file, _, err := svc.Open(ctx, "alice", false, img.Filename)
		require.NoError(t, err)
		file.Close()
	})

	t.Run("stranger cannot open unattached image", func(t *testing.T) {
		_, _, _, err := svc.Open(ctx, "bob", false, img.Filename)
		assert.ErrorIs(t, err, model.ErrImageNotFound)
	})

	t.Run("admin can open", func(t *testing.T) {
		_, file, _, err := svc.Open(ctx, "root", true, img.Filename)
		require.NoError(t, err)
		file.Close()
	})

	t.Run("visible once attached to a public post", func(t *testing.T) {
		post, err := posts.Create(ctx, model.Post{Username: "alice", Message: "look", Privacy: model.PrivacyPublic})
		require.NoError(t, err)
		require.NoError(t, svc.images.AttachToPost(ctx, img.ID, post.ID))

		_, file, _, err := svc.Open(ctx, "bob", false, img.Filename)
		require.NoError(t, err)
		file.Close()

		// Anonymous viewers too, the post is public.
		_, file, _, err = svc.Open(ctx, "", false, img.Filename)
		require.NoError(t, err)
		file.Close()
	})
}

func TestThumbnailGeneratedAndCached(t *testing.T) {
	svc, _, _ := newTestImageService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, "alice", "big.png", bytes.NewReader(pngBytes(t, 200, 100)))
	require.NoError(t, err)

	file, info, err := svc.Thumbnail(ctx, "alice", false, img.Filename, 50)
	require.NoError(t, err)
	defer file.Close()

	decoded, err := jpeg.Decode(file)
	require.NoError(t, err)
	bounds := decoded.Bounds()
	assert.Equal(t, 50, bounds.Dx())
	assert.Equal(t, 25, bounds.Dy())

	// A second request is served from the cache without regeneration.
	cached, cachedInfo, err := svc.Thumbnail(ctx, "alice", false, img.Filename, 50)
	require.NoError(t, err)
	defer cached.Close()
	assert.Equal(t, info.ModTime(), cachedInfo.ModTime())
}

func TestThumbnailNeverUpscales(t *testing.T) {
	svc, _, _ := newTestImageService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, "alice", "tiny.png", bytes.NewReader(pngBytes(t, 10, 10)))
	require.NoError(t, err)

	file, _, err := svc.Thumbnail(ctx, "alice", false, img.Filename, 512)
	require.NoError(t, err)
	defer file.Close()

	decoded, err := jpeg.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, 10, decoded.Bounds().Dx())
}

func TestDeleteRemovesRowAndFile(t *testing.T) {
	svc, images, _ := newTestImageService(t)
	ctx := context.Background()

	img, err := svc.Upload(ctx, "alice", "gone.png", bytes.NewReader(pngBytes(t, 8, 8)))
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, "bob", false, img.Filename), model.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "alice", false, img.Filename))

	_, err = images.FindByFilename(ctx, img.Filename)
	assert.ErrorIs(t, err, model.ErrImageNotFound)

	_, _, _, err = svc.Open(ctx, "alice", false, img.Filename)
	assert.Error(t, err)
}
