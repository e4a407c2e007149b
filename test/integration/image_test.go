//go:build integration

package integration

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadImage(t *testing.T, env *testEnv, client *http.Client, access string, filename string, content []byte) (int, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/images/upload", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return resp.StatusCode, nil
	}

	var data map[string]any
	decodeData(t, resp, &data)
	return resp.StatusCode, data
}

func TestImageUploadServeThumbnail(t *testing.T) {
	env := newTestEnv(t)
	alice := newClient(t)
	access := env.signup(t, alice, "alice", "password1")

	status, data := uploadImage(t, env, alice, access, "photo.png", pngBytes(t, 64, 48))
	require.Equal(t, http.StatusCreated, status)
	filename, _ := data["filename"].(string)
	require.NotEmpty(t, filename)
	assert.Equal(t, "photo.png", data["original_filename"])
	assert.Equal(t, "image/png", data["content_type"])

	// The uploader can fetch the original back.
	serve := env.get(t, alice, "/api/v1/images/"+filename, access)
	defer serve.Body.Close()
	require.Equal(t, http.StatusOK, serve.StatusCode)
	assert.Equal(t, "image/png", serve.Header.Get("Content-Type"))

	// Thumbnails come back as JPEG regardless of the source format.
	thumb := env.get(t, alice, "/api/v1/images/thumbnail/"+filename+"?size=32", access)
	defer thumb.Body.Close()
	require.Equal(t, http.StatusOK, thumb.StatusCode)
	assert.Equal(t, "image/jpeg", thumb.Header.Get("Content-Type"))
}

func TestImageUploadRejectsNonImage(t *testing.T) {
	env := newTestEnv(t)
	alice := newClient(t)
	access := env.signup(t, alice, "alice", "password1")

	status, _ := uploadImage(t, env, alice, access, "notes.txt", []byte("plain text, not an image"))
	require.Equal(t, http.StatusUnsupportedMediaType, status)
}

func TestUnattachedImageHiddenFromOthers(t *testing.T) {
	env := newTestEnv(t)
	alice := newClient(t)
	access := env.signup(t, alice, "alice", "password1")

	status, data := uploadImage(t, env, alice, access, "draft.png", pngBytes(t, 16, 16))
	require.Equal(t, http.StatusCreated, status)
	filename := data["filename"].(string)

	bob := newClient(t)
	bobToken := env.signup(t, bob, "bob", "password1")

	// Not attached to any visible post, so it does not exist for bob.
	resp := env.get(t, bob, "/api/v1/images/"+filename, bobToken)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImageVisibleWhenAttachedToPublicPost(t *testing.T) {
	env := newTestEnv(t)
	alice := newClient(t)
	access := env.signup(t, alice, "alice", "password1")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("message", "post with a picture"))
	require.NoError(t, writer.WriteField("privacy", "public"))
	part, err := writer.CreateFormFile("image", "pic.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 32, 32))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/v1/posts", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := alice.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var post struct {
		Images []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"images"`
	}
	decodeData(t, resp, &post)
	require.Len(t, post.Images, 1)

	// Anyone can fetch an image attached to a public post.
	anon := newClient(t)
	serve := env.get(t, anon, "/api/v1/images/"+post.Images[0].Filename, "")
	serve.Body.Close()
	require.Equal(t, http.StatusOK, serve.StatusCode)
}

func TestImageDeleteOwnership(t *testing.T) {
	env := newTestEnv(t)
	alice := newClient(t)
	access := env.signup(t, alice, "alice", "password1")

	status, data := uploadImage(t, env, alice, access, "mine.png", pngBytes(t, 16, 16))
	require.Equal(t, http.StatusCreated, status)
	filename := data["filename"].(string)

	bob := newClient(t)
	bobToken := env.signup(t, bob, "bob", "password1")

	denied := env.doJSON(t, bob, http.MethodDelete, "/api/v1/images/"+filename, nil, bobToken)
	denied.Body.Close()
	require.Equal(t, http.StatusForbidden, denied.StatusCode)

	allowed := env.doJSON(t, alice, http.MethodDelete, "/api/v1/images/"+filename, nil, access)
	allowed.Body.Close()
	require.Equal(t, http.StatusOK, allowed.StatusCode)

	gone := env.get(t, alice, "/api/v1/images/"+filename, access)
	gone.Body.Close()
	require.Equal(t, http.StatusNotFound, gone.StatusCode)
}
