//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"postboard/internal/config"
	"postboard/internal/database"
	"postboard/internal/event"
	"postboard/internal/handler"
	"postboard/internal/middleware"
	"postboard/internal/repository"
	"postboard/internal/router"
	"postboard/internal/service"
	"postboard/internal/storage"
	"postboard/internal/websocket"
)

// testEnv is a full server wired against the database named by
// TEST_DATABASE_URL. Tests missing that variable are skipped.
type testEnv struct {
	server *httptest.Server
	db     *database.DB
	cfg    *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, dbURL, 5, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))

	// Each test starts from a clean slate.
	_, err = db.Pool.Exec(ctx, "TRUNCATE users, refresh_tokens, posts, images, albums, album_images CASCADE")
	require.NoError(t, err)

	cfg := &config.Config{
		ServerPort:          "8080",
		RequestTimeout:      30 * time.Second,
		DatabaseURL:         dbURL,
		JWTSecret:           "integration-test-secret",
		JWTAccessTTL:        15 * time.Minute,
		JWTRefreshTTL:       24 * time.Hour,
		RefreshCookieName:   "refresh_token",
		RefreshCookieSecure: false,
		UploadRoot:          filepath.Join(t.TempDir(), "uploads"),
		ThumbnailRoot:       filepath.Join(t.TempDir(), "thumbnails"),
		MaxUploadSize:       10 * 1024 * 1024,
		AllowedMIMETypes:    []string{"image/jpeg", "image/png", "image/gif", "image/webp"},
		CORSOrigins:         []string{"http://localhost:5173"},
		RateLimitRPM:        10000,
		AuthRateLimitRPM:    10000,
	}

	store, err := storage.New(cfg.UploadRoot)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db.Pool)
	tokenRepo := repository.NewTokenRepository(db.Pool)
	postRepo := repository.NewPostRepository(db.Pool)
	imageRepo := repository.NewImageRepository(db.Pool)
	albumRepo := repository.NewAlbumRepository(db.Pool)

	authService, err := service.NewAuthService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, userRepo, tokenRepo)
	require.NoError(t, err)

	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	go hub.Run()

	postService := service.NewPostService(postRepo, imageRepo, bus)
	imageService := service.NewImageService(store, imageRepo, postRepo, cfg.AllowedMIMETypes, cfg.ThumbnailRoot)
	albumService := service.NewAlbumService(albumRepo, imageRepo)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	authHandler := handler.NewAuthHandler(authService, cfg.RefreshCookieName, cfg.RefreshCookieSecure)
	postHandler := handler.NewPostHandler(postService, imageService, cfg.MaxUploadSize)
	imageHandler := handler.NewImageHandler(imageService, cfg.MaxUploadSize)
	albumHandler := handler.NewAlbumHandler(albumService)
	userHandler := handler.NewUserHandler(authService)
	wsHandler := websocket.ServeWS(hub, authService)

	server := httptest.NewServer(router.New(cfg, authMiddleware, authHandler, postHandler, imageHandler, albumHandler, userHandler, wsHandler))
	t.Cleanup(server.Close)

	return &testEnv{server: server, db: db, cfg: cfg}
}

// newClient returns an http.Client with a cookie jar so the refresh cookie
// set by login and refresh round-trips like a browser would send it.
func newClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) register(t *testing.T, client *http.Client, username string, password string) {
	t.Helper()

	resp := e.postJSON(t, client, "/api/v1/auth/register", map[string]string{
		"username": username,
		"password": password,
	}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (e *testEnv) login(t *testing.T, client *http.Client, username string, password string) string {
	t.Helper()

	resp := e.postJSON(t, client, "/api/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.True(t, parsed.Success)
	require.NotEmpty(t, parsed.Data.AccessToken)

	return parsed.Data.AccessToken
}

func (e *testEnv) signup(t *testing.T, client *http.Client, username string, password string) string {
	t.Helper()

	e.register(t, client, username, password)
	return e.login(t, client, username, password)
}

func (e *testEnv) postJSON(t *testing.T, client *http.Client, path string, payload any, accessToken string) *http.Response {
	t.Helper()
	return e.doJSON(t, client, http.MethodPost, path, payload, accessToken)
}

func (e *testEnv) doJSON(t *testing.T, client *http.Client, method string, path string, payload any, accessToken string) *http.Response {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, client *http.Client, path string, accessToken string) *http.Response {
	t.Helper()
	return e.doJSON(t, client, http.MethodGet, path, nil, accessToken)
}

// refreshCookie returns the refresh cookie the jar holds for the test
// server, or nil when no session cookie is present.
func refreshCookie(t *testing.T, client *http.Client, serverURL string, name string) *http.Cookie {
	t.Helper()

	u, err := url.Parse(serverURL)
	require.NoError(t, err)

	for _, c := range client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}

	return nil
}

func decodeData(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}
