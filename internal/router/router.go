package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"postboard/internal/config"
	"postboard/internal/handler"
	"postboard/internal/middleware"
)

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	authHandler *handler.AuthHandler,
	postHandler *handler.PostHandler,
	imageHandler *handler.ImageHandler,
	albumHandler *handler.AlbumHandler,
	userHandler *handler.UserHandler,
	wsHandler http.HandlerFunc,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// The websocket upgrade must bypass the timeout wrapper, long-lived
	// connections are the point.
	r.Get("/ws/posts/notify", wsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Use(middleware.Timeout(cfg.RequestTimeout))

			auth.Post("/register", authHandler.Register)
			auth.Post("/login", authHandler.Login)
			auth.Post("/refresh", authHandler.Refresh)
			auth.Post("/logout", authHandler.Logout)
			auth.With(authMiddleware.RequireAuth).Post("/logout-all", authHandler.LogoutAll)
			auth.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
			auth.With(authMiddleware.RequireAuth).Put("/password", authHandler.ChangePassword)
		})

		api.Route("/posts", func(posts chi.Router) {
			posts.Use(middleware.Timeout(cfg.RequestTimeout))

			posts.With(authMiddleware.OptionalAuth).Get("/", postHandler.Feed)
			posts.With(authMiddleware.RequireAuth).Post("/", postHandler.Create)
			posts.With(authMiddleware.RequireAuth).Get("/trash", postHandler.Trash)
			posts.With(authMiddleware.OptionalAuth).Get("/{id}", postHandler.Get)
			posts.With(authMiddleware.RequireAuth).Put("/{id}", postHandler.Update)
			posts.With(authMiddleware.RequireAuth).Delete("/{id}", postHandler.Delete)
			posts.With(authMiddleware.RequireAuth).Post("/{id}/restore", postHandler.Restore)
		})

		api.Route("/images", func(images chi.Router) {
			images.With(middleware.Timeout(cfg.RequestTimeout), authMiddleware.RequireAuth).Post("/upload", imageHandler.Upload)
			images.With(middleware.Timeout(cfg.RequestTimeout), authMiddleware.RequireAuth).Get("/", imageHandler.List)
			images.With(middleware.Timeout(cfg.RequestTimeout), authMiddleware.RequireAuth).Delete("/{filename}", imageHandler.Delete)

			// Image bytes stream straight to the client, so these two use the
			// non-buffering timeout instead of http.TimeoutHandler.
			streaming := middleware.StreamingTimeout(10*time.Minute, 30*time.Second)
			images.With(streaming, authMiddleware.OptionalAuth).Get("/thumbnail/{filename}", imageHandler.Thumbnail)
			images.With(streaming, authMiddleware.OptionalAuth).Get("/{filename}", imageHandler.Serve)
		})

		api.Route("/albums", func(albums chi.Router) {
			albums.Use(middleware.Timeout(cfg.RequestTimeout))

			albums.With(authMiddleware.OptionalAuth).Get("/", albumHandler.List)
			albums.With(authMiddleware.RequireAuth).Post("/", albumHandler.Create)
			albums.With(authMiddleware.OptionalAuth).Get("/{id}", albumHandler.Get)
			albums.With(authMiddleware.RequireAuth).Put("/{id}", albumHandler.Update)
			albums.With(authMiddleware.RequireAuth).Delete("/{id}", albumHandler.Delete)
			albums.With(authMiddleware.OptionalAuth).Get("/{id}/images", albumHandler.Images)
			albums.With(authMiddleware.RequireAuth).Post("/{id}/images", albumHandler.AddImage)
			albums.With(authMiddleware.RequireAuth).Delete("/{id}/images/{filename}", albumHandler.RemoveImage)
		})

		api.Route("/users", func(users chi.Router) {
			users.Use(middleware.Timeout(cfg.RequestTimeout))
			users.Use(authMiddleware.RequireAuth, authMiddleware.RequireAdmin)

			users.Get("/", userHandler.List)
			users.Put("/{username}/admin", userHandler.SetAdmin)
			users.Put("/{username}/active", userHandler.SetActive)
		})
	})

	return r
}
