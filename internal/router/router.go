package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go-videotube/internal/config"
	"go-videotube/internal/handler"
	"go-videotube/internal/middleware"
)

type Handlers struct {
	User   *handler.UserHandler
	Health *handler.HealthHandler
	Docs   *handler.DocsHandler
	// Media is nil when objects live in S3.
	Media *handler.MediaHandler
}

func New(cfg *config.Config, logger *slog.Logger, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Health)
	r.Get("/openapi.yaml", h.Docs.OpenAPI)
	r.Get("/swagger", h.Docs.SwaggerUI)

	if h.Media != nil {
		r.With(middleware.TransferTimeout(10*time.Minute, 30*time.Second)).Get("/media/*", h.Media.Serve)
	}

	r.Route("/api/v1/users", func(users chi.Router) {
		users.Use(middleware.Timeout(cfg.RequestTimeout))

		users.Post("/register", h.User.Register)
		users.Post("/login", h.User.Login)
		users.Post("/refresh-token", h.User.RefreshToken)

		users.Group(func(authed chi.Router) {
			authed.Use(authMiddleware.RequireAuth)

			authed.Post("/logout", h.User.Logout)
			authed.Post("/change-password", h.User.ChangePassword)
			authed.Get("/current-user", h.User.CurrentUser)
			authed.Patch("/update-account", h.User.UpdateAccount)
			authed.Patch("/avatar", h.User.UpdateAvatar)
			authed.Patch("/cover-image", h.User.UpdateCoverImage)
			authed.Get("/security-events", h.User.SecurityEvents)
			authed.Get("/c/{username}", h.User.ChannelProfile)
			authed.Post("/c/{username}/subscription", h.User.Subscribe)
			authed.Delete("/c/{username}/subscription", h.User.Unsubscribe)
		})
	})

	return r
}
