package server

import (
	"net/http"

	"github.com/cloo-solutions/docchat/internal/api/handlers"
	"github.com/cloo-solutions/docchat/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// MaxBodyBytes caps request bodies just above the largest accepted upload
// so multipart overhead still fits.
const MaxBodyBytes int64 = 12 * 1024 * 1024

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	HealthHandler   *handlers.HealthHandler
	UserHandler     *handlers.UserHandler
	DocumentHandler *handlers.DocumentHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(MaxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)
	r.Post("/auth/signup", cfg.UserHandler.Signup)

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.AuthValidator))

		r.Get("/profile", cfg.UserHandler.Identity)

		r.Route("/users", func(r chi.Router) {
			r.Get("/profile", cfg.UserHandler.GetProfile)
			r.Patch("/profile", cfg.UserHandler.UpdateProfile)
		})

		r.Post("/files/upload/profile-image", cfg.UserHandler.UploadProfileImage)
		r.Post("/files/upload/document", cfg.DocumentHandler.UploadFile)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/upload", cfg.DocumentHandler.Upload)
			r.Get("/list", cfg.DocumentHandler.List)
			r.Post("/chat/{id}", cfg.DocumentHandler.Chat)
			r.Get("/chat/{id}/history", cfg.DocumentHandler.History)
			r.Get("/{id}/download", cfg.DocumentHandler.Download)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})
	})

	return r
}
