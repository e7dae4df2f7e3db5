package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(s.config.AppHost+"/swagger/doc.json"),
	))
	r.Get("/health", s.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.ServeWsHandler)
	r.Get("/uploads/{owner}/{blob}", s.ServeBlobHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Post("/auth/register", s.RegisterHandler)
			r.Post("/auth/login", s.LoginHandler)
			r.Post("/auth/refresh", s.RefreshTokenHandler)
			r.Post("/auth/logout", s.LogoutHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware)

			r.Get("/me", s.GetCurrentUserHandler)
			r.Put("/me", s.UpdateCurrentUserHandler)
			r.Put("/me/password", s.ChangePasswordHandler)
			r.Delete("/me", s.DeleteCurrentUserHandler)

			r.Get("/sessions", s.ListSessionsHandler)
			r.Delete("/sessions/{sessionId}", s.DeleteSessionHandler)
			r.Post("/sessions/terminate_all", s.TerminateAllSessionsHandler)

			r.Get("/nodes", s.ListNodesHandler)
			r.Post("/nodes/folder", s.CreateFolderHandler)
			r.Post("/nodes/file", s.UploadFileHandler)
			r.Get("/nodes/{nodeId}", s.GetNodeHandler)
			r.Get("/nodes/{nodeId}/download", s.DownloadFileHandler)
			r.Patch("/nodes/{nodeId}", s.UpdateNodeHandler)
			r.Delete("/nodes/{nodeId}", s.DeleteNodeHandler)

			r.Get("/events", s.GetEventsHandler)
		})
	})

	return r
}
