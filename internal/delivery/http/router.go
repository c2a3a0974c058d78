package http

import (
	"context"
	"net/http"
	"time"

	"github.com/frontandrew/attestation/internal/delivery/http/middleware"
	"github.com/frontandrew/attestation/internal/domain"
	"github.com/frontandrew/attestation/internal/metrics"
	"github.com/frontandrew/attestation/internal/pkg/config"
	"github.com/frontandrew/attestation/internal/pkg/logger"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Pinger проверяет доступность зависимости для /health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers - обработчики, подключаемые к роутеру
type Handlers struct {
	Auth        *AuthHandler
	Certificate *CertificateHandler
	Import      *ImportHandler
	Agency      *AgencyHandler
	User        *UserHandler
}

// Router содержит все зависимости для HTTP роутера
type Router struct {
	handlers       Handlers
	tokens         middleware.TokenValidator
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	database       Pinger
	config         *config.Config
	logger         logger.Logger
}

// NewRouter создает новый HTTP router
func NewRouter(
	handlers Handlers,
	tokens middleware.TokenValidator,
	m *metrics.Metrics,
	metricsHandler http.Handler,
	database Pinger,
	config *config.Config,
	logger logger.Logger,
) *Router {
	return &Router{
		handlers:       handlers,
		tokens:         tokens,
		metrics:        m,
		metricsHandler: metricsHandler,
		database:       database,
		config:         config,
		logger:         logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger, rt.metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.config.CORS.AllowedOrigins,
		AllowedMethods:   rt.config.CORS.AllowedMethods,
		AllowedHeaders:   rt.config.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint (публичный)
	r.Get("/health", rt.health)

	if rt.metricsHandler != nil {
		r.Handle("/metrics", rt.metricsHandler)
	}

	// Публичная проверка аттестата по ссылке с бланка
	r.Get("/verify/{id}", rt.handlers.Certificate.VerifyCertificate)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (без аутентификации)
		r.Post("/auth/login", rt.handlers.Auth.Login)

		// Protected routes (требуют аутентификации)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(rt.tokens))

			r.Get("/auth/me", rt.handlers.Auth.GetMe)

			// Certificate endpoints
			r.Route("/certificates", func(r chi.Router) {
				r.Get("/", rt.handlers.Certificate.ListCertificates)
				r.Post("/", rt.handlers.Certificate.IssueCertificate)
				r.Get("/coverage", rt.handlers.Certificate.CheckCoverage)
				r.Get("/export", rt.handlers.Certificate.ExportCertificates)
				r.Get("/print", rt.handlers.Certificate.PrintCertificates)
				r.Post("/import", rt.handlers.Import.ImportCertificates)
				r.Get("/{id}", rt.handlers.Certificate.GetCertificate)
				r.Put("/{id}", rt.handlers.Certificate.UpdateCertificate)
				r.Delete("/{id}", rt.handlers.Certificate.DeleteCertificate)
				r.Get("/{id}/pdf", rt.handlers.Certificate.CertificatePDF)
			})

			// Stock endpoints
			r.Route("/stocks", func(r chi.Router) {
				r.Get("/", rt.handlers.Agency.ListStocks)
				r.Get("/{id}", rt.handlers.Agency.GetStock)

				// Admin only endpoints
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(domain.RoleAdmin))
					r.Post("/increment", rt.handlers.Agency.IncrementStock)
					r.Post("/decrement", rt.handlers.Agency.DecrementStock)
				})
			})

			// Agency endpoints
			r.Route("/agencies", func(r chi.Router) {
				r.Get("/", rt.handlers.Agency.ListAgencies)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(domain.RoleAdmin))
					r.Post("/", rt.handlers.Agency.CreateAgency)
					r.Put("/{id}", rt.handlers.Agency.UpdateAgency)
					r.Delete("/{id}", rt.handlers.Agency.DeleteAgency)
				})
			})

			// User endpoints
			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin))
				r.Get("/", rt.handlers.User.ListUsers)
				r.Post("/", rt.handlers.User.CreateUser)
				r.Put("/{id}", rt.handlers.User.UpdateUser)
				r.Delete("/{id}", rt.handlers.User.DeleteUser)
			})
		})
	})

	return r
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	if rt.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.database.Ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
