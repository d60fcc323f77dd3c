package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/GTP-getaipro/FWIQ-sub012/application/orchestrator"
	"github.com/GTP-getaipro/FWIQ-sub012/application/ports"
	"github.com/GTP-getaipro/FWIQ-sub012/infrastructure/config"
	"github.com/GTP-getaipro/FWIQ-sub012/interfaces/http/rest/handlers"
	"github.com/GTP-getaipro/FWIQ-sub012/interfaces/http/rest/middleware"
	"github.com/GTP-getaipro/FWIQ-sub012/pkg/auth"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg          *config.Config
	orchestrator *orchestrator.Service
	profiles     ports.ProfileRepository
	logger       *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	orch *orchestrator.Service,
	profiles ports.ProfileRepository,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:          cfg,
		orchestrator: orch,
		profiles:     profiles,
		logger:       logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() (http.Handler, error) {
	secret := rt.cfg.JWTSecret
	if secret == "" && rt.cfg.IsDevelopment() {
		// Config validation requires a real secret in production.
		secret = "local-development-secret"
		rt.logger.Warn("JWT_SECRET not set, using development secret")
	}
	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: secret,
		Issuer:    rt.cfg.JWTIssuer,
		Audience:  []string{"fwiq-api"},
	})
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.floworx-iq.com"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(validator, rt.logger))

		profileHandler := handlers.NewProfileHandler(rt.profiles, rt.logger)
		deployHandler := handlers.NewDeploymentHandler(rt.orchestrator, rt.logger)

		r.Route("/profiles", func(r chi.Router) {
			r.Post("/", profileHandler.CreateProfile)
			r.Get("/{profileID}", profileHandler.GetProfile)
			r.Put("/{profileID}/categories", profileHandler.UpdateSelection)

			r.Route("/{profileID}/deployments", func(r chi.Router) {
				r.Post("/", deployHandler.Deploy)
				r.Get("/", deployHandler.GetHistory)
				r.Post("/rollback", deployHandler.Rollback)
			})
		})
	})

	return router, nil
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
