package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/api/handler"
	"github.com/bcnelson/campaign-agent-api/internal/api/middleware"
	"github.com/bcnelson/campaign-agent-api/internal/api/response"
	"github.com/bcnelson/campaign-agent-api/internal/apikey"
	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/bcnelson/campaign-agent-api/internal/metrics"
	"github.com/bcnelson/campaign-agent-api/internal/ratelimit"
	"github.com/bcnelson/campaign-agent-api/internal/service"
	"github.com/bcnelson/campaign-agent-api/internal/storage"
	"github.com/bcnelson/campaign-agent-api/internal/web"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// AgentPathPrefix is where the Agent API is mounted.
const AgentPathPrefix = "/api/agent/v1"

// Dependencies are the components the router wires together.
type Dependencies struct {
	Store     storage.Storage
	Keys      *apikey.Service
	Campaigns *service.CampaignService
	Assets    *service.AssetService
	Audiences *service.AudienceService

	Limiter          ratelimit.Limiter
	DefaultRateLimit int

	Audit             middleware.AuditSink
	AuditCaptureBytes int64

	MaxBodyBytes       int64
	CORSAllowedOrigins []string

	Dashboard web.Config
}

type pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)
	if len(deps.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   deps.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler)
	}

	// Health check (no auth required)
	r.Get("/health", healthHandler(deps.Store))
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/dashboard", web.NewRouter(deps.Keys, deps.Dashboard))

	campaignHandler := handler.NewCampaignHandler(deps.Campaigns)
	assetHandler := handler.NewAssetHandler(deps.Assets)
	audienceHandler := handler.NewAudienceHandler(deps.Audiences)
	budgetHandler := handler.NewBudgetHandler(deps.Campaigns)

	r.Route(AgentPathPrefix, func(r chi.Router) {
		r.Use(middleware.BodyLimit(deps.MaxBodyBytes))
		r.Use(middleware.Audit(deps.Audit, deps.AuditCaptureBytes))
		r.Use(middleware.Auth(deps.Keys, deps.Limiter, deps.DefaultRateLimit))

		can := middleware.RequirePermission

		// Campaigns
		r.With(can(domain.ResourceCampaigns, domain.ActionRead)).Get("/campaigns", campaignHandler.List)
		r.With(can(domain.ResourceCampaigns, domain.ActionCreate)).Post("/campaigns", campaignHandler.Create)
		r.With(can(domain.ResourceCampaigns, domain.ActionRead)).Get("/campaigns/{id}", campaignHandler.Get)
		r.With(can(domain.ResourceCampaigns, domain.ActionUpdate)).Patch("/campaigns/{id}", campaignHandler.Update)
		r.With(can(domain.ResourceAssets, domain.ActionAssign)).Post("/campaigns/{id}/assets", campaignHandler.AssignAsset)
		r.With(can(domain.ResourceAudiences, domain.ActionAssign)).Post("/campaigns/{id}/audiences", campaignHandler.AssignAudience)

		// Assets
		r.With(can(domain.ResourceAssets, domain.ActionRead)).Get("/assets", assetHandler.List)
		r.With(can(domain.ResourceAssets, domain.ActionCreate)).Post("/assets", assetHandler.Create)
		r.With(can(domain.ResourceAssets, domain.ActionRead)).Get("/assets/{id}", assetHandler.Get)

		// Audiences
		r.With(can(domain.ResourceAudiences, domain.ActionRead)).Get("/audiences", audienceHandler.List)
		r.With(can(domain.ResourceAudiences, domain.ActionCreate)).Post("/audiences", audienceHandler.Create)
		r.With(can(domain.ResourceAudiences, domain.ActionRead)).Get("/audiences/{id}", audienceHandler.Get)

		// Budget
		r.With(can(domain.ResourceBudget, domain.ActionRead)).Get("/budget/status", budgetHandler.Status)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			response.Error(w, r, http.StatusNotFound, domain.ErrCodeResourceNotFound, "Endpoint not found", nil)
		})
	})

	return r
}

func healthHandler(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p, ok := store.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
