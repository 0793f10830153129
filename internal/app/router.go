package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/fabriq-erp/fabriq/internal/bom"
	"github.com/fabriq-erp/fabriq/internal/masterdata"
	"github.com/fabriq-erp/fabriq/internal/procurement"
	"github.com/fabriq-erp/fabriq/internal/production"
	"github.com/fabriq-erp/fabriq/internal/stock"
	"github.com/fabriq-erp/fabriq/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	MasterDataHandler  *masterdata.Handler
	BOMHandler         *bom.Handler
	StockHandler       *stock.Handler
	ProductionHandler  *production.Handler
	ProcurementHandler *procurement.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(api chi.Router) {
		if params.MasterDataHandler != nil {
			api.Route("/masterdata", params.MasterDataHandler.MountRoutes)
		}
		if params.BOMHandler != nil {
			api.Route("/compositions", params.BOMHandler.MountRoutes)
		}
		if params.StockHandler != nil {
			api.Route("/stock", params.StockHandler.MountRoutes)
		}
		if params.ProductionHandler != nil {
			api.Route("/production", params.ProductionHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			api.Route("/buy-services", params.ProcurementHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
