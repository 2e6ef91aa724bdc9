package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partline/partline/internal/catalog"
	"github.com/partline/partline/internal/issuance"
	"github.com/partline/partline/internal/labels"
	"github.com/partline/partline/internal/notify"
	"github.com/partline/partline/internal/observability"
	"github.com/partline/partline/internal/receiving"
	"github.com/partline/partline/internal/requests"
	"github.com/partline/partline/internal/status"
	"github.com/partline/partline/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Config *Config

	CatalogHandler   *catalog.Handler
	ReceivingHandler *receiving.Handler
	RequestsHandler  *requests.Handler
	IssuanceHandler  *issuance.Handler
	StatusHandler    *status.Handler
	LabelsHandler    *labels.Handler
	NotifyHandler    *notify.Handler
	ReportHandler    *report.Handler

	Pool    *pgxpool.Pool
	Metrics *observability.Metrics

	MiddlewareConfig MiddlewareConfig
}

// NewRouter constructs the chi.Router with Partline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.MiddlewareConfig) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	if params.CatalogHandler != nil {
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
	}
	if params.ReceivingHandler != nil {
		r.Route("/receiving", params.ReceivingHandler.MountRoutes)
	}
	if params.RequestsHandler != nil {
		r.Route("/requests", params.RequestsHandler.MountRoutes)
	}
	if params.IssuanceHandler != nil {
		r.Route("/issuance", params.IssuanceHandler.MountRoutes)
	}
	if params.StatusHandler != nil {
		r.Route("/status", params.StatusHandler.MountRoutes)
	}
	if params.LabelsHandler != nil {
		r.Route("/labels", params.LabelsHandler.MountRoutes)
	}
	if params.NotifyHandler != nil {
		r.Route("/push", params.NotifyHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}

	return r
}
