package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/caoba-erp/caoba-erp/internal/invoicing"
	"github.com/caoba-erp/caoba-erp/internal/ledger"
	"github.com/caoba-erp/caoba-erp/internal/payables"
	"github.com/caoba-erp/caoba-erp/internal/treasury"
	"github.com/caoba-erp/caoba-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	LedgerHandler    *ledger.Handler
	TreasuryHandler  *treasury.Handler
	PayablesHandler  *payables.Handler
	InvoicingHandler *invoicing.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Caoba defaults.
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

	if params.LedgerHandler != nil {
		r.Route("/api/ledger", params.LedgerHandler.MountRoutes)
	}
	if params.TreasuryHandler != nil {
		r.Route("/api/treasury", params.TreasuryHandler.MountRoutes)
	}
	if params.PayablesHandler != nil {
		r.Route("/api/payables", params.PayablesHandler.MountRoutes)
	}
	if params.InvoicingHandler != nil {
		r.Route("/api/invoices", params.InvoicingHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/api/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
