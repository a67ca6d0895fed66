package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/samudra-erp/samudra-erp/internal/accounting/journals"
	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/billing"
	"github.com/samudra-erp/samudra-erp/internal/fx"
	"github.com/samudra-erp/samudra-erp/internal/job"
	"github.com/samudra-erp/samudra-erp/internal/masterdata/taxes"
	"github.com/samudra-erp/samudra-erp/internal/observability"
	"github.com/samudra-erp/samudra-erp/internal/procurement"
	"github.com/samudra-erp/samudra-erp/internal/projects"
	"github.com/samudra-erp/samudra-erp/internal/rbac"
	"github.com/samudra-erp/samudra-erp/internal/sales/orders"
	"github.com/samudra-erp/samudra-erp/internal/sales/quotations"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Auth               *auth.Service
	QuotationHandler   *quotations.Handler
	OrderHandler       *orders.Handler
	ProcurementHandler *procurement.Handler
	ProjectHandler     *projects.Handler
	JobHandler         *job.Handler
	BillingHandler     *billing.Handler
	JournalHandler     *journals.Handler
	FXHandler          *fx.Handler
	TaxHandler         *taxes.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with Samudra defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Auth:    params.Auth,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rbac.RequireActor)

		r.Route("/quotations", params.QuotationHandler.MountRoutes)
		r.Route("/sales-orders", params.OrderHandler.MountRoutes)
		r.Route("/purchase-orders", params.ProcurementHandler.MountRoutes)
		r.Route("/projects", params.ProjectHandler.MountRoutes)
		r.Route("/job-orders", params.JobHandler.MountRoutes)
		r.Route("/fee-periods", params.JobHandler.MountFeeRoutes)
		r.Route("/invoices", params.BillingHandler.MountRoutes)
		r.Route("/receipts", params.BillingHandler.MountReceiptRoutes)
		r.Route("/journals", params.JournalHandler.MountRoutes)
		r.Route("/exchange-rates", params.FXHandler.MountRoutes)
		r.Route("/taxes", params.TaxHandler.MountRoutes)
	})

	return r
}
