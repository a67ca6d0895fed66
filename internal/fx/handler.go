package fx

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
)

// Handler manages exchange rate endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	resolver *Resolver
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Repository, resolver *Resolver, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, repo: repo, resolver: resolver, validate: validate}
}

// MountRoutes registers exchange rate routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{currency}", h.list)
	r.Get("/{currency}/resolve", h.resolve)
	r.Post("/", h.create)
}

type createRequest struct {
	Currency  string `json:"currency" validate:"required,len=3"`
	Rate      string `json:"rate" validate:"required"`
	ValidFrom string `json:"valid_from" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	currency := strings.ToUpper(req.Currency)
	if !money.ValidCurrencyCode(currency) || money.IsBase(currency) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad currency "+req.Currency)
		return
	}
	rate, err := money.Parse(req.Rate)
	if err != nil || !rate.IsPositive() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad rate "+req.Rate)
		return
	}
	validFrom, err := time.Parse("2006-01-02", req.ValidFrom)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad valid_from "+req.ValidFrom)
		return
	}

	record := &ExchangeRate{
		Currency:  currency,
		Rate:      money.RoundRate(rate),
		ValidFrom: validFrom,
		Active:    true,
	}
	if err := h.repo.Insert(r.Context(), record); err != nil {
		h.logger.Error("insert exchange rate", slog.String("currency", currency), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rates, err := h.repo.ListByCurrency(r.Context(), strings.ToUpper(chi.URLParam(r, "currency")), 50)
	if err != nil {
		h.logger.Error("list exchange rates", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rates)
}

type resolveResponse struct {
	Currency string `json:"currency"`
	AsOf     string `json:"as_of"`
	Rate     string `json:"rate"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	currency := strings.ToUpper(chi.URLParam(r, "currency"))
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad as_of "+raw)
			return
		}
		asOf = parsed
	}
	rate, err := h.resolver.Resolve(r.Context(), currency, asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolveResponse{
		Currency: currency,
		AsOf:     asOf.Format("2006-01-02"),
		Rate:     rate.String(),
	})
}
