package job

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Handler manages job order and fee period endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers job order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/", h.create)
	r.Post("/{id}/confirm", h.act(h.service.Confirm))
	r.Post("/{id}/progress", h.act(h.service.StartProgress))
	r.Post("/{id}/hold", h.act(h.service.Hold))
	r.Post("/{id}/complete", h.act(h.service.Complete))
	r.Post("/{id}/cancel", h.act(h.service.Cancel))
	r.Post("/{id}/costs", h.addCost)
}

// MountFeeRoutes registers fee period routes.
func (h *Handler) MountFeeRoutes(r chi.Router) {
	r.Get("/{year}/{month}", h.getFeePeriod)
	r.Post("/{year}/{month}/generate", h.feeAction(h.service.GenerateFeePeriod))
	r.Post("/{year}/{month}/approve", h.feeAction(h.service.ApproveFeePeriod))
}

type createRequest struct {
	QuotationID     *int64 `json:"quotation_id"`
	CustomerID      int64  `json:"customer_id" validate:"required"`
	ServiceName     string `json:"service_name" validate:"required"`
	Pickup          string `json:"pickup" validate:"required"`
	Delivery        string `json:"delivery" validate:"required"`
	Cargo           string `json:"cargo"`
	Currency        string `json:"currency" validate:"required,len=3"`
	ContractValue   string `json:"contract_value" validate:"required"`
	DPPercent       string `json:"dp_percent"`
	SalesEmployeeID int64  `json:"sales_employee_id"`
	FeePercent      string `json:"fee_percent"`
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

	input := CreateInput{
		QuotationID:     req.QuotationID,
		CustomerID:      req.CustomerID,
		ServiceName:     req.ServiceName,
		Pickup:          req.Pickup,
		Delivery:        req.Delivery,
		Cargo:           req.Cargo,
		Currency:        req.Currency,
		SalesEmployeeID: req.SalesEmployeeID,
	}
	var err error
	if input.ContractValue, err = money.Parse(req.ContractValue); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad contract value "+req.ContractValue)
		return
	}
	if req.DPPercent != "" {
		if input.DPPercent, err = money.Parse(req.DPPercent); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad dp percent "+req.DPPercent)
			return
		}
	}
	if req.FeePercent != "" {
		if input.FeePercent, err = money.Parse(req.FeePercent); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad fee percent "+req.FeePercent)
			return
		}
	}

	j, err := h.service.Create(r.Context(), input, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create job order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, j)
}

type addCostRequest struct {
	Amount string `json:"amount" validate:"required"`
}

func (h *Handler) addCost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var req addCostRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad amount "+req.Amount)
		return
	}
	j, err := h.service.AddCost(r.Context(), id, amount, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("add job cost", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, j)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), workflow.Status(r.URL.Query().Get("status")), 100)
	if err != nil {
		h.logger.Error("list job orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	j, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, j)
}

func (h *Handler) getFeePeriod(w http.ResponseWriter, r *http.Request) {
	year, month, ok := feePeriodParams(r)
	if !ok {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	p, err := h.service.GetFeePeriod(r.Context(), year, month)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) act(fn func(ctx context.Context, id int64, actor *auth.User) (*JobOrder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		j, err := fn(r.Context(), id, auth.ActorFromContext(r.Context()))
		if err != nil {
			h.logger.Error("job order transition", slog.Int64("id", id), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, j)
	}
}

func (h *Handler) feeAction(fn func(ctx context.Context, year int, month time.Month, actor *auth.User) (*FeePeriod, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, month, ok := feePeriodParams(r)
		if !ok {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		p, err := fn(r.Context(), year, month, auth.ActorFromContext(r.Context()))
		if err != nil {
			h.logger.Error("fee period action", slog.Int("year", year), slog.Int("month", int(month)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, p)
	}
}

func feePeriodParams(r *http.Request) (int, time.Month, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return 0, 0, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	return year, time.Month(month), true
}
