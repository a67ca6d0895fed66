package billing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/samudra-erp/samudra-erp/internal/auth"
	"github.com/samudra-erp/samudra-erp/internal/money"
	"github.com/samudra-erp/samudra-erp/internal/platform/httpx"
	"github.com/samudra-erp/samudra-erp/internal/workflow"
)

// Handler manages invoice and receipt endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/", h.create)
	r.Post("/generate/{jobID}", h.generate)
	r.Post("/{id}/recalculate", h.recalculate)
	r.Post("/{id}/confirm", h.confirm)
	r.Get("/{id}/receipts", h.listReceipts)
	r.Post("/{id}/receipts", h.createReceipt)
}

// MountReceiptRoutes registers receipt posting routes.
func (h *Handler) MountReceiptRoutes(r chi.Router) {
	r.Post("/{id}/post", h.postReceipt)
}

type lineRequest struct {
	Description string  `json:"description" validate:"required"`
	Quantity    string  `json:"quantity" validate:"required"`
	UnitPrice   string  `json:"unit_price" validate:"required"`
	TaxIDs      []int64 `json:"tax_ids"`
}

type createRequest struct {
	JobOrderID *int64        `json:"job_order_id"`
	CustomerID int64         `json:"customer_id" validate:"required"`
	Currency   string        `json:"currency" validate:"required,len=3"`
	Lines      []lineRequest `json:"lines" validate:"required,min=1,dive"`
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

	input := CreateInput{JobOrderID: req.JobOrderID, CustomerID: req.CustomerID, Currency: req.Currency}
	for _, l := range req.Lines {
		qty, err := money.Parse(l.Quantity)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad quantity "+l.Quantity)
			return
		}
		price, err := money.Parse(l.UnitPrice)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad unit price "+l.UnitPrice)
			return
		}
		input.Lines = append(input.Lines, LineInput{
			Description: l.Description, Quantity: qty, UnitPrice: price, TaxIDs: l.TaxIDs,
		})
	}

	inv, err := h.service.Create(r.Context(), input, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

type generateRequest struct {
	Kind   string  `json:"kind" validate:"required,oneof=DP FINAL REGULAR"`
	Amount string  `json:"amount"`
	TaxIDs []int64 `json:"tax_ids"`
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	input := GenerateInput{Kind: req.Kind, TaxIDs: req.TaxIDs}
	if req.Amount != "" {
		if input.Amount, err = money.Parse(req.Amount); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad amount "+req.Amount)
			return
		}
	}

	inv, err := h.service.Generate(r.Context(), jobID, input, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("generate invoice", slog.Int64("job_id", jobID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	inv, err := h.service.Recalculate(r.Context(), id, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("recalculate invoice", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	inv, err := h.service.Confirm(r.Context(), id, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("confirm invoice", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), workflow.Status(r.URL.Query().Get("status")), 100)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
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
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	list, err := h.service.ListReceipts(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

type receiptRequest struct {
	Amount    string `json:"amount" validate:"required"`
	Method    string `json:"method" validate:"required"`
	Reference string `json:"reference"`
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "bad amount "+req.Amount)
		return
	}

	rc, err := h.service.CreateReceipt(r.Context(), ReceiptInput{
		InvoiceID: id, Amount: amount, Method: req.Method, Reference: req.Reference,
	}, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create receipt", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rc)
}

func (h *Handler) postReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	rc, err := h.service.PostReceipt(r.Context(), id, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("post receipt", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rc)
}
