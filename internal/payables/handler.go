package payables

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/caoba-erp/caoba-erp/internal/platform/httpx"
)

var validate = validator.New()

// Handler manages accounts-payable endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/aging", h.aging)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Get("/{id}/payments", h.listPayments)
	r.Post("/{id}/payments", h.applyPayment)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreatePayableRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.OriginalAmount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "original_amount is not a valid amount")
		return
	}
	var installment *decimal.Decimal
	if req.MonthlyInstallment != nil {
		d, err := decimal.NewFromString(*req.MonthlyInstallment)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "monthly_installment is not a valid amount")
			return
		}
		installment = &d
	}
	payable, err := h.service.Create(r.Context(), CreatePayableInput{
		DocumentNumber:     req.DocumentNumber,
		SupplierID:         req.SupplierID,
		IssueDate:          req.IssueDate,
		DueDate:            req.DueDate,
		OriginalAmount:     amount,
		MonthlyInstallment: installment,
	})
	if err != nil {
		h.logger.Error("create payable failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payable)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var supplierID int64
	if s := r.URL.Query().Get("supplier_id"); s != "" {
		supplierID, _ = strconv.ParseInt(s, 10, 64)
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	payablesList, err := h.service.List(r.Context(), ListPayablesRequest{
		Status:     PayableStatus(r.URL.Query().Get("status")),
		SupplierID: supplierID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.logger.Error("list payables failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payablesList)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payable id")
		return
	}
	payable, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payable)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payable id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete payable failed", slog.Any("error", err), slog.Int64("payable_id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payable id")
		return
	}
	var req ApplyPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount is not a valid amount")
		return
	}
	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}
	payable, err := h.service.ApplyPayment(r.Context(), ApplyPaymentInput{
		PayableID: id,
		Amount:    amount,
		Date:      date,
		Method:    req.Method,
		Reference: req.Reference,
		ActorID:   actorID(r),
	})
	if err != nil {
		h.logger.Error("apply payment failed", slog.Any("error", err), slog.Int64("payable_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payable)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payable id")
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf := time.Time{}
	if s := r.URL.Query().Get("as_of"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			asOf = t
		}
	}
	bucket, err := h.service.CalculateAging(r.Context(), asOf)
	if err != nil {
		h.logger.Error("payables aging failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bucket)
}

func actorID(r *http.Request) string {
	if id := r.Header.Get("X-Actor-ID"); id != "" {
		return id
	}
	return "system"
}
