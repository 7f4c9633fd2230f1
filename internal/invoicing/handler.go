package invoicing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/caoba-erp/caoba-erp/internal/platform/httpx"
)

var validate = validator.New()

// Handler manages invoicing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoicing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/stats", h.stats)
	r.Get("/{id}", h.get)
	r.Get("/{id}/payments", h.listPayments)
	r.Post("/{id}/payments", h.pay)
	r.Get("/{id}/receivable", h.receivable)
	r.Post("/{id}/void", h.void)
	r.Post("/{id}/reactivate", h.reactivate)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lines := make([]InvoiceLine, 0, len(req.Lines))
	for _, lr := range req.Lines {
		qty, err := decimal.NewFromString(lr.Quantity)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "line quantity is not a valid number")
			return
		}
		price, err := decimal.NewFromString(lr.UnitPrice)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "line unit price is not a valid amount")
			return
		}
		lines = append(lines, InvoiceLine{Description: lr.Description, Quantity: qty, UnitPrice: price})
	}
	discount := decimal.Zero
	if req.Discount != "" {
		var err error
		discount, err = decimal.NewFromString(req.Discount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "discount is not a valid amount")
			return
		}
	}
	input := CreateInvoiceInput{
		CustomerID:    req.CustomerID,
		Lines:         lines,
		Discount:      discount,
		PayNow:        req.PayNow,
		Method:        req.Method,
		BankAccountID: req.BankAccountID,
		ActorID:       actorID(r),
	}
	if req.IssuedAt != nil {
		input.IssuedAt = *req.IssuedAt
	}
	inv, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		h.logger.Error("create invoice failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req PayInvoiceRequest
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
	discount := decimal.Zero
	if req.Discount != "" {
		discount, err = decimal.NewFromString(req.Discount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "discount is not a valid amount")
			return
		}
	}
	inv, err := h.service.PayInvoice(r.Context(), PayInvoiceInput{
		InvoiceID:     id,
		Amount:        amount,
		Discount:      discount,
		Method:        req.Method,
		Reference:     req.Reference,
		BankAccountID: req.BankAccountID,
		ActorID:       actorID(r),
	})
	if err != nil {
		h.logger.Error("pay invoice failed", slog.Any("error", err), slog.Int64("invoice_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.VoidInvoice(r.Context(), id, actorID(r))
	if err != nil {
		h.logger.Error("void invoice failed", slog.Any("error", err), slog.Int64("invoice_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.ReactivateInvoice(r.Context(), id, actorID(r))
	if err != nil {
		h.logger.Error("reactivate invoice failed", slog.Any("error", err), slog.Int64("invoice_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var customerID int64
	if s := q.Get("customer_id"); s != "" {
		customerID, _ = strconv.ParseInt(s, 10, 64)
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	invoices, err := h.service.ListInvoices(r.Context(), ListInvoicesRequest{
		Status:     InvoiceStatus(q.Get("status")),
		CustomerID: customerID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.logger.Error("list invoices failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) receivable(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rcv, err := h.service.GetReceivable(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if rcv == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "invoice has no receivable")
		return
	}
	httpx.JSON(w, http.StatusOK, rcv)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.CollectStats(r.Context())
	if err != nil {
		h.logger.Error("invoice stats failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func actorID(r *http.Request) string {
	if id := r.Header.Get("X-Actor-ID"); id != "" {
		return id
	}
	return "system"
}
