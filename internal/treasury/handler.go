package treasury

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/caoba-erp/caoba-erp/internal/platform/httpx"
	"github.com/caoba-erp/caoba-erp/internal/shared"
)

var validate = validator.New()

// Handler manages treasury endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers treasury routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/drawers", h.listDrawers)
	r.Post("/drawers", h.createDrawer)
	r.Get("/drawers/{id}", h.getDrawer)
	r.Get("/drawers/{id}/session", h.currentSession)
	r.Get("/drawers/{id}/sessions", h.sessionHistory)
	r.Post("/drawers/{id}/open", h.openDrawer)
	r.Post("/drawers/{id}/close", h.closeDrawer)
	r.Post("/drawers/{id}/recompute", h.recomputeDrawer)
	r.Get("/bank-accounts", h.listBankAccounts)
	r.Post("/bank-accounts", h.createBankAccount)
}

func (h *Handler) createDrawer(w http.ResponseWriter, r *http.Request) {
	var req CreateDrawerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	opening := decimal.Zero
	if req.OpeningBalance != "" {
		var err error
		opening, err = decimal.NewFromString(req.OpeningBalance)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "opening_balance is not a valid amount")
			return
		}
	}
	drawer, err := h.service.CreateDrawer(r.Context(), Drawer{
		Name:            req.Name,
		Kind:            DrawerKind(req.Kind),
		LinkedAccountID: req.LinkedAccountID,
		OpeningBalance:  opening,
	})
	if err != nil {
		h.logger.Error("create drawer failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, drawer)
}

func (h *Handler) listDrawers(w http.ResponseWriter, r *http.Request) {
	drawers, err := h.service.ListDrawers(r.Context())
	if err != nil {
		h.logger.Error("list drawers failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, drawers)
}

func (h *Handler) getDrawer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drawer id")
		return
	}
	drawer, err := h.service.GetDrawer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, drawer)
}

func (h *Handler) openDrawer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drawer id")
		return
	}
	var req OpenDrawerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.OpeningAmount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "opening_amount is not a valid amount")
		return
	}
	apertura, err := h.service.Open(r.Context(), OpenDrawerInput{
		DrawerID:      id,
		OpeningAmount: amount,
		ActorID:       actorID(r),
		Notes:         req.Notes,
	})
	if err != nil {
		h.logger.Error("open drawer failed", slog.Any("error", err), slog.Int64("drawer_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, apertura)
}

func (h *Handler) closeDrawer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drawer id")
		return
	}
	var req CloseDrawerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	counted, err := decimal.NewFromString(req.CountedAmount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "counted_amount is not a valid amount")
		return
	}
	income := parseAmountOrZero(req.IncomeOfDay)
	expense := parseAmountOrZero(req.ExpenseOfDay)
	cierre, err := h.service.Close(r.Context(), CloseDrawerInput{
		DrawerID:      id,
		CountedAmount: counted,
		IncomeOfDay:   income,
		ExpenseOfDay:  expense,
		ActorID:       actorID(r),
		Notes:         req.Notes,
	})
	if err != nil {
		h.logger.Error("close drawer failed", slog.Any("error", err), slog.Int64("drawer_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cierre)
}

func (h *Handler) recomputeDrawer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drawer id")
		return
	}
	balance, err := h.service.RecomputeDrawerBalance(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"drawer_id": id,
		"balance":   balance,
		"formatted": shared.FormatDOP(balance),
	})
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drawer id")
		return
	}
	open, ap, ci, err := h.service.CurrentSession(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp := SessionResponse{DrawerID: id, Open: open, Apertura: ap, Cierre: ci}
	if ap != nil {
		resp.OpenedAt = &ap.OpenedAt
	}
	if ci != nil {
		resp.ClosedAt = &ci.ClosedAt
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) sessionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid drawer id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	aps, cis, err := h.service.SessionHistory(r.Context(), id, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"aperturas": aps, "cierres": cis})
}

func (h *Handler) createBankAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateBankAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	account, err := h.service.CreateBankAccount(r.Context(), BankAccount{
		Name:            req.Name,
		Bank:            req.Bank,
		Number:          req.Number,
		LinkedAccountID: req.LinkedAccountID,
	})
	if err != nil {
		h.logger.Error("create bank account failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) listBankAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListBankAccounts(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseAmountOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// actorID extracts the opaque actor identifier attached by the upstream
// auth layer.
func actorID(r *http.Request) string {
	if id := r.Header.Get("X-Actor-ID"); id != "" {
		return id
	}
	return "system"
}
