package ledger

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

// Handler manages ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/movements", func(r chi.Router) {
		r.Get("/", h.listMovements)
		r.Post("/", h.createMovement)
		r.Get("/{id}", h.getMovement)
		r.Put("/{id}", h.updateMovement)
		r.Delete("/{id}", h.deleteMovement)
	})
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Get("/{id}", h.getAccount)
		r.Post("/{id}/recompute", h.recomputeAccount)
		r.Put("/{id}/opening-balance", h.setOpeningBalance)
	})
	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.listCategories)
		r.Post("/", h.createCategory)
	})
	r.Post("/recompute", h.recomputeAll)
}

func (h *Handler) createMovement(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}
	movement, err := h.service.CreateMovement(r.Context(), input)
	if err != nil {
		h.logger.Error("create movement failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) updateMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	input, ok := h.decodeMovement(w, r)
	if !ok {
		return
	}
	movement, err := h.service.UpdateMovement(r.Context(), id, input)
	if err != nil {
		h.logger.Error("update movement failed", slog.Any("error", err), slog.Int64("movement_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movement)
}

func (h *Handler) deleteMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteMovement(r.Context(), id, actorID(r)); err != nil {
		h.logger.Error("delete movement failed", slog.Any("error", err), slog.Int64("movement_id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	movement, err := h.service.GetMovement(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movement)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var drawerID int64
	if s := q.Get("drawer_id"); s != "" {
		drawerID, _ = strconv.ParseInt(s, 10, 64)
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	req := ListMovementsRequest{
		Kind:     MovementKind(q.Get("kind")),
		DrawerID: drawerID,
		Limit:    limit,
		Offset:   offset,
	}
	if s := q.Get("from"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			req.From = t
		}
	}
	if s := q.Get("to"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			req.To = t
		}
	}
	movements, err := h.service.ListMovements(r.Context(), req)
	if err != nil {
		h.logger.Error("list movements failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
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
	account, err := h.service.CreateAccount(r.Context(), Account{
		Code:           req.Code,
		Name:           req.Name,
		CategoryID:     req.CategoryID,
		OpeningBalance: opening,
	})
	if err != nil {
		h.logger.Error("create account failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.logger.Error("list accounts failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) recomputeAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	balance, err := h.service.RecomputeBalance(r.Context(), id)
	if err != nil {
		h.logger.Error("recompute account failed", slog.Any("error", err), slog.Int64("account_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"account_id": id, "current_balance": balance})
}

func (h *Handler) setOpeningBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req SetOpeningBalanceRequest
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
	account, err := h.service.SetOpeningBalance(r.Context(), id, amount, actorID(r))
	if err != nil {
		h.logger.Error("set opening balance failed", slog.Any("error", err), slog.Int64("account_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	category, err := h.service.CreateCategory(r.Context(), Category{Name: req.Name, Kind: CategoryKind(req.Kind)})
	if err != nil {
		h.logger.Error("create category failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) recomputeAll(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.RecomputeAll(r.Context())
	if err != nil {
		h.logger.Error("recompute all failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// decodeMovement parses and validates a movement request body.
func (h *Handler) decodeMovement(w http.ResponseWriter, r *http.Request) (CreateMovementInput, bool) {
	var req CreateMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return CreateMovementInput{}, false
	}
	if err := validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return CreateMovementInput{}, false
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount is not a valid amount")
		return CreateMovementInput{}, false
	}
	input := CreateMovementInput{
		Kind:          MovementKind(req.Kind),
		Amount:        amount,
		CategoryID:    req.CategoryID,
		Method:        Method(req.Method),
		AccountID:     req.AccountID,
		DrawerID:      req.DrawerID,
		BankAccountID: req.BankAccountID,
		PayableID:     req.PayableID,
		Description:   req.Description,
		ActorID:       actorID(r),
	}
	if req.OccurredAt != nil {
		input.OccurredAt = *req.OccurredAt
	}
	return input, true
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
