package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/orbitshop/orbitshop/internal/carts"
	"github.com/orbitshop/orbitshop/internal/catalog/products"
	"github.com/orbitshop/orbitshop/internal/platform/httpx"
	"github.com/orbitshop/orbitshop/internal/stock"
	"github.com/orbitshop/orbitshop/internal/vouchers"
)

// Handler manages order HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/checkout", h.checkout)
	r.Post("/direct", h.createDirect)
	r.Get("/{id}", h.show)
	r.Get("/number/{number}", h.showByNumber)
	r.Patch("/{id}/status", h.updateStatus)
	r.Post("/{id}/cancel", h.cancel)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	order, err := h.service.CreateFromCart(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) createDirect(w http.ResponseWriter, r *http.Request) {
	var req DirectOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	order, err := h.service.CreateDirect(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListOrdersRequest{Limit: 50}
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		status := OrderStatus(v)
		req.Status = &status
	}
	if v := q.Get("payment_status"); v != "" {
		status := PaymentStatus(v)
		req.PaymentStatus = &status
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "user_id must be an integer")
			return
		}
		req.UserID = &id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 1000 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be between 0 and 1000")
			return
		}
		req.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "offset must not be negative")
			return
		}
		req.Offset = n
	}

	orders, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  total,
		"limit":  req.Limit,
		"offset": req.Offset,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) showByNumber(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	var req UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	order, err := h.service.AdvanceStatus(r.Context(), id, actorID(r), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	var req CancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	order, err := h.service.Cancel(r.Context(), id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// actorID reads the acting staff user from the request header. The shop
// front does not authenticate; back-office callers identify themselves.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficientErr *stock.InsufficientStockError
	var statusErr *InvalidStatusError

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, carts.ErrNotFound),
		errors.Is(err, products.ErrNotFound),
		errors.Is(err, vouchers.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &insufficientErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficientErr.Error())
	case errors.Is(err, vouchers.ErrInactive),
		errors.Is(err, vouchers.ErrOutsideWindow),
		errors.Is(err, vouchers.ErrMinimumNotMet),
		errors.Is(err, vouchers.ErrUsageExhausted),
		errors.Is(err, vouchers.ErrInvalidVoucher):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Voucher Rejected", err.Error())
	case errors.Is(err, ErrEmptyItems),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, carts.ErrEmpty):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &statusErr):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", statusErr.Error())
	case errors.Is(err, ErrCannotCancel):
		httpx.Problem(w, http.StatusConflict, "Cannot Cancel", err.Error())
	default:
		h.logger.Error("order request failed", "error", err)
		httpx.RespondError(w, err)
	}
}
