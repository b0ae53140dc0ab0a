package carts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/orbitshop/orbitshop/internal/platform/httpx"
	"github.com/orbitshop/orbitshop/internal/vouchers"
)

// ApplyVoucherRequest attaches a voucher code to a cart.
type ApplyVoucherRequest struct {
	Code string `json:"code" validate:"required,max=40"`
}

// Handler manages cart HTTP endpoints.
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
	r.Get("/{id}", h.show)
	r.Post("/{id}/voucher", h.applyVoucher)
	r.Delete("/{id}/voucher", h.removeVoucher)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	cart, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cart)
}

func (h *Handler) applyVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	var req ApplyVoucherRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	cart, err := h.service.ApplyVoucher(r.Context(), id, req.Code)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cart)
}

func (h *Handler) removeVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	cart, err := h.service.RemoveVoucher(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cart)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, vouchers.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEmpty):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, vouchers.ErrInactive),
		errors.Is(err, vouchers.ErrOutsideWindow),
		errors.Is(err, vouchers.ErrMinimumNotMet),
		errors.Is(err, vouchers.ErrUsageExhausted),
		errors.Is(err, vouchers.ErrInvalidVoucher):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Voucher Rejected", err.Error())
	default:
		h.logger.Error("cart request failed", "error", err)
		httpx.RespondError(w, err)
	}
}
