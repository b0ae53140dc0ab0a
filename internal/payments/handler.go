package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/orbitshop/orbitshop/internal/platform/httpx"
	"github.com/orbitshop/orbitshop/internal/slipverify"
)

// Handler manages payment HTTP endpoints.
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
	r.Post("/slip", h.uploadSlip)
	r.Post("/manual", h.recordManual)
	r.Get("/{id}", h.show)
	r.Post("/{id}/confirm", h.confirm)
	r.Get("/order/{orderID}", h.showByOrder)
}

func (h *Handler) uploadSlip(w http.ResponseWriter, r *http.Request) {
	var req UploadSlipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	payment, err := h.service.UploadSlip(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) recordManual(w http.ResponseWriter, r *http.Request) {
	var req ManualPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	payment, err := h.service.RecordManual(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	payment, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) showByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "orderID must be an integer")
		return
	}
	payment, err := h.service.GetByOrder(r.Context(), orderID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}

	actorID, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	payment, err := h.service.Confirm(r.Context(), id, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotVerified):
		httpx.Problem(w, http.StatusConflict, "Not Verified", err.Error())
	case errors.Is(err, slipverify.ErrUnavailable):
		httpx.Problem(w, http.StatusBadGateway, "Upstream Unavailable", err.Error())
	default:
		h.logger.Error("payment request failed", "error", err)
		httpx.RespondError(w, err)
	}
}
