package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/orbitshop/orbitshop/internal/platform/httpx"
)

// AdjustRequest is a staff-entered stock correction.
type AdjustRequest struct {
	ProductID  int64      `json:"product_id" validate:"required,gt=0"`
	Delta      int        `json:"quantity_change" validate:"required"`
	ChangeType ChangeType `json:"change_type" validate:"required,oneof=adjustment restock"`
	ActorID    int64      `json:"actor_id" validate:"required,gt=0"`
	Note       string     `json:"note" validate:"omitempty,max=500"`
}

// Handler manages stock HTTP endpoints.
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
	r.Post("/adjust", h.adjust)
	r.Get("/{productID}/history", h.history)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	history, err := h.service.Adjust(r.Context(), AdjustInput{
		ProductID:     req.ProductID,
		Delta:         req.Delta,
		ChangeType:    req.ChangeType,
		ReferenceType: "manual",
		ActorID:       req.ActorID,
		Note:          req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, history)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "productID must be an integer")
		return
	}

	filter := HistoryFilter{ProductID: productID, Limit: 100}
	q := r.URL.Query()
	if v := q.Get("change_type"); v != "" {
		filter.ChangeType = ChangeType(v)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 1000 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be between 0 and 1000")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "offset must not be negative")
			return
		}
		filter.Offset = n
	}

	history, err := h.service.ListHistory(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var insufficientErr *InsufficientStockError
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &insufficientErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", insufficientErr.Error())
	case errors.Is(err, ErrInvalidDelta):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("stock request failed", "error", err)
		httpx.RespondError(w, err)
	}
}
