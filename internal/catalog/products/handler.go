package products

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/orbitshop/orbitshop/internal/platform/httpx"
)

// Handler manages catalog HTTP endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: 50}
	q := r.URL.Query()
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "category_id must be an integer")
			return
		}
		filter.CategoryID = &id
	}
	if v := q.Get("status"); v != "" {
		filter.Status = v
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

	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("product list failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"products": items,
		"total":    total,
		"limit":    filter.Limit,
		"offset":   filter.Offset,
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be an integer")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("product get failed", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}
