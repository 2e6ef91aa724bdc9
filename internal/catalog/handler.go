package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/partline/partline/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the part catalog.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/parts", h.handleList)
	r.Get("/parts/search", h.handleSearch)
	r.Get("/parts/{id}", h.handleGet)
	r.Post("/parts", h.handleCreate)
	r.Put("/parts/{id}", h.handleUpdate)
}

type partPayload struct {
	PartNumber     string `json:"part_number" validate:"required,max=255"`
	PartName       string `json:"part_name" validate:"max=255"`
	Model          string `json:"model" validate:"max=255"`
	Variant        string `json:"variant" validate:"max=255"`
	Classification string `json:"classification" validate:"omitempty,oneof=draft small medium big"`
	Homeline       string `json:"homeline" validate:"max=255"`
	Address        string `json:"address" validate:"max=255"`
}

type partResponse struct {
	ID             int64  `json:"id"`
	PartNumber     string `json:"part_number"`
	PartName       string `json:"part_name"`
	Model          string `json:"model,omitempty"`
	Variant        string `json:"variant,omitempty"`
	Classification string `json:"classification"`
	Stock          int    `json:"stock"`
	Homeline       string `json:"homeline,omitempty"`
	Address        string `json:"address,omitempty"`
}

func toPartResponse(p Part) partResponse {
	return partResponse{
		ID:             p.ID,
		PartNumber:     p.PartNumber,
		PartName:       p.PartName,
		Model:          p.Model,
		Variant:        p.Variant,
		Classification: string(p.Classification),
		Stock:          p.Stock,
		Homeline:       p.Homeline,
		Address:        p.Address,
	}
}

func (h *Handler) decodePayload(r *http.Request) (PartInput, error) {
	var payload partPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		return PartInput{}, err
	}
	if err := h.validate.Struct(payload); err != nil {
		return PartInput{}, err
	}
	return PartInput{
		PartNumber:     payload.PartNumber,
		PartName:       payload.PartName,
		Model:          payload.Model,
		Variant:        payload.Variant,
		Classification: Classification(payload.Classification),
		Homeline:       payload.Homeline,
		Address:        payload.Address,
	}, nil
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	input, err := h.decodePayload(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	part, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPartResponse(part))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid part id")
		return
	}
	input, err := h.decodePayload(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	part, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartResponse(part))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid part id")
		return
	}
	part, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPartResponse(part))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	parts, pagination, err := h.service.List(r.Context(), ListFilter{Page: page, PerPage: perPage})
	if err != nil {
		h.logger.Error("list parts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]partResponse, 0, len(parts))
	for _, p := range parts {
		items = append(items, toPartResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"page":        pagination.Page,
		"per_page":    pagination.PerPage,
		"total":       pagination.Total,
		"total_pages": pagination.TotalPages,
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	parts, err := h.service.Search(r.Context(), query, limit)
	if err != nil {
		h.logger.Error("search parts", slog.Any("error", err), slog.String("query", query))
		httpx.RespondError(w, err)
		return
	}
	items := make([]partResponse, 0, len(parts))
	for _, p := range parts {
		items = append(items, toPartResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPartNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicatePartNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidClassification):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("catalog request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
