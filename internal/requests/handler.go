package requests

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/partline/partline/internal/platform/httpx"
	"github.com/partline/partline/internal/shared"
)

// Handler wires HTTP endpoints for the request ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs requests handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleSubmit)
	r.Post("/stage", h.handleStage)
	r.Get("/destinations", h.handleDestinations)
	r.Get("/{id}", h.handleGet)
}

type stagePayload struct {
	PartNumber string         `json:"part_number" validate:"required"`
	Basket     map[string]int `json:"basket"`
}

type submitPayload struct {
	Destination string         `json:"destination" validate:"required"`
	RequestedAt string         `json:"requested_at" validate:"omitempty"`
	Basket      map[string]int `json:"basket" validate:"required"`
}

type requestLineResponse struct {
	ID         int64  `json:"id"`
	PartID     int64  `json:"part_id"`
	PartNumber string `json:"part_number"`
	PartName   string `json:"part_name,omitempty"`
	Quantity   int    `json:"quantity"`
	IssuedQty  int    `json:"issued_qty"`
	Fulfilled  bool   `json:"fulfilled"`
}

type requestResponse struct {
	ID             int64                 `json:"id"`
	Destination    string                `json:"destination"`
	RequestedBy    int64                 `json:"requested_by"`
	RequestedAt    time.Time             `json:"requested_at"`
	RequestedTotal int                   `json:"requested_total"`
	IssuedTotal    int                   `json:"issued_total"`
	Status         string                `json:"status"`
	Lines          []requestLineResponse `json:"lines,omitempty"`
}

func toRequestResponse(req Request) requestResponse {
	resp := requestResponse{
		ID:             req.ID,
		Destination:    req.Destination,
		RequestedBy:    req.RequestedBy,
		RequestedAt:    req.RequestedAt,
		RequestedTotal: req.RequestedTotal,
		IssuedTotal:    req.IssuedTotal,
		Status:         string(req.Status),
	}
	for _, line := range req.Lines {
		resp.Lines = append(resp.Lines, requestLineResponse{
			ID:         line.ID,
			PartID:     line.PartID,
			PartNumber: line.PartNumber,
			PartName:   line.PartName,
			Quantity:   line.Quantity,
			IssuedQty:  line.IssuedQty,
			Fulfilled:  line.Fulfilled,
		})
	}
	return resp
}

func (h *Handler) handleStage(w http.ResponseWriter, r *http.Request) {
	var payload stagePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	basket, err := h.service.Stage(r.Context(), Basket(payload.Basket), payload.PartNumber)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"basket":     basket,
		"item_count": basket.ItemCount(),
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.ErrActorRequired.Error())
		return
	}
	var payload submitPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := SubmitInput{
		Destination: payload.Destination,
		RequestedBy: actorID,
		Basket:      Basket(payload.Basket),
	}
	if payload.RequestedAt != "" {
		at, err := time.Parse(time.RFC3339, payload.RequestedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "requested_at must be RFC3339")
			return
		}
		input.RequestedAt = at
	}
	request, err := h.service.Submit(r.Context(), input)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRequestResponse(request))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request id")
		return
	}
	request, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(request))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := ParseStatusFilter(q.Get("status"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	items, pagination, err := h.service.List(r.Context(), ListFilter{Status: status, Page: page, PerPage: perPage})
	if err != nil {
		h.logger.Error("list requests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(items))
	for _, req := range items {
		out = append(out, toRequestResponse(req))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":       out,
		"page":        pagination.Page,
		"per_page":    pagination.PerPage,
		"total":       pagination.Total,
		"total_pages": pagination.TotalPages,
	})
}

func (h *Handler) handleDestinations(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"destinations": Destinations})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRequestNotFound), errors.Is(err, ErrUnknownPart):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEmptyBasket), errors.Is(err, ErrInvalidDestination), errors.Is(err, ErrUnknownStatusFilter):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("requests request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
