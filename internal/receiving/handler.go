package receiving

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

// Handler wires HTTP endpoints for part intake.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs receiving handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers receiving routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/labels", h.handleScheduleLabels)
}

type linePayload struct {
	PartID   int64 `json:"part_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

type createPayload struct {
	ReceivedAt string        `json:"received_at" validate:"omitempty"`
	Lines      []linePayload `json:"lines" validate:"required,min=1,dive"`
}

type lineResponse struct {
	ID         int64  `json:"id"`
	PartID     int64  `json:"part_id"`
	PartNumber string `json:"part_number"`
	PartName   string `json:"part_name,omitempty"`
	Quantity   int    `json:"quantity"`
	Available  int    `json:"available"`
	Code       string `json:"code"`
}

type receiptResponse struct {
	ID            int64          `json:"id"`
	ReceiptNumber string         `json:"receipt_number"`
	ReceivedBy    int64          `json:"received_by"`
	ReceivedAt    time.Time      `json:"received_at"`
	TotalQuantity int            `json:"total_quantity"`
	UniqueParts   int            `json:"unique_parts,omitempty"`
	Lines         []lineResponse `json:"lines,omitempty"`
}

func toReceiptResponse(receipt Receipt) receiptResponse {
	resp := receiptResponse{
		ID:            receipt.ID,
		ReceiptNumber: receipt.ReceiptNumber,
		ReceivedBy:    receipt.ReceivedBy,
		ReceivedAt:    receipt.ReceivedAt,
		TotalQuantity: receipt.TotalQuantity,
		UniqueParts:   receipt.UniqueParts,
	}
	for _, line := range receipt.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ID:         line.ID,
			PartID:     line.PartID,
			PartNumber: line.PartNumber,
			PartName:   line.PartName,
			Quantity:   line.Quantity,
			Available:  line.Available,
			Code:       line.Code,
		})
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.ErrActorRequired.Error())
		return
	}
	var payload createPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateReceiptInput{ReceivedBy: actorID}
	if payload.ReceivedAt != "" {
		at, err := time.Parse(time.RFC3339, payload.ReceivedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "received_at must be RFC3339")
			return
		}
		input.ReceivedAt = at
	}
	for _, line := range payload.Lines {
		input.Lines = append(input.Lines, LineInput{PartID: line.PartID, Quantity: line.Quantity})
	}
	receipt, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReceiptResponse(receipt))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid receipt id")
		return
	}
	receipt, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReceiptResponse(receipt))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	receipts, pagination, err := h.service.List(r.Context(), ListFilter{Page: page, PerPage: perPage})
	if err != nil {
		h.logger.Error("list receipts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items := make([]receiptResponse, 0, len(receipts))
	for _, receipt := range receipts {
		items = append(items, toReceiptResponse(receipt))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"page":        pagination.Page,
		"per_page":    pagination.PerPage,
		"total":       pagination.Total,
		"total_pages": pagination.TotalPages,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.ErrActorRequired.Error())
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid receipt id")
		return
	}
	if err := h.service.Delete(r.Context(), id, actorID); err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleScheduleLabels(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.ErrActorRequired.Error())
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid receipt id")
		return
	}
	token, err := h.service.ScheduleLabels(r.Context(), id, actorID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"job_token": token})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrReceiptNotFound), errors.Is(err, ErrUnknownPart):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrEmptyReceipt), errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("receiving request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
