package issuance

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/partline/partline/internal/platform/httpx"
	"github.com/partline/partline/internal/shared"
)

// Handler wires HTTP endpoints for the issuance recorder.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs issuance handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers issuance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/stage", h.handleStage)
	r.Post("/commit", h.handleCommit)
}

type stagePayload struct {
	Code     string `json:"code" validate:"required"`
	Quantity int    `json:"quantity" validate:"omitempty,gt=0"`
}

type commitEntryPayload struct {
	Code     string `json:"code" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type commitPayload struct {
	IssuedAt string               `json:"issued_at" validate:"omitempty"`
	Entries  []commitEntryPayload `json:"entries" validate:"required,min=1,dive"`
}

type stagedResponse struct {
	LineID        int64  `json:"line_id"`
	Code          string `json:"code"`
	PartID        int64  `json:"part_id"`
	PartNumber    string `json:"part_number"`
	PartName      string `json:"part_name,omitempty"`
	ReceiptNumber string `json:"receipt_number"`
	Available     int    `json:"available"`
	ProposedQty   int    `json:"proposed_qty"`
	Forced        bool   `json:"forced"`
	RequestID     int64  `json:"request_id,omitempty"`
	RequestLineID int64  `json:"request_line_id,omitempty"`
	Outstanding   int    `json:"outstanding,omitempty"`
}

type issuanceResponse struct {
	ID            int64  `json:"id"`
	ReceiptLineID int64  `json:"receipt_line_id"`
	RequestID     *int64 `json:"request_id,omitempty"`
	RequestLineID *int64 `json:"request_line_id,omitempty"`
	Forced        bool   `json:"forced"`
	Quantity      int    `json:"quantity"`
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
	staged, err := h.service.Stage(r.Context(), payload.Code, payload.Quantity)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stagedResponse{
		LineID:        staged.LineID,
		Code:          staged.Code,
		PartID:        staged.PartID,
		PartNumber:    staged.PartNumber,
		PartName:      staged.PartName,
		ReceiptNumber: staged.ReceiptNumber,
		Available:     staged.Available,
		ProposedQty:   staged.ProposedQty,
		Forced:        staged.Forced,
		RequestID:     staged.RequestID,
		RequestLineID: staged.RequestLineID,
		Outstanding:   staged.Outstanding,
	})
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.ErrActorRequired.Error())
		return
	}
	var payload commitPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var issuedAt time.Time
	if payload.IssuedAt != "" {
		at, err := time.Parse(time.RFC3339, payload.IssuedAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "issued_at must be RFC3339")
			return
		}
		issuedAt = at
	}
	entries := make([]CommitEntry, 0, len(payload.Entries))
	for _, entry := range payload.Entries {
		entries = append(entries, CommitEntry{Code: entry.Code, Quantity: entry.Quantity})
	}
	issued, err := h.service.CommitBatch(r.Context(), entries, actorID, issuedAt)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	out := make([]issuanceResponse, 0, len(issued))
	for _, iss := range issued {
		out = append(out, issuanceResponse{
			ID:            iss.ID,
			ReceiptLineID: iss.ReceiptLineID,
			RequestID:     iss.RequestID,
			RequestLineID: iss.RequestLineID,
			Forced:        iss.Forced,
			Quantity:      iss.Quantity,
		})
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"issuances": out})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrExhausted), errors.Is(err, ErrOverAvailable):
		httpx.Problem(w, http.StatusConflict, "Exhausted", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrEmptyBatch):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("issuance request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
