package status

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/partline/partline/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the status aggregator.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs status handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers status routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/board", h.handleBoard)
	r.Get("/parts/{id}", h.handlePartTotals)
}

type boardLineResponse struct {
	RequestID   int64     `json:"request_id"`
	LineID      int64     `json:"line_id"`
	Destination string    `json:"destination"`
	PartID      int64     `json:"part_id"`
	PartNumber  string    `json:"part_number"`
	PartName    string    `json:"part_name,omitempty"`
	Quantity    int       `json:"quantity"`
	IssuedQty   int       `json:"issued_qty"`
	RequestedAt time.Time `json:"requested_at"`
	Flag        string    `json:"flag"`
}

func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.Board(r.Context())
	if err != nil {
		h.logger.Error("status board", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]boardLineResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, boardLineResponse{
			RequestID:   line.RequestID,
			LineID:      line.LineID,
			Destination: line.Destination,
			PartID:      line.PartID,
			PartNumber:  line.PartNumber,
			PartName:    line.PartName,
			Quantity:    line.Quantity,
			IssuedQty:   line.IssuedQty,
			RequestedAt: line.RequestedAt,
			Flag:        string(line.Flag),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lines": out})
}

func (h *Handler) handlePartTotals(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid part id")
		return
	}
	totals, err := h.service.PartTotals(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPartNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("status part totals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"part_id":      totals.PartID,
		"part_number":  totals.PartNumber,
		"part_name":    totals.PartName,
		"stock":        totals.Stock,
		"issued_total": totals.IssuedTotal,
	})
}
