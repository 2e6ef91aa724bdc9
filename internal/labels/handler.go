package labels

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/partline/partline/internal/platform/httpx"
)

// Handler wires HTTP endpoints for print jobs.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs labels handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers label routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/jobs/{token}", h.handleStatus)
	r.Get("/files/{token}", h.handleDownload)
}

type jobResponse struct {
	Token        string    `json:"token"`
	Status       string    `json:"status"`
	FilePath     string    `json:"file_path,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	job, err := h.service.Get(r.Context(), token)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, jobResponse{
		Token:        job.Token,
		Status:       string(job.Status),
		FilePath:     job.FilePath,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	path, err := h.service.FilePath(r.Context(), token)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="labels-`+token+`.pdf"`)
	http.ServeFile(w, r, path)
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrJobNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNotReady):
		httpx.Problem(w, http.StatusConflict, "Not Ready", err.Error())
	case errors.Is(err, ErrNoLines):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("labels request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
