package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/partline/partline/internal/platform/httpx"
	"github.com/partline/partline/internal/shared"
)

// SubscriptionPort is the subset of the repository the handler needs.
type SubscriptionPort interface {
	Upsert(ctx context.Context, sub Subscription) (Subscription, error)
	DeleteByEndpoint(ctx context.Context, userID int64, endpoint string) error
}

// Handler wires HTTP endpoints for push subscriptions.
type Handler struct {
	logger   *slog.Logger
	repo     SubscriptionPort
	validate *validator.Validate
	vapidPub string
}

// NewHandler constructs notify handler. The VAPID public key is served so
// the browser can subscribe.
func NewHandler(logger *slog.Logger, repo SubscriptionPort, vapidPub string) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New(), vapidPub: vapidPub}
}

// MountRoutes registers push routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/key", h.handleKey)
	r.Post("/subscribe", h.handleSubscribe)
	r.Post("/unsubscribe", h.handleUnsubscribe)
}

type subscribePayload struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	P256dh   string `json:"p256dh" validate:"required"`
	Auth     string `json:"auth" validate:"required"`
}

type unsubscribePayload struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}

func (h *Handler) handleKey(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"vapid_public_key": h.vapidPub})
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.ErrActorRequired.Error())
		return
	}
	var payload subscribePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", ErrInvalidSubscription.Error())
		return
	}
	sub, err := h.repo.Upsert(r.Context(), Subscription{
		UserID:   actorID,
		Endpoint: payload.Endpoint,
		P256dh:   payload.P256dh,
		Auth:     payload.Auth,
	})
	if err != nil {
		h.logger.Error("push subscribe", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": sub.ID})
}

func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	actorID := shared.ActorFromContext(r.Context())
	if actorID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.ErrActorRequired.Error())
		return
	}
	var payload unsubscribePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.repo.DeleteByEndpoint(r.Context(), actorID, payload.Endpoint); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("push unsubscribe", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.NoContent(w)
}
