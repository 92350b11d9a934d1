package quota

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/flashnotes/flashnotes/internal/api"
	"github.com/flashnotes/flashnotes/internal/users"
)

// IdentityFunc resolves the authenticated user id from a request context.
type IdentityFunc func(ctx context.Context) (uuid.UUID, bool)

// UserLookup loads the account behind an authenticated request. A nil user
// with a nil error means the account no longer exists.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

type Handler struct {
	ledger   *Ledger
	identity IdentityFunc
	users    UserLookup
}

func NewHandler(ledger *Ledger, identity IdentityFunc, lookup UserLookup) *Handler {
	return &Handler{ledger: ledger, identity: identity, users: lookup}
}

// currentUser resolves the active user for the request or writes the error
// response. Deleted and inactive accounts never reach the ledger.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := h.identity(r.Context())
	if !ok {
		api.HandleError(w, api.ErrForbidden)
		return uuid.Nil, false
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		slog.Error("quota: loading current user", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return uuid.Nil, false
	}
	if user == nil {
		api.HandleError(w, api.ErrUserNotFound)
		return uuid.Nil, false
	}
	if !user.IsActive {
		api.HandleError(w, api.ErrInactiveUser)
		return uuid.Nil, false
	}
	return user.ID, true
}

// GetStatus serves GET /users/me/ai-usage-quota.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	status, err := h.ledger.Status(r.Context(), userID)
	if err != nil {
		h.storageFailed(w, err, userID)
		return
	}

	api.JSON(w, http.StatusOK, status)
}

// Gate admits the request only if the user still has AI quota left in the
// current window. Each admitted request consumes one unit.
func (h *Handler) Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.currentUser(w, r)
		if !ok {
			return
		}

		allowed, err := h.ledger.CheckAndIncrement(r.Context(), userID)
		if err != nil {
			h.storageFailed(w, err, userID)
			return
		}
		if !allowed {
			api.HandleError(w, api.ErrQuotaExceeded)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Consume serves POST /ai/usage behind Gate and reports the status after
// the admission.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	h.GetStatus(w, r)
}

func (h *Handler) storageFailed(w http.ResponseWriter, err error, userID uuid.UUID) {
	slog.Error("quota: storage failure", "error", err, "user_id", userID)
	if errors.Is(err, ErrStorageUnavailable) {
		api.HandleError(w, api.ErrServiceUnavailable)
		return
	}
	api.HandleError(w, api.ErrInternalServer)
}
