package users

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flashnotes/flashnotes/internal/api"
)

// IdentityFunc resolves the authenticated user id from a request context.
type IdentityFunc func(ctx context.Context) (uuid.UUID, bool)

// PasswordHasher turns a plain password into a storable hash.
type PasswordHasher func(password string) (string, error)

type Handler struct {
	svc      *Service
	identity IdentityFunc
	hash     PasswordHasher
	validate *validator.Validate
}

func NewHandler(svc *Service, identity IdentityFunc, hash PasswordHasher) *Handler {
	return &Handler{
		svc:      svc,
		identity: identity,
		hash:     hash,
		validate: validator.New(),
	}
}

type UpdateMeRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	Password *string `json:"password" validate:"omitempty,min=8,max=40"`
}

// currentUser loads the active user behind the request or writes the error
// response and returns nil.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) *User {
	id, ok := h.identity(r.Context())
	if !ok {
		api.HandleError(w, api.ErrForbidden)
		return nil
	}

	user, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		slog.Error("getting current user", "error", err, "user_id", id)
		api.HandleError(w, api.ErrInternalServer)
		return nil
	}
	if user == nil {
		api.HandleError(w, api.ErrUserNotFound)
		return nil
	}
	if !user.IsActive {
		api.HandleError(w, api.ErrInactiveUser)
		return nil
	}
	return user
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}
	api.JSON(w, http.StatusOK, user.Public())
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req UpdateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	var err error
	if req.FullName != nil {
		if user, err = h.svc.UpdateProfile(r.Context(), user.ID, *req.FullName); err != nil {
			h.updateFailed(w, err)
			return
		}
	}
	if req.Password != nil {
		hash, err := h.hash(*req.Password)
		if err != nil {
			slog.Error("hashing password", "error", err)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
		if user, err = h.svc.UpdatePassword(r.Context(), user.ID, hash); err != nil {
			h.updateFailed(w, err)
			return
		}
	}

	api.JSON(w, http.StatusOK, user.Public())
}

func (h *Handler) updateFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		api.HandleError(w, api.ErrUserNotFound)
		return
	}
	slog.Error("updating user", "error", err)
	api.HandleError(w, api.ErrInternalServer)
}
