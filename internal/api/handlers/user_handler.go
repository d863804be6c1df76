package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/accounts-be/internal/api/respond"
	"github.com/isdelr/accounts-be/internal/auth"
	"github.com/isdelr/accounts-be/internal/common"
	"github.com/isdelr/accounts-be/internal/models"
	"github.com/isdelr/accounts-be/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service services.UserServiceProvider
	audit   services.AuditServiceProvider
	policy  auth.Policy
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, audit services.AuditServiceProvider, policy auth.Policy) *UserHandler {
	return &UserHandler{service: service, audit: audit, policy: policy}
}

func sanitizeAll(users []models.User) []models.User {
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return users
}

// List returns all users, optionally filtered and sorted.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		respond.FromError(w, err)
		return
	}
	users, err := h.service.ListUsers(r.Context(), filter)
	if err != nil {
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, sanitizeAll(users))
}

// ListInactive returns users who have not logged in within the inactivity window.
func (h *UserHandler) ListInactive(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		respond.FromError(w, err)
		return
	}
	users, err := h.service.ListInactiveUsers(r.Context(), filter)
	if err != nil {
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, sanitizeAll(users))
}

// Get returns a single user. Non-admins may only read themselves.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.RequesterFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.policy.Decide(requester, auth.ActionRead, id, nil).Err(); err != nil {
		log.Warn().Str("user_id", requester.ID).Str("target", id).Msg("Access denied")
		respond.FromError(w, err)
		return
	}

	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, user.Sanitized())
}

// Create adds a user with any role.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.RequesterFromContext(r.Context())

	var draft models.UserDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		respond.FromError(w, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), draft)
	if err != nil {
		respond.FromError(w, err)
		return
	}

	h.audit.Record(models.AuditRecord{
		PerformedBy:     requester.ID,
		Action:          models.AuditUserCreate,
		TargetAccountID: user.ID,
		Changes:         draft.AuditChanges(),
	})
	respond.JSON(w, http.StatusCreated, user.Sanitized())
}

// Update applies a partial update. Non-admins may only update themselves and
// admins may not demote themselves.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.RequesterFromContext(r.Context())
	id := chi.URLParam(r, "id")

	// ownership is checked before the body is read
	if err := h.policy.Decide(requester, auth.ActionUpdate, id, nil).Err(); err != nil {
		log.Warn().Str("user_id", requester.ID).Str("target", id).Msg("Access denied")
		respond.FromError(w, err)
		return
	}

	var patch models.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respond.FromError(w, err)
		return
	}
	patch = patch.Normalized()
	if err := patch.Validate(); err != nil {
		respond.FromError(w, common.NewValidationError(err))
		return
	}

	if err := h.policy.Decide(requester, auth.ActionUpdate, id, &patch).Err(); err != nil {
		log.Warn().Str("user_id", requester.ID).Str("target", id).Err(err).Msg("Access denied")
		respond.FromError(w, err)
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, patch)
	if err != nil {
		respond.FromError(w, err)
		return
	}

	if requester.IsAdmin() {
		h.audit.Record(models.AuditRecord{
			PerformedBy:     requester.ID,
			Action:          models.AuditUserUpdate,
			TargetAccountID: id,
			Changes:         patch.AuditChanges(),
		})
	}
	respond.JSON(w, http.StatusOK, user.Sanitized())
}

// Delete removes a user.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.RequesterFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		respond.FromError(w, err)
		return
	}

	h.audit.Record(models.AuditRecord{
		PerformedBy:     requester.ID,
		Action:          models.AuditUserDelete,
		TargetAccountID: id,
	})
	respond.JSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}
