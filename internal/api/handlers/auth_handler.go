package handlers

import (
	"errors"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/isdelr/accounts-be/internal/api/respond"
	"github.com/isdelr/accounts-be/internal/auth"
	"github.com/isdelr/accounts-be/internal/common"
	"github.com/isdelr/accounts-be/internal/models"
	"github.com/isdelr/accounts-be/internal/services"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles registration, login and the current-user lookup.
type AuthHandler struct {
	service      services.AuthServiceProvider
	users        services.UserServiceProvider
	tokenTTL     time.Duration
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.AuthServiceProvider, users services.UserServiceProvider, tokenTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: service, users: users, tokenTTL: tokenTTL, secureCookie: secureCookie}
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that both credentials are present.
func (p LoginPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required),
		validation.Field(&p.Password, validation.Required),
	)
}

// Register handles new user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var draft models.UserDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		respond.FromError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), draft)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			respond.WithStatus(w, http.StatusBadRequest, err)
			return
		}
		respond.FromError(w, err)
		return
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	respond.JSON(w, http.StatusCreated, user)
}

// Login handles user authentication and JWT generation.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		respond.FromError(w, err)
		return
	}
	if err := payload.Validate(); err != nil {
		respond.FromError(w, common.NewValidationError(err))
		return
	}

	result, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			log.Warn().Msg("Failed authentication attempt")
		}
		respond.FromError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookieName,
		Value:    result.AccessToken,
		Expires:  time.Now().Add(h.tokenTTL),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})

	respond.JSON(w, http.StatusOK, result)
}

// Me retrieves the currently authenticated user from the token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.RequesterFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "missing auth token")
		return
	}

	user, err := h.users.GetUserByID(r.Context(), requester.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Warn().Str("user_id", requester.ID).Msg("User from token not found in DB")
		}
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, user.Sanitized())
}
