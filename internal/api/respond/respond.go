// Package respond writes JSON responses and maps domain errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/isdelr/accounts-be/internal/common"
	"github.com/rs/zerolog/log"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// Error writes an error body with the given status code.
func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorBody{Error: msg})
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch {
	case common.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidCredentials), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes the response for err. Unknown errors become a generic 500
// so driver messages never reach the client.
func FromError(w http.ResponseWriter, err error) {
	WithStatus(w, Status(err), err)
}

// WithStatus writes the response for err using an explicit status code.
func WithStatus(w http.ResponseWriter, status int, err error) {
	body := ErrorBody{}
	switch status {
	case http.StatusBadRequest:
		body.Error = "validation failed"
		var fields validation.Errors
		if errors.As(err, &fields) {
			body.Fields = make(map[string]string, len(fields))
			for name, fieldErr := range fields {
				body.Fields[name] = fieldErr.Error()
			}
		} else if errors.Is(err, common.ErrDuplicateEmail) {
			body.Error = common.ErrDuplicateEmail.Error()
		} else {
			body.Error = err.Error()
		}
	case http.StatusConflict:
		body.Error = common.ErrDuplicateEmail.Error()
	case http.StatusUnauthorized:
		if errors.Is(err, common.ErrInvalidToken) {
			body.Error = "invalid auth token"
		} else {
			body.Error = "Invalid credentials"
		}
	case http.StatusForbidden:
		body.Error = err.Error()
	case http.StatusNotFound:
		body.Error = "User not found"
	default:
		log.Error().Err(err).Msg("Unhandled error")
		body.Error = "internal server error"
	}
	JSON(w, status, body)
}
