package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/isdelr/accounts-be/internal/common"
	"github.com/isdelr/accounts-be/internal/models"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into v. Malformed bodies are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return common.NewValidationError(errors.New("request body is empty"))
		}
		return common.NewValidationError(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

// filterFromQuery reads role, sortBy and order from the query string.
func filterFromQuery(r *http.Request) (models.UserFilter, error) {
	q := r.URL.Query()
	filter := models.UserFilter{
		SortBy: q.Get("sortBy"),
		Order:  models.SortOrder(q.Get("order")),
	}
	if raw := q.Get("role"); raw != "" {
		role, ok := models.ParseRole(raw)
		if !ok {
			return filter, common.NewValidationError(validation.Errors{
				"role": errors.New("must be admin or user"),
			})
		}
		filter.Role = &role
	}
	return filter, nil
}
