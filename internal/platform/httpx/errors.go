package httpx

import (
	"errors"
	"net/http"

	"github.com/wildhaven/wildhaven/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Forbidden deliberately carries no detail about the underlying resource;
// NotFound covers both missing rows and rows owned by another tenant.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, shared.ErrLastAdmin):
		Problem(w, http.StatusConflict, "Invariant Violation", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Error", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
