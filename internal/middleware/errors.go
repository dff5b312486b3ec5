package middleware

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/multiris/multiris/pkg/errors"
)

// writeError writes err as the JSON error body used across the API
func writeError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(err)
}
