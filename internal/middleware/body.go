package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/multiris/multiris/pkg/errors"
)

// MaxBodySize is the largest request body accepted (1 MB)
const MaxBodySize = 1 << 20

// LimitBody rejects request bodies over MaxBodySize with 413 and buffers the
// rest so later middleware and handlers can read them again.
func LimitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(w, apperrors.New(apperrors.ErrCodeBadRequest, "Request body too large", http.StatusRequestEntityTooLarge))
				return
			}
			writeError(w, apperrors.BadRequest("failed to read request body"))
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
