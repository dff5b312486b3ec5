package middleware

import (
	"bytes"
	"net/http"
)

// StatusRecorder wraps http.ResponseWriter to capture the response status.
// Only the first WriteHeader takes effect.
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
	written    bool
}

// NewStatusRecorder creates a StatusRecorder defaulting to 200 OK
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader records code and forwards it once
func (r *StatusRecorder) WriteHeader(code int) {
	if r.written {
		return
	}
	r.StatusCode = code
	r.written = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// ResponseRecorder also keeps a copy of the headers and body, so the
// idempotency middleware can replay the response.
type ResponseRecorder struct {
	*StatusRecorder
	Body    *bytes.Buffer
	Headers http.Header
}

// NewResponseRecorder creates a new ResponseRecorder
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{
		StatusRecorder: NewStatusRecorder(w),
		Body:           &bytes.Buffer{},
		Headers:        make(http.Header),
	}
}

// WriteHeader snapshots the headers before the status goes out
func (r *ResponseRecorder) WriteHeader(code int) {
	if !r.written {
		r.Headers = r.ResponseWriter.Header().Clone()
	}
	r.StatusRecorder.WriteHeader(code)
}

func (r *ResponseRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.Body.Write(b)
	return r.ResponseWriter.Write(b)
}
