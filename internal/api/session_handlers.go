package api

import (
	"net/http"

	"github.com/multiris/multiris/internal/middleware"
	"github.com/multiris/multiris/internal/session"
	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
)

// VerifyRequest asks for one proof to be checked against the identity
// provider without opening a session
type VerifyRequest struct {
	Payload types.IdentityProof `json:"payload"`
	Action  string              `json:"action"`
	Signal  *string             `json:"signal,omitempty"`
}

// VerifyResponse reports the verification outcome. Error is set when the
// proof was not accepted.
type VerifyResponse struct {
	*types.VerificationResult
	Error *apperrors.AppError `json:"error,omitempty"`
}

// LoginRequest opens a session with a proof for the auth action
type LoginRequest struct {
	Proof types.IdentityProof `json:"proof"`
}

// LoginResponse carries the bearer token of a new session
type LoginResponse struct {
	Token   string           `json:"token"`
	Session *session.Session `json:"session"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	v := middleware.NewValidator()
	v.Required("action", req.Action)
	if err := v.Err(); err != nil {
		s.handleError(w, r, err)
		return
	}

	res, err := s.verifier.Verify(r.Context(), req.Payload, s.verifier.AppID(), req.Action, req.Signal)
	if err != nil {
		appErr, ok := apperrors.IsAppError(err)
		if !ok {
			s.handleError(w, r, err)
			return
		}
		if res == nil {
			res = &types.VerificationResult{}
		}
		writeJSON(w, appErr.StatusCode, VerifyResponse{VerificationResult: res, Error: appErr})
		return
	}
	writeJSON(w, http.StatusOK, VerifyResponse{VerificationResult: res})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	sess, token, err := s.sessions.Login(r.Context(), req.Proof)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, LoginResponse{Token: token, Session: sess})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), requestSession(r)); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, requestSession(r))
}
