package api

import (
	"net/http"

	"github.com/multiris/multiris/internal/middleware"
	"github.com/multiris/multiris/pkg/types"
)

// ConfirmMembershipRequest proves the joining identity a second time,
// bound to the invite
type ConfirmMembershipRequest struct {
	Proof types.IdentityProof `json:"proof"`
}

func (s *Server) handleGetInvite(w http.ResponseWriter, r *http.Request) {
	inviteID, err := pathID(r, "inviteID", "invite")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	invite, err := s.coordinator.GetInvite(r.Context(), requestSession(r), inviteID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invite)
}

func (s *Server) handleJoinWallet(w http.ResponseWriter, r *http.Request) {
	inviteID, err := pathID(r, "inviteID", "invite")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	wallet, err := s.coordinator.JoinWallet(r.Context(), requestSession(r), inviteID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleConfirmMembership(w http.ResponseWriter, r *http.Request) {
	inviteID, err := pathID(r, "inviteID", "invite")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req ConfirmMembershipRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	wallet, err := s.coordinator.ConfirmMembership(r.Context(), requestSession(r), inviteID, req.Proof)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}
