package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/multiris/multiris/internal/app"
	"github.com/multiris/multiris/internal/middleware"
	"github.com/multiris/multiris/pkg/types"
)

// CreateWalletRequest creates a wallet with the caller as its first signer
type CreateWalletRequest struct {
	Name         string `json:"name"`
	InvitedCount int    `json:"invited_count"`
}

// CreateWalletResponse returns the wallet and the invites issued with it
type CreateWalletResponse struct {
	Wallet  *types.Wallet   `json:"wallet"`
	Invites []*types.Invite `json:"invites"`
}

// ListWalletsResponse lists wallets
type ListWalletsResponse struct {
	Data []*types.Wallet `json:"data"`
}

// ListMembersResponse lists a wallet's signers in invitation order
type ListMembersResponse struct {
	Data []types.Signer `json:"data"`
}

// SetThresholdRequest changes a wallet's approval threshold
type SetThresholdRequest struct {
	Threshold *int `json:"threshold"`
}

// CreateInviteRequest issues one more invite
type CreateInviteRequest struct {
	Label string `json:"label,omitempty"`
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.coordinator.ListWallets(r.Context(), requestSession(r))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListWalletsResponse{Data: wallets})
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	v := middleware.NewValidator()
	v.Required("name", req.Name)
	v.IntRange("invited_count", req.InvitedCount, 0, app.MaxInvites)
	if err := v.Err(); err != nil {
		s.handleError(w, r, err)
		return
	}

	wallet, invites, err := s.coordinator.CreateWallet(r.Context(), requestSession(r), req.Name, req.InvitedCount)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateWalletResponse{Wallet: wallet, Invites: invites})
}

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathID(r, "walletID", "wallet")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	wallet, err := s.coordinator.GetWallet(r.Context(), requestSession(r), walletID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathID(r, "walletID", "wallet")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	members, err := s.coordinator.Members(r.Context(), requestSession(r), walletID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListMembersResponse{Data: members})
}

func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathID(r, "walletID", "wallet")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req SetThresholdRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	if req.Threshold == nil {
		v := middleware.NewValidator()
		v.AddError("threshold", "is required")
		s.handleError(w, r, v.Err())
		return
	}

	wallet, err := s.coordinator.SetThreshold(r.Context(), requestSession(r), walletID, *req.Threshold)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleRemoveSigner(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathID(r, "walletID", "wallet")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	key := types.IdentityKey(chi.URLParam(r, "identityKey"))

	wallet, err := s.coordinator.RemoveSigner(r.Context(), requestSession(r), walletID, key)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathID(r, "walletID", "wallet")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req CreateInviteRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	invite, err := s.coordinator.CreateInvite(r.Context(), requestSession(r), walletID, req.Label)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, invite)
}
