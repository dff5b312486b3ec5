package api

import (
	"net/http"

	"github.com/multiris/multiris/internal/middleware"
	"github.com/multiris/multiris/pkg/types"
)

// CreateTransactionRequest proposes a transaction; the proposer's approval
// is recorded with it
type CreateTransactionRequest struct {
	Title       string `json:"title,omitempty"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

// ApproveResponse reports the transaction after an approval. Transitioned
// is true only for the approval that completed it.
type ApproveResponse struct {
	Transaction  *types.Transaction      `json:"transaction"`
	Status       types.TransactionStatus `json:"status"`
	Transitioned bool                    `json:"transitioned"`
	Approvals    int                     `json:"approvals"`
	Threshold    int                     `json:"threshold"`
}

// ListTransactionsResponse lists transactions, newest first
type ListTransactionsResponse struct {
	Data []*types.Transaction `json:"data"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathID(r, "walletID", "wallet")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	var req CreateTransactionRequest
	if err := middleware.DecodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}

	v := middleware.NewValidator()
	v.EthereumAddress("recipient", req.Recipient)
	v.Required("amount", req.Amount)
	v.MaxLength("title", req.Title, 200)
	v.MaxLength("description", req.Description, 2000)
	if err := v.Err(); err != nil {
		s.handleError(w, r, err)
		return
	}

	tx, err := s.coordinator.CreateTransaction(r.Context(), requestSession(r), walletID, types.TransactionPayload{
		Title:       req.Title,
		Recipient:   req.Recipient,
		Amount:      req.Amount,
		Description: req.Description,
	})
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	txID, err := pathID(r, "transactionID", "transaction")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	out, tx, err := s.coordinator.Approve(r.Context(), requestSession(r), txID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ApproveResponse{
		Transaction:  tx,
		Status:       out.Status,
		Transitioned: out.Transitioned,
		Approvals:    out.Approvals,
		Threshold:    out.Threshold,
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	txID, err := pathID(r, "transactionID", "transaction")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	tx, err := s.coordinator.GetTransaction(r.Context(), requestSession(r), txID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	status := types.TransactionStatus(r.URL.Query().Get("status"))
	txs, err := s.coordinator.ListTransactions(r.Context(), requestSession(r), status)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListTransactionsResponse{Data: txs})
}

func (s *Server) handleWalletTransactions(w http.ResponseWriter, r *http.Request) {
	walletID, err := pathID(r, "walletID", "wallet")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	txs, err := s.coordinator.WalletTransactions(r.Context(), requestSession(r), walletID)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListTransactionsResponse{Data: txs})
}
