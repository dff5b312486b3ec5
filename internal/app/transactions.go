package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/multiris/multiris/internal/approval"
	"github.com/multiris/multiris/internal/logger"
	"github.com/multiris/multiris/internal/session"
	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
)

// CreateTransaction opens a transaction on walletID. The caller must be a
// synchronized signer; their approval is recorded as the first one.
func (c *Coordinator) CreateTransaction(
	ctx context.Context,
	sess *session.Session,
	walletID uuid.UUID,
	payload types.TransactionPayload,
) (*types.Transaction, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	ws, ok := c.lookupWallet(walletID)
	if !ok {
		return nil, apperrors.WalletNotFound(walletID.String())
	}

	id, err := c.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate transaction id: %w", err)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	tx, err := approval.Open(ws.wallet, id, payload, sess.IdentityKey, c.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := c.commit(ctx, change{txs: []*types.Transaction{tx}}); err != nil {
		return nil, err
	}
	ws.txs[tx.ID] = tx

	c.indexMu.Lock()
	c.txWallet[tx.ID] = walletID
	c.indexMu.Unlock()

	logger.Info(ctx, "transaction created", "wallet_id", walletID, "transaction_id", tx.ID, "status", tx.Status)
	if tx.IsCompleted() {
		c.transactionCompleted(ctx, tx)
	}
	return tx.Clone(), nil
}

// Approve records the caller's approval of transactionID. Outcome.Transitioned
// is true for exactly one caller per transaction: the one whose approval
// completed it.
func (c *Coordinator) Approve(
	ctx context.Context,
	sess *session.Session,
	transactionID uuid.UUID,
) (approval.Outcome, *types.Transaction, error) {
	if err := requireSession(sess); err != nil {
		return approval.Outcome{}, nil, err
	}
	ws, ok := c.lookupTransaction(transactionID)
	if !ok {
		return approval.Outcome{}, nil, apperrors.TransactionNotFound(transactionID.String())
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	next := ws.txs[transactionID].Clone()
	out, err := approval.Approve(ws.wallet, next, sess.IdentityKey, c.now().UTC())
	if err != nil {
		outcome := "error"
		if appErr, ok := apperrors.IsAppError(err); ok {
			outcome = appErr.Code
		}
		c.metrics.ObserveApproval(outcome)
		return approval.Outcome{}, nil, err
	}
	if err := c.commit(ctx, change{txs: []*types.Transaction{next}}); err != nil {
		return approval.Outcome{}, nil, err
	}
	ws.txs[transactionID] = next

	c.metrics.ObserveApproval("accepted")
	logger.Info(ctx, "transaction approved",
		"transaction_id", transactionID,
		"approvals", out.Approvals,
		"threshold", out.Threshold,
	)
	if out.Transitioned {
		c.transactionCompleted(ctx, next)
	}
	return out, next.Clone(), nil
}

// GetTransaction returns a transaction of a wallet the caller belongs to
func (c *Coordinator) GetTransaction(ctx context.Context, sess *session.Session, transactionID uuid.UUID) (*types.Transaction, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	ws, ok := c.lookupTransaction(transactionID)
	if !ok {
		return nil, apperrors.TransactionNotFound(transactionID.String())
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.wallet.HasMember(sess.IdentityKey) {
		return nil, apperrors.TransactionNotFound(transactionID.String())
	}
	return ws.txs[transactionID].Clone(), nil
}

// ListTransactions returns the transactions of every wallet the caller
// belongs to, newest first. An empty status lists both.
func (c *Coordinator) ListTransactions(
	ctx context.Context,
	sess *session.Session,
	status types.TransactionStatus,
) ([]*types.Transaction, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if status != "" && !status.IsValid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown status %q", status))
	}

	out := []*types.Transaction{}
	for _, ws := range c.allWallets() {
		ws.mu.Lock()
		if ws.wallet.HasMember(sess.IdentityKey) {
			for _, tx := range ws.txs {
				if status == "" || tx.Status == status {
					out = append(out, tx.Clone())
				}
			}
		}
		ws.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID)
	})
	return out, nil
}

// WalletTransactions returns the transactions of one wallet, newest first
func (c *Coordinator) WalletTransactions(ctx context.Context, sess *session.Session, walletID uuid.UUID) ([]*types.Transaction, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	ws, ok := c.lookupWallet(walletID)
	if !ok {
		return nil, apperrors.WalletNotFound(walletID.String())
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.wallet.HasMember(sess.IdentityKey) {
		return nil, apperrors.WalletNotFound(walletID.String())
	}
	out := make([]*types.Transaction, 0, len(ws.txs))
	for _, tx := range ws.txs {
		out = append(out, tx.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return before(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID)
	})
	return out, nil
}

// transactionCompleted runs once per transaction, under its wallet's lock
func (c *Coordinator) transactionCompleted(ctx context.Context, tx *types.Transaction) {
	c.metrics.TransactionCompleted()
	logger.Info(ctx, "transaction completed",
		"wallet_id", tx.WalletID,
		"transaction_id", tx.ID,
		"approvals", len(tx.Approvals),
	)
}
