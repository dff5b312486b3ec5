// Package approval implements the transaction approval lifecycle:
// Pending until enough distinct synchronized signers approved, then
// Completed for good.
//
// Functions here are pure state transitions over a wallet and one of its
// transactions. The caller serializes them with the wallet's lock, which is
// what makes the Pending to Completed transition fire for exactly one caller.
package approval

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
)

// Outcome describes the effect of a successful approval
type Outcome struct {
	Status types.TransactionStatus
	// Transitioned is true only for the approval that completed the transaction
	Transitioned bool
	Approvals    int
	Threshold    int
}

// Open creates a transaction on behalf of creator, whose approval counts
// immediately. With a threshold of one the transaction is born completed.
func Open(
	w *types.Wallet,
	id uuid.UUID,
	payload types.TransactionPayload,
	creator types.IdentityKey,
	now time.Time,
) (*types.Transaction, error) {
	if !w.IsSynchronizedSigner(creator) {
		return nil, apperrors.WithDetail(apperrors.ErrUnknownSigner, string(creator))
	}
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}

	tx := &types.Transaction{
		ID:        id,
		WalletID:  w.ID,
		Payload:   payload,
		Approvals: []types.IdentityKey{creator},
		Status:    types.TransactionStatusPending,
		CreatedBy: creator,
		CreatedAt: now,
	}
	settle(w, tx, now)
	return tx, nil
}

// Approve records identityKey's approval of tx.
//
// Membership is checked against the wallet as it is now, not as it was when
// the transaction was opened.
func Approve(w *types.Wallet, tx *types.Transaction, identityKey types.IdentityKey, now time.Time) (Outcome, error) {
	if tx.WalletID != w.ID {
		return Outcome{}, fmt.Errorf("transaction %s belongs to wallet %s, not %s", tx.ID, tx.WalletID, w.ID)
	}
	if tx.IsCompleted() {
		return Outcome{}, apperrors.WithDetail(apperrors.ErrTransactionFinalized, tx.ID.String())
	}
	if !w.IsSynchronizedSigner(identityKey) {
		return Outcome{}, apperrors.WithDetail(apperrors.ErrUnknownSigner, string(identityKey))
	}
	if tx.HasApproval(identityKey) {
		return Outcome{}, apperrors.WithDetail(apperrors.ErrAlreadyApproved, tx.ID.String())
	}

	tx.Approvals = append(tx.Approvals, identityKey)
	transitioned := settle(w, tx, now)

	return Outcome{
		Status:       tx.Status,
		Transitioned: transitioned,
		Approvals:    len(tx.Approvals),
		Threshold:    w.Threshold,
	}, nil
}

// Settle completes tx if its approvals already meet the wallet's threshold.
// Used after the threshold was lowered. Reports whether it transitioned.
func Settle(w *types.Wallet, tx *types.Transaction, now time.Time) bool {
	return settle(w, tx, now)
}

func settle(w *types.Wallet, tx *types.Transaction, now time.Time) bool {
	if tx.IsCompleted() || len(tx.Approvals) < w.Threshold {
		return false
	}
	tx.Status = types.TransactionStatusCompleted
	at := now
	tx.CompletedAt = &at
	return true
}

// Check verifies the lifecycle invariant of a transaction against its wallet.
// A pending transaction never holds enough approvals; completed ones are
// exempt because raising the threshold later does not reopen them.
func Check(w *types.Wallet, tx *types.Transaction) error {
	seen := make(map[types.IdentityKey]bool, len(tx.Approvals))
	for _, k := range tx.Approvals {
		if seen[k] {
			return fmt.Errorf("transaction %s counts approval of %s twice", tx.ID, k)
		}
		seen[k] = true
	}
	if !tx.Status.IsValid() {
		return fmt.Errorf("transaction %s has unknown status %q", tx.ID, tx.Status)
	}
	if !tx.IsCompleted() && len(tx.Approvals) >= w.Threshold {
		return fmt.Errorf("transaction %s is pending with %d approvals, threshold %d",
			tx.ID, len(tx.Approvals), w.Threshold)
	}
	return nil
}

// ValidatePayload checks the recipient address and amount of a proposal
func ValidatePayload(p types.TransactionPayload) error {
	if !common.IsHexAddress(p.Recipient) {
		return apperrors.BadRequest("recipient must be a hex address")
	}
	if _, err := ParseAmount(p.Amount); err != nil {
		return apperrors.BadRequest(err.Error())
	}
	return nil
}

// ParseAmount parses a positive decimal amount, optionally followed by a
// currency symbol ("1.5 WLD")
func ParseAmount(s string) (*big.Rat, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return nil, fmt.Errorf("amount %q must be a decimal number", s)
	}
	amount, ok := new(big.Rat).SetString(fields[0])
	if !ok {
		return nil, fmt.Errorf("amount %q must be a decimal number", s)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}
