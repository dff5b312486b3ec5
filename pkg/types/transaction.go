package types

import (
	"time"

	"github.com/google/uuid"
)

// TransactionPayload is what the signers are approving
type TransactionPayload struct {
	Title       string `json:"title,omitempty"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

// Transaction is a proposal that completes once enough distinct signers of
// its wallet approved it
type Transaction struct {
	ID          uuid.UUID          `json:"id"`
	WalletID    uuid.UUID          `json:"wallet_id"`
	Payload     TransactionPayload `json:"payload"`
	Approvals   []IdentityKey      `json:"approvals"`
	Status      TransactionStatus  `json:"status"`
	CreatedBy   IdentityKey        `json:"created_by"`
	CreatedAt   time.Time          `json:"created_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// HasApproval reports whether key already approved
func (t *Transaction) HasApproval(key IdentityKey) bool {
	for _, k := range t.Approvals {
		if k == key {
			return true
		}
	}
	return false
}

// IsCompleted reports whether the transaction reached its threshold
func (t *Transaction) IsCompleted() bool {
	return t.Status == TransactionStatusCompleted
}

// Clone returns a deep copy safe to hand out of a locked section
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.Approvals = make([]IdentityKey, len(t.Approvals))
	copy(c.Approvals, t.Approvals)
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
