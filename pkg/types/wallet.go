package types

import (
	"time"

	"github.com/google/uuid"
)

// Signer is a member of a wallet's signer registry
type Signer struct {
	IdentityKey  IdentityKey `json:"identity_key"`
	DisplayLabel string      `json:"display_label"`
	JoinedAt     time.Time   `json:"joined_at"`
	SyncStatus   SyncStatus  `json:"sync_status"`
}

// IsSynchronized reports whether the signer may approve transactions
func (s *Signer) IsSynchronized() bool {
	return s.SyncStatus == SyncStatusSynchronized
}

// Wallet is a multisig wallet: an ordered signer registry plus the number of
// distinct approvals a transaction needs
type Wallet struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Signers   []Signer    `json:"signers"`
	Threshold int         `json:"threshold"`
	CreatedBy IdentityKey `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// FindSigner returns the index of the signer with the given key, or -1
func (w *Wallet) FindSigner(key IdentityKey) int {
	for i := range w.Signers {
		if w.Signers[i].IdentityKey == key {
			return i
		}
	}
	return -1
}

// HasMember reports whether key is in the registry, pending or not
func (w *Wallet) HasMember(key IdentityKey) bool {
	return w.FindSigner(key) >= 0
}

// IsSynchronizedSigner reports whether key may currently approve
func (w *Wallet) IsSynchronizedSigner(key IdentityKey) bool {
	i := w.FindSigner(key)
	return i >= 0 && w.Signers[i].IsSynchronized()
}

// Clone returns a deep copy safe to hand out of a locked section
func (w *Wallet) Clone() *Wallet {
	c := *w
	c.Signers = make([]Signer, len(w.Signers))
	copy(c.Signers, w.Signers)
	return &c
}

// Invite is a one-time link a signer shares to bring a co-signer into a wallet
type Invite struct {
	ID         uuid.UUID    `json:"id"`
	WalletID   uuid.UUID    `json:"wallet_id"`
	Label      string       `json:"label"`
	Status     InviteStatus `json:"status"`
	CreatedBy  IdentityKey  `json:"created_by"`
	AcceptedBy IdentityKey  `json:"accepted_by,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	AcceptedAt *time.Time   `json:"accepted_at,omitempty"`
}

// IsOpen reports whether the invite can still be used to join
func (i *Invite) IsOpen() bool {
	return i.Status == InviteStatusOpen
}

// Clone returns a copy that shares no pointers with i
func (i *Invite) Clone() *Invite {
	c := *i
	if i.AcceptedAt != nil {
		at := *i.AcceptedAt
		c.AcceptedAt = &at
	}
	return &c
}
