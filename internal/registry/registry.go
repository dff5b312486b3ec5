// Package registry enforces the signer membership and threshold rules of a
// single wallet.
//
// A Registry does no locking. Callers hold the wallet's lock for the whole
// read-modify-write so approvals never observe a half-applied change.
package registry

import (
	"fmt"
	"time"

	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
)

// Registry operates on the signers and threshold of one wallet
type Registry struct {
	wallet *types.Wallet
	now    func() time.Time
}

// For returns a Registry bound to w
func For(w *types.Wallet) *Registry {
	return &Registry{wallet: w, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the time source used for JoinedAt
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// AddSigner binds identityKey to a new slot at the end of the registry.
// Creators start synchronized; everyone else starts pending until their own
// verification completes.
func (r *Registry) AddSigner(identityKey types.IdentityKey, label string, creator bool) (*types.Signer, error) {
	if identityKey == "" {
		return nil, apperrors.BadRequest("identity key is required")
	}
	if r.wallet.HasMember(identityKey) {
		return nil, apperrors.WithDetail(apperrors.ErrDuplicateIdentity, string(identityKey))
	}

	status := types.SyncStatusPending
	if creator {
		status = types.SyncStatusSynchronized
	}

	now := r.now()
	r.wallet.Signers = append(r.wallet.Signers, types.Signer{
		IdentityKey:  identityKey,
		DisplayLabel: label,
		JoinedAt:     now,
		SyncStatus:   status,
	})
	r.clampThreshold()
	r.wallet.UpdatedAt = now

	added := r.wallet.Signers[len(r.wallet.Signers)-1]
	return &added, nil
}

// RemoveSigner drops identityKey from the registry and clamps the threshold
func (r *Registry) RemoveSigner(identityKey types.IdentityKey) error {
	i := r.wallet.FindSigner(identityKey)
	if i < 0 {
		return apperrors.SignerNotFound(string(identityKey))
	}
	if len(r.wallet.Signers) == 1 {
		return apperrors.ErrLastSignerViolation
	}

	r.wallet.Signers = append(r.wallet.Signers[:i], r.wallet.Signers[i+1:]...)
	r.clampThreshold()
	r.wallet.UpdatedAt = r.now()
	return nil
}

// MarkSynchronized records that a pending signer completed their identity
// binding. Calling it on an already synchronized signer is a no-op.
func (r *Registry) MarkSynchronized(identityKey types.IdentityKey) error {
	i := r.wallet.FindSigner(identityKey)
	if i < 0 {
		return apperrors.SignerNotFound(string(identityKey))
	}
	if r.wallet.Signers[i].IsSynchronized() {
		return nil
	}
	r.wallet.Signers[i].SyncStatus = types.SyncStatusSynchronized
	r.wallet.UpdatedAt = r.now()
	return nil
}

// SetThreshold changes how many approvals a transaction needs.
// Two-signer wallets are always unanimous.
func (r *Registry) SetThreshold(n int) error {
	count := len(r.wallet.Signers)
	if n < 1 || n > count {
		return apperrors.WithDetail(apperrors.ErrOutOfRange,
			fmt.Sprintf("threshold %d must be between 1 and %d", n, count))
	}
	if count == 2 && n != 2 {
		return apperrors.WithDetail(apperrors.ErrOutOfRange,
			"two-signer wallets require both signers")
	}
	r.wallet.Threshold = n
	r.wallet.UpdatedAt = r.now()
	return nil
}

// clampThreshold restores 1 <= threshold <= len(signers) and forces 2-of-2
func (r *Registry) clampThreshold() {
	count := len(r.wallet.Signers)
	switch {
	case count == 2:
		r.wallet.Threshold = 2
	case r.wallet.Threshold > count:
		r.wallet.Threshold = count
	case r.wallet.Threshold < 1:
		r.wallet.Threshold = 1
	}
}

// Validate checks the registry invariants, used when loading persisted wallets
func Validate(w *types.Wallet) error {
	count := len(w.Signers)
	if count == 0 {
		return fmt.Errorf("wallet %s has no signers", w.ID)
	}
	if w.Threshold < 1 || w.Threshold > count {
		return fmt.Errorf("wallet %s threshold %d outside [1, %d]", w.ID, w.Threshold, count)
	}
	if count == 2 && w.Threshold != 2 {
		return fmt.Errorf("wallet %s has two signers but threshold %d", w.ID, w.Threshold)
	}
	seen := make(map[types.IdentityKey]bool, count)
	for _, s := range w.Signers {
		if seen[s.IdentityKey] {
			return fmt.Errorf("wallet %s has duplicate signer %s", w.ID, s.IdentityKey)
		}
		seen[s.IdentityKey] = true
	}
	return nil
}
