package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/multiris/multiris/internal/approval"
	"github.com/multiris/multiris/internal/logger"
	"github.com/multiris/multiris/internal/registry"
	"github.com/multiris/multiris/internal/session"
	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
)

const (
	maxNameLength = 100
	// MaxInvites bounds the invites issued with a new wallet
	MaxInvites = 20
)

// CreateWallet creates a wallet with the caller as its sole synchronized
// signer and a threshold of one, and issues invitedCount open invites.
// Invitees join through the invites; the threshold follows the registry's
// clamping rules as they do.
func (c *Coordinator) CreateWallet(
	ctx context.Context,
	sess *session.Session,
	name string,
	invitedCount int,
) (*types.Wallet, []*types.Invite, error) {
	if err := requireSession(sess); err != nil {
		return nil, nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, nil, apperrors.BadRequest(fmt.Sprintf("name must be 1 to %d characters", maxNameLength))
	}
	if invitedCount < 0 || invitedCount > MaxInvites {
		return nil, nil, apperrors.BadRequest(fmt.Sprintf("invited_count must be between 0 and %d", MaxInvites))
	}

	id, err := c.newID()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate wallet id: %w", err)
	}
	now := c.now().UTC()
	w := &types.Wallet{ID: id, Name: name, CreatedBy: sess.IdentityKey, CreatedAt: now, UpdatedAt: now}
	if _, err := registry.For(w).WithClock(func() time.Time { return now }).AddSigner(sess.IdentityKey, "", true); err != nil {
		return nil, nil, err
	}

	invites := make([]*types.Invite, 0, invitedCount)
	for i := 0; i < invitedCount; i++ {
		inv, err := c.newInvite(w.ID, fmt.Sprintf("Co-signer %d", i+1), sess.IdentityKey, now)
		if err != nil {
			return nil, nil, err
		}
		invites = append(invites, inv)
	}

	ws := &walletState{
		wallet:  w,
		txs:     make(map[uuid.UUID]*types.Transaction),
		invites: make(map[uuid.UUID]*types.Invite, len(invites)),
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if err := c.commit(ctx, change{wallet: w, invites: invites}); err != nil {
		return nil, nil, err
	}
	for _, inv := range invites {
		ws.invites[inv.ID] = inv
	}

	c.indexMu.Lock()
	c.wallets[w.ID] = ws
	for _, inv := range invites {
		c.inviteIndex[inv.ID] = w.ID
	}
	c.indexMu.Unlock()

	logger.Info(ctx, "wallet created", "wallet_id", w.ID, "invites", len(invites))
	return w.Clone(), cloneInvites(invites), nil
}

// GetWallet returns a wallet the caller is a member of
func (c *Coordinator) GetWallet(ctx context.Context, sess *session.Session, walletID uuid.UUID) (*types.Wallet, error) {
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
	return ws.wallet.Clone(), nil
}

// ListWallets returns the wallets the caller belongs to, pending or not
func (c *Coordinator) ListWallets(ctx context.Context, sess *session.Session) ([]*types.Wallet, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	out := []*types.Wallet{}
	for _, ws := range c.allWallets() {
		ws.mu.Lock()
		if ws.wallet.HasMember(sess.IdentityKey) {
			out = append(out, ws.wallet.Clone())
		}
		ws.mu.Unlock()
	}
	return out, nil
}

// Members returns a wallet's signers in invitation order
func (c *Coordinator) Members(ctx context.Context, sess *session.Session, walletID uuid.UUID) ([]types.Signer, error) {
	w, err := c.GetWallet(ctx, sess, walletID)
	if err != nil {
		return nil, err
	}
	return w.Signers, nil
}

// CreateInvite issues an invite to walletID. Any synchronized signer may
// invite.
func (c *Coordinator) CreateInvite(ctx context.Context, sess *session.Session, walletID uuid.UUID, label string) (*types.Invite, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)
	if utf8.RuneCountInString(label) > maxNameLength {
		return nil, apperrors.BadRequest(fmt.Sprintf("label must be at most %d characters", maxNameLength))
	}
	ws, ok := c.lookupWallet(walletID)
	if !ok {
		return nil, apperrors.WalletNotFound(walletID.String())
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.wallet.IsSynchronizedSigner(sess.IdentityKey) {
		return nil, apperrors.WithDetail(apperrors.ErrUnknownSigner, string(sess.IdentityKey))
	}
	inv, err := c.newInvite(walletID, label, sess.IdentityKey, c.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := c.commit(ctx, change{invites: []*types.Invite{inv}}); err != nil {
		return nil, err
	}
	ws.invites[inv.ID] = inv

	c.indexMu.Lock()
	c.inviteIndex[inv.ID] = walletID
	c.indexMu.Unlock()

	logger.Info(ctx, "invite created", "wallet_id", walletID, "invite_id", inv.ID)
	return inv.Clone(), nil
}

// GetInvite returns an invite by id. Invite ids are bearer capabilities, so
// any session may read one.
func (c *Coordinator) GetInvite(ctx context.Context, sess *session.Session, inviteID uuid.UUID) (*types.Invite, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	ws, ok := c.lookupInvite(inviteID)
	if !ok {
		return nil, apperrors.InviteNotFound(inviteID.String())
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()

	return ws.invites[inviteID].Clone(), nil
}

// JoinWallet consumes an open invite and adds the caller to its wallet as a
// pending signer. The caller becomes able to approve after ConfirmMembership.
func (c *Coordinator) JoinWallet(ctx context.Context, sess *session.Session, inviteID uuid.UUID) (*types.Wallet, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	ws, ok := c.lookupInvite(inviteID)
	if !ok {
		return nil, apperrors.InviteNotFound(inviteID.String())
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	inv := ws.invites[inviteID]
	if !inv.IsOpen() {
		return nil, apperrors.InviteNotFound(inviteID.String())
	}

	now := c.now().UTC()
	w := ws.wallet.Clone()
	if _, err := registry.For(w).WithClock(func() time.Time { return now }).AddSigner(sess.IdentityKey, inv.Label, false); err != nil {
		return nil, err
	}

	accepted := inv.Clone()
	accepted.Status = types.InviteStatusAccepted
	accepted.AcceptedBy = sess.IdentityKey
	accepted.AcceptedAt = &now

	if err := c.commit(ctx, change{wallet: w, invites: []*types.Invite{accepted}}); err != nil {
		return nil, err
	}
	ws.wallet = w
	ws.invites[inviteID] = accepted

	logger.Info(ctx, "signer joined", "wallet_id", w.ID, "invite_id", inviteID, "signers", len(w.Signers), "threshold", w.Threshold)
	return w.Clone(), nil
}

// ConfirmMembership completes the identity binding of a signer who joined
// through inviteID. The proof must be generated for the invite (its id is the
// signal) and must prove the caller's own identity. The verification call is
// made before the wallet is locked.
func (c *Coordinator) ConfirmMembership(
	ctx context.Context,
	sess *session.Session,
	inviteID uuid.UUID,
	proof types.IdentityProof,
) (*types.Wallet, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	ws, ok := c.lookupInvite(inviteID)
	if !ok {
		return nil, apperrors.InviteNotFound(inviteID.String())
	}

	signal := inviteID.String()
	key, err := c.verifier.VerifyIdentity(ctx, proof, &signal)
	if err != nil {
		logger.Warn(ctx, "membership confirmation failed", "invite_id", inviteID, "error", err)
		return nil, err
	}
	if key != sess.IdentityKey {
		return nil, apperrors.InvalidProof("proof does not belong to the signed-in identity")
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	inv := ws.invites[inviteID]
	if inv.AcceptedBy != key {
		return nil, apperrors.InviteNotFound(inviteID.String())
	}
	if ws.wallet.IsSynchronizedSigner(key) {
		return ws.wallet.Clone(), nil
	}

	w := ws.wallet.Clone()
	if err := registry.For(w).WithClock(c.now).MarkSynchronized(key); err != nil {
		// removed after joining
		return nil, err
	}
	if err := c.commit(ctx, change{wallet: w}); err != nil {
		return nil, err
	}
	ws.wallet = w

	logger.Info(ctx, "signer synchronized", "wallet_id", w.ID, "identity_key", key)
	return w.Clone(), nil
}

// RemoveSigner removes identityKey from a wallet. The caller must be a
// synchronized signer. Pending transactions whose approvals meet the
// re-clamped threshold complete.
func (c *Coordinator) RemoveSigner(
	ctx context.Context,
	sess *session.Session,
	walletID uuid.UUID,
	identityKey types.IdentityKey,
) (*types.Wallet, error) {
	return c.mutateRegistry(ctx, sess, walletID, "signer removed", func(reg *registry.Registry) error {
		return reg.RemoveSigner(identityKey)
	})
}

// SetThreshold changes a wallet's threshold. The caller must be a
// synchronized signer. Lowering it completes pending transactions that now
// have enough approvals.
func (c *Coordinator) SetThreshold(ctx context.Context, sess *session.Session, walletID uuid.UUID, n int) (*types.Wallet, error) {
	return c.mutateRegistry(ctx, sess, walletID, "threshold changed", func(reg *registry.Registry) error {
		return reg.SetThreshold(n)
	})
}

func (c *Coordinator) mutateRegistry(
	ctx context.Context,
	sess *session.Session,
	walletID uuid.UUID,
	event string,
	mutate func(reg *registry.Registry) error,
) (*types.Wallet, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	ws, ok := c.lookupWallet(walletID)
	if !ok {
		return nil, apperrors.WalletNotFound(walletID.String())
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.wallet.IsSynchronizedSigner(sess.IdentityKey) {
		return nil, apperrors.WithDetail(apperrors.ErrUnknownSigner, string(sess.IdentityKey))
	}

	now := c.now().UTC()
	w := ws.wallet.Clone()
	if err := mutate(registry.For(w).WithClock(func() time.Time { return now })); err != nil {
		return nil, err
	}

	settled := settlePending(w, ws.txs, now)
	if err := c.commit(ctx, change{wallet: w, txs: settled}); err != nil {
		return nil, err
	}
	ws.wallet = w
	for _, tx := range settled {
		ws.txs[tx.ID] = tx
		c.transactionCompleted(ctx, tx)
	}

	logger.Info(ctx, event, "wallet_id", w.ID, "signers", len(w.Signers), "threshold", w.Threshold)
	return w.Clone(), nil
}

// settlePending returns completed clones of the pending transactions whose
// approvals meet w's threshold
func settlePending(w *types.Wallet, txs map[uuid.UUID]*types.Transaction, now time.Time) []*types.Transaction {
	var out []*types.Transaction
	for _, tx := range txs {
		if tx.IsCompleted() {
			continue
		}
		next := tx.Clone()
		if approval.Settle(w, next, now) {
			out = append(out, next)
		}
	}
	return out
}

func (c *Coordinator) newInvite(walletID uuid.UUID, label string, by types.IdentityKey, now time.Time) (*types.Invite, error) {
	id, err := c.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite id: %w", err)
	}
	return &types.Invite{
		ID:        id,
		WalletID:  walletID,
		Label:     label,
		Status:    types.InviteStatusOpen,
		CreatedBy: by,
		CreatedAt: now,
	}, nil
}

func cloneInvites(in []*types.Invite) []*types.Invite {
	out := make([]*types.Invite, len(in))
	for i, inv := range in {
		out[i] = inv.Clone()
	}
	return out
}
