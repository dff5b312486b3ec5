// Package app holds the wallet coordinator, which binds verified identities
// to wallet memberships and runs transaction approval across wallets.
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/multiris/multiris/internal/approval"
	"github.com/multiris/multiris/internal/logger"
	"github.com/multiris/multiris/internal/metrics"
	"github.com/multiris/multiris/internal/registry"
	"github.com/multiris/multiris/internal/session"
	"github.com/multiris/multiris/internal/storage"
	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
)

// IdentityVerifier proves that the holder of a proof is a given identity.
// *session.Manager implements it.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, proof types.IdentityProof, signal *string) (types.IdentityKey, error)
}

// walletState is everything guarded by one wallet's lock. The pointers it
// holds are never mutated in place: changes are made on clones, persisted,
// and then swapped in.
type walletState struct {
	mu      sync.Mutex
	wallet  *types.Wallet
	txs     map[uuid.UUID]*types.Transaction
	invites map[uuid.UUID]*types.Invite
}

// change is the set of records one operation replaces
type change struct {
	wallet  *types.Wallet
	txs     []*types.Transaction
	invites []*types.Invite
}

// Coordinator orchestrates wallets, invites and transactions.
//
// Lock order: a wallet's mu, then persistMu. The index lock is never held
// while taking either.
type Coordinator struct {
	records  *storage.Records
	verifier IdentityVerifier
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() (uuid.UUID, error)

	indexMu     sync.RWMutex
	wallets     map[uuid.UUID]*walletState
	txWallet    map[uuid.UUID]uuid.UUID
	inviteIndex map[uuid.UUID]uuid.UUID

	// committed mirrors what was last written to the store
	persistMu        sync.Mutex
	committedWallets map[uuid.UUID]*types.Wallet
	committedTxs     map[uuid.UUID]*types.Transaction
	committedInvites map[uuid.UUID]*types.Invite
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithMetrics attaches metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator creates an empty Coordinator. Call Load to restore
// persisted state.
func NewCoordinator(records *storage.Records, verifier IdentityVerifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		records:          records,
		verifier:         verifier,
		now:              time.Now,
		newID:            uuid.NewV7,
		wallets:          make(map[uuid.UUID]*walletState),
		txWallet:         make(map[uuid.UUID]uuid.UUID),
		inviteIndex:      make(map[uuid.UUID]uuid.UUID),
		committedWallets: make(map[uuid.UUID]*types.Wallet),
		committedTxs:     make(map[uuid.UUID]*types.Transaction),
		committedInvites: make(map[uuid.UUID]*types.Invite),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load restores wallets, transactions and invites from the store, rejecting
// records that break the registry or lifecycle invariants
func (c *Coordinator) Load(ctx context.Context) error {
	wallets, err := c.records.LoadWallets(ctx)
	if err != nil {
		return err
	}
	set, err := c.records.LoadTransactions(ctx)
	if err != nil {
		return err
	}
	invites, err := c.records.LoadInvites(ctx)
	if err != nil {
		return err
	}

	states := make(map[uuid.UUID]*walletState, len(wallets))
	for _, w := range wallets {
		if err := registry.Validate(w); err != nil {
			return fmt.Errorf("stored wallet %s: %w", w.ID, err)
		}
		if _, dup := states[w.ID]; dup {
			return fmt.Errorf("stored wallet %s appears twice", w.ID)
		}
		states[w.ID] = &walletState{
			wallet:  w,
			txs:     make(map[uuid.UUID]*types.Transaction),
			invites: make(map[uuid.UUID]*types.Invite),
		}
	}

	txWallet := make(map[uuid.UUID]uuid.UUID)
	for _, group := range [][]*types.Transaction{set.Pending, set.Completed} {
		for _, tx := range group {
			ws, ok := states[tx.WalletID]
			if !ok {
				return fmt.Errorf("stored transaction %s references unknown wallet %s", tx.ID, tx.WalletID)
			}
			if err := approval.Check(ws.wallet, tx); err != nil {
				return fmt.Errorf("stored transaction: %w", err)
			}
			if _, dup := txWallet[tx.ID]; dup {
				return fmt.Errorf("stored transaction %s appears twice", tx.ID)
			}
			ws.txs[tx.ID] = tx
			txWallet[tx.ID] = tx.WalletID
		}
	}

	inviteIndex := make(map[uuid.UUID]uuid.UUID)
	for _, inv := range invites {
		ws, ok := states[inv.WalletID]
		if !ok {
			return fmt.Errorf("stored invite %s references unknown wallet %s", inv.ID, inv.WalletID)
		}
		ws.invites[inv.ID] = inv
		inviteIndex[inv.ID] = inv.WalletID
	}

	c.persistMu.Lock()
	for id, ws := range states {
		c.committedWallets[id] = ws.wallet
		for txID, tx := range ws.txs {
			c.committedTxs[txID] = tx
		}
		for invID, inv := range ws.invites {
			c.committedInvites[invID] = inv
		}
	}
	c.persistMu.Unlock()

	c.indexMu.Lock()
	c.wallets = states
	c.txWallet = txWallet
	c.inviteIndex = inviteIndex
	c.indexMu.Unlock()
	return nil
}

// commit persists ch on top of everything already committed. The caller
// holds the lock of the wallet the records belong to.
//
// The records live under separate keys. When a save fails, the ones already
// saved are rewritten from the committed mirror, so the store never keeps
// half of a change.
func (c *Coordinator) commit(ctx context.Context, ch change) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	type step struct {
		name    string
		save    func(context.Context) error
		restore func(context.Context) error
	}
	var steps []step
	if len(ch.invites) > 0 {
		steps = append(steps, step{
			name:    "invites",
			save:    func(ctx context.Context) error { return c.saveInvites(ctx, ch.invites) },
			restore: func(ctx context.Context) error { return c.saveInvites(ctx, nil) },
		})
	}
	if len(ch.txs) > 0 {
		steps = append(steps, step{
			name:    "transactions",
			save:    func(ctx context.Context) error { return c.saveTransactions(ctx, ch.txs) },
			restore: func(ctx context.Context) error { return c.saveTransactions(ctx, nil) },
		})
	}
	if ch.wallet != nil {
		steps = append(steps, step{
			name:    "wallets",
			save:    func(ctx context.Context) error { return c.saveWallets(ctx, ch.wallet) },
			restore: func(ctx context.Context) error { return c.saveWallets(ctx, nil) },
		})
	}

	for i, st := range steps {
		if err := st.save(ctx); err != nil {
			// the caller's context may be what failed the save
			rctx := context.WithoutCancel(ctx)
			for _, done := range steps[:i] {
				if rerr := done.restore(rctx); rerr != nil {
					logger.Error(ctx, "failed to restore records after a partial write",
						"records", done.name,
						"error", rerr,
					)
				}
			}
			return fmt.Errorf("failed to save %s: %w", st.name, err)
		}
	}

	for _, inv := range ch.invites {
		c.committedInvites[inv.ID] = inv
	}
	for _, tx := range ch.txs {
		c.committedTxs[tx.ID] = tx
	}
	if ch.wallet != nil {
		c.committedWallets[ch.wallet.ID] = ch.wallet
	}
	return nil
}

// saveInvites writes the committed invites with replacing applied on top.
// The caller holds persistMu.
func (c *Coordinator) saveInvites(ctx context.Context, replacing []*types.Invite) error {
	all := make([]*types.Invite, 0, len(c.committedInvites)+len(replacing))
	replaced := make(map[uuid.UUID]bool, len(replacing))
	for _, inv := range replacing {
		replaced[inv.ID] = true
		all = append(all, inv)
	}
	for id, inv := range c.committedInvites {
		if !replaced[id] {
			all = append(all, inv)
		}
	}
	sort.Slice(all, func(i, j int) bool { return before(all[i].CreatedAt, all[i].ID, all[j].CreatedAt, all[j].ID) })
	return c.records.SaveInvites(ctx, all)
}

// saveTransactions writes the committed transactions with replacing applied
// on top, split by status. The caller holds persistMu.
func (c *Coordinator) saveTransactions(ctx context.Context, replacing []*types.Transaction) error {
	replaced := make(map[uuid.UUID]bool, len(replacing))
	set := &storage.TransactionSet{}
	add := func(tx *types.Transaction) {
		if tx.IsCompleted() {
			set.Completed = append(set.Completed, tx)
		} else {
			set.Pending = append(set.Pending, tx)
		}
	}
	for _, tx := range replacing {
		replaced[tx.ID] = true
		add(tx)
	}
	for id, tx := range c.committedTxs {
		if !replaced[id] {
			add(tx)
		}
	}
	sortTransactions(set.Pending)
	sortTransactions(set.Completed)
	return c.records.SaveTransactions(ctx, set)
}

// saveWallets writes the committed wallets, with replacing in place of its
// committed version when non-nil. The caller holds persistMu.
func (c *Coordinator) saveWallets(ctx context.Context, replacing *types.Wallet) error {
	all := make([]*types.Wallet, 0, len(c.committedWallets)+1)
	if replacing != nil {
		all = append(all, replacing)
	}
	for id, w := range c.committedWallets {
		if replacing == nil || id != replacing.ID {
			all = append(all, w)
		}
	}
	sort.Slice(all, func(i, j int) bool { return before(all[i].CreatedAt, all[i].ID, all[j].CreatedAt, all[j].ID) })
	return c.records.SaveWallets(ctx, all)
}

// lookupWallet returns the state of a wallet, unlocked
func (c *Coordinator) lookupWallet(id uuid.UUID) (*walletState, bool) {
	c.indexMu.RLock()
	defer c.indexMu.RUnlock()
	ws, ok := c.wallets[id]
	return ws, ok
}

func (c *Coordinator) lookupTransaction(id uuid.UUID) (*walletState, bool) {
	c.indexMu.RLock()
	defer c.indexMu.RUnlock()
	walletID, ok := c.txWallet[id]
	if !ok {
		return nil, false
	}
	ws, ok := c.wallets[walletID]
	return ws, ok
}

func (c *Coordinator) lookupInvite(id uuid.UUID) (*walletState, bool) {
	c.indexMu.RLock()
	defer c.indexMu.RUnlock()
	walletID, ok := c.inviteIndex[id]
	if !ok {
		return nil, false
	}
	ws, ok := c.wallets[walletID]
	return ws, ok
}

// allWallets returns every wallet state in creation order
func (c *Coordinator) allWallets() []*walletState {
	c.indexMu.RLock()
	out := make([]*walletState, 0, len(c.wallets))
	for _, ws := range c.wallets {
		out = append(out, ws)
	}
	c.indexMu.RUnlock()

	// wallet pointers are swapped only under each wallet's lock
	keys := make(map[*walletState]*types.Wallet, len(out))
	for _, ws := range out {
		ws.mu.Lock()
		keys[ws] = ws.wallet
		ws.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := keys[out[i]], keys[out[j]]
		return before(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
	})
	return out
}

func requireSession(sess *session.Session) error {
	if sess == nil || sess.IdentityKey == "" {
		return apperrors.ErrUnauthorized
	}
	return nil
}

func before(at1 time.Time, id1 uuid.UUID, at2 time.Time, id2 uuid.UUID) bool {
	if !at1.Equal(at2) {
		return at1.Before(at2)
	}
	return id1.String() < id2.String()
}

func sortTransactions(txs []*types.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		return before(txs[i].CreatedAt, txs[i].ID, txs[j].CreatedAt, txs[j].ID)
	})
}
