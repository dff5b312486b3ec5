package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/multiris/multiris/internal/approval"
	"github.com/multiris/multiris/internal/session"
	"github.com/multiris/multiris/internal/storage"
	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fakeIdentity treats a proof's nullifier as the identity it proves
type fakeIdentity struct {
	mu      sync.Mutex
	err     error
	signals []string
}

func (f *fakeIdentity) VerifyIdentity(_ context.Context, proof types.IdentityProof, signal *string) (types.IdentityKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if signal != nil {
		f.signals = append(f.signals, *signal)
	}
	if f.err != nil {
		return "", f.err
	}
	return types.IdentityKey(proof.NullifierHash), nil
}

// failingStore fails every write once armed, or only writes to failKey
type failingStore struct {
	*storage.MemoryStore
	fail    bool
	failKey string
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.fail || (s.failKey != "" && key == s.failKey) {
		return errors.New("disk full")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

type fixture struct {
	c       *Coordinator
	records *storage.Records
	ident   *fakeIdentity
	kv      *failingStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := &failingStore{MemoryStore: storage.NewMemoryStore()}
	records := storage.NewRecords(kv)
	ident := &fakeIdentity{}

	var tick int64
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(tick) * time.Second)
	}
	return &fixture{
		c:       NewCoordinator(records, ident, WithClock(clock)),
		records: records,
		ident:   ident,
		kv:      kv,
	}
}

func sess(key types.IdentityKey) *session.Session {
	return &session.Session{ID: "sid-" + string(key), IdentityKey: key}
}

func proofOf(key types.IdentityKey) types.IdentityProof {
	return types.IdentityProof{Proof: "0x01", MerkleRoot: "0x02", NullifierHash: string(key), VerificationLevel: types.VerificationLevelOrb}
}

func payload() types.TransactionPayload {
	return types.TransactionPayload{
		Title:     "Groceries",
		Recipient: "0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
		Amount:    "5 WLD",
	}
}

// wallet creates a wallet owned by the first key whose other keys joined and
// confirmed, then applies threshold when it is non-zero
func (f *fixture) wallet(t *testing.T, threshold int, keys ...types.IdentityKey) *types.Wallet {
	t.Helper()
	ctx := context.Background()

	w, invites, err := f.c.CreateWallet(ctx, sess(keys[0]), "Shared", len(keys)-1)
	require.NoError(t, err)
	for i, k := range keys[1:] {
		_, err := f.c.JoinWallet(ctx, sess(k), invites[i].ID)
		require.NoError(t, err)
		w, err = f.c.ConfirmMembership(ctx, sess(k), invites[i].ID, proofOf(k))
		require.NoError(t, err)
	}
	if threshold > 0 {
		w, err = f.c.SetThreshold(ctx, sess(keys[0]), w.ID, threshold)
		require.NoError(t, err)
	}
	return w
}

func TestCreateWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, invites, err := f.c.CreateWallet(ctx, sess("alice"), "  Household  ", 2)
	require.NoError(t, err)

	assert.Equal(t, "Household", w.Name)
	assert.Equal(t, 1, w.Threshold)
	require.Len(t, w.Signers, 1)
	assert.Equal(t, types.IdentityKey("alice"), w.Signers[0].IdentityKey)
	assert.True(t, w.Signers[0].IsSynchronized())
	assert.Equal(t, 7, int(w.ID.Version()))

	require.Len(t, invites, 2)
	for _, inv := range invites {
		assert.Equal(t, w.ID, inv.WalletID)
		assert.True(t, inv.IsOpen())
	}

	t.Run("validation", func(t *testing.T) {
		_, _, err := f.c.CreateWallet(ctx, sess("alice"), "   ", 0)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))

		_, _, err = f.c.CreateWallet(ctx, sess("alice"), "x", MaxInvites+1)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))

		_, _, err = f.c.CreateWallet(ctx, nil, "x", 0)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnauthorized))
	})
}

func TestThresholdOneCompletesImmediately(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, 0, "alice")

	tx, err := f.c.CreateTransaction(context.Background(), sess("alice"), w.ID, payload())
	require.NoError(t, err)

	assert.Equal(t, types.TransactionStatusCompleted, tx.Status)
	assert.Equal(t, []types.IdentityKey{"alice"}, tx.Approvals)
}

func TestThreeSignersThresholdTwo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 2, "a", "b", "c")
	require.Len(t, w.Signers, 3)

	tx, err := f.c.CreateTransaction(ctx, sess("a"), w.ID, payload())
	require.NoError(t, err)
	assert.Equal(t, types.TransactionStatusPending, tx.Status)
	assert.Equal(t, []types.IdentityKey{"a"}, tx.Approvals)

	out, got, err := f.c.Approve(ctx, sess("b"), tx.ID)
	require.NoError(t, err)
	assert.True(t, out.Transitioned)
	assert.Equal(t, types.TransactionStatusCompleted, got.Status)
	assert.Equal(t, []types.IdentityKey{"a", "b"}, got.Approvals)

	_, _, err = f.c.Approve(ctx, sess("c"), tx.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTransactionFinalized))

	stored, err := f.c.GetTransaction(ctx, sess("c"), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.IdentityKey{"a", "b"}, stored.Approvals)
}

func TestCreateTransaction_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 0, "a")

	_, err := f.c.CreateTransaction(ctx, sess("a"), uuid.New(), payload())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownWallet))

	_, err = f.c.CreateTransaction(ctx, sess("stranger"), w.ID, payload())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownSigner))

	bad := payload()
	bad.Amount = "-1"
	_, err = f.c.CreateTransaction(ctx, sess("a"), w.ID, bad)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))
}

func TestJoinAndConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w, invites, err := f.c.CreateWallet(ctx, sess("a"), "Pair", 2)
	require.NoError(t, err)

	joined, err := f.c.JoinWallet(ctx, sess("b"), invites[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, joined.Threshold, "two signers force unanimity")
	assert.Equal(t, types.SyncStatusPending, joined.Signers[1].SyncStatus)
	assert.Equal(t, "Co-signer 1", joined.Signers[1].DisplayLabel)

	t.Run("invite is single use", func(t *testing.T) {
		_, err := f.c.JoinWallet(ctx, sess("c"), invites[0].ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("duplicate identity", func(t *testing.T) {
		_, err := f.c.JoinWallet(ctx, sess("b"), invites[1].ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDuplicateIdentity))

		inv, err := f.c.GetInvite(ctx, sess("b"), invites[1].ID)
		require.NoError(t, err)
		assert.True(t, inv.IsOpen())
	})

	t.Run("pending signer cannot transact", func(t *testing.T) {
		_, err := f.c.CreateTransaction(ctx, sess("b"), w.ID, payload())
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownSigner))
	})

	t.Run("failed verification adds no synchronized signer", func(t *testing.T) {
		f.ident.err = apperrors.InvalidProof("invalid_proof")
		_, err := f.c.ConfirmMembership(ctx, sess("b"), invites[0].ID, proofOf("b"))
		f.ident.err = nil

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidProof))
		got, err := f.c.GetWallet(ctx, sess("a"), w.ID)
		require.NoError(t, err)
		assert.False(t, got.IsSynchronizedSigner("b"))
	})

	t.Run("proof of another identity", func(t *testing.T) {
		_, err := f.c.ConfirmMembership(ctx, sess("b"), invites[0].ID, proofOf("mallory"))
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidProof))
	})

	t.Run("confirm binds invite as signal", func(t *testing.T) {
		got, err := f.c.ConfirmMembership(ctx, sess("b"), invites[0].ID, proofOf("b"))
		require.NoError(t, err)
		assert.True(t, got.IsSynchronizedSigner("b"))
		assert.Equal(t, invites[0].ID.String(), f.ident.signals[len(f.ident.signals)-1])

		// idempotent
		_, err = f.c.ConfirmMembership(ctx, sess("b"), invites[0].ID, proofOf("b"))
		assert.NoError(t, err)
	})

	t.Run("only the joiner can confirm", func(t *testing.T) {
		_, err := f.c.ConfirmMembership(ctx, sess("c"), invites[0].ID, proofOf("c"))
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	})
}

func TestSetThreshold(t *testing.T) {
	ctx := context.Background()

	t.Run("two signers cannot drop to one", func(t *testing.T) {
		f := newFixture(t)
		w := f.wallet(t, 0, "a", "b")

		_, err := f.c.SetThreshold(ctx, sess("a"), w.ID, 1)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeOutOfRange))

		got, err := f.c.GetWallet(ctx, sess("a"), w.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Threshold)
	})

	t.Run("lowering completes pending transactions once", func(t *testing.T) {
		f := newFixture(t)
		w := f.wallet(t, 3, "a", "b", "c")
		tx, err := f.c.CreateTransaction(ctx, sess("a"), w.ID, payload())
		require.NoError(t, err)
		_, _, err = f.c.Approve(ctx, sess("b"), tx.ID)
		require.NoError(t, err)

		_, err = f.c.SetThreshold(ctx, sess("c"), w.ID, 2)
		require.NoError(t, err)

		got, err := f.c.GetTransaction(ctx, sess("a"), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, types.TransactionStatusCompleted, got.Status)

		// raising again never reopens it
		_, err = f.c.SetThreshold(ctx, sess("a"), w.ID, 3)
		require.NoError(t, err)
		got, err = f.c.GetTransaction(ctx, sess("a"), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, types.TransactionStatusCompleted, got.Status)
	})

	t.Run("only synchronized signers", func(t *testing.T) {
		f := newFixture(t)
		w := f.wallet(t, 0, "a", "b", "c")

		_, err := f.c.SetThreshold(ctx, sess("stranger"), w.ID, 3)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownSigner))
	})
}

func TestRemoveSigner(t *testing.T) {
	ctx := context.Background()

	t.Run("removed signer can no longer approve", func(t *testing.T) {
		f := newFixture(t)
		w := f.wallet(t, 3, "a", "b", "c", "d")
		tx, err := f.c.CreateTransaction(ctx, sess("a"), w.ID, payload())
		require.NoError(t, err)

		got, err := f.c.RemoveSigner(ctx, sess("a"), w.ID, "d")
		require.NoError(t, err)
		assert.Equal(t, 3, got.Threshold)

		_, _, err = f.c.Approve(ctx, sess("d"), tx.ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownSigner))
	})

	t.Run("last signer", func(t *testing.T) {
		f := newFixture(t)
		w := f.wallet(t, 0, "a")

		_, err := f.c.RemoveSigner(ctx, sess("a"), w.ID, "a")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLastSignerViolation))
	})

	t.Run("shrinking settles pending transactions", func(t *testing.T) {
		f := newFixture(t)
		w := f.wallet(t, 3, "a", "b", "c")
		tx, err := f.c.CreateTransaction(ctx, sess("a"), w.ID, payload())
		require.NoError(t, err)
		_, _, err = f.c.Approve(ctx, sess("b"), tx.ID)
		require.NoError(t, err)

		// three to two forces threshold two, which the two approvals meet
		_, err = f.c.RemoveSigner(ctx, sess("a"), w.ID, "c")
		require.NoError(t, err)

		got, err := f.c.GetTransaction(ctx, sess("a"), tx.ID)
		require.NoError(t, err)
		assert.True(t, got.IsCompleted())
	})
}

func TestApprove_Idempotency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 3, "a", "b", "c")
	tx, err := f.c.CreateTransaction(ctx, sess("a"), w.ID, payload())
	require.NoError(t, err)

	_, _, err = f.c.Approve(ctx, sess("a"), tx.ID)
	assert.True(t, apperrors.IsNoOp(err))

	_, _, err = f.c.Approve(ctx, sess("b"), tx.ID)
	require.NoError(t, err)
	_, _, err = f.c.Approve(ctx, sess("b"), tx.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlreadyApproved))

	got, err := f.c.GetTransaction(ctx, sess("a"), tx.ID)
	require.NoError(t, err)
	assert.Len(t, got.Approvals, 2)

	_, _, err = f.c.Approve(ctx, sess("a"), uuid.New())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestApprove_ConcurrentLastApprovals(t *testing.T) {
	for i := 0; i < 25; i++ {
		f := newFixture(t)
		ctx := context.Background()
		w := f.wallet(t, 3, "a", "b", "c", "d")
		tx, err := f.c.CreateTransaction(ctx, sess("a"), w.ID, payload())
		require.NoError(t, err)

		var (
			start    = make(chan struct{})
			outcomes = make([]approval.Outcome, 2)
			g        errgroup.Group
		)
		for n, key := range []types.IdentityKey{"b", "c"} {
			g.Go(func() error {
				<-start
				out, _, err := f.c.Approve(ctx, sess(key), tx.ID)
				outcomes[n] = out
				return err
			})
		}
		close(start)
		require.NoError(t, g.Wait())

		transitions := 0
		for _, out := range outcomes {
			if out.Transitioned {
				transitions++
			}
		}
		assert.Equal(t, 1, transitions)

		got, err := f.c.GetTransaction(ctx, sess("a"), tx.ID)
		require.NoError(t, err)
		assert.True(t, got.IsCompleted())
		assert.ElementsMatch(t, []types.IdentityKey{"a", "b", "c"}, got.Approvals)
	}
}

func TestConcurrentWalletsPersistEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		owner := types.IdentityKey(uuid.NewString())
		g.Go(func() error {
			w, _, err := f.c.CreateWallet(ctx, sess(owner), "w", 0)
			if err != nil {
				return err
			}
			_, err = f.c.CreateTransaction(ctx, sess(owner), w.ID, payload())
			return err
		})
	}
	require.NoError(t, g.Wait())

	wallets, err := f.records.LoadWallets(ctx)
	require.NoError(t, err)
	assert.Len(t, wallets, 8)

	set, err := f.records.LoadTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, set.Completed, 8)
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shared := f.wallet(t, 2, "a", "b", "c")
	solo := f.wallet(t, 0, "a")
	other := f.wallet(t, 0, "z")

	pending, err := f.c.CreateTransaction(ctx, sess("a"), shared.ID, payload())
	require.NoError(t, err)
	done, err := f.c.CreateTransaction(ctx, sess("a"), solo.ID, payload())
	require.NoError(t, err)
	_, err = f.c.CreateTransaction(ctx, sess("z"), other.ID, payload())
	require.NoError(t, err)

	wallets, err := f.c.ListWallets(ctx, sess("a"))
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, shared.ID, wallets[0].ID)
	assert.Equal(t, solo.ID, wallets[1].ID)

	all, err := f.c.ListTransactions(ctx, sess("a"), "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, done.ID, all[0].ID, "newest first")

	onlyPending, err := f.c.ListTransactions(ctx, sess("b"), types.TransactionStatusPending)
	require.NoError(t, err)
	require.Len(t, onlyPending, 1)
	assert.Equal(t, pending.ID, onlyPending[0].ID)

	_, err = f.c.ListTransactions(ctx, sess("a"), "signed")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))

	walletTxs, err := f.c.WalletTransactions(ctx, sess("b"), shared.ID)
	require.NoError(t, err)
	assert.Len(t, walletTxs, 1)

	members, err := f.c.Members(ctx, sess("c"), shared.ID)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	t.Run("outsiders see nothing", func(t *testing.T) {
		_, err := f.c.GetWallet(ctx, sess("z"), shared.ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownWallet))

		_, err = f.c.GetTransaction(ctx, sess("z"), pending.ID)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

		none, err := f.c.ListTransactions(ctx, sess("nobody"), "")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestLoad_RestoresState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 2, "a", "b", "c")
	tx, err := f.c.CreateTransaction(ctx, sess("a"), w.ID, payload())
	require.NoError(t, err)
	inv, err := f.c.CreateInvite(ctx, sess("b"), w.ID, "Dave")
	require.NoError(t, err)

	restored := NewCoordinator(f.records, f.ident)
	require.NoError(t, restored.Load(ctx))

	got, err := restored.GetWallet(ctx, sess("c"), w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.Signers, got.Signers)
	assert.Equal(t, 2, got.Threshold)

	out, _, err := restored.Approve(ctx, sess("c"), tx.ID)
	require.NoError(t, err)
	assert.True(t, out.Transitioned)

	joined, err := restored.JoinWallet(ctx, sess("d"), inv.ID)
	require.NoError(t, err)
	assert.Len(t, joined.Signers, 4)
}

func TestLoad_RejectsBrokenInvariants(t *testing.T) {
	ctx := context.Background()
	records := storage.NewRecords(storage.NewMemoryStore())
	w := &types.Wallet{ID: uuid.New(), Threshold: 1, Signers: []types.Signer{
		{IdentityKey: "a", SyncStatus: types.SyncStatusSynchronized},
		{IdentityKey: "b", SyncStatus: types.SyncStatusSynchronized},
	}}
	require.NoError(t, records.SaveWallets(ctx, []*types.Wallet{w}))

	err := NewCoordinator(records, &fakeIdentity{}).Load(ctx)
	assert.Error(t, err)
}

func TestPersistFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 2, "a", "b", "c")
	tx, err := f.c.CreateTransaction(ctx, sess("a"), w.ID, payload())
	require.NoError(t, err)

	f.kv.fail = true
	_, _, err = f.c.Approve(ctx, sess("b"), tx.ID)
	require.Error(t, err)
	_, err = f.c.SetThreshold(ctx, sess("a"), w.ID, 3)
	require.Error(t, err)
	f.kv.fail = false

	got, err := f.c.GetTransaction(ctx, sess("a"), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.IdentityKey{"a"}, got.Approvals)
	gw, err := f.c.GetWallet(ctx, sess("a"), w.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, gw.Threshold)

	out, _, err := f.c.Approve(ctx, sess("b"), tx.ID)
	require.NoError(t, err)
	assert.True(t, out.Transitioned)
}

func TestPartialPersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()

	t.Run("failed join keeps the invite usable", func(t *testing.T) {
		f := newFixture(t)
		w, invites, err := f.c.CreateWallet(ctx, sess("alice"), "Shared", 1)
		require.NoError(t, err)

		f.kv.failKey = storage.KeyWallets
		_, err = f.c.JoinWallet(ctx, sess("bob"), invites[0].ID)
		require.Error(t, err)
		f.kv.failKey = ""

		stored, err := f.records.LoadInvites(ctx)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.True(t, stored[0].IsOpen())
		assert.Empty(t, stored[0].AcceptedBy)

		restored := NewCoordinator(f.records, f.ident)
		require.NoError(t, restored.Load(ctx))
		joined, err := restored.JoinWallet(ctx, sess("bob"), invites[0].ID)
		require.NoError(t, err)
		assert.Equal(t, w.ID, joined.ID)
		assert.Len(t, joined.Signers, 2)
	})

	t.Run("failed settle never stores a completion", func(t *testing.T) {
		f := newFixture(t)
		w := f.wallet(t, 3, "a", "b", "c", "d")
		tx, err := f.c.CreateTransaction(ctx, sess("a"), w.ID, payload())
		require.NoError(t, err)
		_, _, err = f.c.Approve(ctx, sess("b"), tx.ID)
		require.NoError(t, err)

		f.kv.failKey = storage.KeyWallets
		_, err = f.c.SetThreshold(ctx, sess("a"), w.ID, 2)
		require.Error(t, err)
		f.kv.failKey = ""

		set, err := f.records.LoadTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, set.Pending, 1)
		assert.Equal(t, tx.ID, set.Pending[0].ID)
		assert.Empty(t, set.Completed)

		live, err := f.c.GetTransaction(ctx, sess("a"), tx.ID)
		require.NoError(t, err)
		assert.Equal(t, types.TransactionStatusPending, live.Status)

		// once the store recovers the settle goes through and sticks
		_, err = f.c.SetThreshold(ctx, sess("a"), w.ID, 2)
		require.NoError(t, err)
		_, err = f.c.CreateTransaction(ctx, sess("a"), w.ID, payload())
		require.NoError(t, err)

		set, err = f.records.LoadTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, set.Completed, 1)
		assert.Equal(t, tx.ID, set.Completed[0].ID)
		assert.Len(t, set.Pending, 1)
	})
}
