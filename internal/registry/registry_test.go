package registry

import (
	"testing"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(t *testing.T, keys ...types.IdentityKey) *types.Wallet {
	t.Helper()

	w := &types.Wallet{ID: uuid.New(), Name: "test"}
	reg := For(w)
	for i, k := range keys {
		_, err := reg.AddSigner(k, string(k), i == 0)
		require.NoError(t, err)
	}
	return w
}

func assertInvariants(t *testing.T, w *types.Wallet) {
	t.Helper()

	assert.GreaterOrEqual(t, w.Threshold, 1)
	assert.LessOrEqual(t, w.Threshold, len(w.Signers))
	if len(w.Signers) == 2 {
		assert.Equal(t, 2, w.Threshold)
	}
	assert.NoError(t, Validate(w))
}

func TestAddSigner(t *testing.T) {
	t.Run("creator starts synchronized", func(t *testing.T) {
		w := &types.Wallet{ID: uuid.New()}
		s, err := For(w).AddSigner("creator", "me", true)

		require.NoError(t, err)
		assert.Equal(t, types.SyncStatusSynchronized, s.SyncStatus)
		assert.Equal(t, 1, w.Threshold)
		assertInvariants(t, w)
	})

	t.Run("invitee starts pending", func(t *testing.T) {
		w := newWallet(t, "creator")
		s, err := For(w).AddSigner("invitee", "co-signer", false)

		require.NoError(t, err)
		assert.Equal(t, types.SyncStatusPending, s.SyncStatus)
		assert.Equal(t, types.IdentityKey("invitee"), w.Signers[1].IdentityKey)
	})

	t.Run("second signer forces threshold two", func(t *testing.T) {
		w := newWallet(t, "a", "b")

		assert.Equal(t, 2, w.Threshold)
		assertInvariants(t, w)
	})

	t.Run("third signer keeps threshold", func(t *testing.T) {
		w := newWallet(t, "a", "b", "c")

		assert.Equal(t, 2, w.Threshold)
		assertInvariants(t, w)
	})

	t.Run("duplicate identity rejected", func(t *testing.T) {
		w := newWallet(t, "a", "b")
		_, err := For(w).AddSigner("b", "again", false)

		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDuplicateIdentity))
		assert.Len(t, w.Signers, 2)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		w := newWallet(t, "a")
		_, err := For(w).AddSigner("", "nobody", false)

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))
	})

	t.Run("uses injected clock", func(t *testing.T) {
		at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		w := &types.Wallet{ID: uuid.New()}
		s, err := For(w).WithClock(func() time.Time { return at }).AddSigner("a", "", true)

		require.NoError(t, err)
		assert.Equal(t, at, s.JoinedAt)
		assert.Equal(t, at, w.UpdatedAt)
	})
}

func TestRemoveSigner(t *testing.T) {
	t.Run("unknown signer", func(t *testing.T) {
		w := newWallet(t, "a", "b")
		err := For(w).RemoveSigner("z")

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("last signer cannot leave", func(t *testing.T) {
		w := newWallet(t, "a")
		err := For(w).RemoveSigner("a")

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLastSignerViolation))
		assert.Len(t, w.Signers, 1)
	})

	t.Run("clamps threshold when shrinking", func(t *testing.T) {
		w := newWallet(t, "a", "b", "c", "d")
		require.NoError(t, For(w).SetThreshold(4))

		require.NoError(t, For(w).RemoveSigner("d"))
		assert.Equal(t, 3, w.Threshold)
		assertInvariants(t, w)

		require.NoError(t, For(w).RemoveSigner("c"))
		assert.Equal(t, 2, w.Threshold)
		assertInvariants(t, w)

		require.NoError(t, For(w).RemoveSigner("b"))
		assert.Equal(t, 1, w.Threshold)
		assertInvariants(t, w)
	})

	t.Run("three to two forces unanimity", func(t *testing.T) {
		w := newWallet(t, "a", "b", "c")
		require.NoError(t, For(w).SetThreshold(1))

		require.NoError(t, For(w).RemoveSigner("b"))
		assert.Equal(t, 2, w.Threshold)
		assert.Equal(t, []types.IdentityKey{"a", "c"}, keys(w))
	})
}

func TestMarkSynchronized(t *testing.T) {
	w := newWallet(t, "a", "b")
	reg := For(w)

	require.NoError(t, reg.MarkSynchronized("b"))
	assert.True(t, w.IsSynchronizedSigner("b"))

	// idempotent
	require.NoError(t, reg.MarkSynchronized("b"))
	assert.True(t, w.IsSynchronizedSigner("b"))

	err := reg.MarkSynchronized("z")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestSetThreshold(t *testing.T) {
	tests := []struct {
		name    string
		signers []types.IdentityKey
		n       int
		wantErr bool
	}{
		{"single signer one", []types.IdentityKey{"a"}, 1, false},
		{"single signer zero", []types.IdentityKey{"a"}, 0, true},
		{"single signer two", []types.IdentityKey{"a"}, 2, true},
		{"two signers one", []types.IdentityKey{"a", "b"}, 1, true},
		{"two signers two", []types.IdentityKey{"a", "b"}, 2, false},
		{"three signers one", []types.IdentityKey{"a", "b", "c"}, 1, false},
		{"three signers three", []types.IdentityKey{"a", "b", "c"}, 3, false},
		{"three signers four", []types.IdentityKey{"a", "b", "c"}, 4, true},
		{"negative", []types.IdentityKey{"a", "b", "c"}, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWallet(t, tt.signers...)
			before := w.Threshold

			err := For(w).SetThreshold(tt.n)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeOutOfRange))
				assert.Equal(t, before, w.Threshold)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.n, w.Threshold)
			}
			assertInvariants(t, w)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		wallet  *types.Wallet
		wantErr bool
	}{
		{
			name:    "no signers",
			wallet:  &types.Wallet{Threshold: 1},
			wantErr: true,
		},
		{
			name: "threshold above count",
			wallet: &types.Wallet{Threshold: 2, Signers: []types.Signer{
				{IdentityKey: "a"},
			}},
			wantErr: true,
		},
		{
			name: "weak two signer wallet",
			wallet: &types.Wallet{Threshold: 1, Signers: []types.Signer{
				{IdentityKey: "a"}, {IdentityKey: "b"},
			}},
			wantErr: true,
		},
		{
			name: "duplicate signer",
			wallet: &types.Wallet{Threshold: 2, Signers: []types.Signer{
				{IdentityKey: "a"}, {IdentityKey: "b"}, {IdentityKey: "a"},
			}},
			wantErr: true,
		},
		{
			name: "valid",
			wallet: &types.Wallet{Threshold: 2, Signers: []types.Signer{
				{IdentityKey: "a"}, {IdentityKey: "b"}, {IdentityKey: "c"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.wallet)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func keys(w *types.Wallet) []types.IdentityKey {
	out := make([]types.IdentityKey, 0, len(w.Signers))
	for _, s := range w.Signers {
		out = append(out, s.IdentityKey)
	}
	return out
}
