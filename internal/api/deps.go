package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/multiris/multiris/internal/approval"
	"github.com/multiris/multiris/internal/session"
	"github.com/multiris/multiris/pkg/types"
)

// Coordinator is the subset of app.Coordinator used by the API layer.
// It is an interface so handlers can be tested against fakes.
type Coordinator interface {
	CreateWallet(ctx context.Context, sess *session.Session, name string, invitedCount int) (*types.Wallet, []*types.Invite, error)
	GetWallet(ctx context.Context, sess *session.Session, walletID uuid.UUID) (*types.Wallet, error)
	ListWallets(ctx context.Context, sess *session.Session) ([]*types.Wallet, error)
	Members(ctx context.Context, sess *session.Session, walletID uuid.UUID) ([]types.Signer, error)
	SetThreshold(ctx context.Context, sess *session.Session, walletID uuid.UUID, n int) (*types.Wallet, error)
	RemoveSigner(ctx context.Context, sess *session.Session, walletID uuid.UUID, identityKey types.IdentityKey) (*types.Wallet, error)

	CreateInvite(ctx context.Context, sess *session.Session, walletID uuid.UUID, label string) (*types.Invite, error)
	GetInvite(ctx context.Context, sess *session.Session, inviteID uuid.UUID) (*types.Invite, error)
	JoinWallet(ctx context.Context, sess *session.Session, inviteID uuid.UUID) (*types.Wallet, error)
	ConfirmMembership(ctx context.Context, sess *session.Session, inviteID uuid.UUID, proof types.IdentityProof) (*types.Wallet, error)

	CreateTransaction(ctx context.Context, sess *session.Session, walletID uuid.UUID, payload types.TransactionPayload) (*types.Transaction, error)
	Approve(ctx context.Context, sess *session.Session, transactionID uuid.UUID) (approval.Outcome, *types.Transaction, error)
	GetTransaction(ctx context.Context, sess *session.Session, transactionID uuid.UUID) (*types.Transaction, error)
	ListTransactions(ctx context.Context, sess *session.Session, status types.TransactionStatus) ([]*types.Transaction, error)
	WalletTransactions(ctx context.Context, sess *session.Session, walletID uuid.UUID) ([]*types.Transaction, error)
}

// Sessions opens, checks and closes login sessions.
// *session.Manager implements it.
type Sessions interface {
	Login(ctx context.Context, proof types.IdentityProof) (*session.Session, string, error)
	Authenticate(ctx context.Context, token string) (*session.Session, error)
	Logout(ctx context.Context, sess *session.Session) error
}
