package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/multiris/multiris/pkg/types"
)

// Record keys
const (
	KeyWallets      = "wallets"
	KeyTransactions = "transactions"
	KeyInvites      = "invites"
)

// recordVersion is the envelope version written by this build
const recordVersion = 1

// UserKey returns the key of the user record bound to a session
func UserKey(sessionID string) string {
	return "session/" + sessionID + "/user"
}

// IdempotencyKey returns the key of a stored response. The client key is
// hashed together with its scope so arbitrary header values never reach the
// store verbatim.
func IdempotencyKey(scope, key, method, path string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + key + "\x00" + method + "\x00" + path))
	return idempotencyPrefix + hex.EncodeToString(sum[:])
}

const idempotencyPrefix = "idempotency/"

// IdempotencyRecord is a response cached under a client idempotency key
type IdempotencyRecord struct {
	Scope      string      `json:"scope"`
	Method     string      `json:"method"`
	Path       string      `json:"path"`
	BodyHash   string      `json:"body_hash"`
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// TransactionSet is the persisted transaction record, split by status
type TransactionSet struct {
	Pending   []*types.Transaction `json:"pending"`
	Completed []*types.Transaction `json:"completed"`
}

// envelope wraps every persisted record. Records written before versioning
// are the bare data and decode as version 0.
type envelope struct {
	Version int             `json:"version"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// Records is a typed repository over a KVStore
type Records struct {
	kv KVStore
}

// NewRecords creates a new Records repository
func NewRecords(kv KVStore) *Records {
	return &Records{kv: kv}
}

// LoadWallets returns all wallets, or nil when none were saved
func (r *Records) LoadWallets(ctx context.Context) ([]*types.Wallet, error) {
	var wallets []*types.Wallet
	if _, err := r.load(ctx, KeyWallets, &wallets); err != nil {
		return nil, err
	}
	return wallets, nil
}

// SaveWallets replaces the wallet record
func (r *Records) SaveWallets(ctx context.Context, wallets []*types.Wallet) error {
	if wallets == nil {
		wallets = []*types.Wallet{}
	}
	return r.save(ctx, KeyWallets, wallets)
}

// LoadTransactions returns the transaction record
func (r *Records) LoadTransactions(ctx context.Context) (*TransactionSet, error) {
	set := &TransactionSet{}
	if _, err := r.load(ctx, KeyTransactions, set); err != nil {
		return nil, err
	}
	return set, nil
}

// SaveTransactions replaces the transaction record
func (r *Records) SaveTransactions(ctx context.Context, set *TransactionSet) error {
	out := TransactionSet{Pending: set.Pending, Completed: set.Completed}
	if out.Pending == nil {
		out.Pending = []*types.Transaction{}
	}
	if out.Completed == nil {
		out.Completed = []*types.Transaction{}
	}
	return r.save(ctx, KeyTransactions, out)
}

// LoadInvites returns all invites
func (r *Records) LoadInvites(ctx context.Context) ([]*types.Invite, error) {
	var invites []*types.Invite
	if _, err := r.load(ctx, KeyInvites, &invites); err != nil {
		return nil, err
	}
	return invites, nil
}

// SaveInvites replaces the invite record
func (r *Records) SaveInvites(ctx context.Context, invites []*types.Invite) error {
	if invites == nil {
		invites = []*types.Invite{}
	}
	return r.save(ctx, KeyInvites, invites)
}

// GetUser returns the user bound to a session, nil if there is none
func (r *Records) GetUser(ctx context.Context, sessionID string) (*types.User, error) {
	var user types.User
	found, err := r.load(ctx, UserKey(sessionID), &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

// PutUser binds user to a session
func (r *Records) PutUser(ctx context.Context, sessionID string, user *types.User) error {
	return r.save(ctx, UserKey(sessionID), user)
}

// RemoveUser drops a session's user record
func (r *Records) RemoveUser(ctx context.Context, sessionID string) error {
	return r.kv.Remove(ctx, UserKey(sessionID))
}

// GetIdempotency returns the unexpired record stored under key, nil if there
// is none. Expired records are removed.
func (r *Records) GetIdempotency(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error) {
	var rec IdempotencyRecord
	found, err := r.load(ctx, key, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if !now.Before(rec.ExpiresAt) {
		if err := r.kv.Remove(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &rec, nil
}

// PutIdempotency stores rec under key
func (r *Records) PutIdempotency(ctx context.Context, key string, rec *IdempotencyRecord) error {
	return r.save(ctx, key, rec)
}

func (r *Records) load(ctx context.Context, key string, out any) (bool, error) {
	raw, found, err := r.kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := decodeRecord(raw, kindOf(key), out); err != nil {
		return false, fmt.Errorf("failed to decode record %s: %w", key, err)
	}
	return true, nil
}

func (r *Records) save(ctx context.Context, key string, v any) error {
	raw, err := encodeRecord(kindOf(key), v)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", key, err)
	}
	return r.kv.Set(ctx, key, raw)
}

// kindOf maps a key to the record kind stored in its envelope
func kindOf(key string) string {
	switch key {
	case KeyWallets, KeyTransactions, KeyInvites:
		return key
	}
	switch {
	case strings.HasPrefix(key, idempotencyPrefix):
		return "idempotency"
	default:
		return "user"
	}
}

func encodeRecord(kind string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: recordVersion, Kind: kind, Data: data})
}

func decodeRecord(raw []byte, kind string, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Version == 0 {
		// unversioned record: the bare data
		return json.Unmarshal(raw, out)
	}
	if env.Version > recordVersion {
		return fmt.Errorf("record version %d is newer than supported version %d", env.Version, recordVersion)
	}
	if env.Kind != kind {
		return fmt.Errorf("record kind %q, expected %q", env.Kind, kind)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("record has no data")
	}
	return json.Unmarshal(env.Data, out)
}
