package types

// VerificationLevel is the strength of the identity credential behind a proof
type VerificationLevel string

// VerificationLevel constants
const (
	VerificationLevelDevice VerificationLevel = "device"
	VerificationLevelOrb    VerificationLevel = "orb"
)

// IsValid reports whether the level is one the identity provider issues
func (l VerificationLevel) IsValid() bool {
	return l == VerificationLevelDevice || l == VerificationLevelOrb
}

// Satisfies reports whether l is at least as strong as min.
// Orb credentials satisfy any requirement; device only satisfies device.
func (l VerificationLevel) Satisfies(min VerificationLevel) bool {
	if l == VerificationLevelOrb {
		return true
	}
	return l == VerificationLevelDevice && min == VerificationLevelDevice
}

// SyncStatus constants
const (
	SyncStatusPending      SyncStatus = "pending"
	SyncStatusSynchronized SyncStatus = "synchronized"
)

// SyncStatus tracks whether a signer finished binding their identity
type SyncStatus string

// TransactionStatus constants
const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
)

// TransactionStatus is the approval lifecycle state of a transaction
type TransactionStatus string

// IsValid reports whether s is a known status
func (s TransactionStatus) IsValid() bool {
	return s == TransactionStatusPending || s == TransactionStatusCompleted
}

// InviteStatus constants
const (
	InviteStatusOpen     InviteStatus = "open"
	InviteStatusAccepted InviteStatus = "accepted"
)

// InviteStatus tracks whether an invite link was consumed
type InviteStatus string
