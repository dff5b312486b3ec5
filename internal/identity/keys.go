package identity

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/multiris/multiris/pkg/types"
	"golang.org/x/crypto/blake2b"
)

// fieldBytes is the width of a nullifier or signal hash field element
const fieldBytes = 32

// NormalizeNullifier returns the canonical 0x-prefixed, zero-padded,
// lowercase form of a nullifier hash
func NormalizeNullifier(nullifierHash string) (string, error) {
	b, err := decodeField(nullifierHash)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}

// DeriveIdentityKey maps a nullifier hash to the identity key used in signer
// registries. The app id keys the hash so identities never collide across
// deployments. The same nullifier always yields the same key.
func DeriveIdentityKey(appID, nullifierHash string) (types.IdentityKey, error) {
	b, err := decodeField(nullifierHash)
	if err != nil {
		return "", err
	}

	key := []byte(appID)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return "", fmt.Errorf("init identity hash: %w", err)
	}
	h.Write(b)
	return types.IdentityKey(hex.EncodeToString(h.Sum(nil))), nil
}

// HashToField hashes a signal into the proof's field the way the identity
// provider's SDK does: keccak256 shifted right by 8 bits, as 32-byte hex.
// 0x-prefixed hex input is hashed as the bytes it encodes, left-padded to a
// whole byte when its length is odd; anything else as its UTF-8 bytes.
func HashToField(signal string) string {
	input := []byte(signal)
	if digits, ok := strings.CutPrefix(signal, "0x"); ok {
		if len(digits)%2 == 1 {
			digits = "0" + digits
		}
		if decoded, err := hexutil.Decode("0x" + digits); err == nil {
			input = decoded
		}
	}

	n := new(big.Int).SetBytes(crypto.Keccak256(input))
	n.Rsh(n, 8)
	return hexutil.Encode(n.FillBytes(make([]byte, fieldBytes)))
}

func decodeField(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("nullifier hash is empty")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	s = "0x" + strings.ToLower(s[2:])
	if len(s) == 2 {
		return nil, fmt.Errorf("nullifier hash is empty")
	}
	if len(s)%2 == 1 {
		s = "0x0" + s[2:]
	}

	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid nullifier hash: %w", err)
	}
	n := new(big.Int).SetBytes(raw)
	if n.BitLen() > fieldBytes*8 {
		return nil, fmt.Errorf("nullifier hash exceeds %d bytes", fieldBytes)
	}
	return n.FillBytes(make([]byte, fieldBytes)), nil
}
