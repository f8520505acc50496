package near

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const ed25519Prefix = "ed25519:"

// KeyPair is an ed25519 access key.
type KeyPair struct {
	private ed25519.PrivateKey
}

// NewKeyPairFromSeed builds a key pair from a 32-byte ed25519 seed.
func NewKeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid ed25519 seed length %d", len(seed))
	}
	return &KeyPair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// ParseKeyPair parses a secret key in the form ed25519:<base58>. Both the
// 64-byte expanded key and the 32-byte seed are accepted.
func ParseKeyPair(secret string) (*KeyPair, error) {
	raw, err := decodeKey(secret)
	if err != nil {
		return nil, err
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		kp := &KeyPair{private: ed25519.PrivateKey(raw)}
		derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !derived.Equal(kp.private) {
			return nil, fmt.Errorf("secret key public half does not match its seed")
		}
		return kp, nil
	case ed25519.SeedSize:
		return NewKeyPairFromSeed(raw)
	default:
		return nil, fmt.Errorf("invalid secret key length %d", len(raw))
	}
}

// ParsePublicKey decodes ed25519:<base58> into raw bytes.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := decodeKey(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key length %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func decodeKey(s string) ([]byte, error) {
	body := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		if s[:i+1] != ed25519Prefix {
			return nil, fmt.Errorf("unsupported key type %q", s[:i])
		}
		body = s[i+1:]
	}
	raw, err := base58.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return raw, nil
}

func (kp *KeyPair) PublicKey() ed25519.PublicKey {
	return kp.private.Public().(ed25519.PublicKey)
}

// PublicKeyString is the ed25519:<base58> form of the public key.
func (kp *KeyPair) PublicKeyString() string {
	return ed25519Prefix + base58.Encode(kp.PublicKey())
}

// String is the ed25519:<base58> form of the 64-byte secret key.
func (kp *KeyPair) String() string {
	return ed25519Prefix + base58.Encode(kp.private)
}

func (kp *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.private, message)
}

// ImplicitAccountID is the lowercase hex of the public key.
func ImplicitAccountID(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}
