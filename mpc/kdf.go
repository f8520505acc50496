package mpc

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

const (
	rootKeyPrefix = "secp256k1:"
	epsilonPrefix = "near-mpc-recovery v0.1.0 epsilon derivation:"
)

// ParseRootPublicKey decodes secp256k1:<base58 of X||Y>.
func ParseRootPublicKey(s string) (*ecdsa.PublicKey, error) {
	if !strings.HasPrefix(s, rootKeyPrefix) {
		return nil, fmt.Errorf("root public key must start with %q", rootKeyPrefix)
	}

	raw, err := base58.Decode(strings.TrimPrefix(s, rootKeyPrefix))
	if err != nil {
		return nil, fmt.Errorf("failed to decode root public key: %w", err)
	}
	switch len(raw) {
	case 64:
		raw = append([]byte{0x04}, raw...)
	case 65:
	default:
		return nil, fmt.Errorf("invalid root public key length %d", len(raw))
	}

	pub, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid root public key: %w", err)
	}
	return pub, nil
}

// FormatRootPublicKey is the inverse of ParseRootPublicKey.
func FormatRootPublicKey(pub *ecdsa.PublicKey) string {
	return rootKeyPrefix + base58.Encode(crypto.FromECDSAPub(pub)[1:])
}

// DeriveEpsilon maps (predecessor, path) to the additive tweak applied to
// the root key.
func DeriveEpsilon(predecessorID, path string) *big.Int {
	hash := sha3.Sum256([]byte(epsilonPrefix + predecessorID + "," + path))
	eps := new(big.Int).SetBytes(hash[:])
	return eps.Mod(eps, crypto.S256().Params().N)
}

// DeriveChildPublicKey returns root + epsilon*G.
func DeriveChildPublicKey(root *ecdsa.PublicKey, predecessorID, path string) *ecdsa.PublicKey {
	curve := crypto.S256()
	eps := DeriveEpsilon(predecessorID, path)

	ex, ey := curve.ScalarBaseMult(eps.FillBytes(make([]byte, 32)))
	x, y := curve.Add(root.X, root.Y, ex, ey)
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
}

// DeriveChildPublicKeyFromString parses the root key and derives the child.
func DeriveChildPublicKeyFromString(rootKey, predecessorID, path string) (*ecdsa.PublicKey, error) {
	root, err := ParseRootPublicKey(rootKey)
	if err != nil {
		return nil, err
	}
	return DeriveChildPublicKey(root, predecessorID, path), nil
}
