// Package mpctest provides an in-process MPC signer for tests.
package mpctest

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chinmay1088/meridian/mpc"
)

// Signer holds the root secret the MPC network would otherwise share, and
// signs with root + epsilon for the configured predecessor.
type Signer struct {
	root        *ecdsa.PrivateKey
	predecessor string

	mu       sync.Mutex
	payloads [][]byte
	tokenIDs []string
}

func NewSigner(predecessor string) (*Signer, error) {
	root, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Signer{root: root, predecessor: predecessor}, nil
}

// RootPublicKey is the secp256k1:<base58> form of the root key.
func (s *Signer) RootPublicKey() string {
	return mpc.FormatRootPublicKey(&s.root.PublicKey)
}

// ChildKey derives the private key for path.
func (s *Signer) ChildKey(path string) (*ecdsa.PrivateKey, error) {
	eps := mpc.DeriveEpsilon(s.predecessor, path)
	d := new(big.Int).Add(s.root.D, eps)
	d.Mod(d, crypto.S256().Params().N)
	return crypto.ToECDSA(d.FillBytes(make([]byte, 32)))
}

func (s *Signer) Sign(_ context.Context, payload []byte, tokenID string) (*mpc.Signature, error) {
	key, err := s.ChildKey(tokenID)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(payload, key)
	if err != nil {
		return nil, fmt.Errorf("local sign: %w", err)
	}

	s.mu.Lock()
	s.payloads = append(s.payloads, append([]byte(nil), payload...))
	s.tokenIDs = append(s.tokenIDs, tokenID)
	s.mu.Unlock()

	out := &mpc.Signature{
		R: new(big.Int).SetBytes(sig[:32]),
		S: new(big.Int).SetBytes(sig[32:64]),
	}
	out.Normalize()
	return out, nil
}

// Calls returns the number of Sign invocations.
func (s *Signer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

// TokenIDs returns the token ids passed to Sign, in order.
func (s *Signer) TokenIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokenIDs...)
}
