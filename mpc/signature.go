package mpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// Signature is an ECDSA (r, s) pair without recovery id.
type Signature struct {
	R *big.Int
	S *big.Int
}

// Normalize flips s into the lower half of the curve order.
func (sig *Signature) Normalize() {
	if sig.S.Cmp(secp256k1HalfN) > 0 {
		sig.S = new(big.Int).Sub(secp256k1N, sig.S)
	}
}

// Bytes is the 64-byte R||S form.
func (sig *Signature) Bytes() []byte {
	out := make([]byte, 64)
	sig.R.FillBytes(out[:32])
	sig.S.FillBytes(out[32:])
	return out
}

// ParseSignResult decodes the contract's `[big_r, s]` JSON result. big_r
// is a compressed point; its 1-byte prefix is dropped to get r.
func ParseSignResult(raw []byte) (*Signature, error) {
	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("failed to parse sign result: %w", err)
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("sign result has %d elements, want 2", len(parts))
	}
	if len(parts[0]) < 2 {
		return nil, fmt.Errorf("invalid big_r %q", parts[0])
	}

	r, err := parseScalar(parts[0][2:])
	if err != nil {
		return nil, fmt.Errorf("invalid r: %w", err)
	}
	s, err := parseScalar(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid s: %w", err)
	}

	sig := &Signature{R: r, S: s}
	sig.Normalize()
	return sig, nil
}

func parseScalar(h string) (*big.Int, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(h, "0x"))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 || len(b) > 32 {
		return nil, fmt.Errorf("scalar length %d", len(b))
	}
	v := new(big.Int).SetBytes(b)
	if v.Sign() == 0 || v.Cmp(secp256k1N) >= 0 {
		return nil, fmt.Errorf("scalar out of range")
	}
	return v, nil
}
