package mpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/near"
)

var ErrNoSignature = errors.New("sign call returned no signature")

// Signer produces a signature over a 32-byte payload with the key derived
// for tokenID.
type Signer interface {
	Sign(ctx context.Context, payload []byte, tokenID string) (*Signature, error)
}

// Caller submits NEAR function calls; *near.Account satisfies it.
type Caller interface {
	FunctionCall(ctx context.Context, req near.FunctionCallRequest) ([]byte, error)
}

// ContractSigner asks the derivation-path contract to sign. The contract
// forwards the request to the MPC network using tokenID as the path.
type ContractSigner struct {
	caller     Caller
	contractID string
	log        zerolog.Logger
}

func NewContractSigner(caller Caller, contractID string, log zerolog.Logger) *ContractSigner {
	return &ContractSigner{
		caller:     caller,
		contractID: contractID,
		log:        logger.Category(log, logger.CategoryTx),
	}
}

type signArgs struct {
	TokenID    string `json:"token_id"`
	Payload    []int  `json:"payload"`
	KeyVersion int    `json:"key_version"`
}

// Sign sends the payload in reversed byte order, which is what the
// contract expects.
func (s *ContractSigner) Sign(ctx context.Context, payload []byte, tokenID string) (*Signature, error) {
	if len(payload) != 32 {
		return nil, fmt.Errorf("payload must be 32 bytes, got %d", len(payload))
	}

	reversed := make([]int, len(payload))
	for i, b := range payload {
		reversed[len(payload)-1-i] = int(b)
	}

	s.log.Info().Str("token_id", tokenID).Str("contract", s.contractID).Msg("requesting MPC signature")

	out, err := s.caller.FunctionCall(ctx, near.FunctionCallRequest{
		ContractID: s.contractID,
		MethodName: "sign",
		Args: signArgs{
			TokenID:    tokenID,
			Payload:    reversed,
			KeyVersion: 0,
		},
		Gas:     near.DefaultFunctionCallGas,
		Deposit: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("sign failed: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoSignature
	}

	sig, err := ParseSignResult(out)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("token_id", tokenID).Msg("signature received")
	return sig, nil
}
