package near

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
)

const (
	keyTypeED25519 = 0

	actionFunctionCall = 2
)

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// FunctionCallAction is the only action this wallet sends.
type FunctionCallAction struct {
	MethodName string
	Args       []byte
	Gas        uint64
	Deposit    *big.Int
}

// Transaction is a NEAR transaction carrying function calls.
type Transaction struct {
	SignerID   string
	PublicKey  ed25519.PublicKey
	Nonce      uint64
	ReceiverID string
	BlockHash  [32]byte
	Actions    []FunctionCallAction
}

// Serialize encodes the transaction with Borsh.
func (tx *Transaction) Serialize() ([]byte, error) {
	if len(tx.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid signer public key length %d", len(tx.PublicKey))
	}

	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)

	if err := writeString(enc, tx.SignerID); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(keyTypeED25519); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(tx.PublicKey, false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(tx.Nonce, bin.LE); err != nil {
		return nil, err
	}
	if err := writeString(enc, tx.ReceiverID); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(tx.BlockHash[:], false); err != nil {
		return nil, err
	}

	if err := enc.WriteUint32(uint32(len(tx.Actions)), bin.LE); err != nil {
		return nil, err
	}
	for _, action := range tx.Actions {
		if err := writeFunctionCall(enc, action); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func writeString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func writeFunctionCall(enc *bin.Encoder, action FunctionCallAction) error {
	deposit := action.Deposit
	if deposit == nil {
		deposit = new(big.Int)
	}
	if deposit.Sign() < 0 || deposit.Cmp(maxUint128) > 0 {
		return fmt.Errorf("deposit %s out of u128 range", deposit)
	}

	if err := enc.WriteUint8(actionFunctionCall); err != nil {
		return err
	}
	if err := writeString(enc, action.MethodName); err != nil {
		return err
	}
	if err := enc.WriteUint32(uint32(len(action.Args)), bin.LE); err != nil {
		return err
	}
	if err := enc.WriteBytes(action.Args, false); err != nil {
		return err
	}
	if err := enc.WriteUint64(action.Gas, bin.LE); err != nil {
		return err
	}

	lo := new(big.Int).And(deposit, new(big.Int).SetUint64(^uint64(0))).Uint64()
	hi := new(big.Int).Rsh(deposit, 64).Uint64()
	if err := enc.WriteUint64(lo, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint64(hi, bin.LE)
}

// SignTransaction returns the Borsh SignedTransaction and its hash.
func SignTransaction(tx *Transaction, kp *KeyPair) ([]byte, [32]byte, error) {
	encoded, err := tx.Serialize()
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	hash := sha256.Sum256(encoded)
	sig := kp.Sign(hash[:])

	signed := make([]byte, 0, len(encoded)+1+ed25519.SignatureSize)
	signed = append(signed, encoded...)
	signed = append(signed, keyTypeED25519)
	signed = append(signed, sig...)
	return signed, hash, nil
}
