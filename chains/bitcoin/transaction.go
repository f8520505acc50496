package bitcoin

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"

	"github.com/chinmay1088/meridian/mpc"
)

const (
	// DustLimit is the smallest P2PKH output relayed by default.
	DustLimit = 546

	btcDecimals = 8

	// MaxSatoshis is the total bitcoin supply.
	MaxSatoshis = 21_000_000 * 100_000_000
)

// UTXO represents an unspent transaction output
type UTXO struct {
	TxID  string
	Vout  uint32
	Value int64
}

// Transaction is a P2PKH transaction spending outputs of a single key
type Transaction struct {
	Version  int32
	Inputs   []*wire.TxIn
	Outputs  []*wire.TxOut
	LockTime uint32
}

// NewTransaction creates a new Bitcoin transaction
func NewTransaction() *Transaction {
	return &Transaction{
		Version:  wire.TxVersion,
		Inputs:   make([]*wire.TxIn, 0),
		Outputs:  make([]*wire.TxOut, 0),
		LockTime: 0,
	}
}

// AddInput adds an input to the transaction
func (tx *Transaction) AddInput(utxo *UTXO) error {
	prevHash, err := chainhash.NewHashFromStr(utxo.TxID)
	if err != nil {
		return fmt.Errorf("invalid previous transaction hash: %w", err)
	}
	input := wire.NewTxIn(
		wire.NewOutPoint(prevHash, utxo.Vout),
		nil, // signature script is set by SignTransaction
		nil,
	)
	tx.Inputs = append(tx.Inputs, input)
	return nil
}

// AddOutput adds an output to the transaction
func (tx *Transaction) AddOutput(value int64, address btcutil.Address) error {
	script, err := txscript.PayToAddrScript(address)
	if err != nil {
		return fmt.Errorf("failed to create output script: %w", err)
	}
	output := wire.NewTxOut(value, script)
	tx.Outputs = append(tx.Outputs, output)
	return nil
}

// SignTransaction signs every input with the MPC key for tokenID. All
// inputs must pay to pkScript, which belongs to pubKey.
func (tx *Transaction) SignTransaction(ctx context.Context, signer mpc.Signer, tokenID string, pubKey, pkScript []byte) error {
	wireTx := tx.toWireTx()
	for i, input := range tx.Inputs {
		sighash, err := txscript.CalcSignatureHash(pkScript, txscript.SigHashAll, wireTx, i)
		if err != nil {
			return fmt.Errorf("failed to calculate sighash: %w", err)
		}

		sig, err := signer.Sign(ctx, sighash, tokenID)
		if err != nil {
			return fmt.Errorf("failed to sign input %d: %w", i, err)
		}

		der, err := encodeDER(sig)
		if err != nil {
			return fmt.Errorf("failed to encode signature for input %d: %w", i, err)
		}

		script, err := txscript.NewScriptBuilder().
			AddData(append(der, byte(txscript.SigHashAll))).
			AddData(pubKey).
			Script()
		if err != nil {
			return fmt.Errorf("failed to build signature script: %w", err)
		}
		input.SignatureScript = script
	}
	return nil
}

func encodeDER(sig *mpc.Signature) ([]byte, error) {
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig.R.FillBytes(make([]byte, 32))); overflow {
		return nil, fmt.Errorf("r overflows curve order")
	}
	if overflow := s.SetByteSlice(sig.S.FillBytes(make([]byte, 32))); overflow {
		return nil, fmt.Errorf("s overflows curve order")
	}
	return btcecdsa.NewSignature(&r, &s).Serialize(), nil
}

// Serialize serializes the transaction to hex
func (tx *Transaction) Serialize() (string, error) {
	wireTx := tx.toWireTx()
	var buf bytes.Buffer
	err := wireTx.Serialize(&buf)
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// TxID is the hash of the serialized transaction
func (tx *Transaction) TxID() string {
	return tx.toWireTx().TxHash().String()
}

// toWireTx converts to wire.MsgTx sharing the input and output pointers
func (tx *Transaction) toWireTx() *wire.MsgTx {
	wireTx := wire.NewMsgTx(tx.Version)
	for _, input := range tx.Inputs {
		wireTx.AddTxIn(input)
	}
	for _, output := range tx.Outputs {
		wireTx.AddTxOut(output)
	}
	wireTx.LockTime = tx.LockTime
	return wireTx
}

// EstimateFee estimates the fee of a P2PKH transaction with uncompressed
// keys, rounding up.
func EstimateFee(inputCount int, outputCount int, feeRate float64) int64 {
	// version + locktime + input/output counts
	baseSize := 10

	// outpoint 36 + script len 1 + sig push ~73 + pubkey push 66 + sequence 4
	inputSize := 180

	// value 8 + script len 1 + P2PKH script 25
	outputSize := 34

	size := baseSize + inputCount*inputSize + outputCount*outputSize
	return int64(math.Ceil(float64(size) * feeRate))
}

// ParseAddress parses a Bitcoin address for the given network
func ParseAddress(address string, params *chaincfg.Params) (btcutil.Address, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, fmt.Errorf("invalid bitcoin address %q: %w", address, err)
	}
	if !addr.IsForNet(params) {
		return nil, fmt.Errorf("address %q is not for %s", address, params.Name)
	}
	return addr, nil
}

// FormatBTC formats satoshis as a BTC decimal string
func FormatBTC(satoshis int64) string {
	return decimal.New(satoshis, -btcDecimals).String()
}

// BTCToSatoshis converts a BTC decimal string to satoshis
func BTCToSatoshis(btc string) (int64, error) {
	d, err := decimal.NewFromString(btc)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", btc, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be positive")
	}

	sats := d.Shift(btcDecimals)
	if !sats.Equal(sats.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than %d decimals", btc, btcDecimals)
	}
	if sats.GreaterThan(decimal.NewFromInt(MaxSatoshis)) {
		return 0, fmt.Errorf("invalid amount %q: exceeds the 21000000 BTC supply", btc)
	}
	return sats.IntPart(), nil
}
