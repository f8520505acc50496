package bitcoin

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/chinmay1088/meridian/api"
	"github.com/chinmay1088/meridian/config"
	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/mpc"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// NetParams maps a network type name to chain parameters.
func NetParams(networkType string) (*chaincfg.Params, error) {
	switch strings.ToLower(networkType) {
	case "", "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network %q", networkType)
	}
}

// DerivedAddress is a P2PKH address with the uncompressed key behind it.
type DerivedAddress struct {
	Address   string
	PublicKey []byte
}

func (d *DerivedAddress) PublicKeyHex() string {
	return hex.EncodeToString(d.PublicKey)
}

// DeriveProductionAddress derives the P2PKH address controlled by the MPC
// key for (contractID, tokenID).
func DeriveProductionAddress(contractID, tokenID, rootKey string, params *chaincfg.Params) (*DerivedAddress, error) {
	pub, err := mpc.DeriveChildPublicKeyFromString(rootKey, contractID, tokenID)
	if err != nil {
		return nil, err
	}

	uncompressed := crypto.FromECDSAPub(pub)
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(uncompressed), params)
	if err != nil {
		return nil, fmt.Errorf("failed to create address: %w", err)
	}
	return &DerivedAddress{Address: addr.EncodeAddress(), PublicKey: uncompressed}, nil
}

// Bitcoin handles Bitcoin through an Esplora endpoint.
type Bitcoin struct {
	esplora    *api.Esplora
	signer     mpc.Signer
	cfg        config.BitcoinChain
	params     *chaincfg.Params
	contractID string
	log        zerolog.Logger
}

func New(esplora *api.Esplora, signer mpc.Signer, cfg config.BitcoinChain, contractID string, log zerolog.Logger) (*Bitcoin, error) {
	params, err := NetParams(cfg.NetworkType)
	if err != nil {
		return nil, err
	}
	return &Bitcoin{
		esplora:    esplora,
		signer:     signer,
		cfg:        cfg,
		params:     params,
		contractID: contractID,
		log:        logger.Category(log, logger.CategoryChain).With().Str("chain", cfg.Name).Logger(),
	}, nil
}

func (b *Bitcoin) Name() string { return b.cfg.Name }

func (b *Bitcoin) Params() *chaincfg.Params { return b.params }

func (b *Bitcoin) DeriveProductionAddress(tokenID, rootKey string) (*DerivedAddress, error) {
	return DeriveProductionAddress(b.contractID, tokenID, rootKey, b.params)
}

// FetchBalance returns the confirmed balance of address in BTC.
func (b *Bitcoin) FetchBalance(ctx context.Context, address string) (string, error) {
	sats, err := b.esplora.GetBitcoinBalance(ctx, address)
	if err != nil {
		return "", err
	}
	return FormatBTC(sats), nil
}

// Transfer is a payment request. Value is in BTC.
type Transfer struct {
	To    string
	Value string
}

// Result identifies a broadcast transaction.
type Result struct {
	Hash     string
	Explorer string
}

// selectUTXOs picks largest outputs first until amount plus fee is covered.
// It returns the chosen set, the fee and the change (zero when below dust).
func selectUTXOs(utxos []api.BitcoinUTXO, amount int64, feeRate float64) ([]api.BitcoinUTXO, int64, int64, error) {
	sorted := append([]api.BitcoinUTXO(nil), utxos...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	var total int64
	for i, utxo := range sorted {
		total += utxo.Value
		selected := sorted[:i+1]

		fee := EstimateFee(len(selected), 2, feeRate)
		if total < amount+fee {
			continue
		}

		change := total - amount - fee
		if change < DustLimit {
			// change is folded into the fee
			return selected, total - amount, 0, nil
		}
		return selected, fee, change, nil
	}

	available := lo.SumBy(utxos, func(u api.BitcoinUTXO) int64 { return u.Value })
	return nil, 0, 0, fmt.Errorf("%w: have %s BTC, need %s BTC plus fee",
		ErrInsufficientFunds, FormatBTC(available), FormatBTC(amount))
}

// HandleTransaction spends from the derived address to req.To, sends
// change back to the derived address and broadcasts the result.
func (b *Bitcoin) HandleTransaction(ctx context.Context, req Transfer, tokenID, rootKey string) (*Result, error) {
	from, err := b.DeriveProductionAddress(tokenID, rootKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive address: %w", err)
	}
	fromAddr, err := ParseAddress(from.Address, b.params)
	if err != nil {
		return nil, err
	}
	toAddr, err := ParseAddress(req.To, b.params)
	if err != nil {
		return nil, err
	}

	amount, err := BTCToSatoshis(req.Value)
	if err != nil {
		return nil, err
	}
	if amount < DustLimit {
		return nil, fmt.Errorf("amount %s BTC is below the dust limit", req.Value)
	}

	utxos, err := b.esplora.GetBitcoinUTXOs(ctx, from.Address)
	if err != nil {
		return nil, err
	}
	feeRate, err := b.esplora.GetBitcoinFeeEstimate(ctx)
	if err != nil {
		return nil, err
	}

	selected, fee, change, err := selectUTXOs(utxos, amount, feeRate)
	if err != nil {
		return nil, err
	}

	tx := NewTransaction()
	for _, utxo := range selected {
		if err := tx.AddInput(&UTXO{TxID: utxo.TxID, Vout: utxo.Vout, Value: utxo.Value}); err != nil {
			return nil, err
		}
	}
	if err := tx.AddOutput(amount, toAddr); err != nil {
		return nil, err
	}
	if change > 0 {
		if err := tx.AddOutput(change, fromAddr); err != nil {
			return nil, err
		}
	}

	pkScript, err := txscript.PayToAddrScript(fromAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create input script: %w", err)
	}

	b.log.Info().
		Str("from", from.Address).
		Str("to", req.To).
		Int64("amount", amount).
		Int64("fee", fee).
		Int("inputs", len(selected)).
		Msg("signing transaction")

	if err := tx.SignTransaction(ctx, b.signer, tokenID, from.PublicKey, pkScript); err != nil {
		return nil, err
	}

	rawTx, err := tx.Serialize()
	if err != nil {
		return nil, err
	}

	txid, err := b.esplora.SendBitcoinTransaction(ctx, rawTx)
	if err != nil {
		return nil, err
	}
	if txid == "" {
		txid = tx.TxID()
	}
	b.log.Info().Str("hash", txid).Msg("transaction broadcast")

	return &Result{
		Hash:     txid,
		Explorer: strings.TrimRight(b.cfg.ScanURL, "/") + "/tx/" + txid,
	}, nil
}
