package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/chinmay1088/meridian/config"
	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/mpc"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSignatureMismatch = errors.New("signature does not recover to the derived address")
)

// Backend is the subset of ethclient.Client used here.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Dial connects to the chain's JSON-RPC provider.
func Dial(ctx context.Context, cfg config.EVMChain) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.ProviderURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Name, err)
	}
	return client, nil
}

// EVM handles one EVM-compatible chain.
type EVM struct {
	backend    Backend
	signer     mpc.Signer
	cfg        config.EVMChain
	contractID string
	log        zerolog.Logger
}

func New(backend Backend, signer mpc.Signer, cfg config.EVMChain, contractID string, log zerolog.Logger) *EVM {
	return &EVM{
		backend:    backend,
		signer:     signer,
		cfg:        cfg,
		contractID: contractID,
		log:        logger.Category(log, logger.CategoryChain).With().Str("chain", cfg.Name).Logger(),
	}
}

func (e *EVM) Name() string { return e.cfg.Name }

// DeriveProductionAddress is the address controlled by the MPC key for
// (contractID, tokenID).
func DeriveProductionAddress(contractID, tokenID, rootKey string) (common.Address, error) {
	pub, err := mpc.DeriveChildPublicKeyFromString(rootKey, contractID, tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func (e *EVM) DeriveProductionAddress(tokenID, rootKey string) (common.Address, error) {
	return DeriveProductionAddress(e.contractID, tokenID, rootKey)
}

// GetBalance returns the balance of address in ether.
func (e *EVM) GetBalance(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid address %q", address)
	}
	wei, err := e.backend.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch balance: %w", err)
	}
	return WeiToEther(wei), nil
}

// Transaction is a transfer or contract call request. Value is in ether,
// Data is optional 0x-prefixed hex.
type Transaction struct {
	To    string
	Value string
	Data  string
}

// Result identifies a broadcast transaction.
type Result struct {
	Hash     string
	Explorer string
}

// HandleTransaction builds a legacy transaction from the derived address,
// has it signed by the MPC signer and broadcasts it.
func (e *EVM) HandleTransaction(ctx context.Context, req Transaction, tokenID, rootKey string) (*Result, error) {
	from, err := DeriveProductionAddress(e.contractID, tokenID, rootKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive address: %w", err)
	}
	if !common.IsHexAddress(req.To) {
		return nil, fmt.Errorf("invalid recipient address %q", req.To)
	}
	to := common.HexToAddress(req.To)

	value, err := EtherToWei(req.Value)
	if err != nil {
		return nil, err
	}

	var data []byte
	if req.Data != "" {
		data, err = hexutil.Decode(req.Data)
		if err != nil {
			return nil, fmt.Errorf("invalid data: %w", err)
		}
	}

	nonce, err := e.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := e.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	gas, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	chainID, err := e.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	balance, err := e.backend.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance: %w", err)
	}
	cost := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gas))
	cost.Add(cost, value)
	if balance.Cmp(cost) < 0 {
		return nil, fmt.Errorf("%w: have %s, need %s %s", ErrInsufficientFunds,
			WeiToEther(balance), WeiToEther(cost), e.cfg.Name)
	}

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	txSigner := types.LatestSignerForChainID(chainID)
	hash := txSigner.Hash(unsigned)

	e.log.Info().
		Str("from", from.Hex()).
		Str("to", to.Hex()).
		Str("value", req.Value).
		Uint64("nonce", nonce).
		Msg("signing transaction")

	sig, err := e.signer.Sign(ctx, hash.Bytes(), tokenID)
	if err != nil {
		return nil, err
	}

	signed, err := attachSignature(unsigned, txSigner, sig, from)
	if err != nil {
		return nil, err
	}

	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	txHash := signed.Hash().Hex()
	e.log.Info().Str("hash", txHash).Msg("transaction broadcast")

	return &Result{
		Hash:     txHash,
		Explorer: strings.TrimRight(e.cfg.ScanURL, "/") + "/tx/" + txHash,
	}, nil
}

// attachSignature tries both recovery ids and keeps the one recovering to
// the expected sender.
func attachSignature(tx *types.Transaction, txSigner types.Signer, sig *mpc.Signature, from common.Address) (*types.Transaction, error) {
	raw := append(sig.Bytes(), 0)
	for _, v := range []byte{0, 1} {
		raw[64] = v
		signed, err := tx.WithSignature(txSigner, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to attach signature: %w", err)
		}
		sender, err := types.Sender(txSigner, signed)
		if err == nil && sender == from {
			return signed, nil
		}
	}
	return nil, ErrSignatureMismatch
}
