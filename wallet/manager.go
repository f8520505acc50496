// Package wallet dispatches address, balance and payment requests to the
// chain adapter of a derivation path.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/chinmay1088/meridian/chains"
	"github.com/chinmay1088/meridian/chains/bitcoin"
	"github.com/chinmay1088/meridian/chains/evm"
	"github.com/chinmay1088/meridian/contract"
	"github.com/chinmay1088/meridian/logger"
)

var (
	ErrChainNotConfigured = errors.New("chain not configured")
	ErrChainMismatch      = errors.New("token id belongs to another chain")
)

type EVMAdapter interface {
	Name() string
	DeriveProductionAddress(tokenID, rootKey string) (common.Address, error)
	GetBalance(ctx context.Context, address string) (string, error)
	HandleTransaction(ctx context.Context, req evm.Transaction, tokenID, rootKey string) (*evm.Result, error)
}

type BitcoinAdapter interface {
	Name() string
	DeriveProductionAddress(tokenID, rootKey string) (*bitcoin.DerivedAddress, error)
	FetchBalance(ctx context.Context, address string) (string, error)
	HandleTransaction(ctx context.Context, req bitcoin.Transfer, tokenID, rootKey string) (*bitcoin.Result, error)
}

// RootKeySource supplies the MPC root public key; *contract.Client
// satisfies it.
type RootKeySource interface {
	RootPublicKey(ctx context.Context) (string, error)
}

// Transfer is a payment request. Value is in the chain's native unit and
// Data is only used by EVM chains.
type Transfer struct {
	To    string
	Value string
	Data  string
}

type Result struct {
	Hash     string
	Explorer string
}

// Manager holds the chain adapters for one network.
type Manager struct {
	evms    map[chains.Chain]EVMAdapter
	btc     BitcoinAdapter
	roots   RootKeySource
	log     zerolog.Logger
	mu      sync.RWMutex
	rootKey string
}

func NewManager(roots RootKeySource, log zerolog.Logger) *Manager {
	return &Manager{
		evms:  make(map[chains.Chain]EVMAdapter),
		roots: roots,
		log:   logger.Category(log, logger.CategoryTx),
	}
}

// WithEVM registers the adapter for an EVM chain.
func (m *Manager) WithEVM(chain chains.Chain, adapter EVMAdapter) *Manager {
	m.evms[chain] = adapter
	return m
}

func (m *Manager) WithBitcoin(adapter BitcoinAdapter) *Manager {
	m.btc = adapter
	return m
}

// RootKey returns the MPC root key, fetched once per manager.
func (m *Manager) RootKey(ctx context.Context) (string, error) {
	m.mu.RLock()
	key := m.rootKey
	m.mu.RUnlock()
	if key != "" {
		return key, nil
	}

	key, err := m.roots.RootPublicKey(ctx)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.rootKey = key
	m.mu.Unlock()
	return key, nil
}

func (m *Manager) evmAdapter(chain chains.Chain) (EVMAdapter, error) {
	adapter, ok := m.evms[chain]
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w: %s", ErrChainNotConfigured, chain)
	}
	return adapter, nil
}

func (m *Manager) bitcoinAdapter() (BitcoinAdapter, error) {
	if m.btc == nil {
		return nil, fmt.Errorf("%w: %s", ErrChainNotConfigured, chains.BTC)
	}
	return m.btc, nil
}

// checkToken makes sure tokenID is a path of chain.
func checkToken(chain chains.Chain, tokenID string) error {
	id, err := contract.ParseTokenID(tokenID)
	if err != nil {
		return err
	}
	if id.Chain != chain {
		return fmt.Errorf("%w: %s is a %s path", ErrChainMismatch, tokenID, id.Chain)
	}
	return nil
}

// DeriveAddress returns the address controlled by tokenID on chain.
func (m *Manager) DeriveAddress(ctx context.Context, chain chains.Chain, tokenID string) (string, error) {
	if err := checkToken(chain, tokenID); err != nil {
		return "", err
	}
	rootKey, err := m.RootKey(ctx)
	if err != nil {
		return "", err
	}

	if chain == chains.BTC {
		btc, err := m.bitcoinAdapter()
		if err != nil {
			return "", err
		}
		derived, err := btc.DeriveProductionAddress(tokenID, rootKey)
		if err != nil {
			return "", err
		}
		return derived.Address, nil
	}

	adapter, err := m.evmAdapter(chain)
	if err != nil {
		return "", err
	}
	addr, err := adapter.DeriveProductionAddress(tokenID, rootKey)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// Balance returns the balance of address on chain in its native unit.
func (m *Manager) Balance(ctx context.Context, chain chains.Chain, address string) (string, error) {
	if chain == chains.BTC {
		btc, err := m.bitcoinAdapter()
		if err != nil {
			return "", err
		}
		return btc.FetchBalance(ctx, address)
	}

	adapter, err := m.evmAdapter(chain)
	if err != nil {
		return "", err
	}
	return adapter.GetBalance(ctx, address)
}

// Send signs a transfer from the tokenID address through the MPC signer
// and broadcasts it. Nothing is retried on failure.
func (m *Manager) Send(ctx context.Context, chain chains.Chain, tokenID string, req Transfer) (*Result, error) {
	if err := checkToken(chain, tokenID); err != nil {
		return nil, err
	}
	rootKey, err := m.RootKey(ctx)
	if err != nil {
		return nil, err
	}

	log := m.log.With().Str("chain", chain.String()).Str("token_id", tokenID).Logger()
	log.Info().Str("to", req.To).Str("value", req.Value).Msg("sending")

	if chain == chains.BTC {
		if req.Data != "" {
			return nil, fmt.Errorf("data is not supported on %s", chain)
		}
		btc, err := m.bitcoinAdapter()
		if err != nil {
			return nil, err
		}
		res, err := btc.HandleTransaction(ctx, bitcoin.Transfer{To: req.To, Value: req.Value}, tokenID, rootKey)
		if err != nil {
			return nil, err
		}
		return &Result{Hash: res.Hash, Explorer: res.Explorer}, nil
	}

	adapter, err := m.evmAdapter(chain)
	if err != nil {
		return nil, err
	}
	res, err := adapter.HandleTransaction(ctx, evm.Transaction{To: req.To, Value: req.Value, Data: req.Data}, tokenID, rootKey)
	if err != nil {
		return nil, err
	}
	return &Result{Hash: res.Hash, Explorer: res.Explorer}, nil
}
