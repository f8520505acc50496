// Package account creates, imports and connects NEAR accounts kept in the
// local key store.
package account

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/chinmay1088/meridian/keystore"
	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/near"
)

var (
	ErrAccountNotFound    = keystore.ErrAccountNotFound
	ErrPrivateKeyNotFound = keystore.ErrPrivateKeyNotFound
)

// Service owns the key store of one network and the current session.
type Service struct {
	store   *keystore.Store
	rpc     near.RPC
	log     zerolog.Logger
	session *near.Account
}

func NewService(store *keystore.Store, rpc near.RPC, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		rpc:   rpc,
		log:   logger.Category(log, logger.CategoryAccount),
	}
}

func (s *Service) Store() *keystore.Store { return s.store }

// Created is the result of Create and Import.
type Created struct {
	AccountID  string
	SeedPhrase string
	PublicKey  string
}

// Create generates a new seed phrase and stores its key. accountID
// defaults to the implicit account of the new key.
func (s *Service) Create(accountID, passphrase string) (*Created, error) {
	phrase, kp, err := near.GenerateSeedPhrase()
	if err != nil {
		return nil, err
	}
	if accountID == "" {
		accountID = near.ImplicitAccountID(kp.PublicKey())
	}

	if err := s.persist(accountID, kp, passphrase); err != nil {
		return nil, err
	}
	s.log.Info().Str("account", accountID).Msg("account created")

	return &Created{AccountID: accountID, SeedPhrase: phrase, PublicKey: kp.PublicKeyString()}, nil
}

// Import restores the implicit account of seedPhrase. The word count is
// checked before anything touches the store or the network.
func (s *Service) Import(seedPhrase, passphrase string) (*Created, error) {
	kp, err := near.ParseSeedPhrase(seedPhrase)
	if err != nil {
		return nil, err
	}
	accountID := near.ImplicitAccountID(kp.PublicKey())

	if err := s.persist(accountID, kp, passphrase); err != nil {
		return nil, err
	}
	s.log.Info().Str("account", accountID).Msg("account imported")

	return &Created{AccountID: accountID, PublicKey: kp.PublicKeyString()}, nil
}

func (s *Service) persist(accountID string, kp *near.KeyPair, passphrase string) error {
	err := s.store.SaveAccount(keystore.Account{
		AccountID:  accountID,
		PublicKey:  kp.PublicKeyString(),
		PrivateKey: kp.String(),
	}, passphrase)
	if err != nil {
		return err
	}
	if err := s.store.SetActiveAccountID(accountID); err != nil {
		return err
	}
	s.session = nil
	return nil
}

// Connect opens a session for accountID, or for the active account when
// accountID is empty, and makes it the active account.
func (s *Service) Connect(ctx context.Context, accountID, passphrase string) (*near.Account, error) {
	if accountID == "" {
		active, err := s.store.ActiveAccountID()
		if err != nil {
			return nil, err
		}
		accountID = active
	}
	if accountID == "" {
		return nil, ErrAccountNotFound
	}
	if s.session != nil && s.session.AccountID() == accountID {
		return s.session, nil
	}

	stored, err := s.store.GetAccount(accountID, passphrase)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("%w for %s: %w", ErrPrivateKeyNotFound, accountID, err)
	}
	if err != nil {
		return nil, err
	}
	if stored.PrivateKey == "" {
		return nil, fmt.Errorf("%w for %s", ErrPrivateKeyNotFound, accountID)
	}

	kp, err := near.ParseKeyPair(stored.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load key for %s: %w", accountID, err)
	}
	if err := s.store.SetActiveAccountID(accountID); err != nil {
		return nil, err
	}

	s.session = near.NewAccount(s.rpc, accountID, kp)
	s.log.Debug().Str("account", accountID).Msg("account connected")
	return s.session, nil
}

// Use switches the active account without opening a session.
func (s *Service) Use(accountID string) error {
	if err := s.store.SetActiveAccountID(accountID); err != nil {
		return err
	}
	s.session = nil
	return nil
}

// Remove forgets a stored account and its key. The open session is
// dropped when it belongs to accountID.
func (s *Service) Remove(accountID string) error {
	if err := s.store.RemoveAccount(accountID); err != nil {
		return err
	}
	if s.session != nil && s.session.AccountID() == accountID {
		s.session = nil
	}
	s.log.Info().Str("account", accountID).Msg("account removed")
	return nil
}

// Summary is an entry of List.
type Summary struct {
	AccountID string
	PublicKey string
	Active    bool
	Sealed    bool
}

func (s *Service) List() ([]Summary, error) {
	ids, err := s.store.AccountIDs()
	if err != nil {
		return nil, err
	}
	active, err := s.store.ActiveAccountID()
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		acc, err := s.store.PublicAccount(id)
		if errors.Is(err, keystore.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sealed, err := s.store.IsSealed(id)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{
			AccountID: id,
			PublicKey: acc.PublicKey,
			Active:    id == active,
			Sealed:    sealed,
		})
	}
	return out, nil
}

// Balance returns the available balance of the session in NEAR.
func (s *Service) Balance(ctx context.Context, session *near.Account) (string, error) {
	balance, err := session.Balance(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch balance for %s: %w", session.AccountID(), err)
	}
	return near.FormatNearAmount(balance.Available), nil
}

// SaveSeedPhrase writes the phrase to <dir>/<accountID>.txt and returns
// the file path.
func SaveSeedPhrase(dir, accountID, phrase string) (string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	path := filepath.Join(dir, accountID+".txt")
	if err := os.WriteFile(path, []byte(phrase), 0o600); err != nil {
		return "", fmt.Errorf("failed to save seed phrase: %w", err)
	}
	return path, nil
}
