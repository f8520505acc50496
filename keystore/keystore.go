package keystore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chinmay1088/meridian/crypto"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrPrivateKeyNotFound = errors.New("private key not found")
	ErrPassphraseRequired = errors.New("account is sealed, passphrase required")
)

// Account is the credential record persisted per account id.
type Account struct {
	AccountID  string `json:"account_id"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key,omitempty"`
}

// record is the on-disk form. Sealed records keep the public fields in the
// clear and the full Account inside the vault.
type record struct {
	AccountID  string        `json:"account_id"`
	PublicKey  string        `json:"public_key"`
	PrivateKey string        `json:"private_key,omitempty"`
	Vault      *crypto.Vault `json:"vault,omitempty"`
}

// Store tracks the known accounts of one NEAR network and the active one.
type Store struct {
	storage   Storage
	networkID string
}

func New(storage Storage, networkID string) *Store {
	return &Store{storage: storage, networkID: networkID}
}

func (s *Store) NetworkID() string { return s.networkID }

func (s *Store) keyAccountIDs() string {
	return fmt.Sprintf("near-%s-accountIds", s.networkID)
}

func (s *Store) keyActiveAccountID() string {
	return fmt.Sprintf("near-%s-activeAccountId", s.networkID)
}

func (s *Store) keyAccount(accountID string) string {
	return fmt.Sprintf("near-%s-account:%s", s.networkID, accountID)
}

// SaveAccount persists the credential record and registers the id once.
// A non-empty passphrase seals the private key.
func (s *Store) SaveAccount(account Account, passphrase string) error {
	if account.AccountID == "" {
		return fmt.Errorf("account id is required")
	}

	rec := record{
		AccountID: account.AccountID,
		PublicKey: account.PublicKey,
	}
	if passphrase == "" {
		rec.PrivateKey = account.PrivateKey
	} else {
		payload, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("failed to marshal account: %w", err)
		}
		vault, err := crypto.NewVault(payload, passphrase)
		if err != nil {
			return fmt.Errorf("failed to seal account: %w", err)
		}
		rec.Vault = vault
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal account record: %w", err)
	}
	if err := s.storage.Set(s.keyAccount(account.AccountID), string(data)); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	ids, err := s.AccountIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == account.AccountID {
			return nil
		}
	}
	return s.writeAccountIDs(append(ids, account.AccountID))
}

func (s *Store) loadRecord(accountID string) (*record, error) {
	raw, ok, err := s.storage.Get(s.keyAccount(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse account %s: %w", accountID, err)
	}
	return &rec, nil
}

// IsSealed reports whether the stored private key needs a passphrase.
func (s *Store) IsSealed(accountID string) (bool, error) {
	rec, err := s.loadRecord(accountID)
	if err != nil {
		return false, err
	}
	return rec.Vault != nil, nil
}

// GetAccount returns the record for accountID, opening the vault with
// passphrase when the record is sealed. The private key is left empty
// when the record has none.
func (s *Store) GetAccount(accountID, passphrase string) (*Account, error) {
	rec, err := s.loadRecord(accountID)
	if err != nil {
		return nil, err
	}

	if rec.Vault == nil {
		return &Account{
			AccountID:  rec.AccountID,
			PublicKey:  rec.PublicKey,
			PrivateKey: rec.PrivateKey,
		}, nil
	}

	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	payload, err := rec.Vault.Decrypt(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to open account %s: %w", accountID, err)
	}

	var account Account
	if err := json.Unmarshal(payload, &account); err != nil {
		return nil, fmt.Errorf("failed to parse sealed account: %w", err)
	}
	return &account, nil
}

// PublicAccount returns the record without touching the private key.
func (s *Store) PublicAccount(accountID string) (*Account, error) {
	rec, err := s.loadRecord(accountID)
	if err != nil {
		return nil, err
	}
	return &Account{AccountID: rec.AccountID, PublicKey: rec.PublicKey}, nil
}

func (s *Store) HasAccount(accountID string) bool {
	_, ok, err := s.storage.Get(s.keyAccount(accountID))
	return err == nil && ok
}

// AccountIDs lists known accounts in insertion order.
func (s *Store) AccountIDs() ([]string, error) {
	raw, ok, err := s.storage.Get(s.keyAccountIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to read account ids: %w", err)
	}
	if !ok || raw == "" {
		return []string{}, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to parse account ids: %w", err)
	}
	return ids, nil
}

func (s *Store) writeAccountIDs(ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal account ids: %w", err)
	}
	if err := s.storage.Set(s.keyAccountIDs(), string(data)); err != nil {
		return fmt.Errorf("failed to save account ids: %w", err)
	}
	return nil
}

// ActiveAccountID returns the active id, or "" when none is set.
func (s *Store) ActiveAccountID() (string, error) {
	id, _, err := s.storage.Get(s.keyActiveAccountID())
	if err != nil {
		return "", fmt.Errorf("failed to read active account: %w", err)
	}
	return id, nil
}

// SetActiveAccountID replaces the active account. The id must be known.
func (s *Store) SetActiveAccountID(accountID string) error {
	if !s.HasAccount(accountID) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err := s.storage.Set(s.keyActiveAccountID(), accountID); err != nil {
		return fmt.Errorf("failed to set active account: %w", err)
	}
	return nil
}

// RemoveAccount forgets an account. Removing the active account clears
// the active id.
func (s *Store) RemoveAccount(accountID string) error {
	if !s.HasAccount(accountID) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err := s.storage.Remove(s.keyAccount(accountID)); err != nil {
		return fmt.Errorf("failed to remove account: %w", err)
	}

	ids, err := s.AccountIDs()
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != accountID {
			kept = append(kept, id)
		}
	}
	if err := s.writeAccountIDs(kept); err != nil {
		return err
	}

	active, err := s.ActiveAccountID()
	if err != nil {
		return err
	}
	if active == accountID {
		return s.storage.Remove(s.keyActiveAccountID())
	}
	return nil
}
