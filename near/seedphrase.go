package near

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const (
	// KeyDerivationPath is the SLIP-10 path for NEAR keys.
	KeyDerivationPath = "m/44'/397'/0'"

	SeedPhraseWords = 12
)

var ErrInvalidSeedPhrase = errors.New("seed phrase must be 12 words")

// NormalizeSeedPhrase lowercases and collapses whitespace.
func NormalizeSeedPhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// GenerateSeedPhrase returns a fresh 12-word phrase and its key pair.
func GenerateSeedPhrase() (string, *KeyPair, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	kp, err := ParseSeedPhrase(mnemonic)
	if err != nil {
		return "", nil, err
	}
	return mnemonic, kp, nil
}

// ParseSeedPhrase derives the account key pair. The word count is checked
// before anything else.
func ParseSeedPhrase(phrase string) (*KeyPair, error) {
	normalized := NormalizeSeedPhrase(phrase)
	if len(strings.Fields(normalized)) != SeedPhraseWords {
		return nil, ErrInvalidSeedPhrase
	}

	seed, err := bip39.NewSeedWithErrorChecking(normalized, "")
	if err != nil {
		return nil, fmt.Errorf("invalid seed phrase: %w", err)
	}

	node, err := derivePath(seed, KeyDerivationPath)
	if err != nil {
		return nil, err
	}
	return NewKeyPairFromSeed(node.PrivateKey)
}
