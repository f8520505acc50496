package contract

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chinmay1088/meridian/chains"
)

var ErrInvalidTokenID = errors.New("invalid token id")

// TokenID is the parsed form of a derivation-path token id, which the
// contract stores as a JSON string like {"chain":60,"meta":{"id":0}}.
type TokenID struct {
	Chain chains.Chain `json:"chain"`
	Meta  TokenMeta    `json:"meta"`
}

type TokenMeta struct {
	ID uint64 `json:"id"`
}

// ParseTokenID validates and decodes a token id string.
func ParseTokenID(s string) (TokenID, error) {
	var raw struct {
		Chain *int `json:"chain"`
		Meta  *struct {
			ID *uint64 `json:"id"`
		} `json:"meta"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return TokenID{}, fmt.Errorf("%w %q: %v", ErrInvalidTokenID, s, err)
	}
	if raw.Chain == nil || raw.Meta == nil || raw.Meta.ID == nil {
		return TokenID{}, fmt.Errorf("%w %q: want {chain, meta:{id}}", ErrInvalidTokenID, s)
	}

	chain := chains.Chain(*raw.Chain)
	if !chain.Valid() {
		return TokenID{}, fmt.Errorf("%w %q: unsupported chain %d", ErrInvalidTokenID, s, *raw.Chain)
	}
	return TokenID{Chain: chain, Meta: TokenMeta{ID: *raw.Meta.ID}}, nil
}

// String renders the canonical token id.
func (t TokenID) String() string {
	return fmt.Sprintf(`{"chain":%d,"meta":{"id":%d}}`, int(t.Chain), t.Meta.ID)
}

// Token is an NFT returned by nft_tokens_for_owner.
type Token struct {
	TokenID            string                     `json:"token_id"`
	OwnerID            string                     `json:"owner_id"`
	Metadata           TokenMetadata              `json:"metadata"`
	ApprovedAccountIDs map[string]json.RawMessage `json:"approved_account_ids,omitempty"`
}

type TokenMetadata struct {
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Media         string          `json:"media,omitempty"`
	MediaHash     string          `json:"media_hash,omitempty"`
	Copies        *uint64         `json:"copies,omitempty"`
	IssuedAt      json.RawMessage `json:"issued_at,omitempty"`
	ExpiresAt     json.RawMessage `json:"expires_at,omitempty"`
	StartsAt      json.RawMessage `json:"starts_at,omitempty"`
	UpdatedAt     json.RawMessage `json:"updated_at,omitempty"`
	Extra         json.RawMessage `json:"extra,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	ReferenceHash string          `json:"reference_hash,omitempty"`
}

// Alias is the user-chosen path name, stored as the NFT title.
func (t Token) Alias() string { return t.Metadata.Title }

// Parsed returns the token id structure, or an error for foreign tokens.
func (t Token) Parsed() (TokenID, error) { return ParseTokenID(t.TokenID) }
