package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/chinmay1088/meridian/chains"
	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/near"
)

// pathDeposit covers storage for a new or renamed path.
var pathDeposit = near.MustParseNearAmount("0.01")

// AddDerivationPath mints a new derivation path token for chain.
func (c *Client) AddDerivationPath(ctx context.Context, alias string, chain chains.Chain) error {
	if strings.TrimSpace(alias) == "" {
		return fmt.Errorf("alias is required")
	}
	if !chain.Valid() {
		return fmt.Errorf("unsupported chain %d", int(chain))
	}

	_, err := c.call(ctx, logger.CategoryAccount, "add_derivation_path", map[string]interface{}{
		"alias": alias,
		"chain": int(chain),
	}, pathDeposit)
	if err != nil {
		return fmt.Errorf("failed to add derivation path: %w", err)
	}
	return nil
}

// UpdatePathAlias renames an owned path.
func (c *Client) UpdatePathAlias(ctx context.Context, alias, tokenID string) error {
	if _, err := ParseTokenID(tokenID); err != nil {
		return err
	}
	if strings.TrimSpace(alias) == "" {
		return fmt.Errorf("alias is required")
	}

	_, err := c.call(ctx, logger.CategoryAccount, "update_path_alias", map[string]interface{}{
		"alias":    alias,
		"token_id": tokenID,
	}, pathDeposit)
	if err != nil {
		return fmt.Errorf("failed to rename derivation path: %w", err)
	}
	return nil
}

// QueryTokens lists the caller's paths. A nil chain returns all of them;
// otherwise only tokens whose id parses to that chain are kept.
func (c *Client) QueryTokens(ctx context.Context, chain *chains.Chain) ([]Token, error) {
	owner := c.caller.AccountID()
	tokens, err := view[[]Token](ctx, c, "tokens:"+owner, c.contractID, "nft_tokens_for_owner", map[string]string{
		"account_id": owner,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}

	if chain == nil {
		return append([]Token(nil), tokens...), nil
	}
	return lo.Filter(tokens, func(t Token, _ int) bool {
		id, err := t.Parsed()
		return err == nil && id.Chain == *chain
	}), nil
}

// AccountDetail is the contract's per-account record.
type AccountDetail struct {
	AccountID           string          `json:"account_id"`
	DerivationPathInfos json.RawMessage `json:"derivation_path_infos"`
}

// PathCount is the number of derivation paths the contract records for
// the account.
func (d *AccountDetail) PathCount() int {
	if d == nil {
		return 0
	}
	infos := gjson.ParseBytes(d.DerivationPathInfos)
	switch {
	case infos.IsObject():
		return len(infos.Map())
	case infos.IsArray():
		return len(infos.Array())
	}
	return 0
}

// GetAccount returns the contract record for the caller, or nil when the
// account is not registered.
func (c *Client) GetAccount(ctx context.Context) (*AccountDetail, error) {
	owner := c.caller.AccountID()
	detail, err := view[*AccountDetail](ctx, c, "account:"+owner, c.contractID, "get_account", map[string]string{
		"account_id": owner,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return detail, nil
}

// RootPublicKey reads the MPC root public key from the signer contract.
func (c *Client) RootPublicKey(ctx context.Context) (string, error) {
	key, err := view[string](ctx, c, "root:"+c.mpcContractID, c.mpcContractID, "public_key", nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch root public key: %w", err)
	}
	return strings.Trim(key, `"`), nil
}
