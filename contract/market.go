package contract

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/samber/lo"

	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/near"
)

const DefaultMarketPageSize = 100

// Listing is a path offered on the market. Price is in yoctoNEAR.
type Listing struct {
	TokenID string
	Price   *big.Int
}

func (l Listing) PriceNEAR() string { return near.FormatNearAmount(l.Price) }

// AddDerivationPathToMarket lists an owned path for priceNEAR.
func (c *Client) AddDerivationPathToMarket(ctx context.Context, tokenID, priceNEAR string) error {
	if _, err := ParseTokenID(tokenID); err != nil {
		return err
	}
	price, err := near.ParseNearAmount(priceNEAR)
	if err != nil {
		return err
	}
	if price.Sign() == 0 {
		return fmt.Errorf("price must be positive")
	}

	_, err = c.call(ctx, logger.CategoryMarket, "add_derivation_path_to_market", map[string]string{
		"token_id": tokenID,
		"price":    price.String(),
	}, near.OneYocto)
	if err != nil {
		return fmt.Errorf("failed to list derivation path: %w", err)
	}
	return nil
}

// RemoveDerivationPathFromMarket withdraws a listing.
func (c *Client) RemoveDerivationPathFromMarket(ctx context.Context, tokenID string) error {
	if _, err := ParseTokenID(tokenID); err != nil {
		return err
	}

	_, err := c.call(ctx, logger.CategoryMarket, "remove_derivation_path_from_market", map[string]string{
		"token_id": tokenID,
	}, near.OneYocto)
	if err != nil {
		return fmt.Errorf("failed to unlist derivation path: %w", err)
	}
	return nil
}

// BuyDerivationPath buys a listed path, attaching priceNEAR.
func (c *Client) BuyDerivationPath(ctx context.Context, tokenID, priceNEAR string) error {
	if _, err := ParseTokenID(tokenID); err != nil {
		return err
	}
	price, err := near.ParseNearAmount(priceNEAR)
	if err != nil {
		return err
	}

	_, err = c.call(ctx, logger.CategoryMarket, "buy_derivation_path", map[string]string{
		"token_id": tokenID,
	}, price)
	if err != nil {
		return fmt.Errorf("failed to buy derivation path: %w", err)
	}
	return nil
}

// GetMarketListPaged returns token id -> price in yoctoNEAR.
func (c *Client) GetMarketListPaged(ctx context.Context, fromIndex, limit int) (map[string]string, error) {
	if limit <= 0 {
		limit = DefaultMarketPageSize
	}
	key := fmt.Sprintf("market:%d:%d", fromIndex, limit)
	list, err := view[map[string]string](ctx, c, key, c.contractID, "get_market_list_paged", map[string]int{
		"from_index": fromIndex,
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get market list: %w", err)
	}
	return lo.Assign(list), nil
}

// Listings returns the market page as listings sorted by token id.
// Entries with malformed prices are skipped.
func (c *Client) Listings(ctx context.Context, fromIndex, limit int) ([]Listing, error) {
	list, err := c.GetMarketListPaged(ctx, fromIndex, limit)
	if err != nil {
		return nil, err
	}

	listings := lo.FilterMap(lo.Entries(list), func(e lo.Entry[string, string], _ int) (Listing, bool) {
		price, ok := new(big.Int).SetString(e.Value, 10)
		return Listing{TokenID: e.Key, Price: price}, ok
	})
	sort.Slice(listings, func(i, j int) bool { return listings[i].TokenID < listings[j].TokenID })
	return listings, nil
}

// ListingPrice looks up the asking price of tokenID in NEAR.
func (c *Client) ListingPrice(ctx context.Context, tokenID string) (string, error) {
	listings, err := c.Listings(ctx, 0, DefaultMarketPageSize)
	if err != nil {
		return "", err
	}
	listing, ok := lo.Find(listings, func(l Listing) bool { return l.TokenID == tokenID })
	if !ok {
		return "", fmt.Errorf("derivation path %s is not listed", tokenID)
	}
	return listing.PriceNEAR(), nil
}
