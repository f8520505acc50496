package contract

import (
	"context"
	"math/big"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/chinmay1088/meridian/logger"
	"github.com/chinmay1088/meridian/near"
)

const (
	viewCacheTTL     = 30 * time.Second
	viewCacheCleanup = time.Minute
)

// Caller is a connected NEAR account; *near.Account satisfies it.
type Caller interface {
	AccountID() string
	FunctionCall(ctx context.Context, req near.FunctionCallRequest) ([]byte, error)
	ViewFunction(ctx context.Context, contractID, method string, args interface{}, out interface{}) error
}

// Client wraps the derivation-path and market methods of the contract.
type Client struct {
	caller        Caller
	contractID    string
	mpcContractID string
	views         *cache.Cache
	log           zerolog.Logger
}

func NewClient(caller Caller, contractID, mpcContractID string, log zerolog.Logger) *Client {
	return &Client{
		caller:        caller,
		contractID:    contractID,
		mpcContractID: mpcContractID,
		views:         cache.New(viewCacheTTL, viewCacheCleanup),
		log:           log,
	}
}

func (c *Client) ContractID() string { return c.contractID }

func (c *Client) AccountID() string { return c.caller.AccountID() }

// call submits a change call and drops every cached view.
func (c *Client) call(ctx context.Context, category, method string, args interface{}, deposit *big.Int) ([]byte, error) {
	req := near.FunctionCallRequest{
		ContractID: c.contractID,
		MethodName: method,
		Args:       args,
		Gas:        near.DefaultFunctionCallGas,
		Deposit:    deposit,
	}

	log := logger.Category(c.log, category)
	log.Info().Str("method", method).Str("deposit", near.FormatNearAmount(req.Deposit)).Msg("calling contract")

	out, err := c.caller.FunctionCall(ctx, req)
	c.views.Flush()
	if err != nil {
		log.Debug().Err(err).Str("method", method).Msg("contract call failed")
		return nil, err
	}
	return out, nil
}

// view runs a view call, serving repeated keys from the cache until the
// next change call.
func view[T any](ctx context.Context, c *Client, key, contractID, method string, args interface{}) (T, error) {
	if cached, ok := c.views.Get(key); ok {
		return cached.(T), nil
	}

	var out T
	if err := c.caller.ViewFunction(ctx, contractID, method, args, &out); err != nil {
		return out, err
	}
	c.views.Set(key, out, cache.DefaultExpiration)
	return out, nil
}
