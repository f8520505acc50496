package near

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/chinmay1088/meridian/api"
	"github.com/chinmay1088/meridian/logger"
)

const (
	FinalityFinal      = "final"
	FinalityOptimistic = "optimistic"
)

// RPCError is a JSON-RPC error or a failed call result.
type RPCError struct {
	Code    int64
	Name    string
	Cause   string
	Message string
}

func (e *RPCError) Error() string {
	switch {
	case e.Cause != "" && e.Message != "":
		return fmt.Sprintf("rpc %s (%s): %s", e.Name, e.Cause, e.Message)
	case e.Cause != "":
		return fmt.Sprintf("rpc %s: %s", e.Name, e.Cause)
	default:
		return fmt.Sprintf("rpc %s: %s", e.Name, e.Message)
	}
}

// Client is a NEAR JSON-RPC client.
type Client struct {
	http *api.Client
	url  string
	log  zerolog.Logger
}

func NewClient(httpClient *api.Client, nodeURL string, log zerolog.Logger) *Client {
	return &Client{
		http: httpClient,
		url:  nodeURL,
		log:  logger.Category(log, logger.CategoryRPC),
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// Call performs a raw JSON-RPC call and returns the result member.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (gjson.Result, error) {
	id := uuid.NewString()
	c.log.Debug().Str("method", method).Str("id", id).Msg("rpc call")

	body, err := c.http.PostJSON(ctx, c.url, rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("rpc %s: %w", method, err)
	}

	res := gjson.ParseBytes(body)
	if e := res.Get("error"); e.Exists() {
		rpcErr := &RPCError{
			Code:    e.Get("code").Int(),
			Name:    e.Get("name").String(),
			Cause:   e.Get("cause.name").String(),
			Message: e.Get("data").String(),
		}
		if rpcErr.Message == "" {
			rpcErr.Message = e.Get("message").String()
		}
		if rpcErr.Name == "" {
			rpcErr.Name = method
		}
		c.log.Debug().Str("method", method).Err(rpcErr).Msg("rpc error")
		return gjson.Result{}, rpcErr
	}

	result := res.Get("result")
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("rpc %s: response has no result", method)
	}
	return result, nil
}

// Query issues a `query` request. A result carrying an `error` field is
// turned into an RPCError.
func (c *Client) Query(ctx context.Context, params map[string]interface{}) (gjson.Result, error) {
	result, err := c.Call(ctx, "query", params)
	if err != nil {
		return result, err
	}
	if e := result.Get("error"); e.Exists() {
		return gjson.Result{}, &RPCError{Name: "QueryError", Message: e.String()}
	}
	return result, nil
}

// AccountView is the `view_account` result.
type AccountView struct {
	Amount       *big.Int
	Locked       *big.Int
	StorageUsage uint64
	CodeHash     string
	BlockHash    string
}

func (c *Client) ViewAccount(ctx context.Context, accountID string) (*AccountView, error) {
	result, err := c.Query(ctx, map[string]interface{}{
		"request_type": "view_account",
		"finality":     FinalityFinal,
		"account_id":   accountID,
	})
	if err != nil {
		return nil, err
	}

	amount, ok := new(big.Int).SetString(result.Get("amount").String(), 10)
	if !ok {
		return nil, fmt.Errorf("invalid account amount %q", result.Get("amount").String())
	}
	locked, ok := new(big.Int).SetString(result.Get("locked").String(), 10)
	if !ok {
		return nil, fmt.Errorf("invalid account locked amount %q", result.Get("locked").String())
	}

	return &AccountView{
		Amount:       amount,
		Locked:       locked,
		StorageUsage: result.Get("storage_usage").Uint(),
		CodeHash:     result.Get("code_hash").String(),
		BlockHash:    result.Get("block_hash").String(),
	}, nil
}

// AccessKeyView is the `view_access_key` result.
type AccessKeyView struct {
	Nonce     uint64
	BlockHash string
}

func (c *Client) ViewAccessKey(ctx context.Context, accountID, publicKey string) (*AccessKeyView, error) {
	result, err := c.Query(ctx, map[string]interface{}{
		"request_type": "view_access_key",
		"finality":     FinalityFinal,
		"account_id":   accountID,
		"public_key":   publicKey,
	})
	if err != nil {
		return nil, err
	}
	return &AccessKeyView{
		Nonce:     result.Get("nonce").Uint(),
		BlockHash: result.Get("block_hash").String(),
	}, nil
}

// CallFunction runs a view method and returns the raw result bytes.
func (c *Client) CallFunction(ctx context.Context, contractID, method string, args []byte) ([]byte, error) {
	if args == nil {
		args = []byte("{}")
	}
	result, err := c.Query(ctx, map[string]interface{}{
		"request_type": "call_function",
		"finality":     FinalityOptimistic,
		"account_id":   contractID,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(args),
	})
	if err != nil {
		return nil, err
	}

	items := result.Get("result").Array()
	out := make([]byte, len(items))
	for i, item := range items {
		out[i] = byte(item.Int())
	}
	return out, nil
}

// Outcome is the relevant part of a final execution outcome.
type Outcome struct {
	TransactionHash string
	SuccessValue    []byte
}

// BroadcastTxCommit sends a signed transaction and waits for its outcome.
func (c *Client) BroadcastTxCommit(ctx context.Context, signedTx []byte) (*Outcome, error) {
	result, err := c.Call(ctx, "broadcast_tx_commit", []string{
		base64.StdEncoding.EncodeToString(signedTx),
	})
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{TransactionHash: result.Get("transaction.hash").String()}

	status := result.Get("status")
	if failure := status.Get("Failure"); failure.Exists() {
		return outcome, &RPCError{
			Name:    "TransactionFailure",
			Message: failure.Raw,
		}
	}

	success := status.Get("SuccessValue")
	if !success.Exists() {
		return outcome, fmt.Errorf("unexpected transaction status %s", status.Raw)
	}
	if s := success.String(); s != "" {
		value, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return outcome, fmt.Errorf("failed to decode success value: %w", err)
		}
		outcome.SuccessValue = value
	}
	return outcome, nil
}

// decodeJSON unmarshals a view result, treating empty input as null.
func decodeJSON(data []byte, out interface{}) error {
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}
