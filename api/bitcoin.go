package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Esplora talks to a Blockstream-style Esplora REST API.
type Esplora struct {
	client  *Client
	baseURL string
}

// NewEsplora creates a client rooted at baseURL, with or without trailing slash
func NewEsplora(client *Client, baseURL string) *Esplora {
	return &Esplora{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (e *Esplora) url(path string) string {
	return e.baseURL + "/" + path
}

// GetBitcoinAddressInfo fetches the chain and mempool stats of an address
func (e *Esplora) GetBitcoinAddressInfo(ctx context.Context, address string) (*BitcoinAddressInfo, error) {
	var info BitcoinAddressInfo
	if err := e.client.GetJSON(ctx, e.url("address/"+address), &info); err != nil {
		return nil, fmt.Errorf("failed to fetch address %s: %w", address, err)
	}
	return &info, nil
}

// GetBitcoinBalance returns the confirmed balance in satoshis
func (e *Esplora) GetBitcoinBalance(ctx context.Context, address string) (int64, error) {
	info, err := e.GetBitcoinAddressInfo(ctx, address)
	if err != nil {
		return 0, err
	}
	return info.ChainStats.Balance(), nil
}

// GetBitcoinUTXOs fetches the unspent outputs of an address
func (e *Esplora) GetBitcoinUTXOs(ctx context.Context, address string) ([]BitcoinUTXO, error) {
	var utxos []BitcoinUTXO
	if err := e.client.GetJSON(ctx, e.url("address/"+address+"/utxo"), &utxos); err != nil {
		return nil, fmt.Errorf("failed to fetch UTXOs: %w", err)
	}
	return utxos, nil
}

// GetBitcoinFeeEstimate returns the fee rate in sat/vB for the default
// confirmation target. DefaultFeeRate is used only when the server has no
// estimate for that target.
func (e *Esplora) GetBitcoinFeeEstimate(ctx context.Context) (float64, error) {
	body, err := e.client.Get(ctx, e.url("fee-estimates"))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch fee estimates: %w", err)
	}

	rate := gjson.GetBytes(body, DefaultFeeTarget).Float()
	if rate <= 0 {
		return DefaultFeeRate, nil
	}
	return rate, nil
}

// SendBitcoinTransaction broadcasts a raw transaction hex and returns its txid
func (e *Esplora) SendBitcoinTransaction(ctx context.Context, rawTxHex string) (string, error) {
	body, err := e.client.PostText(ctx, e.url("tx"), rawTxHex)
	if err != nil {
		return "", fmt.Errorf("transaction failed: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}
