package api

// HTTP plumbing shared by the chain clients.
//
// Files:
//   config.go  - timeouts and Esplora defaults
//   types.go   - Esplora response types
//   base.go    - Client, HTTPError, GET/POST helpers
//   bitcoin.go - Esplora REST client (balance, utxos, fees, broadcast)
//
// Usage:
//   client := api.NewClient(api.DefaultTimeout)
//   esplora := api.NewEsplora(client, "https://blockstream.info/testnet/api/")
//   utxos, err := esplora.GetBitcoinUTXOs(ctx, address)
