package api

// BitcoinUTXO is an unspent output as returned by Esplora.
type BitcoinUTXO struct {
	TxID   string     `json:"txid"`
	Vout   uint32     `json:"vout"`
	Value  int64      `json:"value"`
	Status UTXOStatus `json:"status"`
}

type UTXOStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
}

// AddressStats mirrors the chain_stats / mempool_stats objects.
type AddressStats struct {
	FundedTxoCount int   `json:"funded_txo_count"`
	FundedTxoSum   int64 `json:"funded_txo_sum"`
	SpentTxoCount  int   `json:"spent_txo_count"`
	SpentTxoSum    int64 `json:"spent_txo_sum"`
	TxCount        int   `json:"tx_count"`
}

// Balance is funded minus spent, in satoshis.
func (s AddressStats) Balance() int64 {
	return s.FundedTxoSum - s.SpentTxoSum
}

type BitcoinAddressInfo struct {
	Address      string       `json:"address"`
	ChainStats   AddressStats `json:"chain_stats"`
	MempoolStats AddressStats `json:"mempool_stats"`
}
