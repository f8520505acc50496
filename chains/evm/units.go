package evm

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

// EtherToWei converts a decimal ether string to wei.
func EtherToWei(ether string) (*big.Int, error) {
	d, err := decimal.NewFromString(ether)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", ether, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", ether)
	}

	wei := d.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more than %d decimals", ether, etherDecimals)
	}
	return wei.BigInt(), nil
}

// WeiToEther renders wei as a decimal ether string.
func WeiToEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}
