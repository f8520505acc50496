package chains

import (
	"fmt"
	"strconv"
	"strings"
)

// Chain is the SLIP-44 coin type used as the `chain` field of a token id.
type Chain int

const (
	BTC Chain = 0
	ETH Chain = 60
	BNB Chain = 714
)

// All lists the supported chains in display order.
var All = []Chain{ETH, BTC, BNB}

func (c Chain) String() string {
	switch c {
	case BTC:
		return "BTC"
	case ETH:
		return "ETH"
	case BNB:
		return "BNB"
	default:
		return fmt.Sprintf("Chain(%d)", int(c))
	}
}

// Symbol is the native asset ticker.
func (c Chain) Symbol() string {
	return c.String()
}

func (c Chain) Valid() bool {
	switch c {
	case BTC, ETH, BNB:
		return true
	}
	return false
}

// IsEVM reports whether the chain uses the EVM signing flow.
func (c Chain) IsEVM() bool {
	return c == ETH || c == BNB
}

// ParseChain accepts a ticker ("eth", "bsc", "bnb", "btc") or a coin type.
func ParseChain(s string) (Chain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eth", "ethereum":
		return ETH, nil
	case "bnb", "bsc":
		return BNB, nil
	case "btc", "bitcoin":
		return BTC, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err == nil && Chain(n).Valid() {
		return Chain(n), nil
	}
	return 0, fmt.Errorf("unsupported chain %q (use eth, bnb or btc)", s)
}
