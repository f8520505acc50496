package near

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// NearNominationExp is the number of yocto decimals in one NEAR.
const NearNominationExp = 24

// OneYocto is the smallest deposit, used by market calls that only need
// an attached deposit as proof of a full-access key.
var OneYocto = big.NewInt(1)

// FormatNearAmount renders a yoctoNEAR amount in NEAR, trailing zeros trimmed.
func FormatNearAmount(yocto *big.Int) string {
	if yocto == nil {
		return "0"
	}
	return decimal.NewFromBigInt(yocto, -NearNominationExp).String()
}

// ParseNearAmount converts a NEAR decimal string into yoctoNEAR.
func ParseNearAmount(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid NEAR amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid NEAR amount %q: negative", amount)
	}

	shifted := d.Shift(NearNominationExp)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("invalid NEAR amount %q: more than %d decimals", amount, NearNominationExp)
	}
	return shifted.BigInt(), nil
}

// MustParseNearAmount panics on malformed constants.
func MustParseNearAmount(amount string) *big.Int {
	v, err := ParseNearAmount(amount)
	if err != nil {
		panic(err)
	}
	return v
}
