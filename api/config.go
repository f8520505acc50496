package api

import "time"

const (
	DefaultTimeout = 30 * time.Second

	// Esplora fee-estimates target, in blocks.
	DefaultFeeTarget = "6"
	// Used when the fee estimate endpoint is unreachable or empty, in sat/vB.
	DefaultFeeRate = 10.0

	SatoshisPerBTC = 100_000_000
)
