package logger

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	CategoryField = "category"
)

const (
	CategoryAccount = "account"
	CategoryTx      = "tx"
	CategoryMarket  = "market"
	CategoryChain   = "chain"
	CategoryRPC     = "rpc"
)

// New builds a console logger writing to w at the given level name.
// Unknown level names fall back to info.
func New(w io.Writer, level string) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    false,
		TimeFormat: time.DateTime,
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Nop returns a disabled logger, used when no logger is wired.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Category returns a child logger with the category field set.
func Category(log zerolog.Logger, category string) zerolog.Logger {
	return log.With().Str(CategoryField, category).Logger()
}
