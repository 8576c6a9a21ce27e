package usecase

import (
	"time"

	"go.uber.org/zap"
)

// Clock returns the current time. Use cases default to UTC wall time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Page sizes for message history.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// NormalizePage applies the default and cap to limit and clamps offset.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// enrichConcurrency bounds the fan-out of per-conversation lookups.
const enrichConcurrency = 8
