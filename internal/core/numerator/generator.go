// Package numerator provides domain contracts for document auto-numbering.
// Implementations live in pkg/numerator (Postgres) and the in-memory store.
package numerator

import (
	"context"
	"time"
)

// Generator generates sequential document numbers.
type Generator interface {
	// GetNextNumber generates the next document number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., REC-2026-00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the current sequence value (for data imports).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
