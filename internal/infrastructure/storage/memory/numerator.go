package memory

import (
	"context"
	"time"

	"stockledger/internal/core/numerator"
)

// Numerator implements numerator.Generator over the store's sequences.
// Both strategies behave as strict: numbers are rolled back with the transaction.
type Numerator struct {
	s *Store
}

var _ numerator.Generator = (*Numerator)(nil)

// Numerator returns the sequence generator.
func (s *Store) Numerator() *Numerator {
	return &Numerator{s: s}
}

func (n *Numerator) GetNextNumber(ctx context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	var next int64
	err := n.s.write(ctx, func() error {
		key := cfg.Key(period)
		n.s.sequences[key]++
		next = n.s.sequences[key]
		return nil
	})
	if err != nil {
		return "", err
	}
	return cfg.Format(period, next), nil
}

func (n *Numerator) SetNextNumber(ctx context.Context, cfg numerator.Config, period time.Time, value int64) error {
	return n.s.write(ctx, func() error {
		n.s.sequences[cfg.Key(period)] = value
		return nil
	})
}
