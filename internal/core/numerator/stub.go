package numerator

import (
	"context"
	"slices"
	"sync"
	"time"
)

// StubGenerator keeps one in-memory sequence per Config.Key and remembers
// every reference it hands out. A non-nil Err fails every call.
type StubGenerator struct {
	Err error

	mu     sync.Mutex
	seq    map[string]int64
	issued []string
}

// GetNextNumber implements Generator.
func (g *StubGenerator) GetNextNumber(_ context.Context, cfg Config, _ *Options, period time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	if g.seq == nil {
		g.seq = make(map[string]int64)
	}
	key := cfg.Key(period)
	g.seq[key]++
	ref := cfg.Format(period, g.seq[key])
	g.issued = append(g.issued, ref)
	return ref, nil
}

// SetNextNumber implements Generator. The next reference continues after value.
func (g *StubGenerator) SetNextNumber(_ context.Context, cfg Config, period time.Time, value int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return g.Err
	}
	if g.seq == nil {
		g.seq = make(map[string]int64)
	}
	g.seq[cfg.Key(period)] = value
	return nil
}

// Issued returns the references generated so far, oldest first.
func (g *StubGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.issued)
}

var _ Generator = (*StubGenerator)(nil)
