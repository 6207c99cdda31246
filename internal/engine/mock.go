package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// MockEngine is an Engine for testing.
type MockEngine struct {
	// Configurable behavior
	Result  any           // returned on success; defaults to an empty AnnotatedDocument
	Err     error         // returned instead of a result when set
	Latency time.Duration // simulated work before returning
	Block   chan struct{} // when non-nil, Extract waits for a receive/close before returning

	// State
	calls     atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64
}

var _ Engine = (*MockEngine)(nil)

// Extract records the call and returns the configured result or error.
func (m *MockEngine) Extract(ctx context.Context, req Request) (any, error) {
	m.calls.Add(1)

	cur := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		max := m.maxActive.Load()
		if cur <= max || m.maxActive.CompareAndSwap(max, cur) {
			break
		}
	}

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &AnnotatedDocument{Text: req.Text, Extractions: []Extraction{}}, nil
}

// Calls returns how many times Extract was invoked.
func (m *MockEngine) Calls() int64 {
	return m.calls.Load()
}

// MaxActive returns the high-water mark of concurrent Extract calls.
func (m *MockEngine) MaxActive() int64 {
	return m.maxActive.Load()
}
