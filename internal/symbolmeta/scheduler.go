package symbolmeta

import (
	"context"
	"time"

	"digitdash/internal/memorystore"

	"go.uber.org/zap"
)

type MidnightLoader struct {
	Load func(ctx context.Context) <-chan memorystore.SymbolInfo
	now  func() time.Time
}

func DefaultLoadFn(loader *SymbolLoader) func(ctx context.Context) <-chan memorystore.SymbolInfo {
	return func(ctx context.Context) <-chan memorystore.SymbolInfo {
		ch := make(chan memorystore.SymbolInfo, 100)

		go func() {
			// Failures are logged by the loader; the next run retries.
			if err := loader.LoadSymbols(ctx, ch); err != nil {
				loader.Logger.Warn("symbol refresh failed", zap.Error(err))
			}
		}()

		return ch
	}
}

// Start runs proc once immediately, then at every UTC midnight until ctx ends.
// The returned channel is closed when the scheduler stops.
func (m *MidnightLoader) Start(ctx context.Context, proc func(<-chan memorystore.SymbolInfo)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		m.runOnce(ctx, proc)
		for {
			timer := time.NewTimer(untilNextMidnight(m.clock()))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				m.runOnce(ctx, proc)
			}
		}
	}()
	return done
}

func (m *MidnightLoader) runOnce(ctx context.Context, proc func(<-chan memorystore.SymbolInfo)) {
	proc(m.Load(ctx))
}

func (m *MidnightLoader) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}

// untilNextMidnight returns the wait until the next UTC midnight after now.
func untilNextMidnight(now time.Time) time.Duration {
	now = now.UTC()
	next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return next.Sub(now)
}
