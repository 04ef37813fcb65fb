package symbolmeta

import (
	"context"
	"time"

	"digitdash/internal/memorystore"
	"digitdash/pkg/deriv"

	"go.uber.org/zap"
)

// Source lists tradable symbols. feed.Manager implements it.
type Source interface {
	ActiveSymbols(ctx context.Context) ([]deriv.ActiveSymbol, error)
}

type SymbolLoader struct {
	Source  Source
	Timeout time.Duration
	Logger  *zap.Logger
}

// LoadSymbols fetches the active symbols and streams them into ch.
// ch is closed when the function returns.
func (l *SymbolLoader) LoadSymbols(ctx context.Context, ch chan<- memorystore.SymbolInfo) error {
	defer close(ch)

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	list, err := l.Source.ActiveSymbols(ctx)
	if err != nil {
		l.Logger.Error("failed to load active symbols", zap.Error(err))
		return err
	}
	infos := deriv.ToSymbolInfo(list)
	l.Logger.Info("loaded symbols", zap.Int("count", len(infos)))

	for _, info := range infos {
		select {
		case ch <- info:
		case <-ctx.Done():
			l.Logger.Warn("symbol streaming interrupted", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}
	return nil
}

// Collect drains ch and replaces the store's symbols once the stream ends.
// An empty stream leaves the previous symbols in place.
func Collect(store *memorystore.SymbolStore) func(<-chan memorystore.SymbolInfo) {
	return func(ch <-chan memorystore.SymbolInfo) {
		var infos []memorystore.SymbolInfo
		for info := range ch {
			infos = append(infos, info)
		}
		if len(infos) > 0 {
			store.Replace(infos)
		}
	}
}
