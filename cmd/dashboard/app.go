package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"digitdash/config"
	"digitdash/internal/analysis"
	"digitdash/internal/bots"
	"digitdash/internal/dashboard"
	"digitdash/internal/events"
	"digitdash/internal/feed"
	"digitdash/internal/journal"
	"digitdash/internal/memorystore"
	"digitdash/internal/metrics"
	"digitdash/internal/session"
	"digitdash/internal/symbolmeta"
	"digitdash/internal/trading"
	"digitdash/pkg/deriv"
	"digitdash/pkg/storage/memory"
	"digitdash/pkg/storage/postgres"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	feed    *feed.Manager
	session *session.Session
	bus     *events.Bus
	symbols *memorystore.SymbolStore
	journal *journal.Journal
	db      *postgres.PostgresClient
	server  *dashboard.Server
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	recorder := metrics.New()

	dialer := deriv.NewDialer(cfg.Feed.URL, log,
		deriv.WithHandshakeTimeout(cfg.Feed.HandshakeTimeout),
		deriv.WithKeepalive(cfg.Feed.PingInterval, cfg.Feed.PongWait),
		deriv.WithReadLimit(cfg.Feed.ReadLimit),
	)
	manager := feed.NewManager(feed.WebSocket(dialer), feedOptions(cfg.Feed), log, feed.WithMetrics(recorder))

	botSet, err := buildBots(cfg.Bots)
	if err != nil {
		return nil, err
	}

	tracker, settler, err := buildTrading(cfg.Trading, log)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	sess := session.New(manager, botSet, tracker, bus, log, session.Options{
		Symbols: cfg.Symbols,
		Analysis: analysis.Options{
			Capacity:  cfg.Analysis.Capacity,
			Precision: cfg.Analysis.Precision,
		},
		AutoTrade:   cfg.Trading.AutoTrade,
		HistorySize: cfg.Analysis.HistorySize,
		Settler:     settler,
		Metrics:     recorder,
	})

	a := &app{
		cfg:     cfg,
		log:     log,
		feed:    manager,
		session: sess,
		bus:     bus,
		symbols: memorystore.NewSymbolStore(),
	}

	if cfg.Journal.Enabled {
		store, err := a.journalStore()
		if err != nil {
			return nil, err
		}
		a.journal = journal.New(store, log, journal.Options{
			QueueSize:    cfg.Journal.QueueSize,
			WriteTimeout: cfg.Journal.WriteTimeout,
		})
	}

	if cfg.Dashboard.Enabled {
		a.server = dashboard.NewServer(sess, bus, recorder.Registry(), log,
			dashboard.WithHost(cfg.Dashboard.Host),
			dashboard.WithPort(cfg.Dashboard.Port),
			dashboard.WithShutdownTimeout(cfg.Dashboard.ShutdownTimeout),
			dashboard.WithCORS(cfg.Dashboard.CORS),
			dashboard.WithConnectionEvents(manager.Events),
			dashboard.WithSymbolStore(a.symbols),
		)
	}

	return a, nil
}

func (a *app) journalStore() (journal.Store, error) {
	if a.cfg.Journal.Store == "memory" {
		a.log.Info("Journal keeps trades in memory")
		return memory.NewStore(), nil
	}
	db, err := postgres.InitializeAndMigrateTradeRecord(a.cfg.Postgres, a.cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("journal store: %w", err)
	}
	a.db = db
	return db, nil
}

// Run starts every component and blocks until ctx is cancelled.
func (a *app) Run(ctx context.Context) error {
	if a.journal != nil {
		a.journal.Start(a.bus)
	}
	if a.server != nil {
		if err := a.server.Start(); err != nil {
			return errors.Join(err, a.shutdown())
		}
	}

	// Only drops after a successful connect are retried by the feed.
	if err := a.session.Start(ctx); err != nil {
		return errors.Join(err, a.shutdown())
	}

	var refreshDone <-chan struct{}
	if a.cfg.Feed.SymbolRefresh {
		loader := &symbolmeta.SymbolLoader{Source: a.feed, Logger: a.log.Named("symbolmeta")}
		scheduler := &symbolmeta.MidnightLoader{Load: symbolmeta.DefaultLoadFn(loader)}
		refreshDone = scheduler.Start(ctx, symbolmeta.Collect(a.symbols))
	}

	a.log.Info("digitdash started",
		zap.Strings("symbols", a.cfg.Symbols),
		zap.Bool("auto_trade", a.cfg.Trading.AutoTrade),
		zap.String("mode", a.cfg.Trading.Mode),
	)

	<-ctx.Done()
	a.log.Info("Shutting down")

	if refreshDone != nil {
		<-refreshDone
	}
	return a.shutdown()
}

func (a *app) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.server != nil {
		keep(a.server.Shutdown(ctx))
	}
	keep(a.session.Stop())
	if a.journal != nil {
		a.journal.Stop()
	}
	if a.db != nil {
		keep(a.db.Close())
	}
	return firstErr
}

func feedOptions(c config.FeedConfig) feed.Options {
	return feed.Options{
		HandshakeTimeout: c.HandshakeTimeout,
		ReconnectMin:     c.ReconnectMin,
		ReconnectMax:     c.ReconnectMax,
		ReconnectFactor:  c.ReconnectFactor,
		ReconnectJitter:  true,
		MaxAttempts:      c.MaxAttempts,
		SendQueue:        c.SendQueue,
		EventLogSize:     c.EventLogSize,
	}
}

// buildBots creates every bot kind. Configured bots take their params and
// active flag; the rest stay inactive with defaults.
func buildBots(cfgs []config.BotConfig) (*bots.Set, error) {
	set := bots.NewDefaultSet()
	for _, c := range cfgs {
		kind, err := bots.ParseKind(c.Name)
		if err != nil {
			return nil, err
		}
		params, err := botParams(c)
		if err != nil {
			return nil, err
		}
		b, err := bots.New(kind, params)
		if err != nil {
			return nil, err
		}
		b.SetActive(c.Active)
		set.Put(b)
	}
	return set, nil
}

func botParams(c config.BotConfig) (bots.Params, error) {
	stake, err := decimal.NewFromString(c.Stake)
	if err != nil {
		return bots.Params{}, fmt.Errorf("bot %s: stake: %w", c.Name, err)
	}
	p := bots.Params{
		Symbol:               c.Symbol,
		Stake:                stake,
		Threshold:            c.Threshold,
		MinSamples:           c.MinSamples,
		TrendLength:          c.TrendLength,
		MaxConsecutiveLosses: c.MaxConsecutiveLosses,
		CooldownTicks:        c.CooldownTicks,
		LossPenalty:          c.LossPenalty,
	}
	if c.Barrier != nil {
		p.Barrier = *c.Barrier
	}
	return p, nil
}

func buildTrading(c config.TradingConfig, log *zap.Logger) (*trading.Tracker, *trading.PaperSettler, error) {
	exposure, err := decimal.NewFromString(c.MaxExposure)
	if err != nil {
		return nil, nil, fmt.Errorf("trading: max_exposure: %w", err)
	}
	payout, err := decimal.NewFromString(c.PayoutRate)
	if err != nil {
		return nil, nil, fmt.Errorf("trading: payout_rate: %w", err)
	}

	tracker := trading.NewTracker(trading.Options{
		Mode:     trading.Mode(c.Mode),
		Capacity: c.Capacity,
		Limits: trading.Limits{
			MaxExposure:          exposure,
			MaxOpenTrades:        c.MaxOpenTrades,
			MaxConsecutiveLosses: c.MaxConsecutiveLosses,
		},
	}, log)

	var settler *trading.PaperSettler
	if tracker.Mode() == trading.ModePaper {
		settler = trading.NewPaperSettler(payout)
	}
	return tracker, settler, nil
}
