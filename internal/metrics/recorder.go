package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "digitdash"

var statuses = []string{"disconnected", "connecting", "connected", "reconnecting"}

// Recorder exposes feed and trading counters on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	ticks        *prometheus.CounterVec
	malformed    prometheus.Counter
	reconnects   prometheus.Counter
	status       *prometheus.GaugeVec
	signals      *prometheus.CounterVec
	trades       *prometheus.CounterVec
	tradeResults *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	exposure     prometheus.Gauge
	profit       prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Ticks received from the feed",
		}, []string{"symbol"}),
		malformed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_messages_total",
			Help:      "Feed messages dropped because they could not be decoded",
		}),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts made after the feed dropped",
		}),
		status: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_status",
			Help:      "1 for the current connection status, 0 otherwise",
		}, []string{"status"}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals emitted by bots",
		}, []string{"bot", "action"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Trades opened",
		}, []string{"bot"}),
		tradeResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_results_total",
			Help:      "Trades closed by result",
		}, []string{"bot", "result"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_rejected_total",
			Help:      "Signals the risk limits refused to trade",
		}, []string{"reason"}),
		exposure: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_exposure",
			Help:      "Total stake of open trades",
		}),
		profit: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_profit",
			Help:      "Profit over the retained trades",
		}),
	}
}

// Registry returns the registry to serve at /metrics.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) RecordTick(symbol string) {
	r.ticks.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordMalformed() { r.malformed.Inc() }

func (r *Recorder) RecordReconnect() { r.reconnects.Inc() }

// RecordStatus marks status as the current one.
func (r *Recorder) RecordStatus(status string) {
	for _, s := range statuses {
		v := 0.0
		if s == status {
			v = 1
		}
		r.status.WithLabelValues(s).Set(v)
	}
}

func (r *Recorder) RecordSignal(bot, action string) {
	r.signals.WithLabelValues(bot, action).Inc()
}

func (r *Recorder) RecordTrade(bot string) {
	r.trades.WithLabelValues(bot).Inc()
}

func (r *Recorder) RecordTradeRejected(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordTradeResult(bot, result string) {
	r.tradeResults.WithLabelValues(bot, result).Inc()
}

// RecordRisk publishes the current exposure and profit.
func (r *Recorder) RecordRisk(exposure, profit float64) {
	r.exposure.Set(exposure)
	r.profit.Set(profit)
}
