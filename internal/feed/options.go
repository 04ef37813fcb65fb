package feed

import "time"

type Options struct {
	HandshakeTimeout time.Duration
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
	ReconnectFactor  float64
	ReconnectJitter  bool
	MaxAttempts      int // 0 retries forever
	SendQueue        int
	EventLogSize     int
}

func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		ReconnectMin:     time.Second,
		ReconnectMax:     30 * time.Second,
		ReconnectFactor:  1.8,
		ReconnectJitter:  true,
		SendQueue:        64,
		EventLogSize:     100,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = d.ReconnectMin
	}
	if o.ReconnectMax < o.ReconnectMin {
		o.ReconnectMax = max(d.ReconnectMax, o.ReconnectMin)
	}
	if o.ReconnectFactor < 1 {
		o.ReconnectFactor = d.ReconnectFactor
	}
	if o.SendQueue <= 0 {
		o.SendQueue = d.SendQueue
	}
	if o.EventLogSize <= 0 {
		o.EventLogSize = d.EventLogSize
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	return o
}

// Metrics receives feed counters. internal/metrics.Recorder implements it.
type Metrics interface {
	RecordTick(symbol string)
	RecordMalformed()
	RecordReconnect()
	RecordStatus(status string)
}

type nopMetrics struct{}

func (nopMetrics) RecordTick(string)   {}
func (nopMetrics) RecordMalformed()    {}
func (nopMetrics) RecordReconnect()    {}
func (nopMetrics) RecordStatus(string) {}
