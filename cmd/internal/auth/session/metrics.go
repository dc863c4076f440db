package session

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for a registry.
type Metrics struct {
	added    prometheus.Counter
	lookups  *prometheus.CounterVec
	removes  prometheus.Counter
	reaped   prometheus.Counter
	sweepDur prometheus.Histogram
}

// NewMetrics creates and registers session collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gog_sessions_added_total",
			Help: "Sessions created.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gog_session_lookups_total",
			Help: "Session lookups by result (hit, miss, error).",
		}, []string{"result"}),
		removes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gog_session_removes_total",
			Help: "Remove calls (logout), counted whether or not the token matched a live session.",
		}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gog_sessions_reaped_total",
			Help: "Expired sessions evicted by the background reaper.",
		}),
		sweepDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gog_session_sweep_duration_seconds",
			Help:    "Duration of reaper sweeps.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
	reg.MustRegister(m.added, m.lookups, m.removes, m.reaped, m.sweepDur)
	return m
}

// BindStored exposes gog_sessions_stored, read from fn on every scrape.
func (m *Metrics) BindStored(reg prometheus.Registerer, fn func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gog_sessions_stored",
		Help: "Sessions currently held by the in-memory registry, including expired ones not yet reaped.",
	}, func() float64 { return float64(fn()) }))
}

// ObserveSweep implements SweepObserver.
func (m *Metrics) ObserveSweep(removed int, took time.Duration) {
	m.reaped.Add(float64(removed))
	m.sweepDur.Observe(took.Seconds())
}

type instrumented struct {
	Registry
	m *Metrics
}

// Instrument decorates r so every call is counted in m.
func Instrument(r Registry, m *Metrics) Registry {
	if m == nil {
		return r
	}
	return &instrumented{Registry: r, m: m}
}

func (i *instrumented) Add(ctx context.Context, identity string) (Token, error) {
	tok, err := i.Registry.Add(ctx, identity)
	if err == nil {
		i.m.added.Inc()
	}
	return tok, err
}

func (i *instrumented) Get(ctx context.Context, tok Token) (string, error) {
	identity, err := i.Registry.Get(ctx, tok)
	switch {
	case err == nil:
		i.m.lookups.WithLabelValues("hit").Inc()
	case errors.Is(err, ErrSessionNotFound):
		i.m.lookups.WithLabelValues("miss").Inc()
	default:
		i.m.lookups.WithLabelValues("error").Inc()
	}
	return identity, err
}

func (i *instrumented) Remove(ctx context.Context, tok Token) error {
	err := i.Registry.Remove(ctx, tok)
	if err == nil {
		i.m.removes.Inc()
	}
	return err
}

// Ping forwards to the wrapped registry when it supports it.
func (i *instrumented) Ping(ctx context.Context) error {
	if p, ok := i.Registry.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
