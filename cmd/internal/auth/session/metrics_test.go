package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type failingRegistry struct{ Registry }

func (failingRegistry) Get(context.Context, Token) (string, error) {
	return "", errors.New("backend down")
}

func TestInstrument_CountsCalls(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	mem := NewMemoryRegistry(Config{TTL: time.Minute})
	m.BindStored(reg, mem.Len)
	r := Instrument(mem, m)

	tok, err := r.Add(ctx, "alice")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	_, _ = r.Get(ctx, tok)
	_, _ = r.Get(ctx, tok)
	_, _ = r.Get(ctx, newToken())

	if got := testutil.ToFloat64(m.added); got != 1 {
		t.Fatalf("added=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.lookups.WithLabelValues("hit")); got != 2 {
		t.Fatalf("hits=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.lookups.WithLabelValues("miss")); got != 1 {
		t.Fatalf("misses=%v want 1", got)
	}

	count, err := testutil.GatherAndCount(reg, "gog_sessions_stored")
	if err != nil || count != 1 {
		t.Fatalf("gog_sessions_stored not exported: count=%d err=%v", count, err)
	}

	if err := r.Remove(ctx, tok); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := testutil.ToFloat64(m.removes); got != 1 {
		t.Fatalf("removed=%v want 1", got)
	}
}

func TestInstrument_CountsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := Instrument(failingRegistry{}, m)

	if _, err := r.Get(context.Background(), newToken()); err == nil {
		t.Fatalf("expected backend error")
	}
	if got := testutil.ToFloat64(m.lookups.WithLabelValues("error")); got != 1 {
		t.Fatalf("errors=%v want 1", got)
	}
}

func TestMetrics_ObserveSweep(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveSweep(3, time.Millisecond)
	m.ObserveSweep(0, time.Millisecond)

	if got := testutil.ToFloat64(m.reaped); got != 3 {
		t.Fatalf("reaped=%v want 3", got)
	}
	if got := testutil.CollectAndCount(m.sweepDur); got != 1 {
		t.Fatalf("sweep histogram series=%d want 1", got)
	}
}

func TestInstrument_NilMetrics(t *testing.T) {
	mem := NewMemoryRegistry(Config{TTL: time.Minute})
	if Instrument(mem, nil) != Registry(mem) {
		t.Fatalf("Instrument with nil metrics must return the registry unchanged")
	}
}

func TestInstrument_RemoveCountsCalls(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())
	r := Instrument(NewMemoryRegistry(Config{TTL: time.Minute}), m)

	for i := 0; i < 3; i++ {
		if err := r.Remove(ctx, newToken()); err != nil {
			t.Fatalf("Remove: %v", err)
		}
	}
	if got := testutil.ToFloat64(m.removes); got != 3 {
		t.Fatalf("removes=%v want 3 (every call counts)", got)
	}
	if got := testutil.ToFloat64(m.added); got != 0 {
		t.Fatalf("added=%v want 0", got)
	}
}
