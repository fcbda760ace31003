// Package metrics mirrors the call surface of the teacher's own
// github.com/tos-network/gtos/metrics package (NewRegisteredCounter,
// NewRegisteredTimer, NewRegisteredMeter — see tos/downloader/metrics.go),
// used here to instrument the block sync loop and the batch decryptor.
//
// The retrieved copy of the teacher's metrics package (metrics/config.go,
// metrics/cputime_unix.go) does not itself pull in a third-party metrics
// registry — go-ethereum's own metrics package wraps rcrowley/go-metrics
// internally without listing it in go.mod, and that library does not appear
// anywhere in the retrieved example pack either. This reference
// implementation follows the teacher's own choice and stays on the standard
// library (sync/atomic), matching the teacher's precedent rather than
// introducing an unverified dependency.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically adjustable integer metric.
type Counter interface {
	Inc(delta int64)
	Count() int64
}

type counter struct{ v int64 }

func (c *counter) Inc(delta int64) { atomic.AddInt64(&c.v, delta) }
func (c *counter) Count() int64    { return atomic.LoadInt64(&c.v) }

// Meter tracks an event rate; this reference implementation only tracks the
// running total, which is all the sync loop needs to assert progress in
// tests.
type Meter interface {
	Mark(n int64)
	Count() int64
}

type meter struct{ v int64 }

func (m *meter) Mark(n int64) { atomic.AddInt64(&m.v, n) }
func (m *meter) Count() int64 { return atomic.LoadInt64(&m.v) }

// Timer records the count and cumulative duration of an operation.
type Timer interface {
	Update(d time.Duration)
	Count() int64
	TotalTime() time.Duration
}

type timer struct {
	mu    sync.Mutex
	count int64
	total time.Duration
}

func (t *timer) Update(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count++
	t.total += d
}

func (t *timer) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *timer) TotalTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Registry is a named set of metrics. Registering a name that already exists
// returns the existing metric, so every holder of one Registry shares its
// same-named metrics; userstate.Factory hands one Registry to every
// UserState it builds.
type Registry struct {
	mu       sync.Mutex
	counters map[string]Counter
	meters   map[string]Meter
	timers   map[string]Timer
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]Counter),
		meters:   make(map[string]Meter),
		timers:   make(map[string]Timer),
	}
}

func (r *Registry) NewRegisteredCounter(name string) Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &counter{}
	r.counters[name] = c
	return c
}

func (r *Registry) NewRegisteredMeter(name string) Meter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.meters[name]; ok {
		return m
	}
	m := &meter{}
	r.meters[name] = m
	return m
}

func (r *Registry) NewRegisteredTimer(name string) Timer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[name]; ok {
		return t
	}
	t := &timer{}
	r.timers[name] = t
	return t
}

// Snapshot returns the current counter and meter values. No code in this
// module calls it.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.counters)+len(r.meters))
	for name, c := range r.counters {
		out[name] = c.Count()
	}
	for name, m := range r.meters {
		out[name] = m.Count()
	}
	return out
}
