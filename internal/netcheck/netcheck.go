// Package netcheck maintains a continuously refreshed network
// reachability flag, checked before any analysis attempt so that an
// offline device fails fast instead of timing out against the API.
package netcheck

import (
	"context"
	"net"
	"sync/atomic"
	"time"
)

const (
	defaultProbeAddr     = "api.openai.com:443"
	defaultProbeTimeout  = 5 * time.Second
	defaultProbeInterval = 15 * time.Second
)

// ProbeFunc reports whether the network is currently reachable.
type ProbeFunc func(ctx context.Context) bool

// Monitor runs a probe on an interval and publishes the result through an
// atomic flag. Single writer (the monitor goroutine), any number of
// concurrent readers.
type Monitor struct {
	probe     ProbeFunc
	interval  time.Duration
	available atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithProbe replaces the default TCP dial probe.
func WithProbe(p ProbeFunc) Option {
	return func(m *Monitor) { m.probe = p }
}

// WithInterval sets the time between probes.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// NewMonitor builds a monitor. The flag starts optimistic so a reachable
// device is never blocked waiting for the first probe; the first probe
// runs immediately on Start and corrects it if needed.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		probe:    DialProbe(defaultProbeAddr, defaultProbeTimeout),
		interval: defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.available.Store(true)
	return m
}

// DialProbe returns a probe that attempts a TCP connection to addr.
func DialProbe(addr string, timeout time.Duration) ProbeFunc {
	dialer := &net.Dialer{Timeout: timeout}
	return func(ctx context.Context) bool {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}

// Start launches the probe loop. It returns after the first probe has
// completed, so callers observe a settled flag.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	m.available.Store(m.probe(ctx))

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.available.Store(m.probe(ctx))
			}
		}
	}()
}

// Available reports the last observed reachability state.
func (m *Monitor) Available() bool {
	return m.available.Load()
}

// Close stops the probe loop and waits for it to exit.
func (m *Monitor) Close() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}
