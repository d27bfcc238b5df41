// Package health tracks whether each upstream processor is usable. A
// background loop polls the processors' health endpoints; the selection loop
// reads the state on every attempt and writes back what it saw in-band.
// Everything is atomic fields: readers tolerate stale values, they must never
// wait.
package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSlyte/rinhabackend3/internal/application"
	"github.com/MrSlyte/rinhabackend3/internal/config"
	"github.com/MrSlyte/rinhabackend3/internal/domain"
)

// slownessFloorMs is the minimum response time recorded for a processor that
// timed out in-band, whatever its health endpoint last reported.
const slownessFloorMs = 1000

// Prober is the probe surface of a processor client.
type Prober interface {
	ID() domain.ProcessorID
	CheckHealth(ctx context.Context) (application.HealthStatus, error)
}

// Status is a point-in-time copy of one processor's health state.
type Status struct {
	Failing           bool
	MinResponseTimeMs int64
}

// processorState holds one processor's health. Fields are written by the poll
// loop and by failure reports from any worker; reads are lock-free.
type processorState struct {
	failing           atomic.Bool
	minResponseTimeMs atomic.Int64
	lastPolledAt      atomic.Int64 // unix milliseconds
}

// Monitor owns the health state for both processors. It is created once at
// startup and passed to every component that routes payments.
type Monitor struct {
	probes        []Prober
	defaultState  processorState
	fallbackState processorState

	pollInterval time.Duration
	minPollGap   time.Duration
	probeTimeout time.Duration
	logger       *slog.Logger
}

func NewMonitor(defaultProbe, fallbackProbe Prober, cfg config.HealthConfig, logger *slog.Logger) *Monitor {
	return &Monitor{
		probes:       []Prober{defaultProbe, fallbackProbe},
		pollInterval: cfg.PollInterval,
		minPollGap:   cfg.MinPollGap,
		probeTimeout: cfg.ProbeTimeout,
		logger:       logger.With("component", "health_monitor"),
	}
}

// Run polls both processors until ctx is cancelled. The first poll happens
// immediately so workers never route on zero-value state longer than one
// probe round-trip.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("health monitor started", "interval", m.pollInterval)

	m.pollAll(ctx)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopping")
			return nil
		case <-ticker.C:
			m.pollAll(ctx)
		}
	}
}

// pollAll probes both processors concurrently, skipping any probed more
// recently than the minimum gap. The health endpoints rate-limit callers to
// one probe per five seconds; the gap keeps us under that even when the
// ticker fires early.
func (m *Monitor) pollAll(ctx context.Context) {
	now := time.Now().UnixMilli()

	var wg sync.WaitGroup
	for _, probe := range m.probes {
		state := m.state(probe.ID())
		if now-state.lastPolledAt.Load() < m.minPollGap.Milliseconds() {
			continue
		}
		state.lastPolledAt.Store(now)

		wg.Add(1)
		go func(probe Prober, state *processorState) {
			defer wg.Done()
			m.poll(ctx, probe, state)
		}(probe, state)
	}
	wg.Wait()
}

func (m *Monitor) poll(ctx context.Context, probe Prober, state *processorState) {
	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	status, err := probe.CheckHealth(ctx)
	switch {
	case errors.Is(err, application.ErrProbeRateLimited):
		// Someone else's instance probed recently; the previous snapshot
		// stays in force.
		m.logger.Debug("health probe rate limited", "processor", probe.ID())
		return
	case err != nil:
		m.logger.Warn("health probe failed", "processor", probe.ID(), "error", err)
		state.failing.Store(true)
		return
	}

	state.failing.Store(status.Failing)
	state.minResponseTimeMs.Store(status.MinResponseTime)

	m.logger.Debug("health probe ok",
		"processor", probe.ID(),
		"failing", status.Failing,
		"min_response_time_ms", status.MinResponseTime,
	)
}

// ShouldUseDefault reports whether the next payment attempt should start at
// the default processor. The default is preferred unless it is failing while
// the fallback is healthy; when both fail, the default wins the tie because
// it carries the lower fee once it recovers.
func (m *Monitor) ShouldUseDefault() bool {
	return !m.defaultState.failing.Load() || m.fallbackState.failing.Load()
}

// ReportFailure marks a processor failing immediately, without waiting for
// the next poll. The next successful poll overwrites it.
func (m *Monitor) ReportFailure(p domain.ProcessorID) {
	m.state(p).failing.Store(true)
}

// ReportSlowness raises a processor's recorded response time to at least the
// slowness floor. Timed-out attempts land here; the processor stays eligible
// for routing.
func (m *Monitor) ReportSlowness(p domain.ProcessorID) {
	state := m.state(p)
	if state.minResponseTimeMs.Load() < slownessFloorMs {
		state.minResponseTimeMs.Store(slownessFloorMs)
	}
}

// Snapshot copies one processor's current state, for logging and inspection.
func (m *Monitor) Snapshot(p domain.ProcessorID) Status {
	state := m.state(p)
	return Status{
		Failing:           state.failing.Load(),
		MinResponseTimeMs: state.minResponseTimeMs.Load(),
	}
}

func (m *Monitor) state(p domain.ProcessorID) *processorState {
	if p == domain.ProcessorFallback {
		return &m.fallbackState
	}
	return &m.defaultState
}
