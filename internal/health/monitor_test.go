package health_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSlyte/rinhabackend3/internal/application"
	"github.com/MrSlyte/rinhabackend3/internal/config"
	"github.com/MrSlyte/rinhabackend3/internal/domain"
	"github.com/MrSlyte/rinhabackend3/internal/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProbe struct {
	id            domain.ProcessorID
	calls         atomic.Int64
	CheckHealthFn func(ctx context.Context) (application.HealthStatus, error)
}

func (m *mockProbe) ID() domain.ProcessorID { return m.id }

func (m *mockProbe) CheckHealth(ctx context.Context) (application.HealthStatus, error) {
	m.calls.Add(1)
	if m.CheckHealthFn != nil {
		return m.CheckHealthFn(ctx)
	}
	return application.HealthStatus{}, nil
}

func testConfig() config.HealthConfig {
	return config.HealthConfig{
		PollInterval: 10 * time.Millisecond,
		MinPollGap:   time.Millisecond,
		ProbeTimeout: time.Second,
	}
}

func newMonitor(defaultProbe, fallbackProbe *mockProbe) *health.Monitor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return health.NewMonitor(defaultProbe, fallbackProbe, testConfig(), logger)
}

func healthyProbe(id domain.ProcessorID) *mockProbe {
	return &mockProbe{id: id}
}

// runUntil starts the monitor and blocks until cond holds or the deadline
// fires.
func runUntil(t *testing.T, m *health.Monitor, cond func() bool) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("condition not reached before deadline")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestShouldUseDefault_PrefersDefaultInitially(t *testing.T) {
	m := newMonitor(healthyProbe(domain.ProcessorDefault), healthyProbe(domain.ProcessorFallback))

	assert.True(t, m.ShouldUseDefault())
}

func TestShouldUseDefault_SwitchesWhenOnlyDefaultFails(t *testing.T) {
	m := newMonitor(healthyProbe(domain.ProcessorDefault), healthyProbe(domain.ProcessorFallback))

	m.ReportFailure(domain.ProcessorDefault)

	assert.False(t, m.ShouldUseDefault())
}

func TestShouldUseDefault_TieBreaksToDefaultWhenBothFail(t *testing.T) {
	m := newMonitor(healthyProbe(domain.ProcessorDefault), healthyProbe(domain.ProcessorFallback))

	m.ReportFailure(domain.ProcessorDefault)
	m.ReportFailure(domain.ProcessorFallback)

	assert.True(t, m.ShouldUseDefault(), "both failing must prefer the default processor")
}

func TestShouldUseDefault_IgnoresFallbackOnlyFailure(t *testing.T) {
	m := newMonitor(healthyProbe(domain.ProcessorDefault), healthyProbe(domain.ProcessorFallback))

	m.ReportFailure(domain.ProcessorFallback)

	assert.True(t, m.ShouldUseDefault())
}

func TestReportSlowness_RaisesToFloor(t *testing.T) {
	m := newMonitor(healthyProbe(domain.ProcessorDefault), healthyProbe(domain.ProcessorFallback))

	m.ReportSlowness(domain.ProcessorDefault)

	snap := m.Snapshot(domain.ProcessorDefault)
	assert.Equal(t, int64(1000), snap.MinResponseTimeMs)
	assert.False(t, snap.Failing, "slowness must not mark the processor failing")
}

func TestReportSlowness_KeepsHigherValue(t *testing.T) {
	defaultProbe := &mockProbe{
		id: domain.ProcessorDefault,
		CheckHealthFn: func(ctx context.Context) (application.HealthStatus, error) {
			return application.HealthStatus{Failing: false, MinResponseTime: 2500}, nil
		},
	}
	m := newMonitor(defaultProbe, healthyProbe(domain.ProcessorFallback))

	runUntil(t, m, func() bool {
		return m.Snapshot(domain.ProcessorDefault).MinResponseTimeMs == 2500
	})

	m.ReportSlowness(domain.ProcessorDefault)

	assert.Equal(t, int64(2500), m.Snapshot(domain.ProcessorDefault).MinResponseTimeMs)
}

func TestRun_AdoptsPolledStatus(t *testing.T) {
	defaultProbe := &mockProbe{
		id: domain.ProcessorDefault,
		CheckHealthFn: func(ctx context.Context) (application.HealthStatus, error) {
			return application.HealthStatus{Failing: true, MinResponseTime: 120}, nil
		},
	}
	m := newMonitor(defaultProbe, healthyProbe(domain.ProcessorFallback))

	runUntil(t, m, func() bool {
		return m.Snapshot(domain.ProcessorDefault).Failing
	})

	snap := m.Snapshot(domain.ProcessorDefault)
	assert.True(t, snap.Failing)
	assert.Equal(t, int64(120), snap.MinResponseTimeMs)
	assert.False(t, m.ShouldUseDefault())
}

func TestRun_ProbeErrorMarksFailing(t *testing.T) {
	defaultProbe := &mockProbe{
		id: domain.ProcessorDefault,
		CheckHealthFn: func(ctx context.Context) (application.HealthStatus, error) {
			return application.HealthStatus{}, errors.New("connection refused")
		},
	}
	m := newMonitor(defaultProbe, healthyProbe(domain.ProcessorFallback))

	runUntil(t, m, func() bool {
		return m.Snapshot(domain.ProcessorDefault).Failing
	})

	assert.False(t, m.ShouldUseDefault())
}

func TestRun_RateLimitedProbeKeepsPreviousSnapshot(t *testing.T) {
	var rateLimited atomic.Bool
	defaultProbe := &mockProbe{
		id: domain.ProcessorDefault,
		CheckHealthFn: func(ctx context.Context) (application.HealthStatus, error) {
			if rateLimited.Load() {
				return application.HealthStatus{}, application.ErrProbeRateLimited
			}
			return application.HealthStatus{Failing: true, MinResponseTime: 80}, nil
		},
	}
	m := newMonitor(defaultProbe, healthyProbe(domain.ProcessorFallback))

	var flipAt int64
	runUntil(t, m, func() bool {
		if !m.Snapshot(domain.ProcessorDefault).Failing {
			return false
		}
		// Flip to 429 answers, then wait for two more probes to land.
		if !rateLimited.Load() {
			flipAt = defaultProbe.calls.Load()
			rateLimited.Store(true)
		}
		return defaultProbe.calls.Load() >= flipAt+2
	})

	snap := m.Snapshot(domain.ProcessorDefault)
	assert.True(t, snap.Failing, "rate-limited probes must not overwrite state")
	assert.Equal(t, int64(80), snap.MinResponseTimeMs)
}

func TestRun_HonorsMinimumPollGap(t *testing.T) {
	defaultProbe := healthyProbe(domain.ProcessorDefault)
	fallbackProbe := healthyProbe(domain.ProcessorFallback)

	cfg := testConfig()
	cfg.MinPollGap = time.Hour

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := health.NewMonitor(defaultProbe, fallbackProbe, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()

	// Several ticker periods pass; only the startup probe may fire.
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	require.Equal(t, int64(1), defaultProbe.calls.Load(), "default probed more than once inside the gap")
	require.Equal(t, int64(1), fallbackProbe.calls.Load(), "fallback probed more than once inside the gap")
}

func TestSnapshot_TracksProcessorsIndependently(t *testing.T) {
	m := newMonitor(healthyProbe(domain.ProcessorDefault), healthyProbe(domain.ProcessorFallback))

	m.ReportFailure(domain.ProcessorFallback)
	m.ReportSlowness(domain.ProcessorFallback)

	assert.False(t, m.Snapshot(domain.ProcessorDefault).Failing)
	assert.Zero(t, m.Snapshot(domain.ProcessorDefault).MinResponseTimeMs)
	assert.True(t, m.Snapshot(domain.ProcessorFallback).Failing)
	assert.Equal(t, int64(1000), m.Snapshot(domain.ProcessorFallback).MinResponseTimeMs)
}
