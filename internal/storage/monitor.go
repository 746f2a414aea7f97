package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ProbeFunc checks connectivity.
type ProbeFunc func(ctx context.Context) error

// TransitionFunc is called when connectivity flips. online is the new state.
type TransitionFunc func(ctx context.Context, online bool)

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Interval time.Duration
	Logger   *zap.Logger
}

// Monitor probes on a fixed interval and reports online/offline transitions. It starts in the
// online state.
type Monitor struct {
	probe    ProbeFunc
	onChange TransitionFunc
	interval time.Duration
	logger   *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	online  bool
}

// NewMonitor builds a monitor.
func NewMonitor(probe ProbeFunc, onChange TransitionFunc, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Monitor{
		probe:    probe,
		onChange: onChange,
		interval: cfg.Interval,
		logger:   cfg.Logger,
		online:   true,
	}
}

// Start launches the probe loop. Safe to call once.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.loop()
	m.started = true
	m.logger.Sugar().Infow("connectivity monitor started", "interval", m.interval)
}

// Stop cancels the loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.started = false
	m.mu.Unlock()
	m.wg.Wait()
	m.logger.Sugar().Infow("connectivity monitor stopped")
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// MarkOffline records an outage seen outside the monitor loop, so the next successful Check
// reports an online transition. The callback is not fired.
func (m *Monitor) MarkOffline() {
	m.mu.Lock()
	m.online = false
	m.mu.Unlock()
}

// Check runs one probe and fires the transition callback when the state changed. It returns the
// new state.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.probe(ctx)
	online := err == nil

	m.mu.Lock()
	changed := online != m.online
	m.online = online
	m.mu.Unlock()

	if err != nil && changed {
		m.logger.Sugar().Warnw("connectivity lost", "error", err)
	}
	if changed && m.onChange != nil {
		m.onChange(ctx, online)
	}
	return online
}

func (m *Monitor) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Check(m.ctx)
		}
	}
}
