package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
)

func (a *Adapter) startMonitor(ctx context.Context) {
	if a.cloud == nil {
		return
	}
	m := NewMonitor(a.cloud.Probe, a.onConnectivityChange, MonitorConfig{
		Interval: a.monitorInterval,
		Logger:   a.logger,
	})
	a.mu.Lock()
	a.monitor = m
	a.mu.Unlock()
	// The monitor outlives the request that triggered Init.
	m.Start(context.WithoutCancel(ctx))
}

func (a *Adapter) stopMonitor() {
	a.mu.Lock()
	m := a.monitor
	a.monitor = nil
	a.mu.Unlock()
	if m != nil {
		m.Stop()
	}
}

func (a *Adapter) markMonitorOffline() {
	a.mu.RLock()
	m := a.monitor
	a.mu.RUnlock()
	if m != nil {
		m.MarkOffline()
	}
}

// CheckConnectivity runs one monitor probe immediately. It reports false when no monitor runs.
func (a *Adapter) CheckConnectivity(ctx context.Context) bool {
	a.mu.RLock()
	m := a.monitor
	a.mu.RUnlock()
	if m == nil {
		return false
	}
	return m.Check(ctx)
}

func (a *Adapter) onConnectivityChange(ctx context.Context, online bool) {
	if !online {
		a.mu.Lock()
		a.connectionFailed = true
		a.mu.Unlock()
		a.warn(ctx, WarningCloudLost, nil)
		return
	}

	a.mu.RLock()
	restore := a.mode == models.ModeCloud || a.fellBack
	a.mu.RUnlock()
	if !restore {
		return
	}

	err := a.cloud.Init(ctx)
	a.observe(a.cloud, "init", err)
	if err != nil {
		a.logger.Warn("cloud re-initialization failed", zap.Error(err))
		return
	}
	a.persistMode(ctx, models.ModeCloud)
	a.mu.Lock()
	a.connectionFailed = false
	a.fellBack = false
	a.mu.Unlock()
	a.setMode(models.ModeCloud)
	a.logger.Info("cloud connectivity restored")
	a.warn(ctx, WarningCloudRestored, nil)
}
