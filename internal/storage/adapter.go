package storage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	"github.com/noah-isme/sms-storage/internal/session"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/kv"
)

// Warning messages shown to users.
const (
	WarningCloudUnavailable = "تعذر الاتصال بقاعدة البيانات السحابية، تم التحويل إلى التخزين المحلي"
	WarningCloudRestored    = "تمت استعادة الاتصال بقاعدة البيانات السحابية"
	WarningCloudLost        = "انقطع الاتصال بقاعدة البيانات السحابية"
)

var errCloudNotConfigured = appErrors.New(appErrors.CodeInvalidMode, http.StatusBadRequest, "التخزين السحابي غير مهيأ")

// Options configures an Adapter.
type Options struct {
	// DefaultMode applies when no mode preference has been persisted.
	DefaultMode     models.Mode
	MonitorInterval time.Duration
	Notifier        Notifier
	Observer        Observer
	Logger          *zap.Logger
}

// Adapter is the single entry point to storage.
type Adapter struct {
	local    Backend
	cloud    CloudBackend
	session  *session.Manager
	prefs    kv.Store
	notifier Notifier
	observer Observer
	logger   *zap.Logger

	defaultMode     models.Mode
	monitorInterval time.Duration

	mu               sync.RWMutex
	mode             models.Mode
	connectionFailed bool
	fellBack         bool
	lastWarning      *Warning
	monitor          *Monitor
}

// NewAdapter wires the backends. cloud may be nil when no document store is configured.
func NewAdapter(local Backend, cloud CloudBackend, sess *session.Manager, prefs kv.Store, opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	observer := opts.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	mode := opts.DefaultMode
	if mode == "" {
		mode = models.ModeLocal
	}
	return &Adapter{
		local:           local,
		cloud:           cloud,
		session:         sess,
		prefs:           prefs,
		notifier:        notifier,
		observer:        observer,
		logger:          logger.With(zap.String("component", "storage_adapter")),
		defaultMode:     mode,
		monitorInterval: opts.MonitorInterval,
		mode:            models.ModeLocal,
	}
}

// Init initializes the local backend and, when the persisted mode is cloud, the cloud backend.
// A cloud failure switches to local and persists that choice; only a local failure is returned.
func (a *Adapter) Init(ctx context.Context) error {
	a.stopMonitor()

	mode := a.loadMode(ctx)
	if err := a.local.Init(ctx); err != nil {
		a.observe(a.local, "init", err)
		return appErrors.FromError(err)
	}

	if mode == models.ModeCloud {
		switch {
		case a.cloud == nil:
			a.logger.Warn("cloud mode requested but no cloud store is configured")
			mode = models.ModeLocal
			a.persistMode(ctx, mode)
		default:
			err := a.cloud.Init(ctx)
			a.observe(a.cloud, "init", err)
			if err != nil {
				mode = models.ModeLocal
				a.persistMode(ctx, mode)
				a.mu.Lock()
				a.connectionFailed = true
				a.fellBack = true
				a.mu.Unlock()
				a.warn(ctx, WarningCloudUnavailable, err)
			} else {
				a.mu.Lock()
				a.connectionFailed = false
				a.fellBack = false
				a.mu.Unlock()
				a.startMonitor(ctx)
			}
		}
	}

	a.setMode(mode)
	a.logger.Info("storage initialized", zap.String("mode", string(mode)))
	return nil
}

// Close stops the connectivity monitor.
func (a *Adapter) Close() {
	a.stopMonitor()
}

// SetMode validates and persists a mode preference. It takes effect on the next Init.
func (a *Adapter) SetMode(ctx context.Context, raw string) (models.Mode, error) {
	mode, err := models.ParseMode(raw)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInvalidMode.Code, appErrors.ErrInvalidMode.Status, appErrors.ErrInvalidMode.Message)
	}
	if mode == models.ModeCloud && a.cloud == nil {
		return "", appErrors.Clone(errCloudNotConfigured, "")
	}
	if err := a.writeMode(ctx, mode); err != nil {
		return "", err
	}
	a.mu.Lock()
	a.fellBack = false
	a.mu.Unlock()
	return mode, nil
}

// Mode returns the active backend mode.
func (a *Adapter) Mode() models.Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// Status describes the adapter for operators.
func (a *Adapter) Status() models.StorageStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	status := models.StorageStatus{
		Mode:             a.mode,
		CloudConfigured:  a.cloud != nil,
		ConnectionFailed: a.connectionFailed,
	}
	if a.lastWarning != nil {
		at := a.lastWarning.At
		status.LastWarning = a.lastWarning.Message
		status.LastWarningAt = &at
	}
	return status
}

// Local exposes the local backend for maintenance tasks.
func (a *Adapter) Local() Backend { return a.local }

// Cloud exposes the cloud backend, or nil.
func (a *Adapter) Cloud() CloudBackend { return a.cloud }

func (a *Adapter) active() Backend {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.mode == models.ModeCloud && a.cloud != nil {
		return a.cloud
	}
	return a.local
}

func (a *Adapter) setMode(mode models.Mode) {
	a.mu.Lock()
	a.mode = mode
	a.mu.Unlock()
	a.observer.SetActiveMode(string(mode))
}

// loadMode reads the persisted preference, migrating the legacy flag once.
func (a *Adapter) loadMode(ctx context.Context) models.Mode {
	if raw, ok, err := a.prefs.Get(ctx, models.KeyStorageMode); err == nil && ok {
		if mode, err := models.ParseMode(raw); err == nil {
			return mode
		}
		a.logger.Warn("ignoring invalid persisted storage mode", zap.String("value", raw))
	}
	if raw, ok, err := a.prefs.Get(ctx, models.LegacyKeyUseFirebase); err == nil && ok {
		mode := models.ModeLocal
		if strings.EqualFold(strings.TrimSpace(raw), "true") {
			mode = models.ModeCloud
		}
		if err := a.writeMode(ctx, mode); err == nil {
			_ = a.prefs.Delete(ctx, models.LegacyKeyUseFirebase)
			a.logger.Info("legacy storage mode flag migrated", zap.String("mode", string(mode)))
		}
		return mode
	}
	return a.defaultMode
}

func (a *Adapter) writeMode(ctx context.Context, mode models.Mode) error {
	if err := a.prefs.Set(ctx, models.KeyStorageMode, string(mode)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
	}
	return nil
}

func (a *Adapter) persistMode(ctx context.Context, mode models.Mode) {
	if err := a.writeMode(ctx, mode); err != nil {
		a.logger.Error("failed to persist storage mode", zap.String("mode", string(mode)), zap.Error(err))
	}
}

func (a *Adapter) warn(ctx context.Context, message string, err error) {
	w := Warning{Message: message, At: time.Now().UTC(), Err: err}
	a.mu.Lock()
	a.lastWarning = &w
	a.mu.Unlock()
	a.notifier.Notify(ctx, w)
}

func (a *Adapter) observe(backend Backend, operation string, err error) {
	outcome := "success"
	switch {
	case err == nil:
	case appErrors.IsConnectionIssue(err):
		outcome = "connection_issue"
	default:
		outcome = "error"
	}
	a.observer.ObserveOperation(string(backend.Name()), operation, outcome)
}

// noteFailure records a cloud connectivity failure seen outside the login path. The mode is
// left alone; the monitor decides when connectivity is back.
func (a *Adapter) noteFailure(backend Backend, err error) {
	if backend.Name() != models.ModeCloud || !appErrors.IsConnectionIssue(err) {
		return
	}
	a.mu.Lock()
	a.connectionFailed = true
	a.mu.Unlock()
	a.markMonitorOffline()
}

// fallBackToLocal flips the persisted mode to local after a cloud connectivity failure.
func (a *Adapter) fallBackToLocal(ctx context.Context, operation string, cause error) {
	a.persistMode(ctx, models.ModeLocal)
	a.mu.Lock()
	a.connectionFailed = true
	a.fellBack = true
	a.mu.Unlock()
	a.markMonitorOffline()
	a.setMode(models.ModeLocal)
	a.observer.ObserveFallback(operation)
	a.logger.Warn("cloud unreachable, switched to local storage", zap.String("operation", operation), zap.Error(cause))
	a.warn(ctx, models.OfflineNotice, cause)
}

// composeFailure builds the error returned when both backends failed a login.
func composeFailure(cloudErr, localErr error) error {
	cloudAppErr := appErrors.FromError(cloudErr)
	localAppErr := appErrors.FromError(localErr)
	base := appErrors.ErrBackend
	if localAppErr.Code == appErrors.CodeInvalidCredentials {
		base = appErrors.ErrInvalidCredentials
	}
	composed := appErrors.Clone(base, localAppErr.Message)
	composed.ConnectionIssue = true
	composed.Details = map[string]string{
		"cloud": cloudAppErr.Error(),
		"local": localAppErr.Error(),
	}
	composed.Err = errors.Join(cloudErr, localErr)
	return composed
}
