// Package app assembles the storage stack from configuration. The HTTP server and the admin CLI
// share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	"github.com/noah-isme/sms-storage/internal/service"
	"github.com/noah-isme/sms-storage/internal/session"
	"github.com/noah-isme/sms-storage/internal/storage"
	"github.com/noah-isme/sms-storage/internal/storage/cloud"
	"github.com/noah-isme/sms-storage/internal/storage/local"
	"github.com/noah-isme/sms-storage/pkg/config"
	"github.com/noah-isme/sms-storage/pkg/database"
	"github.com/noah-isme/sms-storage/pkg/kv"
	"github.com/noah-isme/sms-storage/pkg/password"
)

// App holds the wired storage stack.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   kv.Store
	Session *session.Manager
	Local   *local.Backend
	Cloud   *cloud.Backend
	Adapter *storage.Adapter
	Metrics *service.MetricsService

	closers []io.Closer
}

// Build wires every component but does not call Adapter.Init.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	hasher, err := password.New(cfg.Password.Algorithm, cfg.Password.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	store, err := a.openLocalStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("local store: %w", err)
	}
	a.Store = store
	a.Session = session.NewManager(store, nil)

	a.Local = local.New(store, local.Options{
		Hasher:           hasher,
		DefaultPassword:  cfg.Password.DefaultPassword,
		MirrorLegacyKeys: cfg.Local.MirrorLegacyKeys,
		Session:          a.Session,
		Logger:           logger,
	})

	docs, err := a.openDocumentStore(ctx, cfg)
	if err != nil {
		// The service still runs on local storage.
		logger.Warn("cloud document store unavailable", zap.String("driver", cfg.Cloud.Driver), zap.Error(err))
	}

	var cloudBackend storage.CloudBackend
	if docs != nil {
		a.Cloud = cloud.New(docs, cloud.Options{
			Hasher:          hasher,
			DefaultPassword: cfg.Password.DefaultPassword,
			Session:         a.Session,
			Mirror:          a.Local,
			ProbeTimeout:    cfg.Storage.ProbeTimeout,
			Logger:          logger,
		})
		a.closers = append(a.closers, a.Cloud)
		cloudBackend = a.Cloud
	}

	var observer storage.Observer
	if cfg.Metrics.Enabled {
		a.Metrics = service.NewMetricsService()
		observer = a.Metrics
	}

	a.Adapter = storage.NewAdapter(a.Local, cloudBackend, a.Session, store, storage.Options{
		DefaultMode:     defaultMode(cfg.Storage.DefaultMode),
		MonitorInterval: cfg.Storage.MonitorInterval,
		Observer:        observer,
		Logger:          logger,
	})
	return a, nil
}

// Close stops the monitor and releases every connection.
func (a *App) Close() error {
	if a.Adapter != nil {
		a.Adapter.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) openLocalStore(cfg *config.Config) (kv.Store, error) {
	switch cfg.Local.Driver {
	case config.LocalDriverMemory:
		return kv.NewMemoryStore(), nil
	case config.LocalDriverRedis:
		client, err := kv.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return kv.NewRedisStore(client, cfg.Local.RedisKeyNamespace), nil
	case config.LocalDriverFile, "":
		return kv.NewFileStore(cfg.Local.Path)
	default:
		return nil, fmt.Errorf("unknown local store driver %q", cfg.Local.Driver)
	}
}

func (a *App) openDocumentStore(ctx context.Context, cfg *config.Config) (cloud.DocumentStore, error) {
	switch cfg.Cloud.Driver {
	case config.CloudDriverFirestore:
		if cfg.Cloud.ProjectID == "" {
			return nil, errors.New("FIREBASE_PROJECT_ID is not set")
		}
		docs, err := cloud.NewFirestoreStore(ctx, cfg.Cloud)
		if err != nil {
			return nil, err
		}
		return docs, nil
	case config.CloudDriverPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, err
		}
		docs := cloud.NewPostgresStore(db, cfg.Storage.ProbeTimeout)
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := docs.EnsureSchema(schemaCtx); err != nil {
			a.Logger.Warn("documents schema not verified", zap.Error(err))
		}
		return docs, nil
	case config.CloudDriverNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cloud driver %q", cfg.Cloud.Driver)
	}
}

func defaultMode(raw string) models.Mode {
	mode, err := models.ParseMode(raw)
	if err != nil {
		return models.ModeLocal
	}
	return mode
}
