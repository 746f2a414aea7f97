// Package cloud implements the storage backend over a remote document store. Students live in
// the users collection keyed by id, each attendance month is one document keyed YYYY-MM, and the
// admin credential, index counter and app settings are documents in the settings collection.
package cloud

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/credential"
	"github.com/noah-isme/sms-storage/internal/models"
	"github.com/noah-isme/sms-storage/internal/session"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/password"
)

// AdminMirror is the local copy of the admin credential kept in step with the cloud one.
type AdminMirror interface {
	AdminPasswordDigest(ctx context.Context) (string, error)
	MirrorAdminPassword(ctx context.Context, digest string) error
}

// Options configures a Backend.
type Options struct {
	Hasher          password.Hasher
	DefaultPassword string
	Session         *session.Manager
	Mirror          AdminMirror
	ProbeTimeout    time.Duration
	Logger          *zap.Logger
}

// Backend is the cloud storage backend.
type Backend struct {
	store        DocumentStore
	creds        *credential.Store
	session      *session.Manager
	mirror       AdminMirror
	probeTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time

	// offline is set by a failed probe and short-circuits logins until the next good probe.
	offline atomic.Bool
}

// New constructs a cloud Backend over store.
func New(store DocumentStore, opts Options) *Backend {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = password.SHA256Hasher{}
	}
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	b := &Backend{
		store:        store,
		session:      opts.Session,
		mirror:       opts.Mirror,
		probeTimeout: timeout,
		logger:       logger.With(zap.String("backend", string(models.ModeCloud))),
		now:          func() time.Time { return time.Now().UTC() },
	}
	b.creds = credential.NewStore(&credentialRepo{store: store}, hasher, opts.DefaultPassword,
		credential.WithLogger(b.logger),
		credential.OnChange(b.mirrorDigest),
	)
	return b
}

// Name identifies the backend in logs and metrics.
func (b *Backend) Name() models.Mode { return models.ModeCloud }

// Probe checks reachability within the probe timeout. Any failure is a connection issue.
func (b *Backend) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.probeTimeout)
	defer cancel()
	if err := b.store.Ping(ctx); err != nil {
		b.offline.Store(true)
		return appErrors.Connection(err)
	}
	b.offline.Store(false)
	return nil
}

// Offline reports whether the last probe failed.
func (b *Backend) Offline() bool {
	return b.offline.Load()
}

// Init probes the store, provisions or upgrades the admin credential, mirrors it locally and
// marks an empty users collection. Only the probe can fail Init.
func (b *Backend) Init(ctx context.Context) error {
	if err := b.Probe(ctx); err != nil {
		b.logger.Warn("cloud store unreachable", zap.Error(err))
		return err
	}

	seed := ""
	if b.mirror != nil {
		if digest, err := b.mirror.AdminPasswordDigest(ctx); err == nil {
			seed = digest
		}
	}
	if _, err := b.creds.Ensure(ctx, seed); err != nil {
		b.logger.Error("failed to provision admin credential", zap.Error(err))
	} else if _, err := b.creds.UpgradeIfNeeded(ctx); err != nil {
		b.logger.Error("failed to upgrade admin credential", zap.Error(err))
	}
	if cred, err := b.creds.Current(ctx); err == nil && cred != nil && cred.IsHashed {
		b.mirrorDigest(ctx, cred.Password)
	}

	if err := b.ensureUsersMarker(ctx); err != nil {
		b.logger.Error("failed to check users collection", zap.Error(err))
	}
	b.logger.Info("cloud storage initialized")
	return nil
}

func (b *Backend) ensureUsersMarker(ctx context.Context) error {
	docs, err := b.store.List(ctx, CollectionUsers)
	if err != nil {
		return classify(err)
	}
	if len(docs) > 0 {
		return nil
	}
	return classify(b.store.Set(ctx, CollectionUsers, DocMetadata, Document{
		"collectionExists": true,
		"lastUpdated":      b.now().Format(time.RFC3339),
		"message":          "No students have been added yet",
	}))
}

func (b *Backend) mirrorDigest(ctx context.Context, digest string) {
	if b.mirror == nil {
		return
	}
	if err := b.mirror.MirrorAdminPassword(ctx, digest); err != nil {
		b.logger.Warn("failed to mirror admin password locally", zap.Error(err))
	}
}

// Close releases the document store.
func (b *Backend) Close() error {
	return b.store.Close()
}

// credentialRepo stores the credential as the settings/admin document.
type credentialRepo struct {
	store DocumentStore
}

func (r *credentialRepo) Load(ctx context.Context) (*models.AdminCredential, error) {
	doc, err := r.store.Get(ctx, CollectionSettings, DocAdmin)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, classify(err)
	}
	cred := &models.AdminCredential{
		Password: stringField(doc, "password"),
		IsHashed: boolField(doc, "isHashed"),
	}
	if raw := stringField(doc, "lastModified"); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			cred.LastModified = ts
		}
	}
	if cred.Password == "" {
		return nil, nil
	}
	return cred, nil
}

func (r *credentialRepo) Save(ctx context.Context, cred models.AdminCredential) error {
	doc := Document{
		"password": cred.Password,
		"isHashed": cred.IsHashed,
	}
	if !cred.LastModified.IsZero() {
		doc["lastModified"] = cred.LastModified.Format(time.RFC3339Nano)
	}
	return classify(r.store.Set(ctx, CollectionSettings, DocAdmin, doc))
}
