// Package credential owns the administrator password record of one backend: provisioning,
// the plaintext-to-hash upgrade, verification and replacement.
package credential

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/password"
)

// Repository loads and saves the singleton credential. Load returns nil, nil when absent.
type Repository interface {
	Load(ctx context.Context) (*models.AdminCredential, error)
	Save(ctx context.Context, cred models.AdminCredential) error
}

type rehasher interface {
	NeedsRehash(digest string) bool
}

// ErrWrongPassword is returned when the administrator password does not match.
var ErrWrongPassword = appErrors.New(appErrors.CodeInvalidCredentials, http.StatusUnauthorized, "كلمة المرور غير صحيحة")

// Store applies credential policy over a Repository.
type Store struct {
	repo            Repository
	hasher          password.Hasher
	defaultPassword string
	logger          *zap.Logger
	now             func() time.Time
	onChange        []func(ctx context.Context, digest string)
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// OnChange registers a hook run after every successful save with the stored digest.
func OnChange(fn func(ctx context.Context, digest string)) Option {
	return func(s *Store) { s.onChange = append(s.onChange, fn) }
}

// NewStore constructs a Store.
func NewStore(repo Repository, hasher password.Hasher, defaultPassword string, opts ...Option) *Store {
	s := &Store{
		repo:            repo,
		hasher:          hasher,
		defaultPassword: defaultPassword,
		logger:          zap.NewNop(),
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ensure provisions the credential when absent. seed may supply an existing password (hashed or
// plaintext) to adopt instead of the default. It reports whether a record was created.
func (s *Store) Ensure(ctx context.Context, seed string) (bool, error) {
	cred, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if cred != nil {
		return false, nil
	}
	source := "default"
	value := s.defaultPassword
	if seed != "" {
		source = "seed"
		value = seed
	}
	digest := value
	if !s.hasher.IsHash(value) {
		if digest, err = s.hasher.Hash(value); err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
		}
	}
	if err := s.save(ctx, digest); err != nil {
		return false, err
	}
	s.logger.Info("admin credential provisioned", zap.String("source", source))
	return true, nil
}

// UpgradeIfNeeded hashes a plaintext credential in place and stamps a missing lastModified.
// It reports whether the record changed.
func (s *Store) UpgradeIfNeeded(ctx context.Context) (bool, error) {
	cred, err := s.load(ctx)
	if err != nil || cred == nil {
		return false, err
	}
	if !cred.IsHashed || !s.hasher.IsHash(cred.Password) {
		if cred.Password == "" {
			return false, nil
		}
		digest, err := s.hasher.Hash(cred.Password)
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
		}
		if err := s.save(ctx, digest); err != nil {
			return false, err
		}
		s.logger.Info("admin credential upgraded from plaintext")
		return true, nil
	}
	if cred.LastModified.IsZero() {
		cred.LastModified = s.now()
		if err := s.repo.Save(ctx, *cred); err != nil {
			return false, wrapRepo(err)
		}
		return true, nil
	}
	return false, nil
}

// Verify checks plain against the stored credential, provisioning and upgrading first. A digest
// in a legacy format is re-hashed after a successful match.
func (s *Store) Verify(ctx context.Context, plain string) error {
	if plain == "" {
		return appErrors.Clone(ErrWrongPassword, "كلمة المرور مطلوبة")
	}
	if _, err := s.Ensure(ctx, ""); err != nil {
		return err
	}
	if _, err := s.UpgradeIfNeeded(ctx); err != nil {
		return err
	}
	cred, err := s.load(ctx)
	if err != nil {
		return err
	}
	if cred == nil || !s.hasher.Verify(plain, cred.Password) {
		return appErrors.Clone(ErrWrongPassword, "")
	}
	if rh, ok := s.hasher.(rehasher); ok && rh.NeedsRehash(cred.Password) {
		digest, err := s.hasher.Hash(plain)
		if err == nil {
			if err := s.save(ctx, digest); err != nil {
				s.logger.Warn("failed to rehash admin credential", zap.Error(err))
			}
		}
	}
	return nil
}

// Change hashes and stores a new password unconditionally and returns the digest.
func (s *Store) Change(ctx context.Context, plain string) (string, error) {
	if plain == "" {
		return "", appErrors.Clone(appErrors.ErrInvalidInput, "كلمة المرور الجديدة مطلوبة")
	}
	digest, err := s.hasher.Hash(plain)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
	}
	if err := s.save(ctx, digest); err != nil {
		return "", err
	}
	return digest, nil
}

// Adopt stores an existing digest as-is. Plaintext values are hashed first.
func (s *Store) Adopt(ctx context.Context, value string) error {
	digest := value
	if !s.hasher.IsHash(value) {
		var err error
		if digest, err = s.hasher.Hash(value); err != nil {
			return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
		}
	}
	return s.save(ctx, digest)
}

// Current returns the stored credential or nil.
func (s *Store) Current(ctx context.Context) (*models.AdminCredential, error) {
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (*models.AdminCredential, error) {
	cred, err := s.repo.Load(ctx)
	if err != nil {
		return nil, wrapRepo(err)
	}
	return cred, nil
}

func (s *Store) save(ctx context.Context, digest string) error {
	cred := models.AdminCredential{Password: digest, IsHashed: true, LastModified: s.now()}
	if err := s.repo.Save(ctx, cred); err != nil {
		return wrapRepo(err)
	}
	for _, fn := range s.onChange {
		fn(ctx, digest)
	}
	return nil
}

func wrapRepo(err error) error {
	if _, ok := err.(*appErrors.Error); ok {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
}
