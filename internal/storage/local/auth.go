package local

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

// Login checks a student's id and password and records the session.
func (b *Backend) Login(ctx context.Context, id, password string) (*models.LoginResult, error) {
	users, err := b.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == strings.TrimSpace(id) && u.Password == password {
			user := u
			if err := b.session.SetCurrentUser(ctx, user, models.ModeLocal); err != nil {
				return nil, storeError(err)
			}
			return &models.LoginResult{User: &user}, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
}

// AdminLogin verifies the administrator password and sets the admin flags.
func (b *Backend) AdminLogin(ctx context.Context, password string) (*models.AdminLoginResult, error) {
	b.mu.Lock()
	err := b.creds.Verify(ctx, password)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := b.session.MarkAdmin(ctx, models.ModeLocal); err != nil {
		return nil, storeError(err)
	}
	return &models.AdminLoginResult{}, nil
}

// ChangeAdminPassword replaces the administrator password. The caller is responsible for
// checking the current password.
func (b *Backend) ChangeAdminPassword(ctx context.Context, newPassword string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.creds.Change(ctx, newPassword)
	return err
}

// VerifyAdminPassword checks password without touching session state.
func (b *Backend) VerifyAdminPassword(ctx context.Context, password string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creds.Verify(ctx, password)
}

// MirrorAdminPassword stores a digest received from the cloud backend and stamps the sync
// time.
func (b *Backend) MirrorAdminPassword(ctx context.Context, digest string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.creds.Adopt(ctx, digest); err != nil {
		return err
	}
	if err := b.set(ctx, models.KeyAdminPasswordSynced, b.now().Format(time.RFC3339)); err != nil {
		return err
	}
	b.logger.Info("admin password mirrored from cloud")
	return nil
}

// AdminPasswordDigest returns the stored admin digest, or "" when none is stored.
func (b *Backend) AdminPasswordDigest(ctx context.Context) (string, error) {
	cred, err := b.creds.Current(ctx)
	if err != nil || cred == nil {
		return "", err
	}
	if !cred.IsHashed {
		b.logger.Warn("local admin password is not hashed yet")
		return "", nil
	}
	return cred.Password, nil
}

// Logout clears the current student.
func (b *Backend) Logout(ctx context.Context) error {
	if err := b.session.Logout(ctx); err != nil {
		return storeError(err)
	}
	return nil
}

// credentialRepo keeps the admin digest as a bare string under the canonical key, as earlier
// versions did, with the modification time under its own key.
type credentialRepo struct {
	b      *Backend
	isHash func(string) bool
}

func (r *credentialRepo) Load(ctx context.Context) (*models.AdminCredential, error) {
	value, ok, err := r.b.get(ctx, models.KeyAdminPassword)
	if err != nil || !ok || value == "" {
		return nil, err
	}
	cred := &models.AdminCredential{Password: value, IsHashed: r.isHash(value)}
	if raw, ok, err := r.b.get(ctx, models.KeyAdminPasswordModified); err != nil {
		return nil, err
	} else if ok {
		if ts, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			cred.LastModified = ts
		}
	}
	return cred, nil
}

func (r *credentialRepo) Save(ctx context.Context, cred models.AdminCredential) error {
	if err := r.b.set(ctx, models.KeyAdminPassword, cred.Password); err != nil {
		return err
	}
	if !cred.LastModified.IsZero() {
		if err := r.b.set(ctx, models.KeyAdminPasswordModified, cred.LastModified.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if r.b.mirrorLegacy {
		for _, key := range models.LegacyAdminPasswordKeys {
			if err := r.b.set(ctx, key, cred.Password); err != nil {
				r.b.logger.Warn("failed to mirror legacy admin key", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return nil
}
