package cloud

import (
	"context"
	"strings"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

// Login checks a student's credentials against the users collection.
func (b *Backend) Login(ctx context.Context, id, password string) (*models.LoginResult, error) {
	id = strings.TrimSpace(id)
	if id == "" || password == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "معرف الطالب وكلمة المرور مطلوبان")
	}
	if b.Offline() {
		return nil, appErrors.Clone(appErrors.ErrConnectionIssue, "")
	}
	student, err := b.GetByID(ctx, id)
	if err != nil {
		if appErrors.HasCode(err, appErrors.CodeNotFound) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, err
	}
	if student.Password != password {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if b.session != nil {
		if err := b.session.SetCurrentUser(ctx, *student, models.ModeCloud); err != nil {
			return nil, appErrors.FromError(err)
		}
	}
	return &models.LoginResult{User: student}, nil
}

// AdminLogin verifies the administrator password held in settings/admin.
func (b *Backend) AdminLogin(ctx context.Context, password string) (*models.AdminLoginResult, error) {
	if b.Offline() {
		return nil, appErrors.Clone(appErrors.ErrConnectionIssue, "")
	}
	if err := b.creds.Verify(ctx, password); err != nil {
		return nil, err
	}
	if b.session != nil {
		if err := b.session.MarkAdmin(ctx, models.ModeCloud); err != nil {
			return nil, appErrors.FromError(err)
		}
	}
	return &models.AdminLoginResult{}, nil
}

// VerifyAdminPassword checks password without touching session state.
func (b *Backend) VerifyAdminPassword(ctx context.Context, password string) error {
	return b.creds.Verify(ctx, password)
}

// ChangeAdminPassword stores a new administrator password and mirrors it locally.
func (b *Backend) ChangeAdminPassword(ctx context.Context, newPassword string) error {
	_, err := b.creds.Change(ctx, newPassword)
	return err
}

// SetAdminPasswordDigest adopts an existing digest, used when migrating local data up.
func (b *Backend) SetAdminPasswordDigest(ctx context.Context, digest string) error {
	return b.creds.Adopt(ctx, digest)
}

// Logout clears the current student.
func (b *Backend) Logout(ctx context.Context) error {
	if b.session == nil {
		return nil
	}
	if err := b.session.Logout(ctx); err != nil {
		return appErrors.FromError(err)
	}
	return nil
}
