// Package session tracks the signed-in student and the administrator flags.
//
// The current user and the durable admin flag persist in the local store so they survive a
// restart. The session-scoped admin flag lives in a separate store that is expected to be
// process-lifetime only.
package session

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/noah-isme/sms-storage/internal/models"
	"github.com/noah-isme/sms-storage/pkg/kv"
)

const flagTrue = "true"

// Manager reads and writes session state.
type Manager struct {
	durable kv.Store
	scoped  kv.Store
	now     func() time.Time
}

// NewManager constructs a Manager. A nil scoped store gets an in-memory one.
func NewManager(durable kv.Store, scoped kv.Store) *Manager {
	if scoped == nil {
		scoped = kv.NewMemoryStore()
	}
	return &Manager{durable: durable, scoped: scoped, now: time.Now}
}

// SetCurrentUser records the signed-in student without the password, and which backend
// served the login.
func (m *Manager) SetCurrentUser(ctx context.Context, student models.Student, mode models.Mode) error {
	payload, err := json.Marshal(student.Public())
	if err != nil {
		return err
	}
	if err := m.durable.Set(ctx, models.KeyCurrentUser, string(payload)); err != nil {
		return err
	}
	if mode == "" {
		return nil
	}
	return m.durable.Set(ctx, models.KeyLastLoginMode, string(mode))
}

// CurrentUser returns the signed-in student or nil.
func (m *Manager) CurrentUser(ctx context.Context) (*models.PublicStudent, error) {
	raw, ok, err := m.durable.Get(ctx, models.KeyCurrentUser)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var user models.PublicStudent
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		// A corrupt record means nobody is signed in.
		return nil, nil
	}
	return &user, nil
}

// Logout clears the current student.
func (m *Manager) Logout(ctx context.Context) error {
	return m.durable.Delete(ctx, models.KeyCurrentUser)
}

// MarkAdmin sets both administrator flags and records which backend served the login.
func (m *Manager) MarkAdmin(ctx context.Context, mode models.Mode) error {
	if err := m.durable.Set(ctx, models.KeyAdminLoggedIn, flagTrue); err != nil {
		return err
	}
	if err := m.durable.Set(ctx, models.KeyAdminLoginTime, strconv.FormatInt(m.now().UnixMilli(), 10)); err != nil {
		return err
	}
	if mode != "" {
		if err := m.durable.Set(ctx, models.KeyLastLoginMode, string(mode)); err != nil {
			return err
		}
	}
	return m.scoped.Set(ctx, models.KeySessionAdminLoggedIn, flagTrue)
}

// AdminLogout clears both administrator flags.
func (m *Manager) AdminLogout(ctx context.Context) error {
	if err := m.durable.Delete(ctx, models.KeyAdminLoggedIn); err != nil {
		return err
	}
	if err := m.durable.Delete(ctx, models.KeyAdminLoginTime); err != nil {
		return err
	}
	return m.scoped.Delete(ctx, models.KeySessionAdminLoggedIn)
}

// IsAdmin reports whether either administrator flag is set.
func (m *Manager) IsAdmin(ctx context.Context) bool {
	if v, ok, err := m.scoped.Get(ctx, models.KeySessionAdminLoggedIn); err == nil && ok && v == flagTrue {
		return true
	}
	v, ok, err := m.durable.Get(ctx, models.KeyAdminLoggedIn)
	return err == nil && ok && v == flagTrue
}

// Status summarises the session.
func (m *Manager) Status(ctx context.Context) (models.SessionStatus, error) {
	user, err := m.CurrentUser(ctx)
	if err != nil {
		return models.SessionStatus{}, err
	}
	isAdmin := m.IsAdmin(ctx)
	return models.SessionStatus{
		LoggedIn:    user != nil || isAdmin,
		IsAdmin:     isAdmin,
		CurrentUser: user,
	}, nil
}
