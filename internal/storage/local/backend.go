// Package local implements the storage backend over a string key-value store. Every collection
// is one JSON value under a fixed key, the way the browser build kept them in local storage.
package local

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/credential"
	"github.com/noah-isme/sms-storage/internal/models"
	"github.com/noah-isme/sms-storage/internal/session"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/kv"
	"github.com/noah-isme/sms-storage/pkg/password"
)

// Options configures a Backend.
type Options struct {
	Hasher          password.Hasher
	DefaultPassword string
	// MirrorLegacyKeys keeps writing the admin digest to the legacy alias keys.
	MirrorLegacyKeys bool
	Session          *session.Manager
	Logger           *zap.Logger
}

// Backend is the local storage backend.
type Backend struct {
	store        kv.Store
	creds        *credential.Store
	session      *session.Manager
	mirrorLegacy bool
	logger       *zap.Logger
	now          func() time.Time

	// mu serializes read-modify-write cycles on the stored collections.
	mu sync.Mutex
}

// New constructs a local Backend.
func New(store kv.Store, opts Options) *Backend {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = password.SHA256Hasher{}
	}
	sess := opts.Session
	if sess == nil {
		sess = session.NewManager(store, nil)
	}
	b := &Backend{
		store:        store,
		session:      sess,
		mirrorLegacy: opts.MirrorLegacyKeys,
		logger:       logger.With(zap.String("backend", string(models.ModeLocal))),
		now:          func() time.Time { return time.Now().UTC() },
	}
	b.creds = credential.NewStore(&credentialRepo{b: b, isHash: hasher.IsHash}, hasher, opts.DefaultPassword,
		credential.WithLogger(b.logger))
	return b
}

// Name identifies the backend in logs and metrics.
func (b *Backend) Name() models.Mode { return models.ModeLocal }

// Init seeds missing collections, migrates legacy admin-password keys and upgrades a plaintext
// admin password.
func (b *Backend) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	seeds := []struct{ key, value string }{
		{models.KeySettings, "{}"},
		{models.KeyUsers, "[]"},
		{models.KeyLastStudentIndex, "0"},
		{models.KeyAttendance, "{}"},
	}
	for _, seed := range seeds {
		if _, ok, err := b.get(ctx, seed.key); err != nil {
			return err
		} else if !ok {
			if err := b.set(ctx, seed.key, seed.value); err != nil {
				return err
			}
		}
	}

	if err := b.migrateLegacyAdminKeys(ctx); err != nil {
		return err
	}
	if _, err := b.creds.Ensure(ctx, ""); err != nil {
		return err
	}
	if _, err := b.creds.UpgradeIfNeeded(ctx); err != nil {
		return err
	}
	b.logger.Debug("local storage initialized")
	return nil
}

// migrateLegacyAdminKeys moves a value found under a legacy alias to the canonical key and
// removes the aliases, unless mirroring is enabled.
func (b *Backend) migrateLegacyAdminKeys(ctx context.Context) error {
	canonical, hasCanonical, err := b.get(ctx, models.KeyAdminPassword)
	if err != nil {
		return err
	}
	for _, legacyKey := range models.LegacyAdminPasswordKeys {
		value, ok, err := b.get(ctx, legacyKey)
		if err != nil {
			return err
		}
		if !ok || value == "" {
			continue
		}
		if !hasCanonical || canonical == "" {
			if err := b.set(ctx, models.KeyAdminPassword, value); err != nil {
				return err
			}
			canonical, hasCanonical = value, true
			b.logger.Info("legacy admin password key migrated", zap.String("from", legacyKey))
		}
		if !b.mirrorLegacy {
			if err := b.del(ctx, legacyKey); err != nil {
				return err
			}
		}
	}
	return nil
}

// Add stores a new student, assigning index and createdAt when missing.
func (b *Backend) Add(ctx context.Context, student models.Student) (*models.Student, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.add(ctx, student)
}

func (b *Backend) add(ctx context.Context, student models.Student) (*models.Student, error) {
	student.ID = strings.TrimSpace(student.ID)
	if student.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "معرف الطالب مطلوب")
	}
	users, err := b.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == student.ID {
			return nil, appErrors.Clone(appErrors.ErrDuplicateID, "")
		}
	}

	if student.Index <= 0 {
		next, err := b.nextIndex(ctx)
		if err != nil {
			return nil, err
		}
		student.Index = next
	} else if err := b.raiseIndex(ctx, student.Index); err != nil {
		return nil, err
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = b.now()
	}

	users = append(users, student)
	if err := b.saveUsers(ctx, users); err != nil {
		return nil, err
	}
	return &student, nil
}

// AddBulk adds each student independently. It never aborts on a per-item failure.
func (b *Backend) AddBulk(ctx context.Context, students []models.Student) (*models.BulkResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := models.NewBulkResult()
	for _, student := range students {
		if _, err := b.add(ctx, student); err != nil {
			result.Fail(student.ID, appErrors.FromError(err).Message)
			continue
		}
		result.Succeed()
	}
	return result, nil
}

// Update shallow-merges patch into the stored student.
func (b *Backend) Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	users, err := b.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID != id {
			continue
		}
		patch.Apply(&users[i])
		if err := b.saveUsers(ctx, users); err != nil {
			return nil, err
		}
		if patch.Index != nil {
			if err := b.raiseIndex(ctx, *patch.Index); err != nil {
				return nil, err
			}
		}
		updated := users[i]
		return &updated, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "")
}

// Delete removes a student. The index is not returned to the counter.
func (b *Backend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	users, err := b.loadUsers(ctx)
	if err != nil {
		return err
	}
	kept := users[:0]
	found := false
	for _, u := range users {
		if u.ID == id {
			found = true
			continue
		}
		kept = append(kept, u)
	}
	if !found {
		return appErrors.Clone(appErrors.ErrNotFound, "الطالب غير موجود")
	}
	return b.saveUsers(ctx, kept)
}

// ReplaceAll overwrites the student list and raises the index counter to the highest stored
// index.
func (b *Backend) ReplaceAll(ctx context.Context, students []models.Student) error {
	if students == nil {
		return appErrors.Clone(appErrors.ErrInvalidInput, "")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.saveUsers(ctx, students); err != nil {
		return err
	}
	highest := 0
	for _, s := range students {
		if s.Index > highest {
			highest = s.Index
		}
	}
	return b.raiseIndex(ctx, highest)
}

// GetAll lists every student.
func (b *Backend) GetAll(ctx context.Context) (*models.StudentList, error) {
	users, err := b.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewStudentList(users), nil
}

// GetByID returns one student.
func (b *Backend) GetByID(ctx context.Context, id string) (*models.Student, error) {
	users, err := b.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.ID == id {
			found := u
			return &found, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "")
}

// GetByGrade filters students by grade.
func (b *Backend) GetByGrade(ctx context.Context, grade models.Grade) ([]models.Student, error) {
	return b.filter(ctx, func(s models.Student) bool { return s.Grade == grade })
}

// GetByGroup filters students by group.
func (b *Backend) GetByGroup(ctx context.Context, group models.Group) ([]models.Student, error) {
	return b.filter(ctx, func(s models.Student) bool { return s.Group == group })
}

func (b *Backend) filter(ctx context.Context, keep func(models.Student) bool) ([]models.Student, error) {
	users, err := b.loadUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Student, 0, len(users))
	for _, u := range users {
		if keep(u) {
			out = append(out, u)
		}
	}
	return models.NewStudentList(out).Students, nil
}

// LastIndex returns the persisted index counter.
func (b *Backend) LastIndex(ctx context.Context) (int, error) {
	raw, _, err := b.get(ctx, models.KeyLastStudentIndex)
	if err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(strings.TrimSpace(raw))
	return n, nil
}

// nextIndex increments and persists the counter. Callers hold mu.
func (b *Backend) nextIndex(ctx context.Context) (int, error) {
	current, err := b.LastIndex(ctx)
	if err != nil {
		return 0, err
	}
	current++
	if err := b.set(ctx, models.KeyLastStudentIndex, strconv.Itoa(current)); err != nil {
		return 0, err
	}
	return current, nil
}

func (b *Backend) raiseIndex(ctx context.Context, floor int) error {
	current, err := b.LastIndex(ctx)
	if err != nil {
		return err
	}
	if floor <= current {
		return nil
	}
	return b.set(ctx, models.KeyLastStudentIndex, strconv.Itoa(floor))
}

func (b *Backend) loadUsers(ctx context.Context) ([]models.Student, error) {
	var users []models.Student
	if err := b.getJSON(ctx, models.KeyUsers, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (b *Backend) saveUsers(ctx context.Context, users []models.Student) error {
	if users == nil {
		users = []models.Student{}
	}
	return b.setJSON(ctx, models.KeyUsers, users)
}

func (b *Backend) get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return "", false, storeError(err)
	}
	return v, ok, nil
}

func (b *Backend) set(ctx context.Context, key, value string) error {
	if err := b.store.Set(ctx, key, value); err != nil {
		return storeError(err)
	}
	return nil
}

func (b *Backend) del(ctx context.Context, key string) error {
	if err := b.store.Delete(ctx, key); err != nil {
		return storeError(err)
	}
	return nil
}

// getJSON decodes key into dst. A missing or empty value leaves dst untouched.
func (b *Backend) getJSON(ctx context.Context, key string, dst interface{}) error {
	raw, ok, err := b.get(ctx, key)
	if err != nil || !ok || strings.TrimSpace(raw) == "" {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		b.logger.Error("corrupt local value", zap.String("key", key), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
	}
	return nil
}

func (b *Backend) setJSON(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
	}
	return b.set(ctx, key, string(payload))
}

func storeError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
}
