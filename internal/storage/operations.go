package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

// AddStudent adds one student to the active backend.
func (a *Adapter) AddStudent(ctx context.Context, student models.Student) (*models.Student, error) {
	backend := a.active()
	created, err := backend.Add(ctx, student)
	if err = a.finish(backend, "users.add", err); err != nil {
		return nil, err
	}
	return created, nil
}

// AddStudents adds many students, collecting per-item failures.
func (a *Adapter) AddStudents(ctx context.Context, students []models.Student) (*models.BulkResult, error) {
	backend := a.active()
	result, err := backend.AddBulk(ctx, students)
	if err = a.finish(backend, "users.addBulk", err); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStudent merges patch into a student.
func (a *Adapter) UpdateStudent(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error) {
	backend := a.active()
	updated, err := backend.Update(ctx, id, patch)
	if err = a.finish(backend, "users.update", err); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteStudent removes a student.
func (a *Adapter) DeleteStudent(ctx context.Context, id string) error {
	backend := a.active()
	return a.finish(backend, "users.delete", backend.Delete(ctx, id))
}

// ReplaceStudents overwrites the student list of the active backend.
func (a *Adapter) ReplaceStudents(ctx context.Context, students []models.Student) error {
	backend := a.active()
	return a.finish(backend, "users.replaceAll", backend.ReplaceAll(ctx, students))
}

// ListStudents lists every student. A successful cloud listing is mirrored into local storage.
func (a *Adapter) ListStudents(ctx context.Context) (*models.StudentList, error) {
	backend := a.active()
	list, err := backend.GetAll(ctx)
	if err = a.finish(backend, "users.getAll", err); err != nil {
		return nil, err
	}
	if backend.Name() == models.ModeCloud {
		a.reconcile(ctx, list.Students)
	}
	return list, nil
}

// GetStudent returns one student.
func (a *Adapter) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	backend := a.active()
	student, err := backend.GetByID(ctx, id)
	if err = a.finish(backend, "users.getById", err); err != nil {
		return nil, err
	}
	return student, nil
}

// StudentsByGrade filters by grade.
func (a *Adapter) StudentsByGrade(ctx context.Context, grade models.Grade) ([]models.Student, error) {
	backend := a.active()
	students, err := backend.GetByGrade(ctx, grade)
	if err = a.finish(backend, "users.getByGrade", err); err != nil {
		return nil, err
	}
	return students, nil
}

// StudentsByGroup filters by group.
func (a *Adapter) StudentsByGroup(ctx context.Context, group models.Group) ([]models.Student, error) {
	backend := a.active()
	students, err := backend.GetByGroup(ctx, group)
	if err = a.finish(backend, "users.getByGroup", err); err != nil {
		return nil, err
	}
	return students, nil
}

// MonthAttendance returns one month snapshot.
func (a *Adapter) MonthAttendance(ctx context.Context, year int, month time.Month) (models.MonthAttendance, error) {
	backend := a.active()
	data, err := backend.GetMonthAttendance(ctx, year, month)
	if err = a.finish(backend, "attendance.getMonth", err); err != nil {
		return nil, err
	}
	return data, nil
}

// SaveMonthAttendance replaces one month snapshot.
func (a *Adapter) SaveMonthAttendance(ctx context.Context, year int, month time.Month, data models.MonthAttendance) error {
	backend := a.active()
	return a.finish(backend, "attendance.saveMonth", backend.SaveMonthAttendance(ctx, year, month, data))
}

// StudentAttendance returns one student's days across months.
func (a *Adapter) StudentAttendance(ctx context.Context, studentID string) (models.StudentAttendance, error) {
	backend := a.active()
	data, err := backend.GetStudentAttendance(ctx, studentID)
	if err = a.finish(backend, "attendance.getStudent", err); err != nil {
		return nil, err
	}
	return data, nil
}

// Settings returns the settings document.
func (a *Adapter) Settings(ctx context.Context) (models.Settings, error) {
	backend := a.active()
	settings, err := backend.GetSettings(ctx)
	if err = a.finish(backend, "settings.get", err); err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings merges patch into the settings document.
func (a *Adapter) UpdateSettings(ctx context.Context, patch models.Settings) (models.Settings, error) {
	backend := a.active()
	settings, err := backend.UpdateSettings(ctx, patch)
	if err = a.finish(backend, "settings.update", err); err != nil {
		return nil, err
	}
	return settings, nil
}

// Login authenticates a student, falling back to local storage once on a cloud connection
// failure.
func (a *Adapter) Login(ctx context.Context, id, password string) (*models.LoginResult, error) {
	backend := a.active()
	result, err := backend.Login(ctx, id, password)
	a.observe(backend, "auth.login", err)
	if err == nil {
		return result, nil
	}
	if backend.Name() != models.ModeCloud || !appErrors.IsConnectionIssue(err) {
		return nil, appErrors.FromError(err)
	}

	localResult, localErr := a.local.Login(ctx, id, password)
	a.observe(a.local, "auth.login", localErr)
	if localErr != nil {
		a.noteFailure(backend, err)
		return nil, composeFailure(err, localErr)
	}
	a.fallBackToLocal(ctx, "auth.login", err)
	localResult.UsedOfflineStorage = true
	localResult.Notice = models.OfflineNotice
	return localResult, nil
}

// AdminLogin authenticates the administrator with the same fallback rule as Login.
func (a *Adapter) AdminLogin(ctx context.Context, password string) (*models.AdminLoginResult, error) {
	backend := a.active()
	result, err := backend.AdminLogin(ctx, password)
	a.observe(backend, "auth.adminLogin", err)
	if err == nil {
		return result, nil
	}
	if backend.Name() != models.ModeCloud || !appErrors.IsConnectionIssue(err) {
		return nil, appErrors.FromError(err)
	}

	localResult, localErr := a.local.AdminLogin(ctx, password)
	a.observe(a.local, "auth.adminLogin", localErr)
	if localErr != nil {
		a.noteFailure(backend, err)
		return nil, composeFailure(err, localErr)
	}
	a.fallBackToLocal(ctx, "auth.adminLogin", err)
	localResult.UsedOfflineStorage = true
	localResult.Notice = models.OfflineNotice
	return localResult, nil
}

// VerifyAdminPassword checks the administrator password on the active backend.
func (a *Adapter) VerifyAdminPassword(ctx context.Context, password string) error {
	backend := a.active()
	return a.finish(backend, "auth.verifyAdmin", backend.VerifyAdminPassword(ctx, password))
}

// ChangeAdminPassword replaces the administrator password on the active backend. The cloud
// backend mirrors the new digest locally.
func (a *Adapter) ChangeAdminPassword(ctx context.Context, newPassword string) error {
	backend := a.active()
	return a.finish(backend, "auth.changeAdminPassword", backend.ChangeAdminPassword(ctx, newPassword))
}

// Logout clears the current student.
func (a *Adapter) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return appErrors.FromError(err)
	}
	return nil
}

// AdminLogout clears both administrator flags.
func (a *Adapter) AdminLogout(ctx context.Context) error {
	if err := a.session.AdminLogout(ctx); err != nil {
		return appErrors.FromError(err)
	}
	return nil
}

// CurrentUser returns the signed-in student or nil.
func (a *Adapter) CurrentUser(ctx context.Context) (*models.PublicStudent, error) {
	user, err := a.session.CurrentUser(ctx)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return user, nil
}

// IsLoggedIn reports whether a student is signed in.
func (a *Adapter) IsLoggedIn(ctx context.Context) bool {
	user, err := a.session.CurrentUser(ctx)
	return err == nil && user != nil
}

// IsAdmin reports whether the administrator is signed in.
func (a *Adapter) IsAdmin(ctx context.Context) bool {
	return a.session.IsAdmin(ctx)
}

// Session summarises who is signed in.
func (a *Adapter) Session(ctx context.Context) (models.SessionStatus, error) {
	status, err := a.session.Status(ctx)
	if err != nil {
		return status, appErrors.FromError(err)
	}
	return status, nil
}

// finish records metrics and connection state for a delegated call and normalizes its error.
func (a *Adapter) finish(backend Backend, operation string, err error) error {
	a.observe(backend, operation, err)
	if err == nil {
		return nil
	}
	a.noteFailure(backend, err)
	return appErrors.FromError(err)
}

func (a *Adapter) reconcile(ctx context.Context, students []models.Student) {
	mirror := make([]models.Student, len(students))
	copy(mirror, students)
	if err := a.local.ReplaceAll(ctx, mirror); err != nil {
		a.observer.ObserveReconciliation("error")
		a.logger.Warn("failed to mirror cloud students locally", zap.Error(err))
		return
	}
	a.observer.ObserveReconciliation("success")
	a.logger.Debug("cloud students mirrored locally", zap.Int("count", len(mirror)))
}
