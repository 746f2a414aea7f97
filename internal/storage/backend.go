// Package storage selects the active storage backend and gives the rest of the service one
// contract over both. Cloud failures during login fall back to the local backend, and a full
// cloud student listing is mirrored into local storage.
package storage

import (
	"context"
	"time"

	"github.com/noah-isme/sms-storage/internal/models"
)

// Backend is the contract both storage backends implement.
type Backend interface {
	Name() models.Mode
	Init(ctx context.Context) error

	Add(ctx context.Context, student models.Student) (*models.Student, error)
	AddBulk(ctx context.Context, students []models.Student) (*models.BulkResult, error)
	Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error)
	Delete(ctx context.Context, id string) error
	ReplaceAll(ctx context.Context, students []models.Student) error
	GetAll(ctx context.Context) (*models.StudentList, error)
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByGrade(ctx context.Context, grade models.Grade) ([]models.Student, error)
	GetByGroup(ctx context.Context, group models.Group) ([]models.Student, error)

	GetMonthAttendance(ctx context.Context, year int, month time.Month) (models.MonthAttendance, error)
	SaveMonthAttendance(ctx context.Context, year int, month time.Month, data models.MonthAttendance) error
	GetStudentAttendance(ctx context.Context, studentID string) (models.StudentAttendance, error)

	GetSettings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, patch models.Settings) (models.Settings, error)

	Login(ctx context.Context, id, password string) (*models.LoginResult, error)
	AdminLogin(ctx context.Context, password string) (*models.AdminLoginResult, error)
	VerifyAdminPassword(ctx context.Context, password string) error
	ChangeAdminPassword(ctx context.Context, newPassword string) error
	Logout(ctx context.Context) error
}

// CloudBackend is a Backend that can be probed for reachability.
type CloudBackend interface {
	Backend
	Probe(ctx context.Context) error
}

// Observer receives storage metrics.
type Observer interface {
	ObserveOperation(backend, operation, outcome string)
	ObserveFallback(operation string)
	ObserveReconciliation(outcome string)
	SetActiveMode(mode string)
}

type noopObserver struct{}

func (noopObserver) ObserveOperation(string, string, string) {}
func (noopObserver) ObserveFallback(string)                  {}
func (noopObserver) ObserveReconciliation(string)            {}
func (noopObserver) SetActiveMode(string)                    {}
