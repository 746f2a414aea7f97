package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

type migrationSource interface {
	GetAll(ctx context.Context) (*models.StudentList, error)
	AllAttendance(ctx context.Context) (models.AttendanceBook, error)
	AdminPasswordDigest(ctx context.Context) (string, error)
	LastIndex(ctx context.Context) (int, error)
}

type migrationTarget interface {
	Probe(ctx context.Context) error
	PutStudent(ctx context.Context, student models.Student) error
	SaveMonthAttendance(ctx context.Context, year int, month time.Month, data models.MonthAttendance) error
	SetAdminPasswordDigest(ctx context.Context, digest string) error
	RaiseIndexCounter(ctx context.Context, floor int) error
}

// MigrationReport counts what MigrateAll copied.
type MigrationReport struct {
	Users            int                `json:"users"`
	UserErrors       []models.BulkError `json:"userErrors"`
	AttendanceMonths int                `json:"attendanceMonths"`
	AdminPassword    bool               `json:"adminPassword"`
	LastIndex        int                `json:"lastIndex"`
}

// Migrator copies local data up to the cloud store.
type Migrator struct {
	source migrationSource
	target migrationTarget
	logger *zap.Logger
}

// NewMigrator constructs a Migrator.
func NewMigrator(source migrationSource, target migrationTarget, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{source: source, target: target, logger: logger}
}

// MigrateAll copies users, attendance, the admin digest and the index counter in that order.
// A connectivity failure stops the run; the partial report is returned with the error.
func (m *Migrator) MigrateAll(ctx context.Context) (*MigrationReport, error) {
	report := &MigrationReport{UserErrors: []models.BulkError{}}
	if err := m.target.Probe(ctx); err != nil {
		return report, appErrors.FromError(err)
	}

	list, err := m.source.GetAll(ctx)
	if err != nil {
		return report, err
	}
	for _, st := range list.Students {
		if err := m.target.PutStudent(ctx, st); err != nil {
			if appErrors.IsConnectionIssue(err) {
				return report, err
			}
			report.UserErrors = append(report.UserErrors, models.BulkError{ID: st.ID, Message: appErrors.FromError(err).Message})
			continue
		}
		report.Users++
	}
	m.logger.Info("students migrated", zap.Int("count", report.Users), zap.Int("errors", len(report.UserErrors)))

	book, err := m.source.AllAttendance(ctx)
	if err != nil {
		return report, err
	}
	for key, month := range book {
		year, mon, err := models.ParseMonthKey(key)
		if err != nil {
			m.logger.Warn("skipping attendance with invalid month key", zap.String("key", key))
			continue
		}
		if err := m.target.SaveMonthAttendance(ctx, year, mon, month); err != nil {
			return report, err
		}
		report.AttendanceMonths++
	}
	m.logger.Info("attendance migrated", zap.Int("months", report.AttendanceMonths))

	digest, err := m.source.AdminPasswordDigest(ctx)
	if err != nil {
		return report, err
	}
	if digest != "" {
		if err := m.target.SetAdminPasswordDigest(ctx, digest); err != nil {
			return report, err
		}
		report.AdminPassword = true
	}

	last, err := m.source.LastIndex(ctx)
	if err != nil {
		return report, err
	}
	if err := m.target.RaiseIndexCounter(ctx, last); err != nil {
		return report, err
	}
	report.LastIndex = last
	m.logger.Info("migration complete", zap.Bool("admin_password", report.AdminPassword), zap.Int("last_index", last))
	return report, nil
}
