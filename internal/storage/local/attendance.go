package local

import (
	"context"
	"time"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

// GetMonthAttendance returns the snapshot for one month, empty when nothing was recorded.
func (b *Backend) GetMonthAttendance(ctx context.Context, year int, month time.Month) (models.MonthAttendance, error) {
	if err := models.ValidateMonth(year, month); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, appErrors.ErrInvalidInput.Message)
	}
	book, err := b.AllAttendance(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot := book[models.MonthKey(year, month)]; snapshot != nil {
		return snapshot, nil
	}
	return models.MonthAttendance{}, nil
}

// SaveMonthAttendance replaces the whole month snapshot.
func (b *Backend) SaveMonthAttendance(ctx context.Context, year int, month time.Month, data models.MonthAttendance) error {
	if err := models.ValidateMonth(year, month); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, appErrors.ErrInvalidInput.Message)
	}
	key := models.MonthKey(year, month)
	normalized, err := data.Normalize(key)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, appErrors.ErrInvalidInput.Message)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	book, err := b.AllAttendance(ctx)
	if err != nil {
		return err
	}
	book[key] = normalized
	return b.setJSON(ctx, models.KeyAttendance, book)
}

// GetStudentAttendance collects one student's days across every stored month.
func (b *Backend) GetStudentAttendance(ctx context.Context, studentID string) (models.StudentAttendance, error) {
	book, err := b.AllAttendance(ctx)
	if err != nil {
		return nil, err
	}
	return book.ForStudent(studentID), nil
}

// AllAttendance returns every stored month.
func (b *Backend) AllAttendance(ctx context.Context) (models.AttendanceBook, error) {
	book := models.AttendanceBook{}
	if err := b.getJSON(ctx, models.KeyAttendance, &book); err != nil {
		return nil, err
	}
	if book == nil {
		book = models.AttendanceBook{}
	}
	return book, nil
}
