package cloud

import (
	"context"
	"time"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

// GetMonthAttendance returns the month document, empty when absent.
func (b *Backend) GetMonthAttendance(ctx context.Context, year int, month time.Month) (models.MonthAttendance, error) {
	if err := models.ValidateMonth(year, month); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, appErrors.ErrInvalidInput.Message)
	}
	doc, err := b.store.Get(ctx, CollectionAttendance, models.MonthKey(year, month))
	if err != nil {
		if IsNotFound(err) {
			return models.MonthAttendance{}, nil
		}
		return nil, classify(err)
	}
	return decodeMonth(doc)
}

// SaveMonthAttendance replaces the month document.
func (b *Backend) SaveMonthAttendance(ctx context.Context, year int, month time.Month, data models.MonthAttendance) error {
	if err := models.ValidateMonth(year, month); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, appErrors.ErrInvalidInput.Message)
	}
	key := models.MonthKey(year, month)
	normalized, err := data.Normalize(key)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, appErrors.ErrInvalidInput.Message)
	}
	doc, err := toDocument(normalized)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
	}
	return classify(b.store.Set(ctx, CollectionAttendance, key, doc))
}

// GetStudentAttendance collects one student's days across every month document.
func (b *Backend) GetStudentAttendance(ctx context.Context, studentID string) (models.StudentAttendance, error) {
	book, err := b.AllAttendance(ctx)
	if err != nil {
		return nil, err
	}
	return book.ForStudent(studentID), nil
}

// AllAttendance returns every month document.
func (b *Backend) AllAttendance(ctx context.Context) (models.AttendanceBook, error) {
	docs, err := b.store.List(ctx, CollectionAttendance)
	if err != nil {
		return nil, classify(err)
	}
	book := make(models.AttendanceBook, len(docs))
	for _, snap := range docs {
		if _, _, err := models.ParseMonthKey(snap.ID); err != nil {
			continue
		}
		month, err := decodeMonth(snap.Data)
		if err != nil {
			return nil, err
		}
		book[snap.ID] = month
	}
	return book, nil
}

func decodeMonth(doc Document) (models.MonthAttendance, error) {
	month := models.MonthAttendance{}
	if err := fromDocument(doc, &month); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
	}
	return month, nil
}
