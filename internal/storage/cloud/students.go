package cloud

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

// Add stores a new student. The index comes from the shared counter document.
func (b *Backend) Add(ctx context.Context, student models.Student) (*models.Student, error) {
	student.ID = strings.TrimSpace(student.ID)
	if student.ID == "" || student.ID == DocMetadata {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "معرف الطالب مطلوب")
	}
	if _, err := b.store.Get(ctx, CollectionUsers, student.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateID, "")
	} else if !IsNotFound(err) {
		return nil, classify(err)
	}

	if student.Index <= 0 {
		next, err := b.store.Increment(ctx, CollectionSettings, DocCounter, FieldLastStudentIndex, 1)
		if err != nil {
			return nil, classify(err)
		}
		student.Index = int(next)
	} else if err := b.RaiseIndexCounter(ctx, student.Index); err != nil {
		return nil, err
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = b.now()
	}

	doc, err := toDocument(student)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
	}
	if err := b.store.Create(ctx, CollectionUsers, student.ID, doc); err != nil {
		return nil, classify(err)
	}
	return &student, nil
}

// AddBulk adds each student independently. A connection failure aborts the batch because every
// later item would fail the same way.
func (b *Backend) AddBulk(ctx context.Context, students []models.Student) (*models.BulkResult, error) {
	result := models.NewBulkResult()
	for _, student := range students {
		if _, err := b.Add(ctx, student); err != nil {
			if appErrors.IsConnectionIssue(err) {
				return nil, err
			}
			result.Fail(student.ID, appErrors.FromError(err).Message)
			continue
		}
		result.Succeed()
	}
	return result, nil
}

// Update merges patch into the stored student.
func (b *Backend) Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error) {
	if id == DocMetadata {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "")
	}
	if err := b.store.Update(ctx, CollectionUsers, id, Document(patch.Fields())); err != nil {
		return nil, classify(err)
	}
	if patch.Index != nil {
		if err := b.RaiseIndexCounter(ctx, *patch.Index); err != nil {
			return nil, err
		}
	}
	return b.GetByID(ctx, id)
}

// Delete removes a student.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if id == DocMetadata {
		return appErrors.Clone(appErrors.ErrNotFound, "الطالب غير موجود")
	}
	if err := b.store.Delete(ctx, CollectionUsers, id); err != nil {
		if IsNotFound(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "الطالب غير موجود")
		}
		return classify(err)
	}
	return nil
}

// ReplaceAll makes the users collection hold exactly students.
func (b *Backend) ReplaceAll(ctx context.Context, students []models.Student) error {
	if students == nil {
		return appErrors.Clone(appErrors.ErrInvalidInput, "")
	}
	existing, err := b.store.List(ctx, CollectionUsers)
	if err != nil {
		return classify(err)
	}
	keep := make(map[string]struct{}, len(students))
	highest := 0
	for _, s := range students {
		if err := b.PutStudent(ctx, s); err != nil {
			return err
		}
		keep[s.ID] = struct{}{}
		if s.Index > highest {
			highest = s.Index
		}
	}
	for _, snap := range existing {
		if _, ok := keep[snap.ID]; ok || snap.ID == DocMetadata {
			continue
		}
		if err := b.store.Delete(ctx, CollectionUsers, snap.ID); err != nil && !IsNotFound(err) {
			return classify(err)
		}
	}
	return b.RaiseIndexCounter(ctx, highest)
}

// PutStudent writes a student as-is, overwriting any existing document.
func (b *Backend) PutStudent(ctx context.Context, student models.Student) error {
	if strings.TrimSpace(student.ID) == "" {
		return appErrors.Clone(appErrors.ErrInvalidInput, "معرف الطالب مطلوب")
	}
	doc, err := toDocument(student)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
	}
	return classify(b.store.Set(ctx, CollectionUsers, student.ID, doc))
}

// GetAll lists every student. An empty collection is a success with the no-students message.
func (b *Backend) GetAll(ctx context.Context) (*models.StudentList, error) {
	students, err := b.listStudents(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewStudentList(students), nil
}

// GetByID returns one student.
func (b *Backend) GetByID(ctx context.Context, id string) (*models.Student, error) {
	if id == DocMetadata {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "")
	}
	doc, err := b.store.Get(ctx, CollectionUsers, id)
	if err != nil {
		return nil, classify(err)
	}
	student, err := decodeStudent(id, doc)
	if err != nil {
		return nil, err
	}
	return &student, nil
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
	students, err := b.listStudents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Student, 0, len(students))
	for _, s := range students {
		if keep(s) {
			out = append(out, s)
		}
	}
	return models.NewStudentList(out).Students, nil
}

func (b *Backend) listStudents(ctx context.Context) ([]models.Student, error) {
	docs, err := b.store.List(ctx, CollectionUsers)
	if err != nil {
		return nil, classify(err)
	}
	students := make([]models.Student, 0, len(docs))
	for _, snap := range docs {
		if snap.ID == DocMetadata {
			continue
		}
		student, err := decodeStudent(snap.ID, snap.Data)
		if err != nil {
			b.logger.Warn("skipping malformed student document", zap.String("id", snap.ID), zap.Error(err))
			continue
		}
		students = append(students, student)
	}
	return students, nil
}

// LastIndex returns the counter value.
func (b *Backend) LastIndex(ctx context.Context) (int, error) {
	doc, err := b.store.Get(ctx, CollectionSettings, DocCounter)
	if err != nil {
		if IsNotFound(err) {
			return 0, nil
		}
		return 0, classify(err)
	}
	return int(toInt64(doc[FieldLastStudentIndex])), nil
}

// RaiseIndexCounter moves the counter up to floor. It never lowers it.
func (b *Backend) RaiseIndexCounter(ctx context.Context, floor int) error {
	current, err := b.LastIndex(ctx)
	if err != nil {
		return err
	}
	if floor <= current {
		return nil
	}
	if _, err := b.store.Increment(ctx, CollectionSettings, DocCounter, FieldLastStudentIndex, int64(floor-current)); err != nil {
		return classify(err)
	}
	return nil
}

func decodeStudent(id string, doc Document) (models.Student, error) {
	var student models.Student
	if err := fromDocument(doc, &student); err != nil {
		return student, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
	}
	if student.ID == "" {
		student.ID = id
	}
	return student, nil
}
