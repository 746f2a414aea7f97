package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

type studentStore interface {
	AddStudent(ctx context.Context, student models.Student) (*models.Student, error)
	AddStudents(ctx context.Context, students []models.Student) (*models.BulkResult, error)
	UpdateStudent(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error)
	DeleteStudent(ctx context.Context, id string) error
	ListStudents(ctx context.Context) (*models.StudentList, error)
	GetStudent(ctx context.Context, id string) (*models.Student, error)
	StudentsByGrade(ctx context.Context, grade models.Grade) ([]models.Student, error)
	StudentsByGroup(ctx context.Context, group models.Group) ([]models.Student, error)
}

// StudentFilter narrows List. Empty fields match everything.
type StudentFilter struct {
	Grade  models.Grade
	Group  models.Group
	Search string
}

// StudentService validates student input before it reaches storage.
type StudentService struct {
	store     studentStore
	validator *validator.Validate
	logger    *zap.Logger
}

// RegisterStudentValidations adds the student_grade and student_group tags to v.
func RegisterStudentValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("student_grade", func(fl validator.FieldLevel) bool {
		return models.Grade(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("student_group", func(fl validator.FieldLevel) bool {
		return models.Group(fl.Field().String()).Valid()
	})
}

// NewStudentService constructs the student service.
func NewStudentService(store studentStore, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := RegisterStudentValidations(validate); err != nil {
		logger.Error("failed to register student validations", zap.Error(err))
	}
	return &StudentService{store: store, validator: validate, logger: logger}
}

// List returns students matching filter, ordered by index.
func (s *StudentService) List(ctx context.Context, filter StudentFilter) (*models.StudentList, error) {
	if filter.Grade != "" && !filter.Grade.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "الصف الدراسي غير صالح")
	}
	if filter.Group != "" && !filter.Group.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "المجموعة غير صالحة")
	}

	var students []models.Student
	switch {
	case filter.Grade != "":
		byGrade, err := s.store.StudentsByGrade(ctx, filter.Grade)
		if err != nil {
			return nil, err
		}
		students = byGrade
	case filter.Group != "":
		byGroup, err := s.store.StudentsByGroup(ctx, filter.Group)
		if err != nil {
			return nil, err
		}
		students = byGroup
	default:
		list, err := s.store.ListStudents(ctx)
		if err != nil {
			return nil, err
		}
		if filter.Search == "" {
			return list, nil
		}
		students = list.Students
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.Student, 0, len(students))
	for _, st := range students {
		if filter.Group != "" && st.Group != filter.Group {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(st.ID), search) && !strings.Contains(strings.ToLower(st.Name), search) {
			continue
		}
		out = append(out, st)
	}
	return models.NewStudentList(out), nil
}

// Get returns one student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "معرف الطالب مطلوب")
	}
	return s.store.GetStudent(ctx, id)
}

// Create validates and stores a student.
func (s *StudentService) Create(ctx context.Context, student models.Student) (*models.Student, error) {
	student = normalizeStudent(student)
	if err := s.validator.Struct(student); err != nil {
		return nil, validationError(err)
	}
	return s.store.AddStudent(ctx, student)
}

// CreateBulk validates every student, stores the valid ones and reports per-item failures.
func (s *StudentService) CreateBulk(ctx context.Context, students []models.Student) (*models.BulkResult, error) {
	result := models.NewBulkResult()
	valid := make([]models.Student, 0, len(students))
	for _, st := range students {
		st = normalizeStudent(st)
		if err := s.validator.Struct(st); err != nil {
			result.Fail(st.ID, validationError(err).Message)
			continue
		}
		valid = append(valid, st)
	}
	if len(valid) == 0 {
		return result, nil
	}

	stored, err := s.store.AddStudents(ctx, valid)
	if err != nil {
		return nil, err
	}
	result.SuccessCount += stored.SuccessCount
	result.ErrorCount += stored.ErrorCount
	result.Errors = append(result.Errors, stored.Errors...)
	s.logger.Info("bulk student import",
		zap.Int("success", result.SuccessCount),
		zap.Int("errors", result.ErrorCount),
	)
	return result, nil
}

// Update validates the supplied fields and merges them into the student.
func (s *StudentService) Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "معرف الطالب مطلوب")
	}
	if patch.IsEmpty() {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "لا توجد بيانات للتحديث")
	}
	checks := []struct {
		present bool
		value   interface{}
		tag     string
		field   string
	}{
		{patch.Name != nil, deref(patch.Name), "required,max=120", "name"},
		{patch.Password != nil, deref(patch.Password), "required,max=128", "password"},
		{patch.Grade != nil, derefGrade(patch.Grade), "required,student_grade", "grade"},
		{patch.Group != nil, derefGroup(patch.Group), "omitempty,student_group", "group"},
		{patch.Section != nil, deref(patch.Section), "omitempty,oneof=scientific literary", "section"},
		{patch.Index != nil, derefInt(patch.Index), "gte=0", "index"},
	}
	for _, check := range checks {
		if !check.present {
			continue
		}
		if err := s.validator.Var(check.value, check.tag); err != nil {
			appErr := appErrors.Clone(appErrors.ErrInvalidInput, "")
			appErr.Details = map[string]string{check.field: check.tag}
			appErr.Err = err
			return nil, appErr
		}
	}
	return s.store.UpdateStudent(ctx, id, patch)
}

// Delete removes a student.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return appErrors.Clone(appErrors.ErrInvalidInput, "معرف الطالب مطلوب")
	}
	return s.store.DeleteStudent(ctx, id)
}

func normalizeStudent(st models.Student) models.Student {
	st.ID = strings.TrimSpace(st.ID)
	st.Name = strings.TrimSpace(st.Name)
	st.Grade = models.Grade(strings.ToLower(strings.TrimSpace(string(st.Grade))))
	st.Group = models.Group(strings.ToLower(strings.TrimSpace(string(st.Group))))
	st.Section = strings.ToLower(strings.TrimSpace(st.Section))
	return st
}

func validationError(err error) *appErrors.Error {
	appErr := appErrors.Clone(appErrors.ErrInvalidInput, "")
	appErr.Err = err
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			field := strings.ToLower(fe.Field())
			details[field] = fe.Tag()
			parts = append(parts, fmt.Sprintf("%s:%s", field, fe.Tag()))
		}
		appErr.Details = details
		appErr.Message = fmt.Sprintf("%s (%s)", appErrors.ErrInvalidInput.Message, strings.Join(parts, ", "))
	}
	return appErr
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefGrade(v *models.Grade) models.Grade {
	if v == nil {
		return ""
	}
	return *v
}

func derefGroup(v *models.Group) models.Group {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
