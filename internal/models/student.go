package models

import (
	"sort"
	"time"
)

// Grade is the secondary-school class level.
type Grade string

const (
	GradeFirst  Grade = "first"
	GradeSecond Grade = "second"
	GradeThird  Grade = "third"
)

// Valid reports whether g is a known grade.
func (g Grade) Valid() bool {
	return g == GradeFirst || g == GradeSecond || g == GradeThird
}

// Group is the weekly schedule cohort.
type Group string

const (
	GroupSatTue Group = "sat_tue"
	GroupSunWed Group = "sun_wed"
)

// Valid reports whether g is a known group. Third grade students may have no group.
func (g Group) Valid() bool {
	return g == GroupSatTue || g == GroupSunWed
}

// Student is a registered learner. Password is the student's portal password and is stored as
// entered.
type Student struct {
	ID        string    `json:"id" validate:"required,max=64"`
	Password  string    `json:"password,omitempty" validate:"required,max=128"`
	Name      string    `json:"name" validate:"required,max=120"`
	Grade     Grade     `json:"grade" validate:"required,student_grade"`
	Group     Group     `json:"group" validate:"omitempty,student_group"`
	Section   string    `json:"section,omitempty" validate:"omitempty,oneof=scientific literary"`
	Index     int       `json:"index,omitempty" validate:"gte=0"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublicStudent is the session-facing view of a student.
type PublicStudent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Grade     Grade     `json:"grade"`
	Group     Group     `json:"group"`
	Section   string    `json:"section,omitempty"`
	Index     int       `json:"index,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips the password.
func (s Student) Public() PublicStudent {
	return PublicStudent{
		ID:        s.ID,
		Name:      s.Name,
		Grade:     s.Grade,
		Group:     s.Group,
		Section:   s.Section,
		Index:     s.Index,
		CreatedAt: s.CreatedAt,
	}
}

// StudentPatch holds the fields of a partial update. Nil fields are left untouched.
type StudentPatch struct {
	Password *string `json:"password,omitempty"`
	Name     *string `json:"name,omitempty"`
	Grade    *Grade  `json:"grade,omitempty"`
	Group    *Group  `json:"group,omitempty"`
	Section  *string `json:"section,omitempty"`
	Index    *int    `json:"index,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p StudentPatch) IsEmpty() bool {
	return p.Password == nil && p.Name == nil && p.Grade == nil && p.Group == nil && p.Section == nil && p.Index == nil
}

// Apply merges the patch into s.
func (p StudentPatch) Apply(s *Student) {
	if p.Password != nil {
		s.Password = *p.Password
	}
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Grade != nil {
		s.Grade = *p.Grade
	}
	if p.Group != nil {
		s.Group = *p.Group
	}
	if p.Section != nil {
		s.Section = *p.Section
	}
	if p.Index != nil {
		s.Index = *p.Index
	}
}

// Fields renders the patch as document fields keyed by their JSON names.
func (p StudentPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	if p.Password != nil {
		fields["password"] = *p.Password
	}
	if p.Name != nil {
		fields["name"] = *p.Name
	}
	if p.Grade != nil {
		fields["grade"] = string(*p.Grade)
	}
	if p.Group != nil {
		fields["group"] = string(*p.Group)
	}
	if p.Section != nil {
		fields["section"] = *p.Section
	}
	if p.Index != nil {
		fields["index"] = *p.Index
	}
	return fields
}

// StudentList is the result of listing every student.
type StudentList struct {
	Students []Student `json:"students"`
	Count    int       `json:"count"`
	Message  string    `json:"message,omitempty"`
}

// NoStudentsMessage is reported when a backend holds no students yet.
const NoStudentsMessage = "لا يوجد طلاب في قاعدة البيانات"

// NewStudentList sorts students by index then id and fills the count and empty message.
func NewStudentList(students []Student) *StudentList {
	if students == nil {
		students = []Student{}
	}
	sort.SliceStable(students, func(i, j int) bool {
		if students[i].Index != students[j].Index {
			return students[i].Index < students[j].Index
		}
		return students[i].ID < students[j].ID
	})
	list := &StudentList{Students: students, Count: len(students)}
	if len(students) == 0 {
		list.Message = NoStudentsMessage
	}
	return list
}

// BulkError reports why one student of a bulk add was rejected.
type BulkError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// BulkResult aggregates a bulk add.
type BulkResult struct {
	SuccessCount int         `json:"successCount"`
	ErrorCount   int         `json:"errorCount"`
	Errors       []BulkError `json:"errors"`
}

// Succeed counts one stored student.
func (r *BulkResult) Succeed() {
	r.SuccessCount++
}

// Fail records a rejected student.
func (r *BulkResult) Fail(id, message string) {
	r.ErrorCount++
	r.Errors = append(r.Errors, BulkError{ID: id, Message: message})
}

// NewBulkResult returns an empty result with a non-nil error list.
func NewBulkResult() *BulkResult {
	return &BulkResult{Errors: []BulkError{}}
}
