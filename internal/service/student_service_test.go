package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sms-storage/internal/models"
	"github.com/noah-isme/sms-storage/internal/session"
	"github.com/noah-isme/sms-storage/internal/storage"
	"github.com/noah-isme/sms-storage/internal/storage/local"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/kv"
	"github.com/noah-isme/sms-storage/pkg/password"
)

func newLocalAdapter(t *testing.T) *storage.Adapter {
	t.Helper()
	store := kv.NewMemoryStore()
	sess := session.NewManager(store, nil)
	backend := local.New(store, local.Options{
		Hasher:          password.SHA256Hasher{},
		DefaultPassword: "Elostaz@2025",
		Session:         sess,
	})
	adapter := storage.NewAdapter(backend, nil, sess, store, storage.Options{})
	require.NoError(t, adapter.Init(context.Background()))
	t.Cleanup(adapter.Close)
	return adapter
}

func validStudent(id string) models.Student {
	return models.Student{ID: id, Name: "Student " + id, Password: "pw", Grade: models.GradeFirst, Group: models.GroupSatTue}
}

func TestStudentServiceCreate(t *testing.T) {
	svc := NewStudentService(newLocalAdapter(t), nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, models.Student{ID: " S1 ", Name: "Ahmed", Password: "pw", Grade: "First", Group: "sat_tue"})
	require.NoError(t, err)
	assert.Equal(t, "S1", created.ID)
	assert.Equal(t, models.GradeFirst, created.Grade)
	assert.Equal(t, 1, created.Index)

	_, err = svc.Create(ctx, validStudent("S1"))
	assert.True(t, appErrors.HasCode(err, appErrors.CodeDuplicateID))
}

func TestStudentServiceCreateRejectsInvalid(t *testing.T) {
	svc := NewStudentService(newLocalAdapter(t), nil, nil)

	st := validStudent("S1")
	st.Grade = "fourth"
	_, err := svc.Create(context.Background(), st)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.CodeInvalidInput, appErr.Code)
	assert.Equal(t, map[string]string{"grade": "student_grade"}, appErr.Details)

	st = validStudent("S2")
	st.Group = "mon_thu"
	_, err = svc.Create(context.Background(), st)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidInput))

	st = validStudent("S3")
	st.Password = ""
	_, err = svc.Create(context.Background(), st)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidInput))
}

func TestStudentServiceCreateBulkMergesFailures(t *testing.T) {
	svc := NewStudentService(newLocalAdapter(t), nil, nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, validStudent("S1"))
	require.NoError(t, err)

	bad := validStudent("S3")
	bad.Name = ""
	result, err := svc.CreateBulk(ctx, []models.Student{validStudent("S1"), validStudent("S2"), bad})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.ErrorCount)
	ids := []string{result.Errors[0].ID, result.Errors[1].ID}
	assert.ElementsMatch(t, []string{"S1", "S3"}, ids)
}

func TestStudentServiceListFilters(t *testing.T) {
	svc := NewStudentService(newLocalAdapter(t), nil, nil)
	ctx := context.Background()

	a := validStudent("A1")
	a.Name = "Ahmed"
	b := validStudent("B1")
	b.Grade = models.GradeSecond
	b.Group = models.GroupSunWed
	c := validStudent("C1")
	c.Group = models.GroupSunWed
	for _, st := range []models.Student{a, b, c} {
		_, err := svc.Create(ctx, st)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Count)

	first, err := svc.List(ctx, StudentFilter{Grade: models.GradeFirst})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Count)

	firstSunWed, err := svc.List(ctx, StudentFilter{Grade: models.GradeFirst, Group: models.GroupSunWed})
	require.NoError(t, err)
	require.Equal(t, 1, firstSunWed.Count)
	assert.Equal(t, "C1", firstSunWed.Students[0].ID)

	search, err := svc.List(ctx, StudentFilter{Search: "ahm"})
	require.NoError(t, err)
	require.Equal(t, 1, search.Count)
	assert.Equal(t, "A1", search.Students[0].ID)

	_, err = svc.List(ctx, StudentFilter{Grade: "tenth"})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidInput))
}

func TestStudentServiceUpdate(t *testing.T) {
	svc := NewStudentService(newLocalAdapter(t), nil, nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, validStudent("S1"))
	require.NoError(t, err)

	name := "Renamed"
	updated, err := svc.Update(ctx, "S1", models.StudentPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	_, err = svc.Update(ctx, "S1", models.StudentPatch{})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidInput))

	grade := models.Grade("bogus")
	_, err = svc.Update(ctx, "S1", models.StudentPatch{Grade: &grade})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidInput))

	index := -1
	_, err = svc.Update(ctx, "S1", models.StudentPatch{Index: &index})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidInput))

	_, err = svc.Update(ctx, "missing", models.StudentPatch{Name: &name})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeNotFound))
}

func TestStudentServiceDelete(t *testing.T) {
	svc := NewStudentService(newLocalAdapter(t), nil, nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, validStudent("S1"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "S1"))
	_, err = svc.Get(ctx, "S1")
	assert.True(t, appErrors.HasCode(err, appErrors.CodeNotFound))
	assert.True(t, appErrors.HasCode(svc.Delete(ctx, " "), appErrors.CodeInvalidInput))
}

type failingStudentStore struct {
	studentStore
	err error
}

func (f failingStudentStore) ListStudents(context.Context) (*models.StudentList, error) {
	return nil, f.err
}

func TestStudentServicePropagatesStoreErrors(t *testing.T) {
	storeErr := appErrors.Connection(errors.New("offline"))
	svc := NewStudentService(failingStudentStore{err: storeErr}, nil, nil)

	_, err := svc.List(context.Background(), StudentFilter{})
	assert.True(t, appErrors.IsConnectionIssue(err))
}
