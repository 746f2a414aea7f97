package cloud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/noah-isme/sms-storage/internal/models"
	"github.com/noah-isme/sms-storage/internal/session"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/kv"
	"github.com/noah-isme/sms-storage/pkg/password"
)

const defaultPassword = "Elostaz@2025"

type fixture struct {
	store   *memoryDocStore
	mirror  *fakeMirror
	session *session.Manager
	backend *Backend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   newMemoryDocStore(),
		mirror:  &fakeMirror{},
		session: session.NewManager(kv.NewMemoryStore(), kv.NewMemoryStore()),
	}
	f.backend = New(f.store, Options{
		Hasher:          password.SHA256Hasher{},
		DefaultPassword: defaultPassword,
		Session:         f.session,
		Mirror:          f.mirror,
		ProbeTimeout:    time.Second,
	})
	return f
}

func (f *fixture) init(t *testing.T) {
	t.Helper()
	require.NoError(t, f.backend.Init(context.Background()))
}

func TestInitProvisionsAdminAndMarker(t *testing.T) {
	f := newFixture(t)
	f.init(t)

	admin := f.store.docs[CollectionSettings][DocAdmin]
	require.NotNil(t, admin)
	assert.Equal(t, true, admin["isHashed"])
	assert.NotEmpty(t, admin["lastModified"])
	digest := admin["password"].(string)
	assert.True(t, password.SHA256Hasher{}.Verify(defaultPassword, digest))

	require.NotEmpty(t, f.mirror.mirrored)
	assert.Equal(t, digest, f.mirror.digest)

	_, ok := f.store.docs[CollectionUsers][DocMetadata]
	assert.True(t, ok)

	list, err := f.backend.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, list.Count)
	assert.Equal(t, models.NoStudentsMessage, list.Message)
}

func TestInitAdoptsLocalDigest(t *testing.T) {
	f := newFixture(t)
	f.mirror.digest, _ = password.SHA256Hasher{}.Hash("local-secret")
	f.init(t)

	_, err := f.backend.AdminLogin(context.Background(), "local-secret")
	require.NoError(t, err)
	assert.True(t, f.session.IsAdmin(context.Background()))
}

func TestInitUpgradesPlaintextAdmin(t *testing.T) {
	f := newFixture(t)
	f.store.put(CollectionSettings, DocAdmin, Document{"password": "legacy-plain", "isHashed": false})
	f.init(t)

	admin := f.store.docs[CollectionSettings][DocAdmin]
	assert.Equal(t, true, admin["isHashed"])
	assert.NotEqual(t, "legacy-plain", admin["password"])
	assert.NotEmpty(t, admin["lastModified"])
	assert.Equal(t, admin["password"], f.mirror.digest)

	_, err := f.backend.AdminLogin(context.Background(), "legacy-plain")
	require.NoError(t, err)
}

func TestInitFailsWhenUnreachable(t *testing.T) {
	f := newFixture(t)
	f.store.fail(status.Error(codes.Unavailable, "connection refused"))

	err := f.backend.Init(context.Background())
	require.Error(t, err)
	assert.True(t, appErrors.IsConnectionIssue(err))
	assert.True(t, f.backend.Offline())

	_, err = f.backend.Login(context.Background(), "s1", "pw")
	assert.True(t, appErrors.IsConnectionIssue(err))
	_, err = f.backend.AdminLogin(context.Background(), defaultPassword)
	assert.True(t, appErrors.IsConnectionIssue(err))

	f.store.fail(nil)
	require.NoError(t, f.backend.Probe(context.Background()))
	assert.False(t, f.backend.Offline())
}

func TestAddAssignsIndexesAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	first, err := f.backend.Add(ctx, models.Student{ID: "S1", Password: "p1", Name: "One", Grade: models.GradeFirst})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Index)

	_, err = f.backend.Add(ctx, models.Student{ID: "S1"})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeDuplicateID))

	second, err := f.backend.Add(ctx, models.Student{ID: "S2", Grade: models.GradeSecond})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Index)

	require.NoError(t, f.backend.Delete(ctx, "S2"))
	third, err := f.backend.Add(ctx, models.Student{ID: "S3"})
	require.NoError(t, err)
	assert.Equal(t, 3, third.Index)

	err = f.backend.Delete(ctx, "S2")
	assert.True(t, appErrors.HasCode(err, appErrors.CodeNotFound))

	list, err := f.backend.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Empty(t, list.Message)
	assert.Equal(t, "S1", list.Students[0].ID)
}

func TestAddBulkAbortsOnConnectionIssue(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	result, err := f.backend.AddBulk(ctx, []models.Student{{ID: "B1"}, {ID: "B1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.ErrorCount)

	f.store.fail(errors.New("network is unreachable"))
	_, err = f.backend.AddBulk(ctx, []models.Student{{ID: "B2"}})
	assert.True(t, appErrors.IsConnectionIssue(err))
}

func TestUpdateMergesFields(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	_, err := f.backend.Add(ctx, models.Student{ID: "U1", Password: "p", Name: "Old", Grade: models.GradeThird})
	require.NoError(t, err)

	name := "New"
	updated, err := f.backend.Update(ctx, "U1", models.StudentPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, "p", updated.Password)
	assert.Equal(t, models.GradeThird, updated.Grade)

	_, err = f.backend.Update(ctx, "ghost", models.StudentPatch{Name: &name})
	assert.True(t, appErrors.HasCode(err, appErrors.CodeNotFound))
}

func TestUpdateIndexRaisesCounter(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	_, err := f.backend.Add(ctx, models.Student{ID: "X1"})
	require.NoError(t, err)

	index := 10
	updated, err := f.backend.Update(ctx, "X1", models.StudentPatch{Index: &index})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Index)

	next, err := f.backend.Add(ctx, models.Student{ID: "X2"})
	require.NoError(t, err)
	assert.Equal(t, 11, next.Index)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	_, err := f.backend.Add(ctx, models.Student{ID: "L1", Password: "pw", Grade: models.GradeFirst})
	require.NoError(t, err)

	_, err = f.backend.Login(ctx, "L1", "nope")
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidCredentials))
	_, err = f.backend.Login(ctx, "ghost", "pw")
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidCredentials))

	result, err := f.backend.Login(ctx, "L1", "pw")
	require.NoError(t, err)
	assert.Equal(t, "L1", result.User.ID)

	user, err := f.session.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "L1", user.ID)
}

func TestChangeAdminPasswordMirrorsLocally(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	require.NoError(t, f.backend.ChangeAdminPassword(ctx, "rotated-pass"))
	assert.True(t, password.SHA256Hasher{}.Verify("rotated-pass", f.mirror.digest))
	require.NoError(t, f.backend.VerifyAdminPassword(ctx, "rotated-pass"))
	assert.Error(t, f.backend.VerifyAdminPassword(ctx, defaultPassword))
}

func TestAttendanceMonthDocuments(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	month := models.MonthAttendance{"s1": {"2025-02-03": models.AttendancePresent}}
	require.NoError(t, f.backend.SaveMonthAttendance(ctx, 2025, time.February, month))

	got, err := f.backend.GetMonthAttendance(ctx, 2025, time.February)
	require.NoError(t, err)
	assert.Equal(t, month, got)

	replacement := models.MonthAttendance{"s2": {"2025-02-04": models.AttendanceAbsent}}
	require.NoError(t, f.backend.SaveMonthAttendance(ctx, 2025, time.February, replacement))
	got, err = f.backend.GetMonthAttendance(ctx, 2025, time.February)
	require.NoError(t, err)
	assert.Equal(t, replacement, got)

	history, err := f.backend.GetStudentAttendance(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceAbsent, history["2025-02"]["2025-02-04"])

	empty, err := f.backend.GetMonthAttendance(ctx, 2024, time.January)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReplaceAllAndCounter(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	_, err := f.backend.Add(ctx, models.Student{ID: "old"})
	require.NoError(t, err)

	require.NoError(t, f.backend.ReplaceAll(ctx, []models.Student{{ID: "n1", Index: 10}, {ID: "n2", Index: 3}}))
	list, err := f.backend.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, list.Count)
	assert.Equal(t, "n2", list.Students[0].ID)

	last, err := f.backend.LastIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, last)

	added, err := f.backend.Add(ctx, models.Student{ID: "n3"})
	require.NoError(t, err)
	assert.Equal(t, 11, added.Index)
}

func TestSettingsMerge(t *testing.T) {
	f := newFixture(t)
	f.init(t)
	ctx := context.Background()

	_, err := f.backend.UpdateSettings(ctx, models.Settings{"a": "1"})
	require.NoError(t, err)
	merged, err := f.backend.UpdateSettings(ctx, models.Settings{"b": "2"})
	require.NoError(t, err)
	assert.Equal(t, "1", merged["a"])
	assert.Equal(t, "2", merged["b"])
}
