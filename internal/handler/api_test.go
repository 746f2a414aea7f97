package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sms-storage/internal/middleware"
	"github.com/noah-isme/sms-storage/internal/service"
	"github.com/noah-isme/sms-storage/internal/session"
	"github.com/noah-isme/sms-storage/internal/storage"
	"github.com/noah-isme/sms-storage/internal/storage/local"
	"github.com/noah-isme/sms-storage/pkg/kv"
	"github.com/noah-isme/sms-storage/pkg/password"
)

const adminPassword = "Elostaz@2025"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta map[string]interface{} `json:"meta"`
}

func newTestAPI(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := kv.NewMemoryStore()
	sess := session.NewManager(store, nil)
	backend := local.New(store, local.Options{
		Hasher:          password.SHA256Hasher{},
		DefaultPassword: adminPassword,
		Session:         sess,
	})
	metrics := service.NewMetricsService()
	adapter := storage.NewAdapter(backend, nil, sess, store, storage.Options{Observer: metrics})
	require.NoError(t, adapter.Init(context.Background()))
	t.Cleanup(adapter.Close)

	students := service.NewStudentService(adapter, nil, nil)
	auth := service.NewAuthService(adapter, nil, service.AuthConfig{AccessTokenSecret: "test-secret", AccessTokenExpiry: time.Hour})
	h := Handlers{
		Auth:       NewAuthHandler(auth),
		Students:   NewStudentHandler(students, service.NewRosterService(students, nil)),
		Attendance: NewAttendanceHandler(adapter, service.NewExportService(adapter, nil, nil, nil)),
		Storage:    NewStorageHandler(adapter),
		Settings:   NewSettingsHandler(adapter),
		Metrics:    NewMetricsHandler(metrics, adapter),
	}
	r := gin.New()
	r.Use(middleware.Metrics(metrics))
	Register(r, "/api/v1", h, auth, true)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func accessToken(t *testing.T, env envelope) string {
	t.Helper()
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

func loginAdmin(t *testing.T, r http.Handler) string {
	t.Helper()
	rec, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/admin/login", "", gin.H{"password": adminPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	return accessToken(t, env)
}

func createStudent(t *testing.T, r http.Handler, admin, id, pass string) {
	t.Helper()
	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/students", admin, gin.H{"id": id, "name": "Ahmed", "password": pass, "grade": "first"})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestStudentLifecycle(t *testing.T) {
	r := newTestAPI(t)

	rec, env := doJSON(t, r, http.MethodPost, "/api/v1/students", "", gin.H{"id": "S1", "name": "Ahmed", "password": "p1", "grade": "first"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	admin := loginAdmin(t, r)
	rec, env = doJSON(t, r, http.MethodPost, "/api/v1/students", admin, gin.H{"id": "S1", "name": "Ahmed", "password": "p1", "grade": "first", "group": "sat_tue"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, string(env.Data), "p1")

	rec, env = doJSON(t, r, http.MethodPost, "/api/v1/students", admin, gin.H{"id": "S1", "name": "Other", "password": "p2", "grade": "first"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_ID", env.Error.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/api/v1/students?grade=first", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, env.Meta["count"])

	rec, _ = doJSON(t, r, http.MethodPatch, "/api/v1/students/S1", admin, gin.H{"name": "Ahmed Ali"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/api/v1/students/S1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "Ahmed Ali")

	rec, _ = doJSON(t, r, http.MethodDelete, "/api/v1/students/S1", admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/api/v1/students/S1", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAdminLoginDoesNotAuthorizeOtherClients(t *testing.T) {
	r := newTestAPI(t)

	rec, _ := doJSON(t, r, http.MethodPost, "/api/v1/students", "", gin.H{"id": "S1", "name": "Ahmed", "password": "p1", "grade": "first"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	admin := loginAdmin(t, r)
	require.NotEmpty(t, admin)

	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/students", "", gin.H{"id": "S1", "name": "Ahmed", "password": "p1", "grade": "first"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/students", "forged.token.value", gin.H{"id": "S1", "name": "Ahmed", "password": "p1", "grade": "first"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := doJSON(t, r, http.MethodGet, "/api/v1/auth/me", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"isAdmin":false`)
}

func TestStudentTokenScopes(t *testing.T) {
	r := newTestAPI(t)
	admin := loginAdmin(t, r)
	createStudent(t, r, admin, "S1", "p1")
	createStudent(t, r, admin, "S2", "p2")

	rec, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{"id": "S1", "password": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)
	student := accessToken(t, env)

	rec, _ = doJSON(t, r, http.MethodGet, "/api/v1/students/S1", student, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doJSON(t, r, http.MethodGet, "/api/v1/students/S1/attendance", student, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/api/v1/students/S2", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)
	rec, _ = doJSON(t, r, http.MethodGet, "/api/v1/students", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec, _ = doJSON(t, r, http.MethodDelete, "/api/v1/students/S1", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStudentLogin(t *testing.T) {
	r := newTestAPI(t)
	admin := loginAdmin(t, r)
	createStudent(t, r, admin, "S1", "p1")

	rec, env := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{"id": "S1", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	rec, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{"id": "S1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	rec, env = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "", gin.H{"id": "S1", "password": "p1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		AccessToken        string                 `json:"accessToken"`
		Role               string                 `json:"role"`
		User               map[string]interface{} `json:"user"`
		UsedOfflineStorage bool                   `json:"usedOfflineStorage"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "S1", body.User["id"])
	assert.Equal(t, "student", body.Role)
	assert.NotContains(t, body.User, "password")
	assert.False(t, body.UsedOfflineStorage)

	rec, env = doJSON(t, r, http.MethodGet, "/api/v1/auth/me", body.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"loggedIn":true`)
	assert.Contains(t, string(env.Data), `"id":"S1"`)

	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/logout", body.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = doJSON(t, r, http.MethodGet, "/api/v1/students/S1", body.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestChangeAdminPassword(t *testing.T) {
	r := newTestAPI(t)
	admin := loginAdmin(t, r)

	rec, env := doJSON(t, r, http.MethodPut, "/api/v1/auth/admin/password", admin, gin.H{"currentPassword": "wrong-one", "newPassword": "brand-new"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Error.Code)

	rec, _ = doJSON(t, r, http.MethodPut, "/api/v1/auth/admin/password", admin, gin.H{"currentPassword": adminPassword, "newPassword": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, r, http.MethodPut, "/api/v1/auth/admin/password", admin, gin.H{"currentPassword": adminPassword, "newPassword": "brand-new"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/admin/logout", admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = doJSON(t, r, http.MethodPut, "/api/v1/settings", admin, gin.H{"theme": "dark"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/admin/login", "", gin.H{"password": adminPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = doJSON(t, r, http.MethodPost, "/api/v1/auth/admin/login", "", gin.H{"password": "brand-new"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAttendanceEndpoints(t *testing.T) {
	r := newTestAPI(t)
	admin := loginAdmin(t, r)
	createStudent(t, r, admin, "S1", "p1")

	sheet := gin.H{"S1": gin.H{"2025-03-01": "present", "2025-03-02": "unset", "2025-03-03": "absent"}}
	rec, _ := doJSON(t, r, http.MethodPut, "/api/v1/attendance/2025/3", "", sheet)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = doJSON(t, r, http.MethodPut, "/api/v1/attendance/2025/3", admin, sheet)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, env := doJSON(t, r, http.MethodGet, "/api/v1/attendance/2025/3", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var month map[string]map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &month))
	assert.Equal(t, map[string]string{"2025-03-01": "present", "2025-03-03": "absent"}, month["S1"])
	assert.Equal(t, "2025-03", env.Meta["month"])

	rec, env = doJSON(t, r, http.MethodGet, "/api/v1/students/S1/attendance", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), "2025-03")

	rec, env = doJSON(t, r, http.MethodGet, "/api/v1/attendance/2025/13", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/2025/3/export?format=csv", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	out := httptest.NewRecorder()
	r.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
	assert.Contains(t, out.Header().Get("Content-Disposition"), "attendance-2025-03.csv")
	assert.Contains(t, out.Body.String(), "S1,Ahmed,P,,A")
}

func TestImportRoster(t *testing.T) {
	r := newTestAPI(t)
	admin := loginAdmin(t, r)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "roster.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("id,name,grade,group,password\nS1,Ahmed,first,sat_tue,p1\nS2,Mona,second,sun_wed,p2\nS3,broken\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/students/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var result service.RosterImportResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Result.SuccessCount)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 4, result.Rejected[0].Line)
}

func TestStorageEndpoints(t *testing.T) {
	r := newTestAPI(t)

	rec, env := doJSON(t, r, http.MethodGet, "/api/v1/storage/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"mode":"local"`)

	rec, _ = doJSON(t, r, http.MethodPut, "/api/v1/storage/mode", "", gin.H{"mode": "cloud"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	admin := loginAdmin(t, r)
	rec, env = doJSON(t, r, http.MethodPut, "/api/v1/storage/mode", admin, gin.H{"mode": "tape"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_MODE", env.Error.Code)

	rec, env = doJSON(t, r, http.MethodPut, "/api/v1/storage/mode", admin, gin.H{"mode": "cloud"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_MODE", env.Error.Code)

	rec, env = doJSON(t, r, http.MethodPut, "/api/v1/storage/mode", admin, gin.H{"mode": "local"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"mode":"local"`)
}

func TestSettingsEndpoints(t *testing.T) {
	r := newTestAPI(t)
	admin := loginAdmin(t, r)

	rec, _ := doJSON(t, r, http.MethodPut, "/api/v1/settings", admin, gin.H{"centerName": "Elostaz"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doJSON(t, r, http.MethodPut, "/api/v1/settings", admin, gin.H{"theme": "dark"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := doJSON(t, r, http.MethodGet, "/api/v1/settings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	assert.Equal(t, "Elostaz", settings["centerName"])
	assert.Equal(t, "dark", settings["theme"])
}

func TestHealthReadyMetrics(t *testing.T) {
	r := newTestAPI(t)

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storage_active_mode")
}
