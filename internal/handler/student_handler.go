package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sms-storage/internal/models"
	"github.com/noah-isme/sms-storage/internal/service"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/response"
)

const maxImportSize = 5 << 20

type studentService interface {
	List(ctx context.Context, filter service.StudentFilter) (*models.StudentList, error)
	Get(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student models.Student) (*models.Student, error)
	CreateBulk(ctx context.Context, students []models.Student) (*models.BulkResult, error)
	Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error)
	Delete(ctx context.Context, id string) error
}

type rosterImporter interface {
	Import(ctx context.Context, filename string, r io.Reader) (*service.RosterImportResult, error)
}

// BulkStudentsRequest is the payload of POST /students/bulk.
type BulkStudentsRequest struct {
	Students []models.Student `json:"students" binding:"required,min=1"`
}

// StudentHandler manages student endpoints.
type StudentHandler struct {
	service studentService
	roster  rosterImporter
}

// NewStudentHandler constructs handler.
func NewStudentHandler(svc studentService, roster rosterImporter) *StudentHandler {
	return &StudentHandler{service: svc, roster: roster}
}

// List returns students, optionally filtered by grade, group or a search term.
// @Summary List students
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param grade query string false "Grade filter"
// @Param group query string false "Group filter"
// @Param q query string false "Search by id or name"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := service.StudentFilter{
		Grade:  models.Grade(c.Query("grade")),
		Group:  models.Group(c.Query("group")),
		Search: c.Query("q"),
	}
	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{"count": list.Count}
	if list.Message != "" {
		meta["message"] = list.Message
	}
	response.JSON(c, http.StatusOK, publicStudents(list.Students), meta)
}

// Get returns one student.
// @Summary Get student
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student.Public())
}

// Create adds a student.
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.Student true "Student"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req models.Student
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid student payload"))
		return
	}
	student, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student.Public())
}

// CreateBulk adds many students and reports per-item failures.
// @Summary Create students in bulk
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body BulkStudentsRequest true "Students"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/bulk [post]
func (h *StudentHandler) CreateBulk(c *gin.Context) {
	var req BulkStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid bulk payload"))
		return
	}
	result, err := h.service.CreateBulk(c.Request.Context(), req.Students)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Import reads a CSV or XLSX roster from the multipart field "file".
// @Summary Import roster
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "CSV or XLSX roster"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/import [post]
func (h *StudentHandler) Import(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "يرجى اختيار ملف"))
		return
	}
	if header.Size > maxImportSize {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "file too large"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "تعذر قراءة الملف"))
		return
	}
	defer file.Close()

	result, err := h.roster.Import(c.Request.Context(), header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Update merges the supplied fields.
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body models.StudentPatch true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [patch]
func (h *StudentHandler) Update(c *gin.Context) {
	var patch models.StudentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid student payload"))
		return
	}
	student, err := h.service.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student.Public())
}

// Delete removes a student.
// @Summary Delete student
// @Tags Students
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func publicStudents(students []models.Student) []models.PublicStudent {
	out := make([]models.PublicStudent, 0, len(students))
	for _, st := range students {
		out = append(out, st.Public())
	}
	return out
}
