package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sms-storage/internal/models"
	"github.com/noah-isme/sms-storage/internal/service"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/response"
)

type attendanceStore interface {
	MonthAttendance(ctx context.Context, year int, month time.Month) (models.MonthAttendance, error)
	SaveMonthAttendance(ctx context.Context, year int, month time.Month, data models.MonthAttendance) error
	StudentAttendance(ctx context.Context, studentID string) (models.StudentAttendance, error)
}

type attendanceExporter interface {
	ExportMonth(ctx context.Context, year int, month time.Month, format service.ExportFormat) (*service.ExportFile, error)
}

// AttendanceHandler serves monthly attendance sheets.
type AttendanceHandler struct {
	store    attendanceStore
	exporter attendanceExporter
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(store attendanceStore, exporter attendanceExporter) *AttendanceHandler {
	return &AttendanceHandler{store: store, exporter: exporter}
}

// GetMonth returns the month sheet keyed by student id then date.
// @Summary Month attendance
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param year path int true "Year"
// @Param month path int true "Month (1-12)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/{year}/{month} [get]
func (h *AttendanceHandler) GetMonth(c *gin.Context) {
	year, month, err := monthParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	data, err := h.store.MonthAttendance(c.Request.Context(), year, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, map[string]interface{}{"month": models.MonthKey(year, month)})
}

// SaveMonth overwrites the month sheet.
// @Summary Save month attendance
// @Tags Attendance
// @Accept json
// @Security BearerAuth
// @Param year path int true "Year"
// @Param month path int true "Month (1-12)"
// @Param payload body models.MonthAttendance true "Statuses by student then date"
// @Success 204 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/{year}/{month} [put]
func (h *AttendanceHandler) SaveMonth(c *gin.Context) {
	year, month, err := monthParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var data models.MonthAttendance
	if err := c.ShouldBindJSON(&data); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid attendance payload"))
		return
	}
	if err := h.store.SaveMonthAttendance(c.Request.Context(), year, month, data); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export renders the month sheet as csv or pdf.
// @Summary Export month attendance
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param year path int true "Year"
// @Param month path int true "Month (1-12)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /attendance/{year}/{month}/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	year, month, err := monthParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.ExportMonth(c.Request.Context(), year, month, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+file.Filename+"\"")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// StudentHistory returns one student's attendance across all months.
// @Summary Student attendance history
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *AttendanceHandler) StudentHistory(c *gin.Context) {
	history, err := h.store.StudentAttendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history)
}

func monthParams(c *gin.Context) (int, time.Month, error) {
	year, yerr := strconv.Atoi(c.Param("year"))
	month, merr := strconv.Atoi(c.Param("month"))
	if yerr != nil || merr != nil {
		return 0, 0, appErrors.Clone(appErrors.ErrInvalidInput, "الشهر غير صالح")
	}
	if err := models.ValidateMonth(year, time.Month(month)); err != nil {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "الشهر غير صالح")
	}
	return year, time.Month(month), nil
}
