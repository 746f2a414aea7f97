package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/export"
)

type stubAttendanceSource struct {
	month    models.MonthAttendance
	students []models.Student
	err      error
}

func (s stubAttendanceSource) MonthAttendance(context.Context, int, time.Month) (models.MonthAttendance, error) {
	return s.month, s.err
}

func (s stubAttendanceSource) ListStudents(context.Context) (*models.StudentList, error) {
	if s.err != nil {
		return nil, s.err
	}
	return models.NewStudentList(s.students), nil
}

type capturingPDF struct {
	title string
	data  export.Dataset
}

func (c *capturingPDF) Render(data export.Dataset, title string) ([]byte, error) {
	c.title = title
	c.data = data
	return []byte("%PDF-stub"), nil
}

func TestBuildMonthDataset(t *testing.T) {
	students := []models.Student{{ID: "S1", Name: "Ahmed", Index: 1}}
	attendance := models.MonthAttendance{
		"S1": {"2024-02-01": models.AttendancePresent, "2024-02-29": models.AttendanceAbsent, "2024-03-01": models.AttendancePresent},
		"X9": {"2024-02-02": models.AttendanceExcused},
	}

	data := BuildMonthDataset(students, attendance, 2024, time.February)
	require.Len(t, data.Headers, 2+29+3)
	assert.Equal(t, "29", data.Headers[30])
	require.Len(t, data.Rows, 2)

	row := data.Rows[0]
	assert.Equal(t, "P", row["01"])
	assert.Equal(t, "A", row["29"])
	assert.Equal(t, "1", row["Present"])
	assert.Equal(t, "1", row["Absent"])
	assert.Equal(t, "0", row["Excused"])

	orphan := data.Rows[1]
	assert.Equal(t, "X9", orphan["ID"])
	assert.Equal(t, "E", orphan["02"])
}

func TestExportMonthCSV(t *testing.T) {
	source := stubAttendanceSource{
		month:    models.MonthAttendance{"S1": {"2025-03-04": models.AttendancePresent}},
		students: []models.Student{{ID: "S1", Name: "Ahmed"}},
	}
	svc := NewExportService(source, nil, nil, nil)

	file, err := svc.ExportMonth(context.Background(), 2025, time.March, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "attendance-2025-03.csv", file.Filename)
	assert.True(t, strings.HasPrefix(file.ContentType, "text/csv"))
	body := string(bytes.TrimPrefix(file.Data, []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "S1,Ahmed,,,,P,"))
}

func TestExportMonthPDF(t *testing.T) {
	pdf := &capturingPDF{}
	svc := NewExportService(stubAttendanceSource{}, nil, nil, pdf)

	file, err := svc.ExportMonth(context.Background(), 2025, time.April, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, "Attendance 2025-04", pdf.title)
	assert.Len(t, pdf.data.Headers, 2+30+3)
}

func TestExportMonthErrors(t *testing.T) {
	svc := NewExportService(stubAttendanceSource{}, nil, nil, nil)
	_, err := svc.ExportMonth(context.Background(), 2025, 13, ExportFormatCSV)
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidInput))

	failing := NewExportService(stubAttendanceSource{err: appErrors.Connection(errors.New("down"))}, nil, nil, nil)
	_, err = failing.ExportMonth(context.Background(), 2025, time.May, ExportFormatCSV)
	assert.True(t, appErrors.IsConnectionIssue(err))
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, f)

	f, err = ParseExportFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatPDF, f)

	_, err = ParseExportFormat("xls")
	assert.True(t, appErrors.HasCode(err, appErrors.CodeInvalidInput))
}
