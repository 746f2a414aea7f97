package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/export"
)

type attendanceSource interface {
	MonthAttendance(ctx context.Context, year int, month time.Month) (models.MonthAttendance, error)
	ListStudents(ctx context.Context) (*models.StudentList, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ParseExportFormat accepts csv or pdf, defaulting to csv.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ExportFormatCSV):
		return ExportFormatCSV, nil
	case string(ExportFormatPDF):
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// ExportFile is a rendered attendance sheet.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders monthly attendance sheets.
type ExportService struct {
	source attendanceSource
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to pkg/export.
func NewExportService(source attendanceSource, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, logger: logger}
}

// ExportMonth renders the student x day grid for one month.
func (s *ExportService) ExportMonth(ctx context.Context, year int, month time.Month, format ExportFormat) (*ExportFile, error) {
	if err := models.ValidateMonth(year, month); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "الشهر غير صالح")
	}
	attendance, err := s.source.MonthAttendance(ctx, year, month)
	if err != nil {
		return nil, err
	}
	list, err := s.source.ListStudents(ctx)
	if err != nil {
		return nil, err
	}

	dataset := BuildMonthDataset(list.Students, attendance, year, month)
	key := models.MonthKey(year, month)
	base := "attendance-" + key

	var file *ExportFile
	switch format {
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, "Attendance "+key)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, "failed to render pdf")
		}
		file = &ExportFile{Filename: base + ".pdf", ContentType: "application/pdf", Data: data}
	default:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, "failed to render csv")
		}
		file = &ExportFile{Filename: base + ".csv", ContentType: "text/csv; charset=utf-8", Data: data}
	}
	s.logger.Info("attendance exported", zap.String("month", key), zap.String("format", string(format)), zap.Int("rows", len(dataset.Rows)))
	return file, nil
}

var statusCodes = map[models.AttendanceStatus]string{
	models.AttendancePresent: "P",
	models.AttendanceAbsent:  "A",
	models.AttendanceExcused: "E",
}

// BuildMonthDataset lays out one row per student with a column per day and per-status totals.
// Students with attendance but no roster entry are appended by id.
func BuildMonthDataset(students []models.Student, attendance models.MonthAttendance, year int, month time.Month) export.Dataset {
	days := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	headers := []string{"ID", "Name"}
	for d := 1; d <= days; d++ {
		headers = append(headers, fmt.Sprintf("%02d", d))
	}
	headers = append(headers, "Present", "Absent", "Excused")

	seen := make(map[string]struct{}, len(students))
	rows := make([]map[string]string, 0, len(students))
	addRow := func(id, name string) {
		row := map[string]string{"ID": id, "Name": name}
		totals := map[models.AttendanceStatus]int{}
		for date, status := range attendance[id] {
			t, err := time.Parse(models.DateLayout, date)
			if err != nil || t.Year() != year || t.Month() != month {
				continue
			}
			code, ok := statusCodes[status]
			if !ok {
				continue
			}
			row[fmt.Sprintf("%02d", t.Day())] = code
			totals[status]++
		}
		row["Present"] = fmt.Sprint(totals[models.AttendancePresent])
		row["Absent"] = fmt.Sprint(totals[models.AttendanceAbsent])
		row["Excused"] = fmt.Sprint(totals[models.AttendanceExcused])
		rows = append(rows, row)
	}

	for _, st := range students {
		seen[st.ID] = struct{}{}
		addRow(st.ID, st.Name)
	}
	var orphans []string
	for id := range attendance {
		if _, ok := seen[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		addRow(id, "")
	}

	return export.Dataset{Headers: headers, Rows: rows, Widths: []float64{22, 45}}
}
