package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

const rosterColumns = 5

// RosterRowError explains why one input line was skipped.
type RosterRowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// RosterImportResult combines parse rejections with the storage outcome.
type RosterImportResult struct {
	Rejected []RosterRowError  `json:"rejected"`
	Result   *models.BulkResult `json:"result"`
}

type bulkCreator interface {
	CreateBulk(ctx context.Context, students []models.Student) (*models.BulkResult, error)
}

// RosterService imports student lists from CSV or XLSX files.
type RosterService struct {
	students bulkCreator
	logger   *zap.Logger
}

// NewRosterService constructs a RosterService.
func NewRosterService(students bulkCreator, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{students: students, logger: logger}
}

// Import parses the file and adds every well-formed row.
func (s *RosterService) Import(ctx context.Context, filename string, r io.Reader) (*RosterImportResult, error) {
	students, rejected, err := ParseRoster(filename, r)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "لم يتم العثور على بيانات صالحة في الملف")
	}
	result, err := s.students.CreateBulk(ctx, students)
	if err != nil {
		return nil, err
	}
	s.logger.Info("roster imported",
		zap.String("file", filename),
		zap.Int("rows", len(students)),
		zap.Int("rejected", len(rejected)),
		zap.Int("success", result.SuccessCount),
	)
	return &RosterImportResult{Rejected: rejected, Result: result}, nil
}

// ParseRoster reads id,name,grade,group,password rows. XLSX files are read from their first
// sheet; anything else is treated as CSV. A leading header row is skipped.
func ParseRoster(filename string, r io.Reader) ([]models.Student, []RosterRowError, error) {
	var rows []rosterRow
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		rows, err = readWorkbookRows(r)
	default:
		rows, err = readCSVRows(r)
	}
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "تعذر قراءة الملف")
	}

	students := make([]models.Student, 0, len(rows))
	rejected := []RosterRowError{}
	for _, entry := range rows {
		line, row := entry.line, entry.cells
		if entry.reason != "" {
			rejected = append(rejected, RosterRowError{Line: line, Reason: entry.reason})
			continue
		}
		if blankRow(row) {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "id") {
			continue
		}
		if len(row) < rosterColumns {
			rejected = append(rejected, RosterRowError{Line: line, Reason: fmt.Sprintf("expected %d fields, got %d", rosterColumns, len(row))})
			continue
		}
		st := models.Student{
			ID:       strings.TrimSpace(row[0]),
			Name:     strings.TrimSpace(row[1]),
			Grade:    models.Grade(strings.TrimSpace(row[2])),
			Group:    models.Group(strings.TrimSpace(row[3])),
			Password: strings.TrimSpace(row[4]),
		}
		if missing := missingRosterField(st); missing != "" {
			rejected = append(rejected, RosterRowError{Line: line, Reason: missing + " is required"})
			continue
		}
		students = append(students, st)
	}
	return students, rejected, nil
}

type rosterRow struct {
	line   int
	cells  []string
	reason string
}

func readCSVRows(r io.Reader) ([]rosterRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	// Hand-typed rosters often carry a stray quote inside a name.
	reader.LazyQuotes = true
	var rows []rosterRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			rows = append(rows, rosterRow{line: parseErr.StartLine, reason: parseErr.Err.Error()})
			continue
		}
		if err != nil {
			return nil, err
		}
		// encoding/csv skips blank lines, so take the line from the reader.
		line, _ := reader.FieldPos(0)
		rows = append(rows, rosterRow{line: line, cells: record})
	}
	return rows, nil
}

func readWorkbookRows(r io.Reader) ([]rosterRow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	sheet := file.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("no worksheet found")
	}
	cells, err := file.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	rows := make([]rosterRow, 0, len(cells))
	for i, row := range cells {
		rows = append(rows, rosterRow{line: i + 1, cells: row})
	}
	return rows, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func missingRosterField(st models.Student) string {
	switch {
	case st.ID == "":
		return "id"
	case st.Name == "":
		return "name"
	case st.Grade == "":
		return "grade"
	case st.Group == "":
		return "group"
	case st.Password == "":
		return "password"
	}
	return ""
}
