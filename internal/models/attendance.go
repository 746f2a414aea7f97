package models

import (
	"fmt"
	"strings"
	"time"
)

// AttendanceStatus is the state of one attendance cell.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
	// AttendanceUnset is never stored: a missing date means "not recorded".
	AttendanceUnset AttendanceStatus = "unset"
)

// Recorded reports whether the status is one of the three stored values.
func (s AttendanceStatus) Recorded() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceExcused:
		return true
	default:
		return false
	}
}

// Next cycles the way the attendance grid toggles a cell: unset, present, absent, excused.
func (s AttendanceStatus) Next() AttendanceStatus {
	switch s {
	case AttendancePresent:
		return AttendanceAbsent
	case AttendanceAbsent:
		return AttendanceExcused
	case AttendanceExcused:
		return AttendanceUnset
	default:
		return AttendancePresent
	}
}

// DateLayout is the attendance day key format.
const DateLayout = "2006-01-02"

// DayStatuses maps YYYY-MM-DD to a status.
type DayStatuses map[string]AttendanceStatus

// MonthAttendance maps a student id to that student's days within one month.
type MonthAttendance map[string]DayStatuses

// StudentAttendance maps a month key to one student's days in that month.
type StudentAttendance map[string]DayStatuses

// AttendanceBook is every stored month keyed by month key.
type AttendanceBook map[string]MonthAttendance

// MonthKey formats the YYYY-MM key used to index attendance snapshots.
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// ValidateMonth checks a year/month pair.
func ValidateMonth(year int, month time.Month) error {
	if year < 1 || year > 9999 {
		return fmt.Errorf("year %d out of range", year)
	}
	if month < time.January || month > time.December {
		return fmt.Errorf("month %d out of range", int(month))
	}
	return nil
}

// ParseMonthKey splits a YYYY-MM key.
func ParseMonthKey(key string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month key %q", key)
	}
	return t.Year(), t.Month(), nil
}

// Normalize validates a month snapshot for monthKey and drops unset cells. The result is what
// the backends persist.
func (m MonthAttendance) Normalize(monthKey string) (MonthAttendance, error) {
	out := make(MonthAttendance, len(m))
	for studentID, days := range m {
		if strings.TrimSpace(studentID) == "" {
			return nil, fmt.Errorf("empty student id")
		}
		kept := make(DayStatuses, len(days))
		for date, status := range days {
			if _, err := time.Parse(DateLayout, date); err != nil {
				return nil, fmt.Errorf("invalid date %q for student %s", date, studentID)
			}
			if !strings.HasPrefix(date, monthKey+"-") {
				return nil, fmt.Errorf("date %s outside month %s", date, monthKey)
			}
			if status == AttendanceUnset || status == "" {
				continue
			}
			if !status.Recorded() {
				return nil, fmt.Errorf("invalid status %q", status)
			}
			kept[date] = status
		}
		if len(kept) > 0 {
			out[studentID] = kept
		}
	}
	return out, nil
}

// ForStudent collects one student's days across every month in the book.
func (b AttendanceBook) ForStudent(studentID string) StudentAttendance {
	result := make(StudentAttendance)
	for monthKey, month := range b {
		if days, ok := month[studentID]; ok && len(days) > 0 {
			result[monthKey] = days
		}
	}
	return result
}
