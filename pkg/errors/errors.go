package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed storage error carrying a display message and HTTP awareness.
type Error struct {
	Code            string      `json:"code"`
	Message         string      `json:"message"`
	Status          int         `json:"status"`
	ConnectionIssue bool        `json:"connectionIssue,omitempty"`
	Details         interface{} `json:"details,omitempty"`
	Err             error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so sentinel comparisons survive Clone and Wrap.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Error codes.
const (
	CodeDuplicateID        = "DUPLICATE_ID"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidMode        = "INVALID_MODE"
	CodeConnectionIssue    = "CONNECTION_ISSUE"
	CodeBackendError       = "BACKEND_ERROR"
	CodeForbidden          = "FORBIDDEN"
	CodeUnauthorized       = "UNAUTHORIZED"
)

// Predefined errors. Messages are the Arabic strings rendered by the UI.
var (
	ErrDuplicateID        = New(CodeDuplicateID, http.StatusConflict, "معرف الطالب موجود بالفعل")
	ErrNotFound           = New(CodeNotFound, http.StatusNotFound, "لم يتم العثور على الطالب")
	ErrInvalidInput       = New(CodeInvalidInput, http.StatusBadRequest, "بيانات غير صالحة")
	ErrInvalidCredentials = New(CodeInvalidCredentials, http.StatusUnauthorized, "معرف الطالب أو كلمة المرور غير صحيحة")
	ErrInvalidMode        = New(CodeInvalidMode, http.StatusBadRequest, "وضع التخزين غير صالح")
	ErrConnectionIssue    = &Error{Code: CodeConnectionIssue, Status: http.StatusServiceUnavailable, Message: "تعذر الاتصال بقاعدة البيانات", ConnectionIssue: true}
	ErrBackend            = New(CodeBackendError, http.StatusInternalServerError, "حدث خطأ غير متوقع")
	ErrForbidden          = New(CodeForbidden, http.StatusForbidden, "غير مصرح لك بهذا الإجراء")
	ErrUnauthorized       = New(CodeUnauthorized, http.StatusUnauthorized, "يجب تسجيل الدخول أولاً")
)

// FromError normalises any error into an *Error. Unknown failures become BACKEND_ERROR.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrBackend.Code, ErrBackend.Status, ErrBackend.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Connection wraps a transport failure as a retryable CONNECTION_ISSUE.
func Connection(err error) *Error {
	clone := Clone(ErrConnectionIssue, "")
	clone.Err = err
	return clone
}

// IsConnectionIssue reports whether err signals a cloud connectivity failure.
func IsConnectionIssue(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.ConnectionIssue || e.Code == CodeConnectionIssue
	}
	return false
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
