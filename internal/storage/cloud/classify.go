package cloud

import (
	"context"
	"errors"
	"net"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

// connectionKeywords are matched against lower-cased error text when the error carries no
// structured code.
var connectionKeywords = []string{
	"network", "offline", "unavailable", "timeout",
	"connection", "failed to fetch", "cors", "blocked",
	"permission denied", "unauthorized", "not allowed",
	"access", "firewall", "proxy",
}

// IsConnectionError reports whether err means the store could not be reached or refused us,
// as opposed to a domain failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDocumentNotFound) || errors.Is(err, ErrDocumentExists) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.PermissionDenied,
			codes.Unauthenticated, codes.Canceled, codes.ResourceExhausted:
			return true
		default:
			return false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, keyword := range connectionKeywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// classify converts a driver error into the storage error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*appErrors.Error); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, appErrors.ErrNotFound.Message)
	case errors.Is(err, ErrDocumentExists):
		return appErrors.Wrap(err, appErrors.ErrDuplicateID.Code, appErrors.ErrDuplicateID.Status, appErrors.ErrDuplicateID.Message)
	case IsConnectionError(err):
		return appErrors.Connection(err)
	default:
		return appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, appErrors.ErrBackend.Message)
	}
}

// IsNotFound reports whether err is a missing-document error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}
