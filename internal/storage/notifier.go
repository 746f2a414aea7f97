package storage

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Warning is a user-visible storage notice.
type Warning struct {
	Message string
	At      time.Time
	Err     error
}

// Notifier receives user-visible warnings.
type Notifier interface {
	Notify(ctx context.Context, w Warning)
}

// LogNotifier writes warnings to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, w Warning) {
	fields := []zap.Field{zap.String("message", w.Message), zap.Time("at", w.At)}
	if w.Err != nil {
		fields = append(fields, zap.Error(w.Err))
	}
	n.logger.Warn("storage warning", fields...)
}
