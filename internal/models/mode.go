package models

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects the active storage backend.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeCloud Mode = "cloud"
)

// ParseMode validates a mode name. "firebase" is accepted for stores written by older versions.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeLocal):
		return ModeLocal, nil
	case string(ModeCloud), "firebase":
		return ModeCloud, nil
	default:
		return "", fmt.Errorf("invalid storage mode %q", raw)
	}
}

// Settings is the free-form admin settings document.
type Settings map[string]interface{}

// StorageStatus describes the adapter for operators and the UI.
type StorageStatus struct {
	Mode             Mode       `json:"mode"`
	CloudConfigured  bool       `json:"cloudConfigured"`
	ConnectionFailed bool       `json:"connectionFailed"`
	LastWarning      string     `json:"lastWarning,omitempty"`
	LastWarningAt    *time.Time `json:"lastWarningAt,omitempty"`
}

// SetModeRequest switches the active backend.
type SetModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}
