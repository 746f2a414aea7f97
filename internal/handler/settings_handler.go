package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/response"
)

type settingsStore interface {
	Settings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, patch models.Settings) (models.Settings, error)
}

// SettingsHandler reads and merges application settings.
type SettingsHandler struct {
	store settingsStore
}

// NewSettingsHandler constructs the handler.
func NewSettingsHandler(store settingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// Get godoc
// @Summary Get settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.store.Settings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings)
}

// Update godoc
// @Summary Merge settings
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.Settings true "Settings patch"
// @Success 200 {object} response.Envelope
// @Router /settings [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var patch models.Settings
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid settings payload"))
		return
	}
	settings, err := h.store.UpdateSettings(c.Request.Context(), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings)
}
