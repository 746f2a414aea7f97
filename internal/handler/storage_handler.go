package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/response"
)

type storageController interface {
	Status() models.StorageStatus
	SetMode(ctx context.Context, raw string) (models.Mode, error)
	Init(ctx context.Context) error
	CheckConnectivity(ctx context.Context) bool
}

// StorageHandler exposes the storage mode and connectivity state.
type StorageHandler struct {
	storage storageController
}

// NewStorageHandler constructs the handler.
func NewStorageHandler(storage storageController) *StorageHandler {
	return &StorageHandler{storage: storage}
}

// Status reports the active mode and the last connectivity warning.
// @Summary Storage status
// @Tags Storage
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /storage/status [get]
func (h *StorageHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.storage.Status())
}

// SetMode persists the requested mode and re-initializes storage. A cloud mode that cannot be
// reached ends up as local; the returned status shows which mode is active.
// @Summary Switch storage mode
// @Tags Storage
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.SetModeRequest true "Mode"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /storage/mode [put]
func (h *StorageHandler) SetMode(c *gin.Context) {
	var req models.SetModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidMode.Code, appErrors.ErrInvalidMode.Status, appErrors.ErrInvalidMode.Message))
		return
	}
	ctx := c.Request.Context()
	if _, err := h.storage.SetMode(ctx, req.Mode); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.storage.Init(ctx); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.storage.Status())
}

// Check runs a connectivity probe now.
// @Summary Probe cloud connectivity
// @Tags Storage
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /storage/check [post]
func (h *StorageHandler) Check(c *gin.Context) {
	online := h.storage.CheckConnectivity(c.Request.Context())
	response.JSON(c, http.StatusOK, h.storage.Status(), map[string]interface{}{"cloudReachable": online})
}
