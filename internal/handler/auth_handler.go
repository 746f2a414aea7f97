package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sms-storage/internal/middleware"
	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
	"github.com/noah-isme/sms-storage/pkg/response"
)

type authService interface {
	Login(ctx context.Context, id, password string) (*models.AuthResponse, error)
	AdminLogin(ctx context.Context, password string) (*models.AuthResponse, error)
	Logout(ctx context.Context, claims *models.TokenClaims) error
	Session(ctx context.Context, claims *models.TokenClaims) (models.SessionStatus, error)
	ChangeAdminPassword(ctx context.Context, current, next string) error
}

// AuthHandler wires HTTP endpoints to student and administrator sign-in.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Student login
// @Description Authenticate a student by id and password. Falls back to local storage when the cloud is unreachable.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidCredentials.Code, appErrors.ErrInvalidCredentials.Status, "معرف الطالب وكلمة المرور مطلوبان"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// Logout godoc
// @Summary Logout
// @Description Revoke the presented access token
// @Tags Authentication
// @Security BearerAuth
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.service.Logout(c.Request.Context(), middleware.Claims(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Me godoc
// @Summary Current session
// @Description Describe the principal behind the access token. Anonymous callers get an empty session.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	status, err := h.service.Session(c.Request.Context(), middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// AdminLogin godoc
// @Summary Administrator login
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.AdminLoginRequest true "Admin password"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/admin/login [post]
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidCredentials.Code, appErrors.ErrInvalidCredentials.Status, "كلمة المرور مطلوبة"))
		return
	}

	res, err := h.service.AdminLogin(c.Request.Context(), req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// ChangeAdminPassword godoc
// @Summary Change administrator password
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ChangeAdminPasswordRequest true "Passwords"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/admin/password [put]
func (h *AuthHandler) ChangeAdminPassword(c *gin.Context) {
	var req models.ChangeAdminPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid password payload"))
		return
	}

	if err := h.service.ChangeAdminPassword(c.Request.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "تم تغيير كلمة المرور بنجاح"})
}
