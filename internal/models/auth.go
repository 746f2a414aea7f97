package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the kind of principal an access token was issued to.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// AdminSubject is the token subject of the administrator.
const AdminSubject = "admin"

// TokenClaims is the JWT payload of an access token.
type TokenClaims struct {
	Role Role `json:"role"`
	Mode Mode `json:"mode,omitempty"`
	jwt.RegisteredClaims
}

// AuthResponse is returned by both login endpoints.
type AuthResponse struct {
	AccessToken        string         `json:"accessToken"`
	ExpiresIn          int64          `json:"expiresIn"`
	Role               Role           `json:"role"`
	User               *PublicStudent `json:"user,omitempty"`
	UsedOfflineStorage bool           `json:"usedOfflineStorage"`
	Notice             string         `json:"notice,omitempty"`
}

// AdminCredential is the singleton administrator password record.
type AdminCredential struct {
	Password     string    `json:"password"`
	IsHashed     bool      `json:"isHashed"`
	LastModified time.Time `json:"lastModified"`
}

// LoginRequest carries student portal credentials.
type LoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginRequest carries the administrator password.
type AdminLoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// ChangeAdminPasswordRequest replaces the administrator password.
type ChangeAdminPasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6,nefield=CurrentPassword"`
}

// OfflineNotice annotates results served by the local backend after a cloud failure.
const OfflineNotice = "تم تسجيل الدخول باستخدام التخزين المحلي بسبب مشكلة في الاتصال بالخادم"

// LoginResult is the outcome of a successful student login.
type LoginResult struct {
	User               *Student `json:"user"`
	UsedOfflineStorage bool     `json:"usedOfflineStorage"`
	Notice             string   `json:"notice,omitempty"`
}

// AdminLoginResult is the outcome of a successful administrator login.
type AdminLoginResult struct {
	UsedOfflineStorage bool   `json:"usedOfflineStorage"`
	Notice             string `json:"notice,omitempty"`
}

// SessionStatus summarises who is signed in.
type SessionStatus struct {
	LoggedIn    bool           `json:"loggedIn"`
	IsAdmin     bool           `json:"isAdmin"`
	CurrentUser *PublicStudent `json:"currentUser,omitempty"`
}
