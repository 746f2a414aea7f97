package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sms-storage/internal/models"
	appErrors "github.com/noah-isme/sms-storage/pkg/errors"
)

type authStore interface {
	Login(ctx context.Context, id, password string) (*models.LoginResult, error)
	AdminLogin(ctx context.Context, password string) (*models.AdminLoginResult, error)
	Logout(ctx context.Context) error
	AdminLogout(ctx context.Context) error
	GetStudent(ctx context.Context, id string) (*models.Student, error)
	VerifyAdminPassword(ctx context.Context, password string) error
	ChangeAdminPassword(ctx context.Context, newPassword string) error
	Mode() models.Mode
}

// AuthConfig defines how access tokens are signed.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

// AuthService issues a signed access token per client on top of the storage logins. The
// storage layer keeps its own process-wide session flags; HTTP authorization only trusts tokens.
type AuthService struct {
	store  authStore
	logger *zap.Logger
	config AuthConfig
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(store authStore, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 12 * time.Hour
	}
	return &AuthService{
		store:   store,
		logger:  logger,
		config:  config,
		now:     func() time.Time { return time.Now().UTC() },
		revoked: make(map[string]time.Time),
	}
}

// Login authenticates a student and returns a student token.
func (s *AuthService) Login(ctx context.Context, id, password string) (*models.AuthResponse, error) {
	res, err := s.store.Login(ctx, id, password)
	if err != nil {
		return nil, err
	}
	token, err := s.generateAccessToken(res.User.ID, models.RoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, "failed to create access token")
	}
	user := res.User.Public()
	return &models.AuthResponse{
		AccessToken:        token,
		ExpiresIn:          int64(s.config.AccessTokenExpiry.Seconds()),
		Role:               models.RoleStudent,
		User:               &user,
		UsedOfflineStorage: res.UsedOfflineStorage,
		Notice:             res.Notice,
	}, nil
}

// AdminLogin authenticates the administrator and returns an admin token.
func (s *AuthService) AdminLogin(ctx context.Context, password string) (*models.AuthResponse, error) {
	res, err := s.store.AdminLogin(ctx, password)
	if err != nil {
		return nil, err
	}
	token, err := s.generateAccessToken(models.AdminSubject, models.RoleAdmin)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrBackend.Code, appErrors.ErrBackend.Status, "failed to create access token")
	}
	return &models.AuthResponse{
		AccessToken:        token,
		ExpiresIn:          int64(s.config.AccessTokenExpiry.Seconds()),
		Role:               models.RoleAdmin,
		UsedOfflineStorage: res.UsedOfflineStorage,
		Notice:             res.Notice,
	}, nil
}

// Logout revokes the presented token and clears the matching storage session flag.
func (s *AuthService) Logout(ctx context.Context, claims *models.TokenClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	s.revoke(claims)
	if claims.Role == models.RoleAdmin {
		return s.store.AdminLogout(ctx)
	}
	return s.store.Logout(ctx)
}

// Session describes the principal behind claims.
func (s *AuthService) Session(ctx context.Context, claims *models.TokenClaims) (models.SessionStatus, error) {
	if claims == nil {
		return models.SessionStatus{}, nil
	}
	if claims.Role == models.RoleAdmin {
		return models.SessionStatus{IsAdmin: true}, nil
	}
	student, err := s.store.GetStudent(ctx, claims.Subject)
	if err != nil {
		if appErrors.HasCode(err, appErrors.CodeNotFound) {
			return models.SessionStatus{}, appErrors.Clone(appErrors.ErrUnauthorized, "")
		}
		return models.SessionStatus{}, err
	}
	user := student.Public()
	return models.SessionStatus{LoggedIn: true, CurrentUser: &user}, nil
}

// ChangeAdminPassword verifies the current password before storing the new one.
func (s *AuthService) ChangeAdminPassword(ctx context.Context, current, next string) error {
	if err := s.store.VerifyAdminPassword(ctx, current); err != nil {
		return err
	}
	return s.store.ChangeAdminPassword(ctx, next)
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if s.isRevoked(claims.ID) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token revoked")
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(subject string, role models.Role) (string, error) {
	issuedAt := s.now()
	claims := &models.TokenClaims{
		Role: role,
		Mode: s.store.Mode(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) revoke(claims *models.TokenClaims) {
	if claims.ID == "" {
		return
	}
	expires := s.now().Add(s.config.AccessTokenExpiry)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.ID] = expires
	s.logger.Debug("access token revoked", zap.String("subject", claims.Subject))
}

func (s *AuthService) isRevoked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[id]
	return ok
}
