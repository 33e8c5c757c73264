package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/utils"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

const defaultRefreshExpireHours = 720

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{
		db:        db,
		jwtConfig: jwtCfg,
	}
}

type RegisterRequest struct {
	Fullname         string `json:"fullname" binding:"required,max=255"`
	Email            string `json:"email" binding:"required,email,max=255"`
	Password         string `json:"password" binding:"required"`
	RepeatedPassword string `json:"repeated_password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LoginResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
	User            *models.User
}

type RefreshResult struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
}

// Register creates an account and signs the new user in.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest, clientIP, userAgent string) (*LoginResult, error) {
	if req.Password != req.RepeatedPassword {
		return nil, response.NewValidation("repeated_password", "Passwords do not match")
	}
	fullname := strings.TrimSpace(req.Fullname)
	if fullname == "" {
		return nil, response.NewValidation("fullname", msgBlank)
	}
	email := models.NormalizeEmail(req.Email)

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, response.NewValidation("email", "Email is already registered")
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Email:    email,
		Username: email,
		Password: hashedPassword,
		Fullname: fullname,
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, response.NewValidation("email", "Email is already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(db, &user, clientIP, userAgent)
}

// Login authenticates by email and password. Unknown email and wrong password
// produce the same error.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.Where("email = ?", models.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewBadRequest("Invalid email or password")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, response.NewBadRequest("Invalid email or password")
	}
	if !user.IsActive {
		return nil, response.NewBadRequest("User account is disabled")
	}

	result, err := s.issue(db, &user, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now
	return result, nil
}

func (s *AuthService) issue(db *gorm.DB, user *models.User, clientIP, userAgent string) (*LoginResult, error) {
	accessHours := s.accessTokenExpireHours()
	token, err := utils.GenerateToken(user.ID, user.Email, accessHours)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, refreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpireAt := time.Now().Add(time.Duration(s.refreshTokenExpireHours()) * time.Hour)
	refreshRecord := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   refreshExpireAt,
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := db.Create(&refreshRecord).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &LoginResult{
		AccessToken:     token,
		AccessExpireAt:  time.Now().Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: refreshExpireAt,
		User:            user,
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token and rotates
// the refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, clientIP, userAgent string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, response.NewUnauthorized("refresh token required")
	}
	db := s.db.WithContext(ctx)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("invalid refresh token")
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	if stored.RevokedAt != nil {
		return nil, response.NewUnauthorized("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, response.NewUnauthorized("refresh token expired")
	}

	var user models.User
	if err := db.First(&user, stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("user not found")
		}
		return nil, fmt.Errorf("find user %d: %w", stored.UserID, err)
	}
	if !user.IsActive {
		return nil, response.NewUnauthorized("user is disabled")
	}

	accessHours := s.accessTokenExpireHours()
	newAccessToken, err := utils.GenerateToken(user.ID, user.Email, accessHours)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	newRefreshToken, newRefreshHash, err := generateRefreshToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newRefresh := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   newRefreshHash,
		ExpiresAt:   now.Add(time.Duration(s.refreshTokenExpireHours()) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&newRefresh).Error; err != nil {
			return err
		}
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"replaced_by_token_id": newRefresh.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return response.NewUnauthorized("refresh token revoked")
		}
		return nil
	}); err != nil {
		var appErr *response.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return &RefreshResult{
		AccessToken:     newAccessToken,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    newRefreshToken,
		RefreshExpireAt: newRefresh.ExpiresAt,
	}, nil
}

// RevokeRefreshToken revokes the token if it belongs to userID. Unknown
// tokens are ignored.
func (s *AuthService) RevokeRefreshToken(ctx context.Context, userID uint, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	if err := s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND user_id = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken), userID).
		Update("revoked_at", time.Now()).Error; err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// PurgeRefreshTokens deletes refresh tokens that are expired or were revoked.
func (s *AuthService) PurgeRefreshTokens(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ? OR revoked_at IS NOT NULL", time.Now()).
		Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *AuthService) accessTokenExpireHours() int {
	if s.jwtConfig == nil || s.jwtConfig.ExpireHour <= 0 {
		return 24
	}
	return s.jwtConfig.ExpireHour
}

func (s *AuthService) refreshTokenExpireHours() int {
	if s.jwtConfig == nil || s.jwtConfig.RefreshExpireHour <= 0 {
		return defaultRefreshExpireHours
	}
	return s.jwtConfig.RefreshExpireHour
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	token = hex.EncodeToString(randomBytes)
	tokenHash = hashRefreshToken(token)
	return token, tokenHash, nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// LookupByEmail resolves an email to the member view of an existing user.
func (s *AuthService) LookupByEmail(ctx context.Context, email string) (*MemberView, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, response.NewValidation("email", msgRequired)
	}
	user, err := findUserByEmail(s.db.WithContext(ctx), email)
	if err != nil {
		return nil, err
	}
	return NewMemberView(user), nil
}

// CreateStaffIfNotExists seeds a staff superuser with the given credentials
func (s *AuthService) CreateStaffIfNotExists(ctx context.Context, email, password string) error {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Email:       email,
		Username:    email,
		Password:    hashedPassword,
		Fullname:    "Administrator",
		IsStaff:     true,
		IsSuperuser: true,
		IsActive:    true,
	}
	return db.Create(&admin).Error
}
