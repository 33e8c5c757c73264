package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/utils"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextUser   = "user"
)

// UserLoader resolves the account behind a verified token.
type UserLoader interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// AuthRequired is a middleware that checks for a valid JWT token and loads
// its user. Tokens of deleted or inactive users are rejected.
func AuthRequired(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "Authentication credentials were not provided.")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := utils.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.Unauthorized(c, "user not found")
				return
			}
			response.Error(c, err)
			c.Abort()
			return
		}
		if !user.IsActive {
			response.Unauthorized(c, "user is disabled")
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextEmail, user.Email)
		c.Set(ContextUser, user)

		c.Next()
	}
}

// StaffRequired lets staff and superusers through. It must run after AuthRequired.
func StaffRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetUser(c)
		if user == nil || !(user.IsStaff || user.IsSuperuser) {
			response.Forbidden(c, "staff access required")
			return
		}
		c.Next()
	}
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		if v, ok := id.(uint); ok {
			return v
		}
	}
	return 0
}

// GetEmail gets the current user's email from context
func GetEmail(c *gin.Context) string {
	return c.GetString(ContextEmail)
}

// GetUser gets the authenticated user from context
func GetUser(c *gin.Context) *models.User {
	if u, exists := c.Get(ContextUser); exists {
		if user, ok := u.(*models.User); ok {
			return user
		}
	}
	return nil
}
