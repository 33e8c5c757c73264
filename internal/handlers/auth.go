package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/middleware"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registrationResponse struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Fullname     string `json:"fullname"`
	Token        string `json:"token"`
	UserID       uint   `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

type loginResponse struct {
	Token        string `json:"token"`
	Fullname     string `json:"fullname"`
	Email        string `json:"email"`
	UserID       uint   `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// Register creates an account and returns its first token pair
// POST /api/registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.authService.Register(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, registrationResponse{
		ID:           res.User.ID,
		Email:        res.User.Email,
		Fullname:     res.User.DisplayName(),
		Token:        res.AccessToken,
		UserID:       res.User.ID,
		RefreshToken: res.RefreshToken,
	})
}

// Login handles user login
// POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, loginResponse{
		Token:        res.AccessToken,
		Fullname:     res.User.DisplayName(),
		Email:        res.User.Email,
		UserID:       res.User.ID,
		RefreshToken: res.RefreshToken,
	})
}

// Refresh rotates a refresh token
// POST /api/token/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req services.RefreshRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, refreshResponse{Token: res.AccessToken, RefreshToken: res.RefreshToken})
}

// Logout revokes the caller's refresh token. Access tokens expire on their own.
// POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.authService.RevokeRefreshToken(c.Request.Context(), middleware.GetUserID(c), req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// EmailCheck resolves an email to a user
// GET /api/email-check?email=
func (h *AuthHandler) EmailCheck(c *gin.Context) {
	view, err := h.authService.LookupByEmail(c.Request.Context(), c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}
