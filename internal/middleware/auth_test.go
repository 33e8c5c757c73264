package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/utils"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

type fakeUsers map[uint]*models.User

func (f fakeUsers) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type failingUsers struct{}

func (failingUsers) GetUserByID(context.Context, uint) (*models.User, error) {
	return nil, errors.New("database is down")
}

var testUsers = fakeUsers{
	1: {ID: 1, Email: "active@example.com", IsActive: true},
	2: {ID: 2, Email: "disabled@example.com", IsActive: false},
	3: {ID: 3, Email: "staff@example.com", IsActive: true, IsStaff: true},
}

func protectedRouter(users UserLoader) *gin.Engine {
	router := gin.New()
	router.Use(AuthRequired(users))
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"user_id": GetUserID(c), "email": GetEmail(c)})
	})
	return router
}

func doGet(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRequired_NoHeader(t *testing.T) {
	w := doGet(protectedRouter(testUsers), "/protected", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	router := protectedRouter(testUsers)

	testCases := []string{
		"InvalidToken",
		"Basic token123",
		"Bearer",
		"Bearer    ",
	}

	for _, authHeader := range testCases {
		w := doGet(router, "/protected", authHeader)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAuthRequired_InvalidToken(t *testing.T) {
	w := doGet(protectedRouter(testUsers), "/protected", "Bearer invalid.jwt.token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_Users(t *testing.T) {
	tests := []struct {
		name     string
		userID   uint
		expected int
	}{
		{"active user", 1, http.StatusOK},
		{"disabled user", 2, http.StatusUnauthorized},
		{"deleted user", 99, http.StatusUnauthorized},
	}

	router := protectedRouter(testUsers)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := utils.GenerateToken(tt.userID, "someone@example.com", 1)
			if err != nil {
				t.Fatalf("GenerateToken() error = %v", err)
			}
			w := doGet(router, "/protected", "Bearer "+token)
			if w.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestAuthRequired_StoreError(t *testing.T) {
	token, _ := utils.GenerateToken(1, "active@example.com", 1)
	w := doGet(protectedRouter(failingUsers{}), "/protected", "Bearer "+token)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestStaffRequired(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired(testUsers), StaffRequired())
	router.GET("/staff", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	regular, _ := utils.GenerateToken(1, "active@example.com", 1)
	staff, _ := utils.GenerateToken(3, "staff@example.com", 1)

	if w := doGet(router, "/staff", "Bearer "+regular); w.Code != http.StatusForbidden {
		t.Errorf("regular user: expected status %d, got %d", http.StatusForbidden, w.Code)
	}
	if w := doGet(router, "/staff", "Bearer "+staff); w.Code != http.StatusOK {
		t.Errorf("staff user: expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestStaffRequired_NoUser(t *testing.T) {
	router := gin.New()
	router.Use(StaffRequired())
	router.GET("/staff", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if w := doGet(router, "/staff", ""); w.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != 0 {
		t.Errorf("expected 0 for missing user_id, got %d", id)
	}

	c.Set(ContextUserID, uint(42))
	if id := GetUserID(c); id != 42 {
		t.Errorf("expected 42, got %d", id)
	}
}

func TestGetUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if u := GetUser(c); u != nil {
		t.Errorf("expected nil for missing user, got %+v", u)
	}

	c.Set(ContextUser, testUsers[1])
	if u := GetUser(c); u == nil || u.ID != 1 {
		t.Errorf("expected user 1, got %+v", u)
	}
}

func TestContextConstants(t *testing.T) {
	if ContextUserID != "user_id" {
		t.Errorf("ContextUserID = %q, expected %q", ContextUserID, "user_id")
	}
}
