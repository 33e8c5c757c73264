package services

import (
	"testing"

	"github.com/huangang/taskboard/internal/config"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/utils"
	"github.com/huangang/taskboard/pkg/response"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(newTestDB(t), &config.JWTConfig{ExpireHour: 1, RefreshExpireHour: 24})
}

func register(t *testing.T, svc *AuthService, email, password string) *LoginResult {
	t.Helper()
	res, err := svc.Register(ctx, &RegisterRequest{
		Fullname:         "Test User",
		Email:            email,
		Password:         password,
		RepeatedPassword: password,
	}, "127.0.0.1", "go-test")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return res
}

func TestAuthService_Register(t *testing.T) {
	svc := newTestAuthService(t)

	res := register(t, svc, "New@Example.com", "secret123")
	if res.User.Email != "new@example.com" || res.User.Username != "new@example.com" {
		t.Errorf("user = %+v, expected normalized email as username", res.User)
	}
	if res.User.Password == "secret123" {
		t.Error("password must be stored hashed")
	}
	claims, err := utils.ParseToken(res.AccessToken)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.UserID != res.User.ID {
		t.Errorf("claims.UserID = %d, expected %d", claims.UserID, res.User.ID)
	}
	if res.RefreshToken == "" {
		t.Error("refresh token should be issued")
	}
}

func TestAuthService_Register_Errors(t *testing.T) {
	svc := newTestAuthService(t)
	register(t, svc, "taken@example.com", "secret123")

	tests := []struct {
		name  string
		req   RegisterRequest
		field string
	}{
		{"password mismatch", RegisterRequest{Fullname: "A", Email: "a@example.com", Password: "x", RepeatedPassword: "y"}, "repeated_password"},
		{"duplicate email", RegisterRequest{Fullname: "A", Email: "TAKEN@example.com", Password: "x", RepeatedPassword: "x"}, "email"},
		{"blank fullname", RegisterRequest{Fullname: "  ", Email: "b@example.com", Password: "x", RepeatedPassword: "x"}, "fullname"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := svc.Register(ctx, &req, "", "")
			expectAppError(t, err, response.ErrValidation, tt.field)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	svc := newTestAuthService(t)
	register(t, svc, "user@example.com", "secret123")

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  bool
	}{
		{"valid", "user@example.com", "secret123", false},
		{"case-insensitive email", "USER@example.com", "secret123", false},
		{"wrong password", "user@example.com", "nope", true},
		{"unknown email", "ghost@example.com", "secret123", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(ctx, &LoginRequest{Email: tt.email, Password: tt.password}, "", "")
			if tt.wantErr {
				expectAppError(t, err, response.ErrValidation, "")
				return
			}
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if res.AccessToken == "" || res.User.LastLogin == nil {
				t.Errorf("login result = %+v", res)
			}
		})
	}
}

func TestAuthService_Login_Inactive(t *testing.T) {
	svc := newTestAuthService(t)
	res := register(t, svc, "user@example.com", "secret123")
	svc.db.Model(&models.User{}).Where("id = ?", res.User.ID).Update("is_active", false)

	_, err := svc.Login(ctx, &LoginRequest{Email: "user@example.com", Password: "secret123"}, "", "")
	expectAppError(t, err, response.ErrValidation, "")
}

func TestAuthService_RefreshRotates(t *testing.T) {
	svc := newTestAuthService(t)
	res := register(t, svc, "user@example.com", "secret123")

	refreshed, err := svc.Refresh(ctx, res.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.RefreshToken == res.RefreshToken {
		t.Error("refresh token should rotate")
	}

	_, err = svc.Refresh(ctx, res.RefreshToken, "", "")
	expectAppError(t, err, response.ErrUnauthorized, "")

	_, err = svc.Refresh(ctx, "garbage", "", "")
	expectAppError(t, err, response.ErrUnauthorized, "")

	if err := svc.RevokeRefreshToken(ctx, res.User.ID, refreshed.RefreshToken); err != nil {
		t.Fatalf("RevokeRefreshToken() error = %v", err)
	}
	_, err = svc.Refresh(ctx, refreshed.RefreshToken, "", "")
	expectAppError(t, err, response.ErrUnauthorized, "")

	purged, err := svc.PurgeRefreshTokens(ctx)
	if err != nil {
		t.Fatalf("PurgeRefreshTokens() error = %v", err)
	}
	if purged != 2 {
		t.Errorf("PurgeRefreshTokens() = %d, expected 2 revoked tokens", purged)
	}
}

func TestAuthService_LookupByEmail(t *testing.T) {
	svc := newTestAuthService(t)
	res := register(t, svc, "user@example.com", "secret123")

	view, err := svc.LookupByEmail(ctx, " User@Example.com ")
	if err != nil {
		t.Fatalf("LookupByEmail() error = %v", err)
	}
	if view.ID != res.User.ID || view.Fullname != "Test User" {
		t.Errorf("view = %+v", view)
	}

	_, err = svc.LookupByEmail(ctx, "")
	expectAppError(t, err, response.ErrValidation, "email")

	_, err = svc.LookupByEmail(ctx, "ghost@example.com")
	expectAppError(t, err, response.ErrNotFound, "")
}

func TestAuthService_CreateStaffIfNotExists(t *testing.T) {
	svc := newTestAuthService(t)

	for i := 0; i < 2; i++ {
		if err := svc.CreateStaffIfNotExists(ctx, "admin@example.com", "admin-pass"); err != nil {
			t.Fatalf("CreateStaffIfNotExists() error = %v", err)
		}
	}

	var users []models.User
	svc.db.Where("email = ?", "admin@example.com").Find(&users)
	if len(users) != 1 {
		t.Fatalf("staff users = %d, expected 1", len(users))
	}
	if !users[0].IsStaff || !users[0].IsSuperuser {
		t.Errorf("seeded user flags = staff:%v superuser:%v", users[0].IsStaff, users[0].IsSuperuser)
	}
}
