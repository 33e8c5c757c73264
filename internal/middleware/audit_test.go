package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/services"
)

type memoryRecorder struct {
	mu      sync.Mutex
	entries []services.AuditEntry
}

func (m *memoryRecorder) Record(_ context.Context, entry services.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func TestAuditLog_RecordsWrites(t *testing.T) {
	rec := &memoryRecorder{}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserID, uint(7))
		c.Set(ContextEmail, "owner@example.com")
		c.Next()
	})
	router.Use(AuditLog(rec))
	router.POST("/api/boards/:id/add-member", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	router.GET("/api/boards", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/boards/1/add-member", strings.NewReader(`{"email":"m@example.com"}`))
	router.ServeHTTP(w, req)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/boards", nil)
	router.ServeHTTP(w, req)

	if len(rec.entries) != 1 {
		t.Fatalf("recorded %d entries, expected 1", len(rec.entries))
	}
	e := rec.entries[0]
	if e.Module != "Boards" || e.Action != "Add Member" {
		t.Errorf("module/action = %q/%q", e.Module, e.Action)
	}
	if e.UserID == nil || *e.UserID != 7 {
		t.Errorf("UserID = %v, expected 7", e.UserID)
	}
	if !strings.Contains(e.Message, "owner@example.com POST /api/boards/1/add-member") {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestAuditLog_BodyStillReadable(t *testing.T) {
	router := gin.New()
	router.Use(AuditLog(&memoryRecorder{}))
	router.POST("/api/login", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(200, body)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/login", strings.NewReader(`{"email":"a@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "a@example.com") {
		t.Errorf("handler could not read body: %d %s", w.Code, w.Body.String())
	}
}

func TestParseRouteInfo(t *testing.T) {
	tests := []struct {
		path   string
		method string
		module string
		action string
	}{
		{"/api/boards", "POST", "Boards", "Create"},
		{"/api/boards/:id", "PATCH", "Boards", "Update"},
		{"/api/tasks/:id/comments/:comment_id", "DELETE", "Tasks", "Delete"},
		{"/api/invitations/:token/accept", "POST", "Invitations", "Accept"},
		{"/api/token/refresh", "POST", "Token", "Refresh"},
		{"", "POST", "Unknown", "Create"},
	}

	for _, tt := range tests {
		module, action := parseRouteInfo(tt.path, tt.method)
		if module != tt.module || action != tt.action {
			t.Errorf("parseRouteInfo(%q, %q) = %q, %q, expected %q, %q", tt.path, tt.method, module, action, tt.module, tt.action)
		}
	}
}

func TestMaskSensitiveFields(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		leaks   []string
		survive []string
	}{
		{
			name:    "flat",
			body:    `{"email":"a@example.com","password":"hunter2","repeated_password": "hunter2"}`,
			leaks:   []string{"hunter2"},
			survive: []string{"a@example.com"},
		},
		{
			name:    "escaped quote",
			body:    `{"password":"abc\"def-tail","email":"a@example.com"}`,
			leaks:   []string{"abc", "def-tail"},
			survive: []string{"a@example.com"},
		},
		{
			name:    "nested and mixed case",
			body:    `{"user":{"Password":"p4ss"},"items":[{"refresh_token":"r-123"}],"title":"T"}`,
			leaks:   []string{"p4ss", "r-123"},
			survive: []string{`"title":"T"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masked, err := maskSensitiveFields([]byte(tt.body))
			if err != nil {
				t.Fatalf("maskSensitiveFields() error = %v", err)
			}
			for _, secret := range tt.leaks {
				if strings.Contains(masked, secret) {
					t.Errorf("%q leaked: %s", secret, masked)
				}
			}
			for _, keep := range tt.survive {
				if !strings.Contains(masked, keep) {
					t.Errorf("%q was masked: %s", keep, masked)
				}
			}
		})
	}
}

func TestAuditBody(t *testing.T) {
	if got := auditBody(nil); got != "" {
		t.Errorf("auditBody(nil) = %q", got)
	}
	if got := auditBody([]byte("password=hunter2")); strings.Contains(got, "hunter2") {
		t.Errorf("non-JSON body leaked: %q", got)
	}
	long := `{"title":"` + strings.Repeat("a", maxAuditBody) + `"}`
	if got := auditBody([]byte(long)); !strings.HasSuffix(got, "...[truncated]") {
		t.Errorf("long body not truncated: %d bytes", len(got))
	}
}

func TestAuditLog_LargeBodyStillReadable(t *testing.T) {
	rec := &memoryRecorder{}
	router := gin.New()
	router.Use(AuditLog(rec))
	router.POST("/api/tasks", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(201, gin.H{"length": len(body["description"])})
	})

	size := maxAuditCapture * 2
	payload := `{"description":"` + strings.Repeat("x", size) + `","password":"hunter2"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/tasks", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), fmt.Sprintf(`"length":%d`, size)) {
		t.Fatalf("handler got a short body: %d %s", w.Code, w.Body.String())
	}
	if len(rec.entries) != 1 {
		t.Fatalf("entries = %d, expected 1", len(rec.entries))
	}
	extra, _ := rec.entries[0].Extra.(map[string]interface{})
	body, _ := extra["body"].(string)
	if body != "[body omitted: too large]" {
		t.Errorf("audit body = %.80q, expected it omitted", body)
	}
}
