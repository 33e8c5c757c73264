package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	handler(c)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func TestSuccess_WritesPayloadUnwrapped(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, map[string]string{"name": "test"})
	})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body["name"] != "test" {
		t.Errorf("expected name 'test', got %q", body["name"])
	}
}

func TestCreated(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Created(c, map[string]int{"id": 1})
	})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
}

func TestNoContent(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		NoContent(c)
		c.Writer.WriteHeaderNow()
	})

	if w.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

func TestTooManyRequests_Aborts(t *testing.T) {
	router := gin.New()
	router.Use(func(c *gin.Context) { TooManyRequests(c, "slow down") })
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "reached") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected status %d, got %d", http.StatusTooManyRequests, w.Code)
	}
	resp := parseResponse(t, w)
	if resp.Code != 429 || resp.Message != "slow down" {
		t.Errorf("unexpected envelope %+v", resp)
	}
}

func TestUnauthorized(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Unauthorized(c, "token expired")
	})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	resp := parseResponse(t, w)
	if resp.Code != 401 {
		t.Errorf("expected code 401, got %d", resp.Code)
	}
}

func TestForbidden(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Forbidden(c, "staff required")
	})

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestError_WithValidationError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, NewValidation("assignee_id", "must be a member of the board"))
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	resp := parseResponse(t, w)
	if resp.Errors["assignee_id"] != "must be a member of the board" {
		t.Errorf("expected field error for assignee_id, got %v", resp.Errors)
	}
}

func TestError_WithWrappedAppError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, fmt.Errorf("load board: %w", NewNotFound("board")))
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	resp := parseResponse(t, w)
	if resp.Message != "board not found" {
		t.Errorf("expected message 'board not found', got %q", resp.Message)
	}
}

func TestError_WithGenericError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("connection reset"))
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	resp := parseResponse(t, w)
	if resp.Message != "internal server error" {
		t.Errorf("internal details should not leak, got %q", resp.Message)
	}
}

func TestAppError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"forbidden", NewForbidden("nope"), ErrForbidden, true},
		{"not found", NewNotFound("task"), ErrNotFound, true},
		{"wrapped validation", fmt.Errorf("x: %w", NewValidation("board", "immutable")), ErrValidation, true},
		{"forbidden is not not-found", NewForbidden("nope"), ErrNotFound, false},
		{"plain error", errors.New("boom"), ErrForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestAppError_ErrorInterface(t *testing.T) {
	err := NewNotFound("user")
	if err.Error() != "user not found" {
		t.Errorf("expected 'user not found', got %q", err.Error())
	}
}
