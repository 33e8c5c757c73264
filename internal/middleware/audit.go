package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/services"
	"github.com/huangang/taskboard/pkg/logger"
)

const (
	maxAuditBody    = 2000
	maxAuditCapture = 64 << 10
)

var sensitiveKeys = map[string]struct{}{
	"password":          {},
	"repeated_password": {},
	"token":             {},
	"refresh_token":     {},
	"access_token":      {},
	"secret":            {},
}

// replayBody serves the captured prefix and then the unread rest of the body.
type replayBody struct {
	io.Reader
	io.Closer
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry services.AuditEntry)
}

// AuditLog records write operations (POST/PUT/PATCH/DELETE) to audit_logs.
func AuditLog(recorder AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		// Only audit write operations
		switch method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil {
			head, _ := io.ReadAll(io.LimitReader(c.Request.Body, maxAuditCapture+1))
			c.Request.Body = replayBody{
				Reader: io.MultiReader(bytes.NewReader(head), c.Request.Body),
				Closer: c.Request.Body,
			}
			bodySnippet = auditBody(head)
		}

		c.Next()

		userID := GetUserID(c)
		status := c.Writer.Status()
		module, action := parseRouteInfo(c.FullPath(), method)

		var uid *uint
		if userID > 0 {
			uid = &userID
		}
		level := "info"
		if status >= http.StatusInternalServerError {
			level = "error"
		} else if status >= http.StatusBadRequest {
			level = "warning"
		}

		recorder.Record(context.WithoutCancel(c.Request.Context()), services.AuditEntry{
			Level:     level,
			Module:    module,
			Action:    action,
			Message:   formatAuditMessage(GetEmail(c), method, c.Request.URL.Path, status),
			UserID:    uid,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra: map[string]interface{}{
				"method":     method,
				"path":       c.Request.URL.Path,
				"status":     status,
				"body":       bodySnippet,
				"request_id": logger.RequestID(c),
			},
		})
	}
}

// parseRouteInfo extracts module and action from a Gin route pattern.
// e.g. "/api/boards/:id/add-member" + "POST" → module="Boards", action="Add Member"
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/api/")
	parts := strings.Split(path, "/")

	module = parts[0]
	if module == "" {
		module = "unknown"
	}
	module = titleWords(module)

	// A trailing literal segment names the action, e.g. add-member or accept.
	if last := parts[len(parts)-1]; len(parts) > 1 && !strings.HasPrefix(last, ":") {
		return module, titleWords(last)
	}

	switch method {
	case http.MethodPost:
		action = "Create"
	case http.MethodPut, http.MethodPatch:
		action = "Update"
	case http.MethodDelete:
		action = "Delete"
	default:
		action = method
	}
	return module, action
}

// titleWords turns "add-member" into "Add Member".
func titleWords(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// formatAuditMessage creates a human-readable audit message.
func formatAuditMessage(actor, method, path string, status int) string {
	if actor == "" {
		actor = "anonymous"
	}
	var b strings.Builder
	b.WriteString("[Audit] ")
	b.WriteString(actor)
	b.WriteString(" ")
	b.WriteString(method)
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString(" → ")
	if status >= 200 && status < 300 {
		b.WriteString("OK")
	} else {
		b.WriteString("Failed")
	}
	return b.String()
}

// auditBody renders a request body for the audit trail. Bodies that cannot be
// decoded as JSON are left out, since their secrets cannot be located.
func auditBody(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	if len(raw) > maxAuditCapture {
		return "[body omitted: too large]"
	}
	masked, err := maskSensitiveFields(raw)
	if err != nil {
		return "[body omitted: not JSON]"
	}
	if len(masked) > maxAuditBody {
		masked = masked[:maxAuditBody] + "...[truncated]"
	}
	return masked
}

// maskSensitiveFields decodes a JSON body and replaces the values of
// sensitive keys at any depth with "***".
func maskSensitiveFields(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	out, err := json.Marshal(maskValue(v))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func maskValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
				t[k] = "***"
				continue
			}
			t[k] = maskValue(child)
		}
	case []interface{}:
		for i, child := range t {
			t[i] = maskValue(child)
		}
	}
	return v
}
