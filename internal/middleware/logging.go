// internal/middleware/logging.go
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
	"github.com/pactwise/pactwise-backend/internal/security"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	maxAuditBody    = 64 << 10
)

// RequestID reuses the caller's X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs every request once it completes.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   duration.Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
			"request_id": c.GetString(requestIDKey),
		}
		if sec, err := security.FromGin(c); err == nil {
			fields["user_id"] = sec.UserID
			fields["enterprise_id"] = sec.EnterpriseID
		}

		entry := logrus.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request processed")
		}
	}
}

// AuditLogMiddleware persists authenticated mutating requests in the
// background. JSON bodies are recorded with secret-looking fields redacted.
func AuditLogMiddleware(auditLogs repository.AuditLogRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !audited(c.Request) {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
			body, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBody))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))
		}

		c.Next()

		sec, err := security.FromGin(c)
		if err != nil {
			return
		}

		resourceType, resourceID := parseResourcePath(c.Request.URL.Path)
		entry := &models.AuditLog{
			EnterpriseID: &sec.EnterpriseID,
			UserID:       &sec.UserID,
			Action:       c.Request.Method + " " + routeOrPath(c),
			ResourceType: resourceType,
			ResourceID:   resourceID,
			NewValues:    redactedValues(body),
			StatusCode:   c.Writer.Status(),
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
			RequestID:    c.GetString(requestIDKey),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := auditLogs.Create(ctx, entry); err != nil {
				logrus.WithError(err).WithField("action", entry.Action).Error("Failed to create audit log")
			}
		}()
	}
}

// audited skips reads, health checks and processor callbacks.
func audited(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return r.URL.Path != "/health" && !strings.HasPrefix(r.URL.Path, "/v1/webhooks")
}

var redactedKeys = []string{"password", "secret", "token", "api_key"}

func redactedValues(body []byte) models.JSONB {
	if len(body) == 0 {
		return nil
	}
	var values map[string]interface{}
	if err := json.Unmarshal(body, &values); err != nil {
		return nil
	}
	for key := range values {
		lower := strings.ToLower(key)
		for _, sensitive := range redactedKeys {
			if strings.Contains(lower, sensitive) {
				values[key] = "[REDACTED]"
				break
			}
		}
	}
	return models.JSONB(values)
}

func routeOrPath(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}

// parseResourcePath reads "/v1/<type>/<uuid>/..." into the resource type and
// the first uuid segment.
func parseResourcePath(path string) (string, *uuid.UUID) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 0 && parts[0] == "v1" {
		parts = parts[1:]
	}
	if len(parts) == 0 || parts[0] == "" {
		return "unknown", nil
	}

	for _, part := range parts[1:] {
		if id, err := uuid.Parse(part); err == nil {
			return parts[0], &id
		}
	}
	return parts[0], nil
}
