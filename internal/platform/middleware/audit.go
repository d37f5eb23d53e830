package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmstock/pharmstock/internal/platform/auth"
)

// AuditEntry records who touched inventory data, when, and how. Controlled
// substances make the trail a hard requirement, not a nicety.
type AuditEntry struct {
	ActorID    string
	Username   string
	Roles      []string
	Action     string // read, create, update, delete, search
	Resource   string // drugs, stocks
	Path       string
	Method     string
	IPAddress  string
	UserAgent  string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries. Tests and alternative sinks provide
// their own implementation; the default falls back to structured logging.
type AuditRecorder interface {
	Record(entry AuditEntry) error
}

// AuditRecorderFunc adapts a function to AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) Record(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every /api/v1 access with the acting user, resource, and
// outcome status.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, "/api/v1") {
				return next(c)
			}

			err := next(c)

			ctx := req.Context()
			actorID, _ := auth.ActorFromContext(ctx)
			rid, _ := c.Get("request_id").(string)

			entry := AuditEntry{
				ActorID:    actorID.String(),
				Username:   auth.UsernameFromContext(ctx),
				Roles:      auth.RolesFromContext(ctx),
				Action:     actionFor(req.Method, path),
				Resource:   resourceFor(path),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Timestamp:  time.Now().UTC(),
				RequestID:  rid,
				StatusCode: c.Response().Status,
			}

			recorded := false
			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.Record(entry); recErr == nil {
					recorded = true
				} else {
					logger.Error().Err(recErr).Msg("audit recorder failed")
				}
			}

			if !recorded {
				logger.Info().
					Str("request_id", entry.RequestID).
					Str("actor_id", entry.ActorID).
					Str("username", entry.Username).
					Str("action", entry.Action).
					Str("resource", entry.Resource).
					Str("path", entry.Path).
					Int("status", entry.StatusCode).
					Str("remote_ip", entry.IPAddress).
					Msg("audit")
			}

			return err
		}
	}
}

func actionFor(method, path string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		if strings.Contains(path, "check-code") || strings.Contains(path, "?") {
			return "search"
		}
		return "read"
	case http.MethodPost:
		if strings.Contains(path, "check-code") {
			return "search"
		}
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return strings.ToLower(method)
}

func resourceFor(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	if i := strings.IndexByte(trimmed, '/'); i > 0 {
		return trimmed[:i]
	}
	return trimmed
}
