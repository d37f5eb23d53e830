package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pharmstock/pharmstock/internal/platform/auth"
)

func TestRequestIDGenerated(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequestID()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	if err := handler(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}

	rid, _ := c.Get("request_id").(string)
	if rid == "" {
		t.Fatal("request_id not set")
	}
	if rec.Header().Get("X-Request-ID") != rid {
		t.Error("response header does not carry the request id")
	}
}

func TestRequestIDHonorsInbound(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "gw-12345")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequestID()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	if err := handler(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if rid, _ := c.Get("request_id").(string); rid != "gw-12345" {
		t.Errorf("request_id = %q, want the inbound id", rid)
	}
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("boom")
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Fatalf("err = %v, want 500", err)
	}
}

func TestActionFor(t *testing.T) {
	cases := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/drugs/check-code", "search"},
		{http.MethodPost, "/api/v1/drugs/check-code", "search"},
		{http.MethodGet, "/api/v1/drugs", "read"},
		{http.MethodPost, "/api/v1/drugs", "create"},
		{http.MethodPut, "/api/v1/drugs/abc", "update"},
		{http.MethodDelete, "/api/v1/drugs/abc", "delete"},
	}
	for _, tc := range cases {
		if got := actionFor(tc.method, tc.path); got != tc.want {
			t.Errorf("actionFor(%s, %s) = %q, want %q", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestResourceFor(t *testing.T) {
	cases := []struct{ path, want string }{
		{"/api/v1/drugs", "drugs"},
		{"/api/v1/drugs/check-code", "drugs"},
		{"/api/v1/stocks/abc/transactions", "stocks"},
	}
	for _, tc := range cases {
		if got := resourceFor(tc.path); got != tc.want {
			t.Errorf("resourceFor(%s) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestAuditRecorderReceivesEntry(t *testing.T) {
	var got *AuditEntry
	recorder := AuditRecorderFunc(func(entry AuditEntry) error {
		got = &entry
		return nil
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drugs", nil)
	ctx := context.WithValue(req.Context(), auth.UsernameKey, "pharm.somchai")
	req = req.WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())
	c.Set("request_id", "req-1")

	handler := Audit(zerolog.Nop(), recorder)(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}

	if got == nil {
		t.Fatal("recorder not invoked")
	}
	if got.Action != "create" || got.Resource != "drugs" {
		t.Errorf("entry = %+v", got)
	}
	if got.Username != "pharm.somchai" || got.RequestID != "req-1" {
		t.Errorf("entry identity = %+v", got)
	}
}

func TestAuditSkipsNonAPIPaths(t *testing.T) {
	called := false
	recorder := AuditRecorderFunc(func(entry AuditEntry) error {
		called = true
		return nil
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := Audit(zerolog.Nop(), recorder)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if called {
		t.Error("health endpoint must not be audited")
	}
}
