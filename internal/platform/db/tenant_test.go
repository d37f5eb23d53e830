package db

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func tenantContext(header, query, jwtTenant string) echo.Context {
	e := echo.New()
	target := "/api/v1/drugs"
	if query != "" {
		target += "?tenant_id=" + query
	}
	req := httptest.NewRequest("GET", target, nil)
	if header != "" {
		req.Header.Set("X-Tenant-ID", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	if jwtTenant != "" {
		c.Set("jwt_tenant_id", jwtTenant)
	}
	return c
}

func TestExtractTenantIDPrecedence(t *testing.T) {
	// JWT claim wins over header, header over query, query over default.
	if got := extractTenantID(tenantContext("hdr", "qry", "jwt"), "default"); got != "jwt" {
		t.Errorf("got %q, want jwt", got)
	}
	if got := extractTenantID(tenantContext("hdr", "qry", ""), "default"); got != "hdr" {
		t.Errorf("got %q, want hdr", got)
	}
	if got := extractTenantID(tenantContext("", "qry", ""), "default"); got != "qry" {
		t.Errorf("got %q, want qry", got)
	}
	if got := extractTenantID(tenantContext("", "", ""), "default"); got != "default" {
		t.Errorf("got %q, want default", got)
	}
}

func TestTenantIDPattern(t *testing.T) {
	for _, valid := range []string{"default", "hospital_7", "Org01"} {
		if !tenantIDPattern.MatchString(valid) {
			t.Errorf("%q should match", valid)
		}
	}
	for _, invalid := range []string{"", "a;DROP SCHEMA", "a b", "x-y", "tenant'"} {
		if tenantIDPattern.MatchString(invalid) {
			t.Errorf("%q should not match", invalid)
		}
	}
}

func TestTenantFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, "hospital_7")
	if got := TenantFromContext(ctx); got != "hospital_7" {
		t.Errorf("got %q", got)
	}
	if got := TenantFromContext(context.Background()); got != "" {
		t.Errorf("got %q, want empty outside middleware", got)
	}
}

func TestConnFromContextEmpty(t *testing.T) {
	if ConnFromContext(context.Background()) != nil {
		t.Error("expected nil connection outside middleware")
	}
}

func TestCreateTenantSchemaRejectsBadID(t *testing.T) {
	err := CreateTenantSchema(context.Background(), nil, "bad;id", "")
	if err == nil {
		t.Fatal("expected error for invalid tenant identifier")
	}
}
