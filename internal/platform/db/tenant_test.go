package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestExtractTenantID_FromHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "agency_madison")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	tid := extractTenantID(c, "default")
	if tid != "agency_madison" {
		t.Errorf("expected agency_madison, got %s", tid)
	}
}

func TestExtractTenantID_FromQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?tenant_id=county_ems", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	tid := extractTenantID(c, "default")
	if tid != "county_ems" {
		t.Errorf("expected county_ems, got %s", tid)
	}
}

func TestExtractTenantID_FromJWT(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("jwt_tenant_id", "jwt_tenant")

	tid := extractTenantID(c, "default")
	if tid != "jwt_tenant" {
		t.Errorf("expected jwt_tenant, got %s", tid)
	}
}

func TestExtractTenantID_Default(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	tid := extractTenantID(c, "default")
	if tid != "default" {
		t.Errorf("expected default, got %s", tid)
	}
}

func TestExtractTenantID_Priority(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?tenant_id=query", nil)
	req.Header.Set("X-Tenant-ID", "header")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("jwt_tenant_id", "jwt")

	// JWT claim wins over header, header wins over query param.
	if tid := extractTenantID(c, "default"); tid != "jwt" {
		t.Errorf("expected jwt, got %s", tid)
	}

	c.Set("jwt_tenant_id", "")
	if tid := extractTenantID(c, "default"); tid != "header" {
		t.Errorf("expected header when JWT claim is empty, got %s", tid)
	}
}

func TestTenantIDPattern(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"abc", true},
		{"agency_1", true},
		{"A1B2C3", true},
		{"a", true},
		{"a-b", false},
		{"a.b", false},
		{"a b", false},
		{"a/b", false},
		{"", false},
		{"'; DROP TABLE", false},
		{"tenant@1", false},
	}

	for _, tt := range tests {
		if got := tenantIDPattern.MatchString(tt.input); got != tt.valid {
			t.Errorf("tenantIDPattern.MatchString(%q) = %v, want %v", tt.input, got, tt.valid)
		}
	}
}

func TestTenantOnlyMiddleware(t *testing.T) {
	e := echo.New()

	var seenTenant string
	handler := TenantOnlyMiddleware("default")(func(c echo.Context) error {
		seenTenant = TenantFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "agency_dane")
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenTenant != "agency_dane" {
		t.Errorf("expected tenant agency_dane in request context, got %q", seenTenant)
	}

	// No tenant hint falls back to the default.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenTenant != "default" {
		t.Errorf("expected default tenant, got %q", seenTenant)
	}
}

func TestTenantOnlyMiddleware_RejectsInvalidTenant(t *testing.T) {
	e := echo.New()
	handler := TenantOnlyMiddleware("default")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", "bad-tenant; DROP")
	rec := httptest.NewRecorder()

	err := handler(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", he.Code)
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("expected nil conn from empty context")
	}

	ctx := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	if conn := ConnFromContext(ctx); conn != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestTenantFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, "test_tenant")
	if tid := TenantFromContext(ctx); tid != "test_tenant" {
		t.Errorf("expected test_tenant, got %s", tid)
	}

	if tid := TenantFromContext(context.Background()); tid != "" {
		t.Errorf("expected empty string, got %s", tid)
	}

	ctx = context.WithValue(context.Background(), TenantIDKey, 12345)
	if tid := TenantFromContext(ctx); tid != "" {
		t.Errorf("expected empty string for wrong type, got %q", tid)
	}
}

func TestCreateTenantSchema_InvalidID(t *testing.T) {
	invalidIDs := []string{"invalid-id!", "tenant.with.dot", "ten ant", "drop;table"}
	for _, id := range invalidIDs {
		if err := CreateTenantSchema(context.Background(), nil, id, ""); err == nil {
			t.Errorf("expected error for invalid tenant ID %q", id)
		}
	}
}
