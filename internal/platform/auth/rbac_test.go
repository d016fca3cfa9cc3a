package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func runGated(t *testing.T, principal *Principal, mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	if principal != nil {
		req = req.WithContext(WithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func principalWithRole(role Role) *Principal {
	return &Principal{
		AccountID:   uuid.New(),
		Email:       "someone@x.com",
		Role:        role,
		Authorities: []string{role.Authority()},
	}
}

func TestRequireRole_NoPrincipalIsUnauthorized(t *testing.T) {
	rec := runGated(t, nil, RequireRole(RoleAdmin))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a principal, got %d", rec.Code)
	}
}

func TestRequireRole_WrongRoleIsForbidden(t *testing.T) {
	rec := runGated(t, principalWithRole(RolePatient), RequireRole(RoleAdmin))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong role, got %d", rec.Code)
	}
}

func TestRequireRole_AllowsMemberOfSet(t *testing.T) {
	rec := runGated(t, principalWithRole(RolePatient), RequireRole(RolePatient, RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for allowed role, got %d", rec.Code)
	}
}

func TestRequireRole_AdminHasNoImplicitOverride(t *testing.T) {
	// ADMIN must be listed explicitly; there is no wildcard.
	rec := runGated(t, principalWithRole(RoleAdmin), RequireRole(RoleDoctor))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin on a doctor-only route, got %d", rec.Code)
	}
}

func TestRequireAuthenticated(t *testing.T) {
	if rec := runGated(t, nil, RequireAuthenticated()); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a principal, got %d", rec.Code)
	}
	if rec := runGated(t, principalWithRole(RoleDoctor), RequireAuthenticated()); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for any principal, got %d", rec.Code)
	}
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"PATIENT", "DOCTOR", "ADMIN"} {
		if _, err := ParseRole(valid); err != nil {
			t.Errorf("ParseRole(%q): %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "patient", "SUPERUSER"} {
		if _, err := ParseRole(invalid); err == nil {
			t.Errorf("ParseRole(%q): expected error", invalid)
		}
	}
}

func TestRole_Authority(t *testing.T) {
	if got := RoleDoctor.Authority(); got != "ROLE_DOCTOR" {
		t.Errorf("expected ROLE_DOCTOR, got %s", got)
	}
}
