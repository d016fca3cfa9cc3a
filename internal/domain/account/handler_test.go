package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/happyhealth/clinic/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *Service, *echo.Echo) {
	t.Helper()
	svc := newTestService()
	return NewHandler(svc), svc, echo.New()
}

func TestHandler_Register(t *testing.T) {
	h, _, e := newTestHandler(t)

	body := `{"email":"ana@example.com","password":"sup3rsecret","first_name":"Ana","last_name":"Diaz","tax_id":"DZANAA80A41H501X"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp registerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a token in the response")
	}
	if resp.Patient == nil || resp.Patient.Account == nil {
		t.Fatal("expected patient with embedded account")
	}
	if strings.Contains(rec.Body.String(), "password_hash") {
		t.Error("password hash leaked into response body")
	}
}

func TestHandler_Register_DuplicateEmailConflict(t *testing.T) {
	h, svc, e := newTestHandler(t)

	if _, _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("seed Register: %v", err)
	}

	body := `{"email":"ana@example.com","password":"sup3rsecret","first_name":"Ana","last_name":"Diaz","tax_id":"OTHER00A00A000A"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Register(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_Login_InvalidCredentials(t *testing.T) {
	h, _, e := newTestHandler(t)

	body := `{"email":"nobody@example.com","password":"whatever"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Login(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func withPrincipal(req *http.Request, p *auth.Principal) *http.Request {
	return req.WithContext(auth.WithPrincipal(req.Context(), p))
}

func TestHandler_GetPatient_SelfAccessOnly(t *testing.T) {
	h, svc, e := newTestHandler(t)

	patient, _, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	principal := &auth.Principal{
		AccountID:   patient.AccountID,
		Email:       "ana@example.com",
		Role:        auth.RolePatient,
		Authorities: []string{"ROLE_PATIENT"},
	}

	// Own profile is readable.
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), principal)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(patient.AccountID.String())
	if err := h.GetPatient(c); err != nil {
		t.Fatalf("own profile: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("own profile: expected 200, got %d", rec.Code)
	}

	// Another patient's profile is not.
	req = withPrincipal(httptest.NewRequest(http.MethodGet, "/", nil), principal)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	err = h.GetPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("other profile: expected 403, got %v", err)
	}
}

func TestHandler_Me_ReturnsRoleShapedProfile(t *testing.T) {
	h, svc, e := newTestHandler(t)

	patient, _, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	principal := &auth.Principal{
		AccountID:   patient.AccountID,
		Email:       "ana@example.com",
		Role:        auth.RolePatient,
		Authorities: []string{"ROLE_PATIENT"},
	}
	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/v1/me", nil), principal)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Me(c); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.PatientCode != patient.PatientCode {
		t.Errorf("expected patient code %s, got %s", patient.PatientCode, got.PatientCode)
	}
}

func TestHandler_CreateDoctor(t *testing.T) {
	h, _, e := newTestHandler(t)

	body := `{"email":"lee@example.com","password":"doctorpass","first_name":"Sam","last_name":"Lee","specialization":"Cardiology","license_number":"MD-1234"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/doctors", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateDoctor(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var doctor Doctor
	if err := json.Unmarshal(rec.Body.Bytes(), &doctor); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doctor.Specialization != "Cardiology" {
		t.Errorf("expected Cardiology, got %s", doctor.Specialization)
	}
}

func rolePrincipal(id uuid.UUID, role auth.Role) *auth.Principal {
	return &auth.Principal{
		AccountID:   id,
		Email:       "someone@example.com",
		Role:        role,
		Authorities: []string{role.Authority()},
	}
}

// newRoutedApp mounts the handler through RegisterRoutes so requests pass
// the role gates, not just the handler funcs.
func newRoutedApp(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc := newTestService()
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group(""), e.Group("/api/v1"))
	return e, svc
}

func doRouted(e *echo.Echo, method, target, body string, p *auth.Principal) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if p != nil {
		req = withPrincipal(req, p)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_UpdatePatientIsAdminOnly(t *testing.T) {
	e, svc := newRoutedApp(t)

	patient, _, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	body := `{"phone":"555-0100"}`
	target := "/api/v1/patients/" + patient.AccountID.String()

	rec := doRouted(e, http.MethodPut, target, body, rolePrincipal(uuid.New(), auth.RoleDoctor))
	if rec.Code != http.StatusForbidden {
		t.Errorf("doctor: expected 403, got %d", rec.Code)
	}

	rec = doRouted(e, http.MethodPut, target, body, rolePrincipal(uuid.New(), auth.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRoutes_DoctorDirectoryHiddenFromPatients(t *testing.T) {
	e, _ := newRoutedApp(t)

	rec := doRouted(e, http.MethodGet, "/api/v1/doctors", "", rolePrincipal(uuid.New(), auth.RolePatient))
	if rec.Code != http.StatusForbidden {
		t.Errorf("patient: expected 403, got %d", rec.Code)
	}

	rec = doRouted(e, http.MethodGet, "/api/v1/doctors", "", rolePrincipal(uuid.New(), auth.RoleDoctor))
	if rec.Code != http.StatusOK {
		t.Errorf("doctor: expected 200, got %d", rec.Code)
	}
}

func TestRoutes_GetPatientByCode(t *testing.T) {
	e, svc := newRoutedApp(t)

	patient, _, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	doctor := rolePrincipal(uuid.New(), auth.RoleDoctor)
	rec := doRouted(e, http.MethodGet, "/api/v1/patients/code/"+patient.PatientCode, "", doctor)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.AccountID != patient.AccountID {
		t.Errorf("expected account %s, got %s", patient.AccountID, got.AccountID)
	}

	// Codes match case-insensitively.
	rec = doRouted(e, http.MethodGet, "/api/v1/patients/code/"+strings.ToLower(patient.PatientCode), "", doctor)
	if rec.Code != http.StatusOK {
		t.Errorf("lowercase code: expected 200, got %d", rec.Code)
	}

	rec = doRouted(e, http.MethodGet, "/api/v1/patients/code/NO-SUCH-CODE", "", doctor)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown code: expected 404, got %d", rec.Code)
	}

	rec = doRouted(e, http.MethodGet, "/api/v1/patients/code/"+patient.PatientCode, "",
		rolePrincipal(patient.AccountID, auth.RolePatient))
	if rec.Code != http.StatusForbidden {
		t.Errorf("patient: expected 403, got %d", rec.Code)
	}
}

func TestRoutes_UpdateStaff(t *testing.T) {
	e, svc := newRoutedApp(t)

	member, err := svc.CreateStaff(context.Background(), CreateStaffInput{
		Email:      "rosa@example.com",
		Password:   "staffpass1",
		FirstName:  "Rosa",
		LastName:   "Bianchi",
		Department: "Reception",
		Position:   "Clerk",
	})
	if err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}

	admin := rolePrincipal(uuid.New(), auth.RoleAdmin)
	rec := doRouted(e, http.MethodPut, "/api/v1/staff/"+member.AccountID.String(),
		`{"position":"Head Clerk"}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got Staff
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Position != "Head Clerk" {
		t.Errorf("expected Head Clerk, got %s", got.Position)
	}
	if got.Department != "Reception" {
		t.Errorf("department should be unchanged, got %s", got.Department)
	}

	rec = doRouted(e, http.MethodPut, "/api/v1/staff/"+uuid.NewString(), `{"position":"Clerk"}`, admin)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown staff: expected 404, got %d", rec.Code)
	}
}

func TestHandler_GetDoctor_InvalidID(t *testing.T) {
	h, _, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetDoctor(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
