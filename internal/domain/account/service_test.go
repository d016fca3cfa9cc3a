package account

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/happyhealth/clinic/internal/platform/auth"
	"github.com/happyhealth/clinic/internal/platform/notification"
)

// -- Mock Repositories --

type mockAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Account
}

func newMockAccountRepo() *mockAccountRepo {
	return &mockAccountRepo{accounts: make(map[uuid.UUID]*Account)}
}

func (m *mockAccountRepo) Create(_ context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	acc.CreatedAt = time.Now()
	acc.UpdatedAt = time.Now()
	cp := *acc
	m.accounts[acc.ID] = &cp
	return nil
}

func (m *mockAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *mockAccountRepo) GetByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if strings.EqualFold(acc.Email, email) {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockAccountRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if strings.EqualFold(acc.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountRepo) Update(_ context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acc.ID]; !ok {
		return ErrNotFound
	}
	cp := *acc
	m.accounts[acc.ID] = &cp
	return nil
}

func (m *mockAccountRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
	return nil
}

type mockPatientRepo struct {
	mu       sync.Mutex
	accounts *mockAccountRepo
	patients map[uuid.UUID]*Patient
}

func newMockPatientRepo(accounts *mockAccountRepo) *mockPatientRepo {
	return &mockPatientRepo{accounts: accounts, patients: make(map[uuid.UUID]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.patients[p.AccountID] = &cp
	return nil
}

func (m *mockPatientRepo) get(ctx context.Context, p *Patient) (*Patient, error) {
	acc, err := m.accounts.GetByID(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}
	cp := *p
	cp.Account = acc
	return &cp, nil
}

func (m *mockPatientRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	p, ok := m.patients[accountID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.get(ctx, p)
}

func (m *mockPatientRepo) GetByCode(ctx context.Context, code string) (*Patient, error) {
	m.mu.Lock()
	var found *Patient
	for _, p := range m.patients {
		if p.PatientCode == code {
			found = p
			break
		}
	}
	m.mu.Unlock()
	if found == nil {
		return nil, ErrNotFound
	}
	return m.get(ctx, found)
}

func (m *mockPatientRepo) ExistsByTaxID(_ context.Context, taxID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.TaxID == taxID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patients[p.AccountID]; !ok {
		return ErrNotFound
	}
	cp := *p
	cp.Account = nil
	m.patients[p.AccountID] = &cp
	return nil
}

func (m *mockPatientRepo) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	m.mu.Lock()
	all := make([]*Patient, 0, len(m.patients))
	for _, p := range m.patients {
		all = append(all, p)
	}
	m.mu.Unlock()
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]*Patient, 0, end-offset)
	for _, p := range all[offset:end] {
		withAcc, err := m.get(ctx, p)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, withAcc)
	}
	return out, total, nil
}

type mockDoctorRepo struct {
	mu       sync.Mutex
	accounts *mockAccountRepo
	doctors  map[uuid.UUID]*Doctor
}

func newMockDoctorRepo(accounts *mockAccountRepo) *mockDoctorRepo {
	return &mockDoctorRepo{accounts: accounts, doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.doctors[d.AccountID] = &cp
	return nil
}

func (m *mockDoctorRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	d, ok := m.doctors[accountID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	acc, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cp := *d
	cp.Account = acc
	return &cp, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[d.AccountID]; !ok {
		return ErrNotFound
	}
	cp := *d
	cp.Account = nil
	m.doctors[d.AccountID] = &cp
	return nil
}

func (m *mockDoctorRepo) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	m.mu.Lock()
	all := make([]*Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		all = append(all, d)
	}
	m.mu.Unlock()
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]*Doctor, 0, end-offset)
	for _, d := range all[offset:end] {
		withAcc, err := m.GetByAccountID(ctx, d.AccountID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, withAcc)
	}
	return out, total, nil
}

type mockStaffRepo struct {
	mu       sync.Mutex
	accounts *mockAccountRepo
	members  map[uuid.UUID]*Staff
}

func newMockStaffRepo(accounts *mockAccountRepo) *mockStaffRepo {
	return &mockStaffRepo{accounts: accounts, members: make(map[uuid.UUID]*Staff)}
}

func (m *mockStaffRepo) Create(_ context.Context, s *Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.members[s.AccountID] = &cp
	return nil
}

func (m *mockStaffRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Staff, error) {
	m.mu.Lock()
	s, ok := m.members[accountID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	acc, err := m.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cp := *s
	cp.Account = acc
	return &cp, nil
}

func (m *mockStaffRepo) Update(_ context.Context, s *Staff) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[s.AccountID]; !ok {
		return ErrNotFound
	}
	cp := *s
	cp.Account = nil
	m.members[s.AccountID] = &cp
	return nil
}

func (m *mockStaffRepo) List(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	m.mu.Lock()
	all := make([]*Staff, 0, len(m.members))
	for _, s := range m.members {
		all = append(all, s)
	}
	m.mu.Unlock()
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]*Staff, 0, end-offset)
	for _, s := range all[offset:end] {
		withAcc, err := m.GetByAccountID(ctx, s.AccountID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, withAcc)
	}
	return out, total, nil
}

// stubRunner runs the function directly. The mock repositories are their
// own source of atomicity.
type stubRunner struct{}

func (stubRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() *Service {
	accounts := newMockAccountRepo()
	return NewService(
		accounts,
		newMockPatientRepo(accounts),
		newMockDoctorRepo(accounts),
		newMockStaffRepo(accounts),
		stubRunner{},
		auth.NewPasswordHasher(4),
		auth.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), time.Hour),
		notification.NewLogNotifier(zerolog.Nop()),
		zerolog.Nop(),
	)
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:     "ana@example.com",
		Password:  "sup3rsecret",
		FirstName: "Ana",
		LastName:  "Diaz",
		TaxID:     "DZANAA80A41H501X",
	}
}

func TestRegisterCreatesPatientWithCodeAndToken(t *testing.T) {
	svc := newTestService()

	patient, token, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if token == "" {
		t.Error("expected a token")
	}
	if !strings.HasPrefix(patient.PatientCode, "PAT-") || len(patient.PatientCode) != 10 {
		t.Errorf("unexpected patient code %q", patient.PatientCode)
	}
	if patient.Account.Role != auth.RolePatient {
		t.Errorf("expected role PATIENT, got %s", patient.Account.Role)
	}
	if patient.Account.PasswordHash == "sup3rsecret" {
		t.Error("password stored in plain text")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService()

	if _, _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	dup := validRegistration()
	dup.TaxID = "OTHER00A00A000A"
	if _, _, err := svc.Register(context.Background(), dup); err != ErrEmailTaken {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsDuplicateTaxID(t *testing.T) {
	svc := newTestService()

	if _, _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	dup := validRegistration()
	dup.Email = "other@example.com"
	if _, _, err := svc.Register(context.Background(), dup); err != ErrTaxIDTaken {
		t.Errorf("expected ErrTaxIDTaken, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService()

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"short password", func(in *RegisterInput) { in.Password = "short" }},
		{"missing name", func(in *RegisterInput) { in.FirstName = "" }},
		{"missing tax id", func(in *RegisterInput) { in.TaxID = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validRegistration()
			tc.mutate(&in)
			if _, _, err := svc.Register(context.Background(), in); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc := newTestService()

	if _, _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, err := svc.Login(context.Background(), "ana@example.com", "sup3rsecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !svc.tokens.Validate(token) {
		t.Error("login token does not validate")
	}
	subject, err := svc.tokens.Subject(token)
	if err != nil {
		t.Fatalf("Subject: %v", err)
	}
	if subject != "ana@example.com" {
		t.Errorf("expected subject ana@example.com, got %s", subject)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc := newTestService()

	if _, _, err := svc.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, errUnknown := svc.Login(context.Background(), "nobody@example.com", "sup3rsecret")
	_, errWrongPw := svc.Login(context.Background(), "ana@example.com", "wrongpassword")

	if errUnknown != ErrInvalidCredentials {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", errUnknown)
	}
	if errWrongPw != ErrInvalidCredentials {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", errWrongPw)
	}
	if errUnknown.Error() != errWrongPw.Error() {
		t.Error("login failure messages differ between causes")
	}
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	svc := newTestService()

	patient, _, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	acc := patient.Account
	acc.Active = false
	if err := svc.accounts.Update(context.Background(), acc); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := svc.Login(context.Background(), "ana@example.com", "sup3rsecret"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for deactivated account, got %v", err)
	}
}

func TestResolveKnownAndUnknownSubjects(t *testing.T) {
	svc := newTestService()

	patient, _, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	principal, err := svc.Resolve(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if principal.AccountID != patient.AccountID {
		t.Error("principal account id mismatch")
	}
	if principal.Role != auth.RolePatient {
		t.Errorf("expected role PATIENT, got %s", principal.Role)
	}
	if len(principal.Authorities) != 1 || principal.Authorities[0] != "ROLE_PATIENT" {
		t.Errorf("expected exactly [ROLE_PATIENT], got %v", principal.Authorities)
	}

	if _, err := svc.Resolve(context.Background(), "ghost@example.com"); err != auth.ErrUnknownSubject {
		t.Errorf("expected ErrUnknownSubject, got %v", err)
	}
}

func TestCreateDoctorAndUpdate(t *testing.T) {
	svc := newTestService()

	doctor, err := svc.CreateDoctor(context.Background(), CreateDoctorInput{
		Email:          "lee@example.com",
		Password:       "doctorpass",
		FirstName:      "Sam",
		LastName:       "Lee",
		Specialization: "Cardiology",
		LicenseNumber:  "MD-1234",
	})
	if err != nil {
		t.Fatalf("CreateDoctor: %v", err)
	}
	if doctor.Account.Role != auth.RoleDoctor {
		t.Errorf("expected role DOCTOR, got %s", doctor.Account.Role)
	}

	room := "204B"
	updated, err := svc.UpdateDoctor(context.Background(), doctor.AccountID, UpdateDoctorInput{OfficeRoom: &room})
	if err != nil {
		t.Fatalf("UpdateDoctor: %v", err)
	}
	if updated.OfficeRoom == nil || *updated.OfficeRoom != "204B" {
		t.Error("office room not updated")
	}
	if updated.Specialization != "Cardiology" {
		t.Error("untouched field changed")
	}
}

func TestDeletePatientRemovesAccount(t *testing.T) {
	svc := newTestService()

	patient, _, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.DeletePatient(context.Background(), patient.AccountID); err != nil {
		t.Fatalf("DeletePatient: %v", err)
	}
	if _, err := svc.GetAccount(context.Background(), patient.AccountID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := svc.Resolve(context.Background(), "ana@example.com"); err != auth.ErrUnknownSubject {
		t.Errorf("deleted account still resolves: %v", err)
	}
}

func TestGetPatientByCode(t *testing.T) {
	svc := newTestService()

	patient, _, err := svc.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := svc.GetPatientByCode(context.Background(), patient.PatientCode)
	if err != nil {
		t.Fatalf("GetPatientByCode: %v", err)
	}
	if got.AccountID != patient.AccountID {
		t.Errorf("expected account %s, got %s", patient.AccountID, got.AccountID)
	}

	// Lookup folds case.
	if _, err := svc.GetPatientByCode(context.Background(), strings.ToLower(patient.PatientCode)); err != nil {
		t.Errorf("lowercase code: %v", err)
	}

	if _, err := svc.GetPatientByCode(context.Background(), "PFF-000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown code, got %v", err)
	}
	if _, err := svc.GetPatientByCode(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for blank code, got %v", err)
	}
}

func TestUpdateStaff(t *testing.T) {
	svc := newTestService()

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

	position := "Head Clerk"
	phone := "555-0100"
	updated, err := svc.UpdateStaff(context.Background(), member.AccountID, UpdateStaffInput{
		Position: &position,
		Phone:    &phone,
	})
	if err != nil {
		t.Fatalf("UpdateStaff: %v", err)
	}
	if updated.Position != "Head Clerk" {
		t.Errorf("expected Head Clerk, got %s", updated.Position)
	}
	if updated.Department != "Reception" {
		t.Error("untouched field changed")
	}
	if updated.Account.Phone == nil || *updated.Account.Phone != "555-0100" {
		t.Error("phone not updated")
	}

	if _, err := svc.UpdateStaff(context.Background(), uuid.New(), UpdateStaffInput{Position: &position}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown staff, got %v", err)
	}
}

func TestGeneratePatientCodeFormat(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generatePatientCode()
		if err != nil {
			t.Fatalf("generatePatientCode: %v", err)
		}
		if len(code) != 10 || !strings.HasPrefix(code, "PAT-") {
			t.Fatalf("bad code %q", code)
		}
		for _, r := range code[4:] {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("codes do not vary")
	}
}
