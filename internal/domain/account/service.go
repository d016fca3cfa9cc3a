package account

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/happyhealth/clinic/internal/platform/auth"
	"github.com/happyhealth/clinic/internal/platform/db"
	"github.com/happyhealth/clinic/internal/platform/notification"
)

var (
	// ErrNotFound is returned when no account or profile matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken is returned when registration reuses an email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrTaxIDTaken is returned when registration reuses a tax id.
	ErrTaxIDTaken = errors.New("tax id already registered")
	// ErrInvalidCredentials is returned for any login failure. Wrong email
	// and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const minPasswordLen = 8

type Service struct {
	accounts AccountRepository
	patients PatientRepository
	doctors  DoctorRepository
	staff    StaffRepository
	runner   db.Runner
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenService
	notifier notification.Notifier
	logger   zerolog.Logger
}

func NewService(
	accounts AccountRepository,
	patients PatientRepository,
	doctors DoctorRepository,
	staff StaffRepository,
	runner db.Runner,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenService,
	notifier notification.Notifier,
	logger zerolog.Logger,
) *Service {
	return &Service{
		accounts: accounts,
		patients: patients,
		doctors:  doctors,
		staff:    staff,
		runner:   runner,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
	}
}

// RegisterInput carries the self-registration payload. Self-registration
// always creates a PATIENT; doctor and staff accounts are created by admins.
type RegisterInput struct {
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       *string    `json:"phone,omitempty"`
	TaxID       string     `json:"tax_id"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Address     *string    `json:"address,omitempty"`
	City        *string    `json:"city,omitempty"`
	Province    *string    `json:"province,omitempty"`
	Zip         *string    `json:"zip,omitempty"`
}

func (in *RegisterInput) validate() error {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.TaxID = strings.TrimSpace(strings.ToUpper(in.TaxID))
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("invalid email address")
	}
	if len(in.Password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	if in.FirstName == "" || in.LastName == "" {
		return fmt.Errorf("first and last name are required")
	}
	if in.TaxID == "" {
		return fmt.Errorf("tax id is required")
	}
	return nil
}

// Register creates a patient account and returns the profile plus a fresh
// token so the client is logged in immediately.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Patient, string, error) {
	if err := in.validate(); err != nil {
		return nil, "", err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	var patient *Patient
	err = s.runner.WithTx(ctx, func(ctx context.Context) error {
		taken, err := s.accounts.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		taken, err = s.patients.ExistsByTaxID(ctx, in.TaxID)
		if err != nil {
			return err
		}
		if taken {
			return ErrTaxIDTaken
		}

		acc := &Account{
			ID:           uuid.New(),
			Email:        in.Email,
			PasswordHash: hash,
			Role:         auth.RolePatient,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Phone:        in.Phone,
			Active:       true,
		}
		if err := s.accounts.Create(ctx, acc); err != nil {
			return err
		}

		code, err := generatePatientCode()
		if err != nil {
			return err
		}
		patient = &Patient{
			AccountID:   acc.ID,
			PatientCode: code,
			TaxID:       in.TaxID,
			DateOfBirth: in.DateOfBirth,
			Address:     in.Address,
			City:        in.City,
			Province:    in.Province,
			Zip:         in.Zip,
			Account:     acc,
		}
		return s.patients.Create(ctx, patient)
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(patient.Account.Email)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	if err := s.notifier.SendWelcome(ctx, notification.Welcome{
		Recipient: patient.Account.Email,
		FirstName: patient.Account.FirstName,
	}); err != nil {
		s.logger.Warn().Err(err).Str("email", patient.Account.Email).Msg("welcome notification failed")
	}

	return patient, token, nil
}

// Login verifies credentials and issues a token. Every failure mode maps to
// ErrInvalidCredentials so responses leak nothing about which part failed.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	acc, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !acc.Active {
		return "", ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, acc.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(acc.Email)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// Resolve implements auth.PrincipalResolver. An unknown or deactivated
// subject maps to auth.ErrUnknownSubject so the middleware treats it as an
// authentication failure rather than a server error.
func (s *Service) Resolve(ctx context.Context, email string) (*auth.Principal, error) {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrUnknownSubject
	}
	if err != nil {
		return nil, err
	}
	if !acc.Active {
		return nil, auth.ErrUnknownSubject
	}
	return &auth.Principal{
		AccountID:   acc.ID,
		Email:       acc.Email,
		Role:        acc.Role,
		Authorities: []string{acc.Role.Authority()},
	}, nil
}

// GetAccount returns the bare account row.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.accounts.GetByID(ctx, id)
}

// -- Patient directory --

func (s *Service) GetPatient(ctx context.Context, accountID uuid.UUID) (*Patient, error) {
	return s.patients.GetByAccountID(ctx, accountID)
}

// GetPatientByCode looks a patient up by the PAT-XXXXXX code printed on
// intake paperwork. The code is matched case-insensitively.
func (s *Service) GetPatientByCode(ctx context.Context, code string) (*Patient, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" {
		return nil, ErrNotFound
	}
	return s.patients.GetByCode(ctx, code)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

// UpdatePatientInput carries the mutable slice of a patient profile.
type UpdatePatientInput struct {
	FirstName   *string    `json:"first_name,omitempty"`
	LastName    *string    `json:"last_name,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Address     *string    `json:"address,omitempty"`
	City        *string    `json:"city,omitempty"`
	Province    *string    `json:"province,omitempty"`
	Zip         *string    `json:"zip,omitempty"`
}

func (s *Service) UpdatePatient(ctx context.Context, accountID uuid.UUID, in UpdatePatientInput) (*Patient, error) {
	var patient *Patient
	err := s.runner.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByAccountID(ctx, accountID)
		if err != nil {
			return err
		}
		acc := p.Account
		if in.FirstName != nil {
			acc.FirstName = *in.FirstName
		}
		if in.LastName != nil {
			acc.LastName = *in.LastName
		}
		if in.Phone != nil {
			acc.Phone = in.Phone
		}
		if in.DateOfBirth != nil {
			p.DateOfBirth = in.DateOfBirth
		}
		if in.Address != nil {
			p.Address = in.Address
		}
		if in.City != nil {
			p.City = in.City
		}
		if in.Province != nil {
			p.Province = in.Province
		}
		if in.Zip != nil {
			p.Zip = in.Zip
		}
		if err := s.accounts.Update(ctx, acc); err != nil {
			return err
		}
		if err := s.patients.Update(ctx, p); err != nil {
			return err
		}
		patient = p
		return nil
	})
	return patient, err
}

// DeletePatient removes the patient account. The profile row goes with it
// via ON DELETE CASCADE.
func (s *Service) DeletePatient(ctx context.Context, accountID uuid.UUID) error {
	if _, err := s.patients.GetByAccountID(ctx, accountID); err != nil {
		return err
	}
	return s.accounts.Delete(ctx, accountID)
}

// -- Doctor directory --

// CreateDoctorInput carries the admin-only doctor creation payload.
type CreateDoctorInput struct {
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Phone          *string `json:"phone,omitempty"`
	Specialization string  `json:"specialization"`
	LicenseNumber  string  `json:"license_number"`
	OfficeRoom     *string `json:"office_room,omitempty"`
}

func (s *Service) CreateDoctor(ctx context.Context, in CreateDoctorInput) (*Doctor, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("invalid email address")
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	if in.FirstName == "" || in.LastName == "" {
		return nil, fmt.Errorf("first and last name are required")
	}
	if in.Specialization == "" || in.LicenseNumber == "" {
		return nil, fmt.Errorf("specialization and license number are required")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var doctor *Doctor
	err = s.runner.WithTx(ctx, func(ctx context.Context) error {
		taken, err := s.accounts.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}

		acc := &Account{
			ID:           uuid.New(),
			Email:        in.Email,
			PasswordHash: hash,
			Role:         auth.RoleDoctor,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Phone:        in.Phone,
			Active:       true,
		}
		if err := s.accounts.Create(ctx, acc); err != nil {
			return err
		}

		doctor = &Doctor{
			AccountID:      acc.ID,
			Specialization: in.Specialization,
			LicenseNumber:  in.LicenseNumber,
			OfficeRoom:     in.OfficeRoom,
			Account:        acc,
		}
		return s.doctors.Create(ctx, doctor)
	})
	return doctor, err
}

func (s *Service) GetDoctor(ctx context.Context, accountID uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByAccountID(ctx, accountID)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

// UpdateDoctorInput carries the mutable slice of a doctor profile.
type UpdateDoctorInput struct {
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Specialization *string `json:"specialization,omitempty"`
	LicenseNumber  *string `json:"license_number,omitempty"`
	OfficeRoom     *string `json:"office_room,omitempty"`
}

func (s *Service) UpdateDoctor(ctx context.Context, accountID uuid.UUID, in UpdateDoctorInput) (*Doctor, error) {
	var doctor *Doctor
	err := s.runner.WithTx(ctx, func(ctx context.Context) error {
		d, err := s.doctors.GetByAccountID(ctx, accountID)
		if err != nil {
			return err
		}
		acc := d.Account
		if in.FirstName != nil {
			acc.FirstName = *in.FirstName
		}
		if in.LastName != nil {
			acc.LastName = *in.LastName
		}
		if in.Phone != nil {
			acc.Phone = in.Phone
		}
		if in.Specialization != nil {
			d.Specialization = *in.Specialization
		}
		if in.LicenseNumber != nil {
			d.LicenseNumber = *in.LicenseNumber
		}
		if in.OfficeRoom != nil {
			d.OfficeRoom = in.OfficeRoom
		}
		if err := s.accounts.Update(ctx, acc); err != nil {
			return err
		}
		if err := s.doctors.Update(ctx, d); err != nil {
			return err
		}
		doctor = d
		return nil
	})
	return doctor, err
}

func (s *Service) DeleteDoctor(ctx context.Context, accountID uuid.UUID) error {
	if _, err := s.doctors.GetByAccountID(ctx, accountID); err != nil {
		return err
	}
	return s.accounts.Delete(ctx, accountID)
}

// -- Staff directory --

// CreateStaffInput carries the admin-only staff creation payload.
type CreateStaffInput struct {
	Email      string     `json:"email"`
	Password   string     `json:"password"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Phone      *string    `json:"phone,omitempty"`
	Department string     `json:"department"`
	Position   string     `json:"position"`
	HiredAt    *time.Time `json:"hired_at,omitempty"`
}

func (s *Service) CreateStaff(ctx context.Context, in CreateStaffInput) (*Staff, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("invalid email address")
	}
	if len(in.Password) < minPasswordLen {
		return nil, fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	if in.FirstName == "" || in.LastName == "" {
		return nil, fmt.Errorf("first and last name are required")
	}
	if in.Department == "" || in.Position == "" {
		return nil, fmt.Errorf("department and position are required")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var member *Staff
	err = s.runner.WithTx(ctx, func(ctx context.Context) error {
		taken, err := s.accounts.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}

		acc := &Account{
			ID:           uuid.New(),
			Email:        in.Email,
			PasswordHash: hash,
			Role:         auth.RoleAdmin,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Phone:        in.Phone,
			Active:       true,
		}
		if err := s.accounts.Create(ctx, acc); err != nil {
			return err
		}

		member = &Staff{
			AccountID:  acc.ID,
			Department: in.Department,
			Position:   in.Position,
			HiredAt:    in.HiredAt,
			Account:    acc,
		}
		return s.staff.Create(ctx, member)
	})
	return member, err
}

func (s *Service) GetStaff(ctx context.Context, accountID uuid.UUID) (*Staff, error) {
	return s.staff.GetByAccountID(ctx, accountID)
}

func (s *Service) ListStaff(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	return s.staff.List(ctx, limit, offset)
}

// UpdateStaffInput carries the mutable slice of a staff profile.
type UpdateStaffInput struct {
	FirstName  *string    `json:"first_name,omitempty"`
	LastName   *string    `json:"last_name,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	Department *string    `json:"department,omitempty"`
	Position   *string    `json:"position,omitempty"`
	HiredAt    *time.Time `json:"hired_at,omitempty"`
}

func (s *Service) UpdateStaff(ctx context.Context, accountID uuid.UUID, in UpdateStaffInput) (*Staff, error) {
	var member *Staff
	err := s.runner.WithTx(ctx, func(ctx context.Context) error {
		m, err := s.staff.GetByAccountID(ctx, accountID)
		if err != nil {
			return err
		}
		acc := m.Account
		if in.FirstName != nil {
			acc.FirstName = *in.FirstName
		}
		if in.LastName != nil {
			acc.LastName = *in.LastName
		}
		if in.Phone != nil {
			acc.Phone = in.Phone
		}
		if in.Department != nil {
			m.Department = *in.Department
		}
		if in.Position != nil {
			m.Position = *in.Position
		}
		if in.HiredAt != nil {
			m.HiredAt = in.HiredAt
		}
		if err := s.accounts.Update(ctx, acc); err != nil {
			return err
		}
		if err := s.staff.Update(ctx, m); err != nil {
			return err
		}
		member = m
		return nil
	})
	return member, err
}

func (s *Service) DeleteStaff(ctx context.Context, accountID uuid.UUID) error {
	if _, err := s.staff.GetByAccountID(ctx, accountID); err != nil {
		return err
	}
	return s.accounts.Delete(ctx, accountID)
}

// generatePatientCode returns a code of the form PAT-XXXXXX where X is a
// decimal digit. Codes are random rather than sequential so they do not
// reveal the patient count; the unique index catches the rare collision.
func generatePatientCode() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate patient code: %w", err)
	}
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	return fmt.Sprintf("PAT-%06d", n%1000000), nil
}
