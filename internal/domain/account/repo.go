package account

import (
	"context"

	"github.com/google/uuid"
)

// AccountRepository defines the persistence interface for accounts.
type AccountRepository interface {
	Create(ctx context.Context, acc *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, acc *Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PatientRepository defines the persistence interface for patient profiles.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Patient, error)
	GetByCode(ctx context.Context, code string) (*Patient, error)
	ExistsByTaxID(ctx context.Context, taxID string) (bool, error)
	Update(ctx context.Context, p *Patient) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
}

// DoctorRepository defines the persistence interface for doctor profiles.
type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
}

// StaffRepository defines the persistence interface for staff profiles.
type StaffRepository interface {
	Create(ctx context.Context, s *Staff) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Staff, error)
	Update(ctx context.Context, s *Staff) error
	List(ctx context.Context, limit, offset int) ([]*Staff, int, error)
}
