package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/happyhealth/clinic/internal/platform/auth"
)

// Account maps to the accounts table. The password hash never appears in a
// response body.
type Account struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for notifications and listings.
func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

// Patient maps to the patients table, joined to accounts by account id.
type Patient struct {
	AccountID   uuid.UUID  `db:"account_id" json:"account_id"`
	PatientCode string     `db:"patient_code" json:"patient_code"`
	TaxID       string     `db:"tax_id" json:"tax_id"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	City        *string    `db:"city" json:"city,omitempty"`
	Province    *string    `db:"province" json:"province,omitempty"`
	Zip         *string    `db:"zip" json:"zip,omitempty"`

	Account *Account `db:"-" json:"account,omitempty"`
}

// Doctor maps to the doctors table.
type Doctor struct {
	AccountID      uuid.UUID `db:"account_id" json:"account_id"`
	Specialization string    `db:"specialization" json:"specialization"`
	LicenseNumber  string    `db:"license_number" json:"license_number"`
	OfficeRoom     *string   `db:"office_room" json:"office_room,omitempty"`

	Account *Account `db:"-" json:"account,omitempty"`
}

// Staff maps to the staff table.
type Staff struct {
	AccountID  uuid.UUID  `db:"account_id" json:"account_id"`
	Department string     `db:"department" json:"department"`
	Position   string     `db:"position" json:"position"`
	HiredAt    *time.Time `db:"hired_at" json:"hired_at,omitempty"`

	Account *Account `db:"-" json:"account,omitempty"`
}
