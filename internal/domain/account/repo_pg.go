package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/happyhealth/clinic/internal/platform/db"
)

// queryable abstracts pgxpool.Pool and pgx.Tx so repository methods join an
// ambient transaction when one is present in the context.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// -- Account Repository --

const accountColumns = `id, email, password_hash, role, first_name, last_name, phone, active, created_at, updated_at`

type accountRepoPG struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) AccountRepository {
	return &accountRepoPG{pool: pool}
}

func (r *accountRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *accountRepoPG) Create(ctx context.Context, acc *Account) error {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash, role, first_name, last_name, phone, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		acc.ID, acc.Email, acc.PasswordHash, acc.Role, acc.FirstName, acc.LastName, acc.Phone, acc.Active,
	)
	return err
}

func (r *accountRepoPG) scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.FirstName, &a.LastName,
		&a.Phone, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *accountRepoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
}

func (r *accountRepoPG) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

func (r *accountRepoPG) Update(ctx context.Context, acc *Account) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE accounts SET
			email = $2, password_hash = $3, first_name = $4, last_name = $5,
			phone = $6, active = $7, updated_at = NOW()
		WHERE id = $1`,
		acc.ID, acc.Email, acc.PasswordHash, acc.FirstName, acc.LastName, acc.Phone, acc.Active,
	)
	return err
}

func (r *accountRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (account_id, patient_code, tax_id, date_of_birth, address, city, province, zip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.AccountID, p.PatientCode, p.TaxID, p.DateOfBirth, p.Address, p.City, p.Province, p.Zip,
	)
	return err
}

const patientJoin = `
	SELECT p.account_id, p.patient_code, p.tax_id, p.date_of_birth, p.address, p.city, p.province, p.zip,
	       a.id, a.email, a.password_hash, a.role, a.first_name, a.last_name, a.phone, a.active, a.created_at, a.updated_at
	FROM patients p
	JOIN accounts a ON a.id = p.account_id`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var a Account
	err := row.Scan(
		&p.AccountID, &p.PatientCode, &p.TaxID, &p.DateOfBirth, &p.Address, &p.City, &p.Province, &p.Zip,
		&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.FirstName, &a.LastName, &a.Phone, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Account = &a
	return &p, nil
}

func (r *patientRepoPG) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, patientJoin+` WHERE p.account_id = $1`, accountID))
}

func (r *patientRepoPG) GetByCode(ctx context.Context, code string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, patientJoin+` WHERE p.patient_code = $1`, code))
}

func (r *patientRepoPG) ExistsByTaxID(ctx context.Context, taxID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE tax_id = $1)`, taxID).Scan(&exists)
	return exists, err
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET
			tax_id = $2, date_of_birth = $3, address = $4, city = $5, province = $6, zip = $7
		WHERE account_id = $1`,
		p.AccountID, p.TaxID, p.DateOfBirth, p.Address, p.City, p.Province, p.Zip,
	)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		patientJoin+` ORDER BY a.last_name, a.first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctors (account_id, specialization, license_number, office_room)
		VALUES ($1, $2, $3, $4)`,
		d.AccountID, d.Specialization, d.LicenseNumber, d.OfficeRoom,
	)
	return err
}

const doctorJoin = `
	SELECT d.account_id, d.specialization, d.license_number, d.office_room,
	       a.id, a.email, a.password_hash, a.role, a.first_name, a.last_name, a.phone, a.active, a.created_at, a.updated_at
	FROM doctors d
	JOIN accounts a ON a.id = d.account_id`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var a Account
	err := row.Scan(
		&d.AccountID, &d.Specialization, &d.LicenseNumber, &d.OfficeRoom,
		&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.FirstName, &a.LastName, &a.Phone, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Account = &a
	return &d, nil
}

func (r *doctorRepoPG) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, doctorJoin+` WHERE d.account_id = $1`, accountID))
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctors SET specialization = $2, license_number = $3, office_room = $4
		WHERE account_id = $1`,
		d.AccountID, d.Specialization, d.LicenseNumber, d.OfficeRoom,
	)
	return err
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		doctorJoin+` ORDER BY a.last_name, a.first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

// -- Staff Repository --

type staffRepoPG struct {
	pool *pgxpool.Pool
}

func NewStaffRepo(pool *pgxpool.Pool) StaffRepository {
	return &staffRepoPG{pool: pool}
}

func (r *staffRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *staffRepoPG) Create(ctx context.Context, s *Staff) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO staff (account_id, department, position, hired_at)
		VALUES ($1, $2, $3, $4)`,
		s.AccountID, s.Department, s.Position, s.HiredAt,
	)
	return err
}

const staffJoin = `
	SELECT s.account_id, s.department, s.position, s.hired_at,
	       a.id, a.email, a.password_hash, a.role, a.first_name, a.last_name, a.phone, a.active, a.created_at, a.updated_at
	FROM staff s
	JOIN accounts a ON a.id = s.account_id`

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	var a Account
	err := row.Scan(
		&s.AccountID, &s.Department, &s.Position, &s.HiredAt,
		&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.FirstName, &a.LastName, &a.Phone, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Account = &a
	return &s, nil
}

func (r *staffRepoPG) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Staff, error) {
	return scanStaff(r.conn(ctx).QueryRow(ctx, staffJoin+` WHERE s.account_id = $1`, accountID))
}

func (r *staffRepoPG) Update(ctx context.Context, s *Staff) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff SET department = $2, position = $3, hired_at = $4
		WHERE account_id = $1`,
		s.AccountID, s.Department, s.Position, s.HiredAt,
	)
	return err
}

func (r *staffRepoPG) List(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM staff`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		staffJoin+` ORDER BY a.last_name, a.first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var members []*Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, 0, err
		}
		members = append(members, s)
	}
	return members, total, rows.Err()
}
