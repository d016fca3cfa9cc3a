package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for appointments.
//
// FindOverlapping returns the doctor's occupying appointments whose
// half-open interval intersects [start, end), excluding the row identified
// by excludeID (pass uuid.Nil to exclude nothing). Implementations called
// inside a transaction must lock the rows they return, so that the
// check-then-insert sequence in the service serializes against concurrent
// bookings for the same doctor.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Appointment, int, error)
	ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Appointment, int, error)
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*Appointment, error)
}
