package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/happyhealth/clinic/internal/domain/account"
	"github.com/happyhealth/clinic/internal/platform/db"
	"github.com/happyhealth/clinic/internal/platform/notification"
)

var (
	// ErrNotFound is returned when no appointment matches the lookup.
	ErrNotFound = errors.New("appointment not found")
	// ErrSlotTaken is returned when the requested interval overlaps an
	// occupying appointment of the same doctor.
	ErrSlotTaken = errors.New("doctor already booked in the requested slot")
	// ErrDoctorNotFound and ErrPatientNotFound are returned when a booking
	// references a collaborator that does not exist.
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// maxDurationMinutes caps a single appointment at a working day.
const maxDurationMinutes = 8 * 60

type Service struct {
	repo     Repository
	doctors  account.DoctorRepository
	patients account.PatientRepository
	runner   db.Runner
	notifier notification.Notifier
	logger   zerolog.Logger
}

func NewService(
	repo Repository,
	doctors account.DoctorRepository,
	patients account.PatientRepository,
	runner db.Runner,
	notifier notification.Notifier,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		doctors:  doctors,
		patients: patients,
		runner:   runner,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateInput carries the booking payload.
type CreateInput struct {
	DoctorID        uuid.UUID `json:"doctor_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          *string   `json:"reason,omitempty"`
}

func (in *CreateInput) validate() error {
	if in.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if in.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if in.StartsAt.IsZero() {
		return fmt.Errorf("starts_at is required")
	}
	if in.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive")
	}
	if in.DurationMinutes > maxDurationMinutes {
		return fmt.Errorf("duration_minutes must not exceed %d", maxDurationMinutes)
	}
	return nil
}

// Create books an appointment. The overlap check and the insert run in one
// transaction: the check locks the doctor's occupying rows in the window, so
// of two concurrent bookings for the same slot exactly one commits and the
// other observes the conflict. The schema's exclusion constraint backs this
// up; a violation surfaces as the same ErrSlotTaken.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	doctor, err := s.doctors.GetByAccountID(ctx, in.DoctorID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	patient, err := s.patients.GetByAccountID(ctx, in.PatientID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	appt := &Appointment{
		ID:              uuid.New(),
		DoctorID:        in.DoctorID,
		PatientID:       in.PatientID,
		StartsAt:        in.StartsAt.UTC(),
		DurationMinutes: in.DurationMinutes,
		Status:          StatusScheduled,
		Reason:          in.Reason,
	}

	err = s.runner.WithTx(ctx, func(ctx context.Context) error {
		overlapping, err := s.repo.FindOverlapping(ctx, appt.DoctorID, appt.StartsAt, appt.EndsAt(), uuid.Nil)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return ErrSlotTaken
		}
		return s.repo.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.SendAppointmentConfirmation(ctx, notification.AppointmentConfirmation{
		Recipient:     patient.Account.Email,
		PatientName:   patient.Account.FullName(),
		DoctorName:    doctor.Account.FullName(),
		AppointmentID: appt.ID,
		StartsAt:      appt.StartsAt,
		Duration:      time.Duration(appt.DurationMinutes) * time.Minute,
	}); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("confirmation notification failed")
	}

	return appt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) ListByStatus(ctx context.Context, raw string, limit, offset int) ([]*Appointment, int, error) {
	status, ok := ParseStatus(raw)
	if !ok {
		return nil, 0, fmt.Errorf("unknown status %q", raw)
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

// ListByDateRange returns appointments starting within [from, to).
func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time, limit, offset int) ([]*Appointment, int, error) {
	if from.IsZero() || to.IsZero() {
		return nil, 0, fmt.Errorf("from and to are required")
	}
	if !from.Before(to) {
		return nil, 0, fmt.Errorf("from must precede to")
	}
	return s.repo.ListByDateRange(ctx, from, to, limit, offset)
}

// UpdateInput carries the mutable slice of an appointment. Nil fields are
// left unchanged.
type UpdateInput struct {
	DoctorID        *uuid.UUID `json:"doctor_id,omitempty"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Status          *string    `json:"status,omitempty"`
	Reason          *string    `json:"reason,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

// Update reschedules or edits an appointment. When the doctor, start, or
// duration changes and the appointment still occupies its slot, the overlap
// check runs again, excluding the appointment's own row so an unchanged
// portion of its old interval does not count as a conflict.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	if in.DurationMinutes != nil && (*in.DurationMinutes <= 0 || *in.DurationMinutes > maxDurationMinutes) {
		return nil, fmt.Errorf("duration_minutes must be between 1 and %d", maxDurationMinutes)
	}
	var status Status
	if in.Status != nil {
		var ok bool
		status, ok = ParseStatus(*in.Status)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", *in.Status)
		}
	}
	if in.DoctorID != nil {
		if _, err := s.doctors.GetByAccountID(ctx, *in.DoctorID); err != nil {
			if errors.Is(err, account.ErrNotFound) {
				return nil, ErrDoctorNotFound
			}
			return nil, err
		}
	}

	var appt *Appointment
	err := s.runner.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}

		slotChanged := false
		if in.DoctorID != nil && *in.DoctorID != a.DoctorID {
			a.DoctorID = *in.DoctorID
			slotChanged = true
		}
		if in.StartsAt != nil && !in.StartsAt.Equal(a.StartsAt) {
			a.StartsAt = in.StartsAt.UTC()
			slotChanged = true
		}
		if in.DurationMinutes != nil && *in.DurationMinutes != a.DurationMinutes {
			a.DurationMinutes = *in.DurationMinutes
			slotChanged = true
		}
		if in.Status != nil {
			if status.Occupying() && !a.Status.Occupying() {
				// Reviving a cancelled slot re-enters the conflict check.
				slotChanged = true
			}
			a.Status = status
		}
		if in.Reason != nil {
			a.Reason = in.Reason
		}
		if in.Notes != nil {
			a.Notes = in.Notes
		}

		if slotChanged && a.Status.Occupying() {
			overlapping, err := s.repo.FindOverlapping(ctx, a.DoctorID, a.StartsAt, a.EndsAt(), a.ID)
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				return ErrSlotTaken
			}
		}

		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		appt = a
		return nil
	})
	return appt, err
}

// Cancel is a soft status transition. The row stays for history; the
// interval is freed for new bookings.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var appt *Appointment
	err := s.runner.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status == StatusCancelled {
			appt = a
			return nil
		}
		a.Status = StatusCancelled
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		appt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	if patient, perr := s.patients.GetByAccountID(ctx, appt.PatientID); perr == nil {
		if err := s.notifier.SendCancellationNotice(ctx, notification.CancellationNotice{
			Recipient:     patient.Account.Email,
			AppointmentID: appt.ID,
			StartsAt:      appt.StartsAt,
		}); err != nil {
			s.logger.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("cancellation notification failed")
		}
	}

	return appt, nil
}

// Delete removes the row entirely. Admin-only, meant for bookings created
// by mistake; normal flows cancel instead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
