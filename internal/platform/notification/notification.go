// Package notification delivers best-effort patient notifications. Callers
// never fail an operation because a notification could not be sent; the
// interfaces here exist so the delivery channel (SMTP, SMS gateway) can be
// swapped without touching domain code.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Welcome is sent after successful account registration.
type Welcome struct {
	Recipient string
	FirstName string
}

// AppointmentConfirmation is sent after an appointment is booked or
// rescheduled.
type AppointmentConfirmation struct {
	Recipient     string
	PatientName   string
	DoctorName    string
	AppointmentID uuid.UUID
	StartsAt      time.Time
	Duration      time.Duration
}

// CancellationNotice is sent when an appointment is cancelled.
type CancellationNotice struct {
	Recipient     string
	AppointmentID uuid.UUID
	StartsAt      time.Time
}

// Notifier delivers clinic notifications.
type Notifier interface {
	SendWelcome(ctx context.Context, n Welcome) error
	SendAppointmentConfirmation(ctx context.Context, n AppointmentConfirmation) error
	SendCancellationNotice(ctx context.Context, n CancellationNotice) error
}

// LogNotifier writes notifications to the structured log instead of an
// external channel. It is the default in development and in deployments
// without a mail gateway.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) SendWelcome(_ context.Context, n Welcome) error {
	l.logger.Info().
		Str("kind", "welcome").
		Str("recipient", n.Recipient).
		Str("first_name", n.FirstName).
		Msg("notification")
	return nil
}

func (l *LogNotifier) SendAppointmentConfirmation(_ context.Context, n AppointmentConfirmation) error {
	l.logger.Info().
		Str("kind", "appointment_confirmation").
		Str("recipient", n.Recipient).
		Str("appointment_id", n.AppointmentID.String()).
		Time("starts_at", n.StartsAt).
		Dur("duration", n.Duration).
		Msg("notification")
	return nil
}

func (l *LogNotifier) SendCancellationNotice(_ context.Context, n CancellationNotice) error {
	l.logger.Info().
		Str("kind", "cancellation_notice").
		Str("recipient", n.Recipient).
		Str("appointment_id", n.AppointmentID.String()).
		Time("starts_at", n.StartsAt).
		Msg("notification")
	return nil
}
