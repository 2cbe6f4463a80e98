package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicore/clinic-booking/internal/booking"
)

// Service builds and dispatches patient emails. It implements
// booking.Notifier; the booking service treats every failure here as
// best-effort.
type Service struct {
	email EmailSender
}

func NewService(email EmailSender) *Service {
	return &Service{email: email}
}

// SendReminder confirms a freshly created appointment to the patient.
func (s *Service) SendReminder(ctx context.Context, n booking.AppointmentNotice) error {
	if n.PatientEmail == "" {
		return errors.New("patient has no email address")
	}

	body := fmt.Sprintf(
		"Hello %s,\n\nYour appointment with Dr. %s is scheduled for %s at %s.\nReason: %s\n\nPlease arrive a few minutes early.",
		n.PatientName, n.DoctorName, n.Date, n.Time, n.Reason,
	)

	return s.email.Send(ctx, EmailMessage{
		To:      n.PatientEmail,
		ToName:  n.PatientName,
		Subject: fmt.Sprintf("Appointment reminder: %s at %s", n.Date, n.Time),
		Body:    body,
	})
}

// SendRecap follows up once an appointment is completed.
func (s *Service) SendRecap(ctx context.Context, n booking.AppointmentNotice) error {
	if n.PatientEmail == "" {
		return errors.New("patient has no email address")
	}

	body := fmt.Sprintf(
		"Hello %s,\n\nThank you for visiting Dr. %s on %s.\nIf you have questions about your visit, reply to this email.",
		n.PatientName, n.DoctorName, n.Date,
	)

	return s.email.Send(ctx, EmailMessage{
		To:      n.PatientEmail,
		ToName:  n.PatientName,
		Subject: "Your appointment recap",
		Body:    body,
	})
}
