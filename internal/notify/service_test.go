package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinic-booking/internal/booking"
)

type recordingSender struct {
	sent []EmailMessage
}

func (r *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return nil
}

func sampleNotice() booking.AppointmentNotice {
	return booking.AppointmentNotice{
		PatientName:  "Jane Doe",
		PatientEmail: "jane@example.com",
		DoctorName:   "Gregory House",
		Date:         "14-09-2026",
		Time:         "10:00",
		Reason:       "checkup",
	}
}

func TestSendReminder(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender)

	require.NoError(t, svc.SendReminder(context.Background(), sampleNotice()))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Jane Doe", msg.ToName)
	assert.Contains(t, msg.Subject, "14-09-2026")
	assert.Contains(t, msg.Body, "Dr. Gregory House")
	assert.Contains(t, msg.Body, "10:00")
	assert.Contains(t, msg.Body, "checkup")
}

func TestSendRecap(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender)

	require.NoError(t, svc.SendRecap(context.Background(), sampleNotice()))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "Your appointment recap", msg.Subject)
	assert.Contains(t, msg.Body, "14-09-2026")
}

func TestMissingEmailFails(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender)

	n := sampleNotice()
	n.PatientEmail = ""

	assert.Error(t, svc.SendReminder(context.Background(), n))
	assert.Error(t, svc.SendRecap(context.Background(), n))
	assert.Empty(t, sender.sent)
}

func TestNewSendGridSender_DisabledWithoutKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{}))
	assert.NotNil(t, NewSendGridSender(SendGridConfig{APIKey: "SG.test", FromEmail: "no-reply@clinic.example"}))
}
