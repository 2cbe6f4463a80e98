package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotUnavailable covers both a slot that is already booked and one
	// that lost the conditional claim to a concurrent request.
	ErrSlotUnavailable    = errors.New("slot is not available")
	ErrSlotDoctorMismatch = errors.New("slot belongs to a different doctor")
	ErrSlotBeingBooked    = errors.New("slot is currently being booked, please retry")
)

// DoctorDirectory resolves doctors and their working-hours configuration.
type DoctorDirectory interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
}

// PatientDirectory resolves patients.
type PatientDirectory interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// SlotRepository is the persistent slot store.
type SlotRepository interface {
	GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error)

	// FindBookableSlot locates a bookable slot for the doctor within the day
	// window starting at the given "HH:MM" time. Returns ErrSlotNotFound when
	// nothing matches.
	FindBookableSlot(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time, startTime string) (*AvailabilitySlot, error)

	// ListBookableSlots returns the bookable slots in the window ordered by
	// start time ascending.
	ListBookableSlots(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]AvailabilitySlot, error)

	// HasSlots reports whether any slot rows exist for the doctor in the
	// window, booked or not.
	HasSlots(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) (bool, error)

	// ExistingStartTimes returns the start times already materialized for the
	// doctor on the given day, for duplicate-skip during generation.
	ExistingStartTimes(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) (map[string]struct{}, error)

	// InsertSlots bulk-inserts with skip-on-duplicate semantics on the
	// (doctor_id, date, start_time) natural key and returns the number of
	// rows actually inserted.
	InsertSlots(ctx context.Context, slots []AvailabilitySlot) (int, error)

	// ClaimSlot atomically flips a bookable slot to booked. It returns
	// ErrSlotUnavailable when the slot was already claimed or does not exist,
	// so of N concurrent claims exactly one succeeds.
	ClaimSlot(ctx context.Context, id uuid.UUID) error

	// ReleaseSlot flips a slot back to bookable. Releasing a slot that was
	// swept in the meantime is a no-op.
	ReleaseSlot(ctx context.Context, id uuid.UUID) error

	// DeleteSlotsBefore removes every slot dated strictly before the cutoff,
	// booked or not, and returns the number deleted.
	DeleteSlotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AppointmentRepository is the persistent appointment store.
type AppointmentRepository interface {
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	// DeleteAppointmentReleasingSlot removes the appointment and, when slotID
	// is set, releases that slot in the same transaction.
	DeleteAppointmentReleasingSlot(ctx context.Context, id uuid.UUID, slotID *uuid.UUID) error

	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error)

	// InsertEvent appends to the booking audit trail.
	InsertEvent(ctx context.Context, ev EventLog) error
}
