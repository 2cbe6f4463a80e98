package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending       AppointmentStatus = "PENDING"
	StatusConfirmed     AppointmentStatus = "CONFIRMED"
	StatusDoctorCreated AppointmentStatus = "DOCTOR_CREATED"
	StatusCancelled     AppointmentStatus = "CANCELLED"
	StatusCompleted     AppointmentStatus = "COMPLETED"
)

// Valid reports whether s is one of the known appointment statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusDoctorCreated, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Doctor carries the working-hours configuration used for slot generation.
// Opening and closing times are "HH:MM" 24-hour strings.
type Doctor struct {
	ID                  uuid.UUID
	Name                string
	Specialty           *string
	OpeningTime         string
	ClosingTime         string
	SlotDurationMinutes int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AvailabilitySlot is one fixed-width bookable interval for a doctor on a
// calendar day. Date is normalized to midnight UTC; (DoctorID, Date,
// StartTime) is unique in the store.
type AvailabilitySlot struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Date        time.Time
	StartTime   string
	EndTime     string
	IsAvailable bool
	IsBooked    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Bookable reports whether the slot can still be claimed.
func (s *AvailabilitySlot) Bookable() bool {
	return s.IsAvailable && !s.IsBooked
}

// Appointment keeps its own display Date and Time independently of any bound
// slot, so sweeping past slots never loses appointment history.
type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Time      string
	Reason    string
	Notes     string
	Status    AppointmentStatus
	SlotID    *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
