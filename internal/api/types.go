package api

import (
	"github.com/google/uuid"

	"github.com/clinicore/clinic-booking/internal/booking"
)

// displayDateLayout is the dd-MM-yyyy format clients send and receive.
const displayDateLayout = "02-01-2006"

type CreateAppointmentRequest struct {
	PatientID string  `json:"patient_id"`
	DoctorID  string  `json:"doctor_id"`
	Date      string  `json:"date"` // dd-MM-yyyy
	Time      string  `json:"time"` // free text, e.g. "09:30" or "9:30 AM"
	Reason    string  `json:"reason"`
	Notes     string  `json:"notes,omitempty"`
	SlotID    *string `json:"slot_id,omitempty"`
	Status    string  `json:"status,omitempty"`
}

type UpdateAppointmentRequest struct {
	Date   *string `json:"date,omitempty"`
	Time   *string `json:"time,omitempty"`
	Reason *string `json:"reason,omitempty"`
	Notes  *string `json:"notes,omitempty"`
	Status *string `json:"status,omitempty"`
	SlotID *string `json:"slot_id,omitempty"`
}

type AppointmentResponse struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"patient_id"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	Reason    string     `json:"reason"`
	Notes     string     `json:"notes,omitempty"`
	Status    string     `json:"status"`
	SlotID    *uuid.UUID `json:"slot_id,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Date:      a.Date.Format(displayDateLayout),
		Time:      a.Time,
		Reason:    a.Reason,
		Notes:     a.Notes,
		Status:    string(a.Status),
		SlotID:    a.SlotID,
	}
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

func toSlotResponse(s booking.AvailabilitySlot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		Date:      s.Date.Format(displayDateLayout),
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
	}
}

type GenerateSlotsRequest struct {
	StartDate string `json:"start_date"` // dd-MM-yyyy
	EndDate   string `json:"end_date"`   // dd-MM-yyyy
}

type GenerateSlotsResponse struct {
	Created int `json:"created"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
