package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Availability answers "what can be booked for this doctor on this day",
// lazily materializing the day's grid on first access so callers never see an
// empty calendar for a day that simply has not been generated yet.
type Availability struct {
	doctors   DoctorDirectory
	slots     SlotRepository
	generator *Generator
}

func NewAvailability(doctors DoctorDirectory, slots SlotRepository, generator *Generator) *Availability {
	return &Availability{doctors: doctors, slots: slots, generator: generator}
}

// AvailableSlots returns the bookable slots for the doctor on the given day,
// ordered by start time. The result is already filtered to the bookable
// predicate; callers never need to re-check flags.
func (a *Availability) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]AvailabilitySlot, error) {
	if _, err := a.doctors.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	dayStart, dayEnd := DayBounds(date)

	exists, err := a.slots.HasSlots(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("check slot presence: %w", err)
	}
	if !exists {
		if _, err := a.generator.GenerateSlots(ctx, doctorID, dayStart, dayStart); err != nil {
			return nil, fmt.Errorf("materialize day: %w", err)
		}
	}

	return a.slots.ListBookableSlots(ctx, doctorID, dayStart, dayEnd)
}
