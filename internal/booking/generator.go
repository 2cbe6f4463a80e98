package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generator materializes availability slots from a doctor's working-hours
// configuration. Generation is idempotent: existing slots are skipped both by
// the pre-check here and by the store's skip-on-duplicate insert.
type Generator struct {
	doctors DoctorDirectory
	slots   SlotRepository
}

func NewGenerator(doctors DoctorDirectory, slots SlotRepository) *Generator {
	return &Generator{doctors: doctors, slots: slots}
}

// GenerateSlots creates the slot grid for every day in [startDate, endDate]
// inclusive and returns the number of slots actually inserted. A range whose
// grid is already fully materialized is a no-op returning 0.
func (g *Generator) GenerateSlots(ctx context.Context, doctorID uuid.UUID, startDate, endDate time.Time) (int, error) {
	doctor, err := g.doctors.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return 0, fmt.Errorf("load doctor: %w", err)
	}

	grid, err := BuildDayGrid(doctor.OpeningTime, doctor.ClosingTime, doctor.SlotDurationMinutes)
	if err != nil {
		return 0, err
	}
	if len(grid) == 0 {
		return 0, nil
	}

	inserted := 0
	for day := DayStart(startDate); !day.After(DayStart(endDate)); day = day.AddDate(0, 0, 1) {
		dayStart, dayEnd := DayBounds(day)

		existing, err := g.slots.ExistingStartTimes(ctx, doctorID, dayStart, dayEnd)
		if err != nil {
			return inserted, fmt.Errorf("load existing slots for %s: %w", day.Format("2006-01-02"), err)
		}

		var fresh []AvailabilitySlot
		for _, gs := range grid {
			if _, ok := existing[gs.Start]; ok {
				continue
			}
			fresh = append(fresh, AvailabilitySlot{
				ID:          uuid.New(),
				DoctorID:    doctorID,
				Date:        day,
				StartTime:   gs.Start,
				EndTime:     gs.End,
				IsAvailable: true,
				IsBooked:    false,
			})
		}
		if len(fresh) == 0 {
			continue
		}

		n, err := g.slots.InsertSlots(ctx, fresh)
		if err != nil {
			return inserted, fmt.Errorf("insert slots for %s: %w", day.Format("2006-01-02"), err)
		}
		inserted += n
	}

	return inserted, nil
}
