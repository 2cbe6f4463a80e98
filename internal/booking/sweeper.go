package booking

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Sweeper reclaims storage by deleting slots whose day has passed. Booked
// slots go too: the owning appointment keeps its own display date and time.
type Sweeper struct {
	slots SlotRepository
}

func NewSweeper(slots SlotRepository) *Sweeper {
	return &Sweeper{slots: slots}
}

// SweepPastSlots deletes every slot dated strictly before the current day
// (midnight UTC of now) and returns the count. Idempotent: a second run with
// nothing new in the past deletes 0.
func (s *Sweeper) SweepPastSlots(ctx context.Context, now time.Time) (int64, error) {
	cutoff := DayStart(now)

	deleted, err := s.slots.DeleteSlotsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete past slots: %w", err)
	}

	if deleted > 0 {
		log.Printf("swept %d past slots before %s", deleted, cutoff.Format("2006-01-02"))
	}
	return deleted, nil
}
