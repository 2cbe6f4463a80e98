package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlots_Idempotent(t *testing.T) {
	env := newTestEnv()

	n, err := env.generator.GenerateSlots(context.Background(), env.doctor.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	// Second run inserts nothing
	n, err = env.generator.GenerateSlots(context.Background(), env.doctor.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 16, env.slots.count())
}

func TestGenerateSlots_MultiDayRange(t *testing.T) {
	env := newTestEnv()

	end := day.AddDate(0, 0, 2)
	n, err := env.generator.GenerateSlots(context.Background(), env.doctor.ID, day, end)
	require.NoError(t, err)
	assert.Equal(t, 48, n)

	// Regenerating a wider range only fills the new day
	n, err = env.generator.GenerateSlots(context.Background(), env.doctor.ID, day, day.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

func TestGenerateSlots_BackfillsMissingTimes(t *testing.T) {
	env := newTestEnv()

	mustGenerate(t, env)

	// Drop one slot and regenerate; only the gap is filled.
	target := slotAt(t, env, "13:00")
	env.slots.mu.Lock()
	delete(env.slots.slots, target.ID)
	env.slots.mu.Unlock()

	n, err := env.generator.GenerateSlots(context.Background(), env.doctor.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 16, env.slots.count())
}

func TestGenerateSlots_UnknownDoctor(t *testing.T) {
	env := newTestEnv()

	_, err := env.generator.GenerateSlots(context.Background(), uuid.New(), day, day)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestGenerateSlots_MalformedHours(t *testing.T) {
	env := newTestEnv()

	bad := Doctor{ID: uuid.New(), Name: "Bad Hours", OpeningTime: "nine", ClosingTime: "17:00", SlotDurationMinutes: 30}
	env.doctors.add(bad)

	_, err := env.generator.GenerateSlots(context.Background(), bad.ID, day, day)
	require.Error(t, err)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestAvailableSlots_LazyMaterialization(t *testing.T) {
	env := newTestEnv()
	require.Equal(t, 0, env.slots.count())

	slots, err := env.availability.AvailableSlots(context.Background(), env.doctor.ID, day)
	require.NoError(t, err)
	require.Len(t, slots, 16)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "16:30", slots[15].StartTime)
}

func TestAvailableSlots_ExcludesBooked(t *testing.T) {
	env := newTestEnv()
	mustGenerate(t, env)
	slot := slotAt(t, env, "09:00")

	require.NoError(t, env.slots.ClaimSlot(context.Background(), slot.ID))

	slots, err := env.availability.AvailableSlots(context.Background(), env.doctor.ID, day)
	require.NoError(t, err)
	require.Len(t, slots, 15)
	assert.Equal(t, "09:30", slots[0].StartTime)
}

func TestAvailableSlots_FullyBookedDayNotRegenerated(t *testing.T) {
	env := newTestEnv()
	mustGenerate(t, env)

	env.slots.mu.Lock()
	for id, s := range env.slots.slots {
		s.IsBooked = true
		s.IsAvailable = false
		env.slots.slots[id] = s
	}
	env.slots.mu.Unlock()

	slots, err := env.availability.AvailableSlots(context.Background(), env.doctor.ID, day)
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Equal(t, 16, env.slots.count())
}

func TestAvailableSlots_UnknownDoctor(t *testing.T) {
	env := newTestEnv()

	_, err := env.availability.AvailableSlots(context.Background(), uuid.New(), day)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestSweepPastSlots(t *testing.T) {
	env := newTestEnv()
	sweeper := NewSweeper(env.slots)

	now := time.Date(2026, 9, 14, 10, 30, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	lastWeek := now.AddDate(0, 0, -7)

	for _, d := range []time.Time{lastWeek, yesterday, now} {
		n, err := env.generator.GenerateSlots(context.Background(), env.doctor.ID, d, d)
		require.NoError(t, err)
		require.Equal(t, 16, n)
	}

	// A booked past slot is swept like any other.
	dayStart, dayEnd := DayBounds(yesterday)
	booked, err := env.slots.FindBookableSlot(context.Background(), env.doctor.ID, dayStart, dayEnd, "09:00")
	require.NoError(t, err)
	require.NoError(t, env.slots.ClaimSlot(context.Background(), booked.ID))

	deleted, err := sweeper.SweepPastSlots(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(32), deleted)

	// Today's grid survives in full
	assert.Equal(t, 16, env.slots.count())
	_, ok := env.slots.get(booked.ID)
	assert.False(t, ok)

	// Second sweep is a no-op
	deleted, err = sweeper.SweepPastSlots(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
