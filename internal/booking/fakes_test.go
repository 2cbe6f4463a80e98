package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory fakes for the store contracts. The slot fake guards its state
// with a mutex and implements the same conditional-claim semantics as the
// Postgres store, so the mutual-exclusion tests are meaningful.

type fakeDoctors struct {
	mu      sync.Mutex
	doctors map[uuid.UUID]Doctor
}

func newFakeDoctors() *fakeDoctors {
	return &fakeDoctors{doctors: make(map[uuid.UUID]Doctor)}
}

func (f *fakeDoctors) add(d Doctor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doctors[d.ID] = d
}

func (f *fakeDoctors) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

type fakePatients struct {
	mu       sync.Mutex
	patients map[uuid.UUID]Patient
}

func newFakePatients() *fakePatients {
	return &fakePatients{patients: make(map[uuid.UUID]Patient)}
}

func (f *fakePatients) add(p Patient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patients[p.ID] = p
}

func (f *fakePatients) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

type fakeSlotRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]AvailabilitySlot
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: make(map[uuid.UUID]AvailabilitySlot)}
}

func (f *fakeSlotRepo) get(id uuid.UUID) (AvailabilitySlot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	return s, ok
}

func (f *fakeSlotRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.slots)
}

func (f *fakeSlotRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func inWindow(s AvailabilitySlot, doctorID uuid.UUID, dayStart, dayEnd time.Time) bool {
	return s.DoctorID == doctorID && !s.Date.Before(dayStart) && s.Date.Before(dayEnd)
}

func (f *fakeSlotRepo) FindBookableSlot(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time, startTime string) (*AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots {
		if inWindow(s, doctorID, dayStart, dayEnd) && s.StartTime == startTime && s.Bookable() {
			slot := s
			return &slot, nil
		}
	}
	return nil, ErrSlotNotFound
}

func (f *fakeSlotRepo) ListBookableSlots(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) ([]AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []AvailabilitySlot
	for _, s := range f.slots {
		if inWindow(s, doctorID, dayStart, dayEnd) && s.Bookable() {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

func (f *fakeSlotRepo) HasSlots(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.slots {
		if inWindow(s, doctorID, dayStart, dayEnd) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSlotRepo) ExistingStartTimes(ctx context.Context, doctorID uuid.UUID, dayStart, dayEnd time.Time) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := make(map[string]struct{})
	for _, s := range f.slots {
		if inWindow(s, doctorID, dayStart, dayEnd) {
			existing[s.StartTime] = struct{}{}
		}
	}
	return existing, nil
}

func (f *fakeSlotRepo) InsertSlots(ctx context.Context, slots []AvailabilitySlot) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted := 0
	for _, s := range slots {
		if f.naturalKeyExistsLocked(s) {
			continue
		}
		f.slots[s.ID] = s
		inserted++
	}
	return inserted, nil
}

func (f *fakeSlotRepo) naturalKeyExistsLocked(candidate AvailabilitySlot) bool {
	for _, s := range f.slots {
		if s.DoctorID == candidate.DoctorID && s.Date.Equal(candidate.Date) && s.StartTime == candidate.StartTime {
			return true
		}
	}
	return false
}

func (f *fakeSlotRepo) ClaimSlot(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok || !s.Bookable() {
		return ErrSlotUnavailable
	}
	s.IsBooked = true
	s.IsAvailable = false
	f.slots[id] = s
	return nil
}

func (f *fakeSlotRepo) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil
	}
	s.IsBooked = false
	s.IsAvailable = true
	f.slots[id] = s
	return nil
}

func (f *fakeSlotRepo) DeleteSlotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, s := range f.slots {
		if s.Date.Before(cutoff) {
			delete(f.slots, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeApptRepo struct {
	mu     sync.Mutex
	appts  map[uuid.UUID]Appointment
	events []EventLog
	slots  *fakeSlotRepo

	updateErr error // injected store failure for UpdateAppointment
}

func newFakeApptRepo(slots *fakeSlotRepo) *fakeApptRepo {
	return &fakeApptRepo{appts: make(map[uuid.UUID]Appointment), slots: slots}
}

func (f *fakeApptRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appts)
}

func (f *fakeApptRepo) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := *appt
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	f.appts[a.ID] = a
	return &a, nil
}

func (f *fakeApptRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (f *fakeApptRepo) UpdateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if _, ok := f.appts[appt.ID]; !ok {
		return nil, ErrAppointmentNotFound
	}
	a := *appt
	a.UpdatedAt = time.Now()
	f.appts[a.ID] = a
	return &a, nil
}

func (f *fakeApptRepo) DeleteAppointmentReleasingSlot(ctx context.Context, id uuid.UUID, slotID *uuid.UUID) error {
	f.mu.Lock()
	if _, ok := f.appts[id]; !ok {
		f.mu.Unlock()
		return ErrAppointmentNotFound
	}
	delete(f.appts, id)
	f.mu.Unlock()

	if slotID != nil {
		return f.slots.ReleaseSlot(ctx, *slotID)
	}
	return nil
}

func (f *fakeApptRepo) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []Appointment
	for _, a := range f.appts {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return paginate(result, limit, offset), nil
}

func (f *fakeApptRepo) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []Appointment
	for _, a := range f.appts {
		if a.DoctorID == doctorID {
			result = append(result, a)
		}
	}
	return paginate(result, limit, offset), nil
}

func paginate(appts []Appointment, limit, offset int) []Appointment {
	sort.Slice(appts, func(i, j int) bool {
		return appts[i].CreatedAt.After(appts[j].CreatedAt)
	})
	if offset >= len(appts) {
		return nil
	}
	appts = appts[offset:]
	if limit < len(appts) {
		appts = appts[:limit]
	}
	return appts
}

func (f *fakeApptRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

// passLocker serializes callers per slot with plain mutexes, mirroring the
// Redis locker's critical-section guarantee without a Redis round trip.
type passLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newPassLocker() *passLocker {
	return &passLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *passLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[slotID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[slotID] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()
	return fn(ctx)
}

type fakeNotifier struct {
	mu        sync.Mutex
	reminders []AppointmentNotice
	recaps    []AppointmentNotice
}

func (f *fakeNotifier) SendReminder(ctx context.Context, n AppointmentNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reminders = append(f.reminders, n)
	return nil
}

func (f *fakeNotifier) SendRecap(ctx context.Context, n AppointmentNotice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recaps = append(f.recaps, n)
	return nil
}

func (f *fakeNotifier) recapCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recaps)
}

func (f *fakeNotifier) reminderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reminders)
}

// testEnv wires a full service over the fakes with one doctor and patient.
type testEnv struct {
	doctors  *fakeDoctors
	patients *fakePatients
	slots    *fakeSlotRepo
	appts    *fakeApptRepo
	notifier *fakeNotifier

	generator    *Generator
	availability *Availability
	service      *Service

	doctor  Doctor
	patient Patient
}

func newTestEnv() *testEnv {
	doctors := newFakeDoctors()
	patients := newFakePatients()
	slots := newFakeSlotRepo()
	appts := newFakeApptRepo(slots)
	notifier := &fakeNotifier{}

	email := "jane@example.com"
	doctor := Doctor{
		ID:                  uuid.New(),
		Name:                "Gregory House",
		OpeningTime:         "09:00",
		ClosingTime:         "17:00",
		SlotDurationMinutes: 30,
	}
	patient := Patient{
		ID:    uuid.New(),
		Name:  "Jane Doe",
		Email: &email,
	}
	doctors.add(doctor)
	patients.add(patient)

	generator := NewGenerator(doctors, slots)
	availability := NewAvailability(doctors, slots, generator)
	service := NewService(doctors, patients, slots, appts, generator, newPassLocker(), notifier)

	return &testEnv{
		doctors:      doctors,
		patients:     patients,
		slots:        slots,
		appts:        appts,
		notifier:     notifier,
		generator:    generator,
		availability: availability,
		service:      service,
		doctor:       doctor,
		patient:      patient,
	}
}
