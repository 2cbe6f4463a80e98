package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/clinicore/clinic-booking/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentDeleted   = "APPOINTMENT_DELETED"
	EventSlotBooked           = "SLOT_BOOKED"
	EventSlotReleased         = "SLOT_RELEASED"
)

// AppointmentNotice is the detail handed to the notification sender.
type AppointmentNotice struct {
	PatientName  string
	PatientEmail string
	DoctorName   string
	Date         string
	Time         string
	Reason       string
}

// Notifier dispatches patient-facing messages. Failures are logged and
// swallowed by the service; they never abort the primary operation.
type Notifier interface {
	SendReminder(ctx context.Context, n AppointmentNotice) error
	SendRecap(ctx context.Context, n AppointmentNotice) error
}

// Service is the appointment lifecycle coordinator. It owns slot binding:
// at most one non-cancelled appointment holds a given slot at any time.
type Service struct {
	doctors   DoctorDirectory
	patients  PatientDirectory
	slots     SlotRepository
	appts     AppointmentRepository
	generator *Generator
	locker    redisclient.Locker
	notifier  Notifier
}

func NewService(
	doctors DoctorDirectory,
	patients PatientDirectory,
	slots SlotRepository,
	appts AppointmentRepository,
	generator *Generator,
	locker redisclient.Locker,
	notifier Notifier,
) *Service {
	return &Service{
		doctors:   doctors,
		patients:  patients,
		slots:     slots,
		appts:     appts,
		generator: generator,
		locker:    locker,
		notifier:  notifier,
	}
}

type CreateInput struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Time      string
	Reason    string
	Notes     string
	SlotID    *uuid.UUID
	Status    AppointmentStatus // optional; DOCTOR_CREATED is honored as-is
}

// CreateAppointment books an appointment, binding a slot when one is
// explicitly given or when the free-text time matches the doctor's grid.
// An appointment whose time falls outside the grid is created unbound.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*Appointment, error) {
	patient, err := s.patients.GetPatientByID(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	doctor, err := s.doctors.GetDoctorByID(ctx, in.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if in.Status != "" && !in.Status.Valid() {
		return nil, validationError("unknown status %q", in.Status)
	}

	slot, err := s.resolveSlot(ctx, in)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status != StatusDoctorCreated {
		// Slot-backed appointments are provisionally doctor-confirmed,
		// ad-hoc ones await confirmation.
		if slot != nil {
			status = StatusDoctorCreated
		} else {
			status = StatusPending
		}
	}

	appt := &Appointment{
		ID:        uuid.New(),
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Date:      DayStart(in.Date),
		Time:      in.Time,
		Reason:    in.Reason,
		Notes:     in.Notes,
		Status:    status,
	}

	var created *Appointment
	if slot != nil {
		appt.SlotID = &slot.ID
		created, err = s.bindAndCreate(ctx, slot.ID, appt)
	} else {
		created, err = s.appts.CreateAppointment(ctx, appt)
	}
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"patient_id": in.PatientID.String(),
		"doctor_id":  in.DoctorID.String(),
		"slot_bound": slot != nil,
	})

	s.dispatch("reminder", func(ctx context.Context) error {
		return s.notifier.SendReminder(ctx, notice(created, patient, doctor))
	})

	return created, nil
}

// resolveSlot applies the binding priority: an explicit slot id wins and is
// strictly validated; otherwise the normalized time is matched against the
// day's grid, generating the day once before the single retry.
func (s *Service) resolveSlot(ctx context.Context, in CreateInput) (*AvailabilitySlot, error) {
	if in.SlotID != nil {
		slot, err := s.slots.GetSlotByID(ctx, *in.SlotID)
		if err != nil {
			return nil, fmt.Errorf("load slot: %w", err)
		}
		if !slot.Bookable() {
			return nil, ErrSlotUnavailable
		}
		if slot.DoctorID != in.DoctorID {
			return nil, ErrSlotDoctorMismatch
		}
		return slot, nil
	}

	normalized, ok := NormalizeClock(in.Time)
	if !ok {
		return nil, nil
	}

	dayStart, dayEnd := DayBounds(in.Date)

	slot, err := s.slots.FindBookableSlot(ctx, in.DoctorID, dayStart, dayEnd, normalized)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, fmt.Errorf("find slot: %w", err)
	}

	if _, genErr := s.generator.GenerateSlots(ctx, in.DoctorID, dayStart, dayStart); genErr != nil {
		// A doctor with malformed or missing hours still gets an unbound
		// appointment; anything else is a real store failure.
		var ve *ValidationError
		if !errors.As(genErr, &ve) {
			return nil, fmt.Errorf("generate day grid: %w", genErr)
		}
		log.Printf("slot generation skipped for doctor %s: %v", in.DoctorID, genErr)
		return nil, nil
	}

	slot, err = s.slots.FindBookableSlot(ctx, in.DoctorID, dayStart, dayEnd, normalized)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find slot after generation: %w", err)
	}
	return slot, nil
}

// bindAndCreate claims the slot and writes the appointment inside the
// per-slot lock. The conditional claim is the authoritative mutual-exclusion
// guard; the lock serializes the claim with the appointment insert so a
// failed insert can release the slot before anyone else observes it.
func (s *Service) bindAndCreate(ctx context.Context, slotID uuid.UUID, appt *Appointment) (*Appointment, error) {
	var created *Appointment

	err := s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		if err := s.slots.ClaimSlot(lockCtx, slotID); err != nil {
			return err
		}

		a, err := s.appts.CreateAppointment(lockCtx, appt)
		if err != nil {
			if relErr := s.slots.ReleaseSlot(lockCtx, slotID); relErr != nil {
				log.Printf("release slot %s after failed create: %v", slotID, relErr)
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = a
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventSlotBooked, map[string]any{
		"slot_id": slotID.String(),
	})

	return created, nil
}

// UpdatePatch carries partial-update semantics: nil fields are untouched.
// Notes may be patched to the empty string to clear them.
type UpdatePatch struct {
	Date   *time.Time
	Time   *string
	Reason *string
	Notes  *string
	Status *AppointmentStatus
	SlotID *uuid.UUID
}

// UpdateAppointment applies a partial update. A differing slot id swaps the
// binding: the incoming slot is claimed first and the outgoing one released
// only after the row update lands, so a failed swap or a failed write never
// strands an active appointment on a freed slot. A CANCELLED status releases
// the bound slot the same way, after the persist.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, patch UpdatePatch) (*Appointment, error) {
	appt, err := s.appts.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if patch.Status != nil && !patch.Status.Valid() {
		return nil, validationError("unknown status %q", *patch.Status)
	}

	var claimed *uuid.UUID
	var releaseAfter []uuid.UUID

	if patch.SlotID != nil && (appt.SlotID == nil || *appt.SlotID != *patch.SlotID) {
		if err := s.claimSwappedSlot(ctx, id, *patch.SlotID); err != nil {
			return nil, err
		}
		slotID := *patch.SlotID
		claimed = &slotID
		if appt.SlotID != nil {
			releaseAfter = append(releaseAfter, *appt.SlotID)
		}
		appt.SlotID = &slotID
	}

	if patch.Status != nil && *patch.Status == StatusCancelled && appt.SlotID != nil {
		releaseAfter = append(releaseAfter, *appt.SlotID)
	}

	if patch.Date != nil {
		appt.Date = DayStart(*patch.Date)
	}
	if patch.Time != nil {
		appt.Time = *patch.Time
	}
	if patch.Reason != nil {
		appt.Reason = *patch.Reason
	}
	if patch.Status != nil {
		appt.Status = *patch.Status
	}
	if patch.Notes != nil {
		appt.Notes = *patch.Notes
	}

	updated, err := s.appts.UpdateAppointment(ctx, appt)
	if err != nil {
		if claimed != nil {
			if relErr := s.slots.ReleaseSlot(ctx, *claimed); relErr != nil {
				log.Printf("release slot %s after failed update: %v", *claimed, relErr)
			}
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	for _, slotID := range releaseAfter {
		if err := s.releaseSlot(ctx, updated.ID, slotID); err != nil {
			log.Printf("release slot %s after update of appointment %s: %v", slotID, updated.ID, err)
		}
	}

	switch updated.Status {
	case StatusCancelled:
		s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{})
	case StatusCompleted:
		s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})
		s.dispatchRecap(ctx, updated)
	}

	return updated, nil
}

// claimSwappedSlot validates and claims the incoming slot of a reschedule.
// Doctor ownership is deliberately not re-checked here; only creation
// enforces it.
func (s *Service) claimSwappedSlot(ctx context.Context, apptID, slotID uuid.UUID) error {
	slot, err := s.slots.GetSlotByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("load slot: %w", err)
	}
	if !slot.Bookable() {
		return ErrSlotUnavailable
	}

	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		return s.slots.ClaimSlot(lockCtx, slotID)
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return ErrSlotBeingBooked
		}
		return err
	}

	s.logEvent(ctx, apptID, EventSlotBooked, map[string]any{
		"slot_id": slotID.String(),
		"swap":    true,
	})
	return nil
}

func (s *Service) releaseSlot(ctx context.Context, apptID, slotID uuid.UUID) error {
	if err := s.slots.ReleaseSlot(ctx, slotID); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	s.logEvent(ctx, apptID, EventSlotReleased, map[string]any{
		"slot_id": slotID.String(),
	})
	return nil
}

// DeleteAppointment removes the appointment and releases its slot as one
// transactional unit.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	appt, err := s.appts.GetAppointmentByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}

	if err := s.appts.DeleteAppointmentReleasingSlot(ctx, id, appt.SlotID); err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{
		"slot_released": appt.SlotID != nil,
	})
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appts.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	appts, err := s.appts.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	appts, err := s.appts.ListAppointmentsByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Service) dispatchRecap(ctx context.Context, appt *Appointment) {
	patient, err := s.patients.GetPatientByID(ctx, appt.PatientID)
	if err != nil {
		log.Printf("recap skipped, patient %s: %v", appt.PatientID, err)
		return
	}
	doctor, err := s.doctors.GetDoctorByID(ctx, appt.DoctorID)
	if err != nil {
		log.Printf("recap skipped, doctor %s: %v", appt.DoctorID, err)
		return
	}
	s.dispatch("recap", func(ctx context.Context) error {
		return s.notifier.SendRecap(ctx, notice(appt, patient, doctor))
	})
}

// dispatch runs a notification send off the request path. Failures are
// logged and never surface to the caller.
func (s *Service) dispatch(kind string, send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			log.Printf("%s notification failed: %v", kind, err)
		}
	}()
}

func notice(appt *Appointment, patient *Patient, doctor *Doctor) AppointmentNotice {
	n := AppointmentNotice{
		PatientName: patient.Name,
		DoctorName:  doctor.Name,
		Date:        appt.Date.Format("02-01-2006"),
		Time:        appt.Time,
		Reason:      appt.Reason,
	}
	if patient.Email != nil {
		n.PatientEmail = *patient.Email
	}
	return n
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.appts.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
