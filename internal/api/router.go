package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	Booking      BookingService
	Availability AvailabilityService
	Generator    SlotGenerator
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/appointments", createAppointmentHandler(cfg.Booking))
	r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
	r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Booking))
	r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Booking))

	r.Get("/doctors/{id}/availability", availableSlotsHandler(cfg.Availability))
	r.Post("/doctors/{id}/slots/generate", generateSlotsHandler(cfg.Generator))

	return r
}
