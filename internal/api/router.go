package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/practice-booking/internal/appointment"
	"github.com/hackgods/practice-booking/internal/auth"
	"github.com/hackgods/practice-booking/internal/civil"
	"github.com/hackgods/practice-booking/internal/license"
	"github.com/hackgods/practice-booking/internal/notification"
)

type AvailabilityService interface {
	Save(ctx context.Context, practitionerID uuid.UUID, date civil.Date, ranges []civil.Range) ([]civil.Range, error)
	SaveBulk(ctx context.Context, practitionerID uuid.UUID, dates []civil.Date, ranges []civil.Range) (int, error)
	Get(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]civil.Range, error)
}

type SlotResolver interface {
	Ranges(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]civil.Range, error)
	Slots(ctx context.Context, practitionerID uuid.UUID, date civil.Date, slotMinutes int) ([]civil.Clock, error)
}

type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	Transition(ctx context.Context, actor appointment.Actor, id uuid.UUID, to appointment.AppointmentStatus) (*appointment.Appointment, error)
	Review(ctx context.Context, actor appointment.Actor, id uuid.UUID, rating int, review string) (*appointment.Appointment, bool, error)
	UpdateNotes(ctx context.Context, actor appointment.Actor, id uuid.UUID, notes string) (*appointment.Appointment, error)
	Delete(ctx context.Context, actor appointment.Actor, id uuid.UUID) error
	GetAppointment(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.AppointmentDetail, error)
	ListAppointments(ctx context.Context, actor appointment.Actor, f appointment.ListFilter) ([]appointment.AppointmentDetail, error)
}

type LicenseService interface {
	Submit(ctx context.Context, email, number string) (*license.Request, license.Outcome, error)
	Decide(ctx context.Context, id uuid.UUID, status license.Status, note *string) (*license.Request, int, error)
	Status(ctx context.Context, email string) (*license.StatusView, error)
	Get(ctx context.Context, id uuid.UUID) (*license.Request, error)
	List(ctx context.Context, status *license.Status) ([]license.Request, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type NotificationService interface {
	List(ctx context.Context, a notification.Audience, includeHidden bool, limit int) ([]notification.Notification, error)
	Update(ctx context.Context, a notification.Audience, ids []uuid.UUID, read, hidden *bool) (int64, error)
	Hide(ctx context.Context, a notification.Audience, ids []uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, a notification.Audience) (int64, error)
}

// StreamHub upgrades a request into a live push subscription.
type StreamHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID, role string) error
}

type RouterConfig struct {
	Availability  AvailabilityService
	Slots         SlotResolver
	Appointments  AppointmentService
	Licenses      LicenseService
	Notifications NotificationService
	Hub           StreamHub
	Tokens        *auth.Tokens
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Logger        zerolog.Logger
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(RecoveryMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens))

		practitionerOnly := RequireRole(auth.RolePractitioner)
		clientOnly := RequireRole(auth.RoleClient)
		adminOnly := RequireRole(auth.RoleAdmin)
		inboxOwners := RequireRole(auth.RolePractitioner, auth.RoleClient)

		// Availability endpoints
		r.Get("/availability", getAvailabilityHandler(cfg.Availability))
		r.With(practitionerOnly).Post("/availability", saveAvailabilityHandler(cfg.Availability))
		r.With(practitionerOnly).Post("/availability/bulk", saveBulkAvailabilityHandler(cfg.Availability))
		r.Get("/available-slots", availableSlotsHandler(cfg.Slots))

		// Appointment endpoints
		r.With(clientOnly).Post("/appointments", createAppointmentHandler(cfg.Appointments))
		r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
		r.Get("/appointments/stream", streamHandler(cfg.Hub))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Patch("/appointments/{id}", updateAppointmentHandler(cfg.Appointments))
		r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Appointments))

		// License endpoints
		r.With(practitionerOnly).Get("/license/status", licenseStatusHandler(cfg.Licenses))
		r.With(practitionerOnly).Post("/license/submit", submitLicenseHandler(cfg.Licenses))
		r.Route("/license-requests", func(r chi.Router) {
			r.Use(adminOnly)
			r.Get("/", listLicenseRequestsHandler(cfg.Licenses))
			r.Get("/{id}", getLicenseRequestHandler(cfg.Licenses))
			r.Patch("/{id}", decideLicenseRequestHandler(cfg.Licenses))
			r.Delete("/{id}", deleteLicenseRequestHandler(cfg.Licenses))
		})

		// Notification endpoints
		r.Route("/notifications", func(r chi.Router) {
			r.Use(inboxOwners)
			r.Get("/", listNotificationsHandler(cfg.Notifications))
			r.Patch("/", updateNotificationsHandler(cfg.Notifications))
			r.Delete("/", hideNotificationsHandler(cfg.Notifications))
			r.Post("/mark-all-read", markAllReadHandler(cfg.Notifications))
		})
	})

	return r
}
