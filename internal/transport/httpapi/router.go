package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mindcare/booking-core/internal/service"
)

// Config — зависимости HTTP-слоя.
type Config struct {
	Tokens  TokenParser
	Actors  ActorResolver
	Logger  *slog.Logger
	Timeout time.Duration
	// Лимит на создание записей; nil — без ограничения.
	BookingLimiter *RateLimiter
	// Проверка хранилища для /healthz.
	Health func(ctx context.Context) error

	Availability *service.AvailabilityService
	Exceptions   *service.ExceptionService
	Calendars    *service.CalendarService
	Appointments *service.AppointmentService
}

type Handler struct {
	availability *service.AvailabilityService
	exceptions   *service.ExceptionService
	calendars    *service.CalendarService
	appointments *service.AppointmentService
	val          *requestValidator
	resp         responder
}

func NewRouter(cfg Config) http.Handler {
	resp := newResponder(cfg.Logger)
	h := &Handler{
		availability: cfg.Availability,
		exceptions:   cfg.Exceptions,
		calendars:    cfg.Calendars,
		appointments: cfg.Appointments,
		val:          newValidator(),
		resp:         resp,
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(cfg.Logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(cfg.Timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				resp.writeError(r.Context(), w, http.StatusServiceUnavailable, "storage unavailable", nil)
				return
			}
		}
		resp.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(authenticate(cfg.Tokens, cfg.Actors, resp))

		api.Get("/services", h.ListServices)

		api.Route("/availability", func(av chi.Router) {
			av.Get("/", h.GetCalendar)
			av.Get("/check", h.CheckSlot)
			av.Get("/available-experts", h.AvailableExperts)
			av.Get("/expert/{expertUserID}", h.ExpertWeekly)

			av.Get("/weekly", h.ListWeekly)
			av.Put("/weekly", h.UpsertWeekly)
			av.Delete("/weekly", h.DeleteWeekly)

			av.Get("/exceptions", h.ListExceptions)
			av.Put("/exceptions", h.UpsertExceptions)
			av.Delete("/exceptions", h.DeleteExceptions)
		})

		api.Route("/appointments", func(ap chi.Router) {
			ap.Get("/", h.ListAppointments)
			ap.With(cfg.BookingLimiter.Middleware).Post("/", h.CreateAppointment)
			ap.With(cfg.BookingLimiter.Middleware).Post("/request", h.RequestAppointment)
			ap.Get("/{id}", h.GetAppointment)
			ap.Delete("/{id}", h.DeleteAppointment)
			ap.Patch("/{id}/status", h.UpdateStatus)
			ap.Get("/{id}/meeting", h.GetMeeting)
		})
	})

	return r
}
