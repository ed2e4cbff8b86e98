package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mindcare/booking-core/internal/booking"
	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/logging"
	"github.com/mindcare/booking-core/internal/meeting"
	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/repository"
)

// AppointmentInput — данные новой записи.
type AppointmentInput struct {
	ExpertUserID uuid.UUID
	// Только для записи, создаваемой экспертом.
	ClientUserID uuid.UUID
	Date         time.Time
	Time         datatypes.Time
	Duration     int
	Notes        string
}

// ListAppointmentsInput — фильтры списка записей.
type ListAppointmentsInput struct {
	// Только записи, где пользователь — участник (для администратора).
	Mine   bool
	Status string
	Limit  int
	Offset int
}

// MeetingInfo — ссылки встречи; StartURL видит только эксперт.
type MeetingInfo struct {
	ID       string
	StartURL string
	JoinURL  string
}

// AppointmentService — создание записей и смена их статусов.
type AppointmentService struct {
	store    *repository.Store
	meetings meeting.Provisioner
	loc      *time.Location
	logger   *slog.Logger
}

func NewAppointmentService(store *repository.Store, meetings meeting.Provisioner, loc *time.Location, logger *slog.Logger) *AppointmentService {
	if meetings == nil {
		meetings = meeting.Disabled{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AppointmentService{store: store, meetings: meetings, loc: loc, logger: logger}
}

func (s *AppointmentService) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	pairs := append([]any{"service", "appointments", "operation", operation}, attrs...)
	return logging.FromContext(ctx, s.logger).With(pairs...)
}

func validateAppointmentInput(in *AppointmentInput) *ValidationError {
	v := &ValidationError{}
	if in.ExpertUserID == uuid.Nil {
		v.add("expert", "required")
	}
	if in.Date.IsZero() {
		v.add("date", "required")
	}
	if in.Time < 0 || time.Duration(in.Time) >= 24*time.Hour {
		v.add("time", "invalid time of day")
	}
	if in.Duration == 0 {
		in.Duration = model.DefaultAppointmentDuration
	}
	if in.Duration < 0 {
		v.add("duration", "must be positive")
	}
	in.Date = calendar.DateOf(in.Date)
	return v
}

func eventDetails(kv map[string]any) datatypes.JSON {
	raw, err := json.Marshal(kv)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// insert создаёт запись; нарушение уникального индекса — «эксперт занят».
func insertAppointment(ctx context.Context, tx *repository.Store, a *model.Appointment, actorID uuid.UUID) error {
	if err := tx.Appointments.Create(ctx, a); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return conflict(ReasonExpertBusy, "expert already has an appointment at this time")
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return tx.Events.Create(ctx, &model.Event{
		EventType:     model.EventTypeAppointmentCreated,
		UserID:        &actorID,
		AppointmentID: &a.ID,
		Details:       eventDetails(map[string]any{"status": a.Status}),
	})
}

// CreateByExpert — эксперт записывает клиента; запись начинается в pending.
func (s *AppointmentService) CreateByExpert(ctx context.Context, actor Actor, in AppointmentInput) (*model.Appointment, error) {
	if !actor.IsExpert() {
		return nil, ErrForbidden
	}
	if in.ExpertUserID == uuid.Nil {
		in.ExpertUserID = actor.UserID
	}
	if in.ExpertUserID != actor.UserID {
		return nil, ErrForbidden
	}
	v := validateAppointmentInput(&in)
	if in.ClientUserID == uuid.Nil {
		v.add("client", "required")
	} else {
		client, err := s.store.Users.GetByID(ctx, in.ClientUserID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			v.add("client", "unknown user")
		case err != nil:
			return nil, err
		case client.Role != model.RoleClient || !client.IsActive:
			v.add("client", "must be an active client")
		}
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}
	logger := s.log(ctx, "create_by_expert", "expert_user_id", in.ExpertUserID, "date", calendar.FormatDate(in.Date), "time", calendar.FormatClock(in.Time))

	a := &model.Appointment{
		ExpertID: in.ExpertUserID,
		ClientID: in.ClientUserID,
		Date:     datatypes.Date(in.Date),
		Time:     in.Time,
		Duration: in.Duration,
		Status:   model.AppointmentStatusPending,
		Notes:    in.Notes,
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		busy, err := tx.Appointments.ExpertBusy(ctx, a.ExpertID, in.Date, a.Time)
		if err != nil {
			return err
		}
		if busy {
			return conflict(ReasonExpertBusy, "expert already has an appointment at this time")
		}
		return insertAppointment(ctx, tx, a, actor.UserID)
	})
	if err != nil {
		logger.InfoContext(ctx, "appointment rejected", "kind", ErrorKind(err), "error", err)
		return nil, err
	}
	logger.InfoContext(ctx, "appointment created", "appointment_id", a.ID)

	s.provisionMeeting(ctx, actor.UserID, a.ID)
	return s.reload(ctx, a.ID)
}

// RequestByClient — клиент просит запись; она ждёт решения эксперта.
func (s *AppointmentService) RequestByClient(ctx context.Context, actor Actor, in AppointmentInput) (*model.Appointment, error) {
	if !actor.IsClient() {
		return nil, ErrForbidden
	}
	v := validateAppointmentInput(&in)
	var expertProfileID uuid.UUID
	if in.ExpertUserID != uuid.Nil {
		expert, err := s.store.Experts.GetByUserID(ctx, in.ExpertUserID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			v.add("expert", "unknown expert")
		case err != nil:
			return nil, err
		default:
			expertProfileID = expert.ID
		}
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}
	logger := s.log(ctx, "request_by_client", "expert_user_id", in.ExpertUserID, "date", calendar.FormatDate(in.Date), "time", calendar.FormatClock(in.Time))

	a := &model.Appointment{
		ExpertID: in.ExpertUserID,
		ClientID: actor.UserID,
		Date:     datatypes.Date(in.Date),
		Time:     in.Time,
		Duration: in.Duration,
		Status:   model.AppointmentStatusWaitingApproval,
		Notes:    in.Notes,
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		busy, err := tx.Appointments.ExpertBusy(ctx, a.ExpertID, in.Date, a.Time)
		if err != nil {
			return err
		}
		if busy {
			return conflict(ReasonExpertBusy, "expert already has an appointment at this time")
		}

		busy, err = tx.Appointments.ClientBusy(ctx, a.ClientID, in.Date, a.Time)
		if err != nil {
			return err
		}
		if busy {
			return conflict(ReasonClientBusy, "you already have an appointment at this time")
		}

		check, err := checkSlot(ctx, tx, expertProfileID, in.Date, a.Time)
		if err != nil {
			return err
		}
		if !check.Available {
			return conflict(check.Reason, unavailableMessage(check.Reason))
		}
		return insertAppointment(ctx, tx, a, actor.UserID)
	})
	if err != nil {
		logger.InfoContext(ctx, "appointment request rejected", "kind", ErrorKind(err), "error", err)
		return nil, err
	}
	logger.InfoContext(ctx, "appointment requested", "appointment_id", a.ID)
	return s.reload(ctx, a.ID)
}

func unavailableMessage(reason string) string {
	switch reason {
	case ReasonNoWeeklyCoverage:
		return "expert is not available at this time"
	case ReasonDateException:
		return "expert is unavailable on this date"
	case ReasonRecurringException:
		return "expert is unavailable on this date every year"
	default:
		return "expert is unavailable"
	}
}

func partyOf(a *model.Appointment, userID uuid.UUID) booking.Party {
	switch userID {
	case a.ExpertID:
		return booking.PartyExpert
	case a.ClientID:
		return booking.PartyClient
	default:
		return booking.PartyNone
	}
}

// UpdateStatus переводит запись участника в новый статус.
func (s *AppointmentService) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, status string) (*model.Appointment, error) {
	next, err := booking.ParseStatus(status)
	if err != nil {
		return nil, invalid("status", "unknown status")
	}
	logger := s.log(ctx, "update_status", "appointment_id", id, "status", next)

	var effects booking.Effects
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		a, err := tx.Appointments.GetForParticipant(ctx, id, actor.UserID, true)
		if err != nil {
			return notFound(err)
		}
		current := a.Status
		if err := booking.Transition(current, next, partyOf(a, actor.UserID)); err != nil {
			return transitionError(err)
		}

		effects = booking.EffectsOf(next)
		fields := map[string]any{"status": next}
		if effects.Confirmed != nil {
			fields["is_confirmed"] = *effects.Confirmed
		}
		if err := tx.Appointments.UpdateFields(ctx, a.ID, fields); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		effects.ProvisionMeeting = effects.ProvisionMeeting && !a.HasMeeting()

		return tx.Events.Create(ctx, &model.Event{
			EventType:     model.EventTypeAppointmentStatusChanged,
			UserID:        &actor.UserID,
			AppointmentID: &a.ID,
			Details:       eventDetails(map[string]any{"from": current, "to": next}),
		})
	})
	if err != nil {
		logger.InfoContext(ctx, "status change rejected", "kind", ErrorKind(err), "error", err)
		return nil, err
	}
	logger.InfoContext(ctx, "status changed")

	if effects.ProvisionMeeting {
		s.provisionMeeting(ctx, actor.UserID, id)
	}
	return s.reload(ctx, id)
}

// provisionMeeting создаёт встречу вне транзакции. Сбой пишется в лог
// и в события, но операцию не ломает.
func (s *AppointmentService) provisionMeeting(ctx context.Context, actorID, appointmentID uuid.UUID) {
	logger := s.log(ctx, "provision_meeting", "appointment_id", appointmentID)

	a, err := s.store.Appointments.GetByID(ctx, appointmentID)
	if err != nil {
		logger.ErrorContext(ctx, "load appointment for meeting", "error", err)
		return
	}
	if a.HasMeeting() {
		return
	}

	topic := meeting.Topic(a.Client.DisplayName(), a.Expert.DisplayName())
	m, err := s.meetings.CreateMeeting(ctx, topic, a.StartsAt(s.loc), a.Duration)
	if err != nil {
		logger.WarnContext(ctx, "meeting provisioning failed", "error", err)
		failure := &model.Event{
			EventType:     model.EventTypeMeetingProvisionFailed,
			UserID:        &actorID,
			AppointmentID: &a.ID,
			Details:       eventDetails(map[string]any{"error": err.Error()}),
		}
		if err := s.store.Events.Create(ctx, failure); err != nil {
			logger.ErrorContext(ctx, "record meeting failure", "error", err)
		}
		return
	}

	err = s.store.Appointments.UpdateFields(ctx, a.ID, map[string]any{
		"meeting_id":        m.ID,
		"meeting_start_url": m.StartURL,
		"meeting_join_url":  m.JoinURL,
	})
	if err != nil {
		logger.ErrorContext(ctx, "save meeting", "meeting_id", m.ID, "error", err)
		return
	}
	logger.InfoContext(ctx, "meeting provisioned", "meeting_id", m.ID)
}

func (s *AppointmentService) reload(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	a, err := s.store.Appointments.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// visible возвращает запись, если пользователь — участник или администратор.
func (s *AppointmentService) visible(ctx context.Context, actor Actor, id uuid.UUID) (*model.Appointment, error) {
	a, err := s.store.Appointments.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !actor.IsAdmin() && partyOf(a, actor.UserID) == booking.PartyNone {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *AppointmentService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*model.Appointment, error) {
	return s.visible(ctx, actor, id)
}

// SoftDelete помечает запись удалённой; слот эксперта освобождается.
func (s *AppointmentService) SoftDelete(ctx context.Context, actor Actor, id uuid.UUID) error {
	a, err := s.visible(ctx, actor, id)
	if err != nil {
		return err
	}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Appointments.SoftDelete(ctx, a.ID); err != nil {
			return err
		}
		return tx.Events.Create(ctx, &model.Event{
			EventType:     model.EventTypeAppointmentDeleted,
			UserID:        &actor.UserID,
			AppointmentID: &a.ID,
		})
	})
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	s.log(ctx, "soft_delete", "appointment_id", a.ID).InfoContext(ctx, "appointment deleted")
	return nil
}

// List — записи пользователя; администратор видит все, если не указан Mine.
func (s *AppointmentService) List(ctx context.Context, actor Actor, in ListAppointmentsInput) ([]model.Appointment, int64, error) {
	f := repository.AppointmentFilter{Limit: in.Limit, Offset: in.Offset}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if in.Status != "" {
		st, err := booking.ParseStatus(in.Status)
		if err != nil {
			return []model.Appointment{}, 0, nil
		}
		f.Status = &st
	}
	if !actor.IsAdmin() || in.Mine {
		f.ParticipantID = &actor.UserID
	}
	return s.store.Appointments.List(ctx, f)
}

// Meeting возвращает ссылки встречи записи.
func (s *AppointmentService) Meeting(ctx context.Context, actor Actor, id uuid.UUID) (MeetingInfo, error) {
	a, err := s.visible(ctx, actor, id)
	if err != nil {
		return MeetingInfo{}, err
	}
	if !a.HasMeeting() {
		return MeetingInfo{}, ErrNotFound
	}
	info := MeetingInfo{ID: *a.MeetingID}
	if a.MeetingJoinURL != nil {
		info.JoinURL = *a.MeetingJoinURL
	}
	if a.MeetingStartURL != nil && (a.ExpertID == actor.UserID || actor.IsAdmin()) {
		info.StartURL = *a.MeetingStartURL
	}
	return info, nil
}
