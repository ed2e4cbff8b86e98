package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/service"
)

func (h *Handler) decodeAppointment(w http.ResponseWriter, r *http.Request) (service.AppointmentInput, bool) {
	ctx := r.Context()
	var req appointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "invalid json", nil)
		return service.AppointmentInput{}, false
	}
	if details := h.val.Struct(req); details != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", details)
		return service.AppointmentInput{}, false
	}

	date, _ := calendar.ParseDate(req.Date)
	in := service.AppointmentInput{
		Date:     date,
		Time:     mustClock(req.Time),
		Duration: req.Duration,
		Notes:    strings.TrimSpace(req.Notes),
	}
	if req.Expert != nil {
		in.ExpertUserID = *req.Expert
	}
	if req.Client != nil {
		in.ClientUserID = *req.Client
	}
	return in, true
}

// CreateAppointment обслуживает POST /appointments, запись создаёт эксперт.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)
	in, ok := h.decodeAppointment(w, r)
	if !ok {
		return
	}

	a, err := h.appointments.CreateByExpert(ctx, actor, in)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusCreated, toAppointment(a, actor))
}

// RequestAppointment обслуживает POST /appointments/request, запрос клиента.
func (h *Handler) RequestAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)
	in, ok := h.decodeAppointment(w, r)
	if !ok {
		return
	}
	in.ClientUserID = uuid.Nil

	a, err := h.appointments.RequestByClient(ctx, actor, in)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusCreated, toAppointment(a, actor))
}

// ListAppointments обслуживает GET /appointments?mine=&status=&limit=&offset=
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)
	q := r.URL.Query()

	limit, err := queryInt(q, "limit", 50)
	if err != nil {
		h.invalidParam(w, r, "limit", err)
		return
	}
	offset, err := queryInt(q, "offset", 0)
	if err != nil {
		h.invalidParam(w, r, "offset", err)
		return
	}

	in := service.ListAppointmentsInput{
		Mine:   queryBool(q, "mine"),
		Status: strings.TrimSpace(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	items, total, err := h.appointments.List(ctx, actor, in)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}

	out := appointmentListResponse{Items: make([]appointmentResponse, 0, len(items)), Total: total, Limit: limit, Offset: offset}
	for i := range items {
		out.Items = append(out.Items, toAppointment(&items[i], actor))
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, out)
}

func (h *Handler) appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := pathUUID(r, "id")
	if !ok {
		h.resp.writeError(r.Context(), w, http.StatusNotFound, "not found", nil)
	}
	return id, ok
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	a, err := h.appointments.Get(ctx, actor, id)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, toAppointment(a, actor))
}

// DeleteAppointment обслуживает DELETE /appointments/{id}, мягкое удаление.
func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	if err := h.appointments.SoftDelete(ctx, actor, id); err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusNoContent, nil)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if details := h.val.Struct(req); details != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", details)
		return
	}

	a, err := h.appointments.UpdateStatus(ctx, actor, id, req.Status)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, toAppointment(a, actor))
}

func (h *Handler) GetMeeting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	m, err := h.appointments.Meeting(ctx, actor, id)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, meetingResponse{MeetingID: m.ID, StartURL: m.StartURL, JoinURL: m.JoinURL})
}
