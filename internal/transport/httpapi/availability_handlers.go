package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/service"
)

func (h *Handler) invalidParam(w http.ResponseWriter, r *http.Request, field string, err error) {
	h.resp.writeError(r.Context(), w, http.StatusBadRequest, "validation failed", map[string]string{field: err.Error()})
}

// GetCalendar обслуживает GET /availability?expert_user_id=&start_date=&end_date=
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)
	q := r.URL.Query()

	expertUserID, err := queryUUID(q, "expert_user_id")
	if err != nil {
		h.invalidParam(w, r, "expert_user_id", err)
		return
	}
	from, err := queryDate(q, "start_date")
	if err != nil {
		h.invalidParam(w, r, "start_date", err)
		return
	}
	to, err := queryDate(q, "end_date")
	if err != nil {
		h.invalidParam(w, r, "end_date", err)
		return
	}
	if (from == nil) != (to == nil) {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed",
			map[string]string{"start_date": "start_date and end_date must be given together"})
		return
	}

	view, err := h.calendars.Calendar(ctx, actor, expertUserID, from, to)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, toCalendar(view))
}

// CheckSlot обслуживает GET /availability/check?expert_user_id=&date=&time=
func (h *Handler) CheckSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	expertUserID, err := queryUUID(q, "expert_user_id")
	if err != nil || expertUserID == nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", map[string]string{"expert_user_id": "required"})
		return
	}
	date, err := queryDate(q, "date")
	if err != nil || date == nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", map[string]string{"date": "date"})
		return
	}
	at, err := calendar.ParseClock(strings.TrimSpace(q.Get("time")))
	if err != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", map[string]string{"time": "clock"})
		return
	}

	res, err := h.calendars.CheckAvailability(ctx, *expertUserID, *date, at)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, slotCheckResponse{Available: res.Available, Reason: res.Reason})
}

// AvailableExperts обслуживает GET /availability/available-experts?category=&start_date=&end_date=
func (h *Handler) AvailableExperts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	details := map[string]string{}
	category := strings.TrimSpace(q.Get("category"))
	if category == "" {
		details["category"] = "required"
	}
	from, err := queryDate(q, "start_date")
	if err != nil || from == nil {
		details["start_date"] = "date"
	}
	to, err := queryDate(q, "end_date")
	if err != nil || to == nil {
		details["end_date"] = "date"
	}
	page, err := queryInt(q, "page", 1)
	if err != nil {
		details["page"] = err.Error()
	}
	pageSize, err := queryInt(q, "page_size", 0)
	if err != nil {
		details["page_size"] = err.Error()
	}
	if len(details) > 0 {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", details)
		return
	}

	res, err := h.calendars.AvailableExperts(ctx, category, *from, *to, page, pageSize)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	items := make([]availableExpertResponse, 0, len(res.Items))
	for _, e := range res.Items {
		items = append(items, availableExpertResponse{
			ExpertUserID: e.ExpertUserID,
			Name:         e.Name,
			About:        e.About,
			Category:     e.Service,
		})
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, calendar.Page[availableExpertResponse]{
		Items:    items,
		Page:     res.Page,
		PageSize: res.PageSize,
		HasNext:  res.HasNext,
		HasPrev:  res.HasPrev,
		Total:    res.Total,
	})
}

// ListServices обслуживает GET /services?page=&page_size=
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, err := queryInt(q, "page", 1)
	if err != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", map[string]string{"page": err.Error()})
		return
	}
	pageSize, err := queryInt(q, "page_size", 0)
	if err != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", map[string]string{"page_size": err.Error()})
		return
	}

	res, err := h.calendars.Services(ctx, page, pageSize)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, calendar.Page[serviceResponse]{
		Items:    toServices(res.Items),
		Page:     res.Page,
		PageSize: res.PageSize,
		HasNext:  res.HasNext,
		HasPrev:  res.HasPrev,
		Total:    res.Total,
	})
}

func (h *Handler) ListWeekly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)

	rules, err := h.availability.ListWeekly(ctx, actor)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, toWeeklyRules(rules))
}

// ExpertWeekly обслуживает GET /availability/expert/{expertUserID}
func (h *Handler) ExpertWeekly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := pathUUID(r, "expertUserID")
	if !ok {
		h.resp.writeError(ctx, w, http.StatusNotFound, "not found", nil)
		return
	}

	rules, err := h.availability.ExpertWeekly(ctx, id)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, toWeeklyRules(rules))
}

// UpsertWeekly обслуживает PUT /availability/weekly
func (h *Handler) UpsertWeekly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)

	var req weeklyUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if details := h.val.Struct(req); details != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", details)
		return
	}

	res, err := h.availability.UpsertWeekly(ctx, actor, toWeeklyInputs(req.Availabilities))
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"added":         toWeeklyRules(res.Added),
		"updated":       toWeeklyRules(res.Updated),
		"deleted_count": res.DeletedCount,
		"current":       toWeeklyRules(res.Current),
	})
}

// DeleteWeekly обслуживает DELETE /availability/weekly
func (h *Handler) DeleteWeekly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)

	var req weeklyDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if details := h.val.Struct(req); details != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", details)
		return
	}

	res, err := h.availability.DeleteWeekly(ctx, actor, toWeeklyRanges(req.Availabilities))
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"deleted_count": res.DeletedCount,
		"deleted":       toWeeklyRules(res.Deleted),
		"current":       toWeeklyRules(res.Current),
	})
}

// ListExceptions обслуживает GET /availability/exceptions?start_date=&end_date=
func (h *Handler) ListExceptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)
	q := r.URL.Query()

	from, err := queryDate(q, "start_date")
	if err != nil {
		h.invalidParam(w, r, "start_date", err)
		return
	}
	to, err := queryDate(q, "end_date")
	if err != nil {
		h.invalidParam(w, r, "end_date", err)
		return
	}
	var start, end time.Time
	if from != nil {
		start = *from
	}
	if to != nil {
		end = *to
	}

	excs, err := h.exceptions.List(ctx, actor, start, end)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, toExceptions(excs))
}

// UpsertExceptions обслуживает PUT /availability/exceptions
func (h *Handler) UpsertExceptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)

	var req exceptionUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	details := map[string]string{}
	inputs := make([]service.ExceptionInput, 0, len(req.Exceptions))
	for i, it := range req.Exceptions {
		inputs = append(inputs, toExceptionInput(it, fmt.Sprintf("exceptions[%d]", i), details))
	}
	if len(details) > 0 {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", details)
		return
	}

	res, err := h.exceptions.BulkUpsert(ctx, actor, inputs)
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"created": toExceptions(res.Created),
		"updated": toExceptions(res.Updated),
		"errors":  toItemErrors(res.Errors),
		"current": toExceptions(res.Current),
	})
}

// DeleteExceptions обслуживает DELETE /availability/exceptions
func (h *Handler) DeleteExceptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := actorFrom(ctx)

	var req exceptionDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if details := h.val.Struct(req); details != nil {
		h.resp.writeError(ctx, w, http.StatusBadRequest, "validation failed", details)
		return
	}

	res, err := h.exceptions.BulkDelete(ctx, actor, toExceptionKeys(req.Exceptions))
	if err != nil {
		h.resp.handleServiceError(ctx, w, err)
		return
	}
	h.resp.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"deleted_count": res.DeletedCount,
		"deleted":       toExceptions(res.Deleted),
		"errors":        toItemErrors(res.Errors),
		"current":       toExceptions(res.Current),
	})
}
