package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mindcare/booking-core/internal/auth"
	"github.com/mindcare/booking-core/internal/meeting"
	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/repository"
	"github.com/mindcare/booking-core/internal/service"
)

type apiFixture struct {
	router http.Handler
	tokens *auth.Verifier
	store  *repository.Store
	expert *model.User
	client *model.User
}

func newAPIFixture(t *testing.T, limiter *RateLimiter) *apiFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewStore(db)
	cc := service.NewCalendarCache(nil, 0, log)
	f := &apiFixture{
		tokens: auth.NewVerifier("test-secret", "booking-core"),
		store:  store,
	}
	f.expert = f.seedUser(t, model.RoleExpert, "anna")
	f.client = f.seedUser(t, model.RoleClient, "bob")

	f.router = NewRouter(Config{
		Tokens:         f.tokens,
		Actors:         service.NewIdentityService(store),
		Logger:         log,
		BookingLimiter: limiter,
		Health:         func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
		Availability:   service.NewAvailabilityService(store, cc, log),
		Exceptions:     service.NewExceptionService(store, cc, log),
		Calendars:      service.NewCalendarService(store, cc, log),
		Appointments:   service.NewAppointmentService(store, meeting.NewMock(), time.UTC, log),
	})
	return f
}

func (f *apiFixture) seedUser(t *testing.T, role model.Role, name string) *model.User {
	t.Helper()
	ctx := context.Background()
	u := &model.User{Email: name + "@example.com", FirstName: name, Role: role, IsActive: true}
	if err := f.store.Users.Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if role == model.RoleExpert {
		if err := f.store.Experts.Create(ctx, &model.ExpertProfile{UserID: u.ID}); err != nil {
			t.Fatalf("create expert: %v", err)
		}
	}
	return u
}

// do выполняет запрос от имени user (nil — без токена) и разбирает JSON-ответ.
func (f *apiFixture) do(t *testing.T, user *model.User, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != nil {
		token, err := f.tokens.NewToken(user.ID, time.Minute)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		raw := rec.Body.Bytes()
		if raw[0] == '[' {
			var items []any
			if err := json.Unmarshal(raw, &items); err != nil {
				t.Fatalf("decode list: %v (%s)", err, raw)
			}
			out = map[string]any{"items": items}
		} else if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode: %v (%s)", err, raw)
		}
	}
	return rec.Code, out
}

func (f *apiFixture) mondayHours(t *testing.T) {
	t.Helper()
	code, body := f.do(t, f.expert, http.MethodPut, "/api/v1/availability/weekly", map[string]any{
		"availabilities": []map[string]any{{"day_of_week": 0, "start_time": "09:00", "end_time": "17:00"}},
	})
	if code != http.StatusOK {
		t.Fatalf("put weekly: %d %v", code, body)
	}
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t, nil)
	if code, body := f.do(t, nil, http.MethodGet, "/healthz", nil); code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: %d %v", code, body)
	}
}

func TestAuthentication(t *testing.T) {
	f := newAPIFixture(t, nil)

	if code, _ := f.do(t, nil, http.MethodGet, "/api/v1/appointments", nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", rec.Code)
	}

	ghost := &model.User{ID: uuid.New()}
	if code, _ := f.do(t, ghost, http.MethodGet, "/api/v1/appointments", nil); code != http.StatusUnauthorized {
		t.Fatalf("unknown user: %d", code)
	}
}

func TestWeeklyEndpoints(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.mondayHours(t)

	code, body := f.do(t, f.expert, http.MethodPut, "/api/v1/availability/weekly", map[string]any{
		"availabilities": []map[string]any{{"day_of_week": 0, "start_time": "17:00", "end_time": "19:00"}},
	})
	if code != http.StatusOK {
		t.Fatalf("merge: %d %v", code, body)
	}
	current := body["current"].([]any)
	if len(current) != 1 || current[0].(map[string]any)["end_time"] != "19:00" {
		t.Fatalf("current = %v", current)
	}
	if current[0].(map[string]any)["day_display"] != "Monday" {
		t.Fatalf("day_display = %v", current[0])
	}

	code, body = f.do(t, f.expert, http.MethodDelete, "/api/v1/availability/weekly", map[string]any{
		"availabilities": []map[string]any{{"day_of_week": 0, "start_time": "12:00", "end_time": "13:00"}},
	})
	if code != http.StatusOK || body["deleted_count"].(float64) != 1 || len(body["current"].([]any)) != 2 {
		t.Fatalf("split: %d %v", code, body)
	}

	code, body = f.do(t, f.expert, http.MethodPut, "/api/v1/availability/weekly", map[string]any{
		"availabilities": []map[string]any{{"day_of_week": 9, "start_time": "25:00", "end_time": "10:00"}},
	})
	details, _ := body["details"].(map[string]any)
	if code != http.StatusBadRequest || details["availabilities[0].day_of_week"] == nil || details["availabilities[0].start_time"] == nil {
		t.Fatalf("invalid item: %d %v", code, body)
	}

	if code, _ := f.do(t, f.client, http.MethodPut, "/api/v1/availability/weekly", map[string]any{"availabilities": []any{}}); code != http.StatusForbidden {
		t.Fatalf("client put weekly: %d", code)
	}

	code, body = f.do(t, f.client, http.MethodGet, "/api/v1/availability/expert/"+f.expert.ID.String(), nil)
	if code != http.StatusOK || len(body["items"].([]any)) != 2 {
		t.Fatalf("public weekly: %d %v", code, body)
	}
}

func TestCalendarEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.mondayHours(t)

	if code, _ := f.do(t, f.client, http.MethodGet, "/api/v1/availability", nil); code != http.StatusBadRequest {
		t.Fatalf("missing expert_user_id: %d", code)
	}

	path := "/api/v1/availability?expert_user_id=" + f.expert.ID.String() + "&start_date=2025-10-20&end_date=2025-10-21"
	code, body := f.do(t, f.client, http.MethodGet, path, nil)
	if code != http.StatusOK {
		t.Fatalf("calendar: %d %v", code, body)
	}
	days := body["calendar"].([]any)
	if len(days) != 2 || body["expert_user_id"] != f.expert.ID.String() {
		t.Fatalf("calendar body = %v", body)
	}
	monday := days[0].(map[string]any)
	if monday["date"] != "2025-10-20" || monday["is_available"] != true || len(monday["weekly_availability"].([]any)) != 1 {
		t.Fatalf("monday = %v", monday)
	}

	path = "/api/v1/availability/check?expert_user_id=" + f.expert.ID.String() + "&date=2025-10-21&time=10:00"
	code, body = f.do(t, f.client, http.MethodGet, path, nil)
	if code != http.StatusOK || body["available"] != false || body["reason"] != "no_weekly_coverage" {
		t.Fatalf("check: %d %v", code, body)
	}
}

func TestExceptionEndpoints(t *testing.T) {
	f := newAPIFixture(t, nil)

	code, body := f.do(t, f.expert, http.MethodPut, "/api/v1/availability/exceptions", map[string]any{
		"exceptions": []map[string]any{
			{"date": "2025-10-27", "exception_type": "cancel", "start_time": "10:00", "end_time": "12:00"},
			{"date": "2025-10-28", "exception_type": "add"},
		},
	})
	if code != http.StatusOK {
		t.Fatalf("put: %d %v", code, body)
	}
	created := body["created"].([]any)
	if len(created) != 1 || len(body["errors"].([]any)) != 1 {
		t.Fatalf("put body = %v", body)
	}
	id := created[0].(map[string]any)["id"].(string)

	// Явный null снимает границы; note не передан и не меняется.
	code, body = f.do(t, f.expert, http.MethodPut, "/api/v1/availability/exceptions", map[string]any{
		"exceptions": []map[string]any{{"id": id, "start_time": nil, "end_time": nil}},
	})
	if code != http.StatusOK || len(body["updated"].([]any)) != 1 {
		t.Fatalf("partial update: %d %v", code, body)
	}
	updated := body["updated"].([]any)[0].(map[string]any)
	if updated["start_time"] != nil || updated["end_time"] != nil {
		t.Fatalf("bounds not cleared: %v", updated)
	}

	code, body = f.do(t, f.expert, http.MethodDelete, "/api/v1/availability/exceptions", map[string]any{
		"exceptions": []map[string]any{{"id": id, "date": "2025-10-27"}},
	})
	if code != http.StatusOK || body["deleted_count"].(float64) != 1 {
		t.Fatalf("delete: %d %v", code, body)
	}

	if code, _ := f.do(t, f.expert, http.MethodDelete, "/api/v1/availability/exceptions", map[string]any{"exceptions": []any{}}); code != http.StatusBadRequest {
		t.Fatalf("empty delete: %d", code)
	}
}

func TestAppointmentFlow(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.mondayHours(t)
	other := f.seedUser(t, model.RoleClient, "carl")
	stranger := f.seedUser(t, model.RoleClient, "eve")

	req := map[string]any{"expert": f.expert.ID, "date": "2025-10-20", "time": "14:00"}
	code, body := f.do(t, f.client, http.MethodPost, "/api/v1/appointments/request", req)
	if code != http.StatusCreated || body["status"] != "waiting_approval" {
		t.Fatalf("request: %d %v", code, body)
	}
	id := body["id"].(string)

	code, body = f.do(t, other, http.MethodPost, "/api/v1/appointments/request", req)
	if code != http.StatusBadRequest || body["reason"] != "expert_busy" {
		t.Fatalf("double booking: %d %v", code, body)
	}

	status := map[string]any{"status": "confirmed"}
	if code, _ := f.do(t, f.client, http.MethodPatch, "/api/v1/appointments/"+id+"/status", status); code != http.StatusForbidden {
		t.Fatalf("client confirm: %d", code)
	}
	if code, _ := f.do(t, stranger, http.MethodPatch, "/api/v1/appointments/"+id+"/status", status); code != http.StatusNotFound {
		t.Fatalf("stranger confirm: %d", code)
	}
	code, body = f.do(t, f.expert, http.MethodPatch, "/api/v1/appointments/"+id+"/status", status)
	if code != http.StatusOK || body["is_confirmed"] != true || body["meeting_start_url"] == nil {
		t.Fatalf("expert confirm: %d %v", code, body)
	}
	code, body = f.do(t, f.expert, http.MethodPatch, "/api/v1/appointments/"+id+"/status", status)
	if code != http.StatusBadRequest || body["reason"] != "already_in_state" {
		t.Fatalf("repeat confirm: %d %v", code, body)
	}

	code, body = f.do(t, f.client, http.MethodGet, "/api/v1/appointments/"+id+"/meeting", nil)
	if code != http.StatusOK || body["join_url"] == "" || body["start_url"] != nil {
		t.Fatalf("client meeting: %d %v", code, body)
	}

	code, body = f.do(t, f.client, http.MethodGet, "/api/v1/appointments?status=confirmed", nil)
	if code != http.StatusOK || body["total"].(float64) != 1 {
		t.Fatalf("list: %d %v", code, body)
	}
	if _, ok := body["items"].([]any)[0].(map[string]any)["meeting_start_url"]; ok {
		t.Fatalf("start url leaked to client: %v", body)
	}

	if code, _ := f.do(t, f.client, http.MethodDelete, "/api/v1/appointments/"+id, nil); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
	if code, _ := f.do(t, f.client, http.MethodGet, "/api/v1/appointments/"+id, nil); code != http.StatusNotFound {
		t.Fatalf("get deleted: %d", code)
	}
	if code, _ := f.do(t, f.client, http.MethodGet, "/api/v1/appointments/not-a-uuid", nil); code != http.StatusNotFound {
		t.Fatalf("bad id: %d", code)
	}
}

func TestCreateByExpertEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)

	code, body := f.do(t, f.expert, http.MethodPost, "/api/v1/appointments", map[string]any{
		"client": f.client.ID, "date": "2025-10-21", "time": "18:00", "notes": " first session ",
	})
	if code != http.StatusCreated || body["status"] != "pending" || body["notes"] != "first session" {
		t.Fatalf("create: %d %v", code, body)
	}
	if body["duration"].(float64) != 45 || body["meeting_id"] == nil {
		t.Fatalf("defaults: %v", body)
	}

	code, body = f.do(t, f.expert, http.MethodPost, "/api/v1/appointments", map[string]any{"client": f.client.ID, "date": "21.10.2025", "time": "18:00"})
	details, _ := body["details"].(map[string]any)
	if code != http.StatusBadRequest || details["date"] != "date" {
		t.Fatalf("bad date: %d %v", code, body)
	}
}

func TestBookingRateLimit(t *testing.T) {
	f := newAPIFixture(t, NewRateLimiter(1, time.Minute))
	f.mondayHours(t)

	req := map[string]any{"expert": f.expert.ID, "date": "2025-10-20", "time": "10:00"}
	if code, body := f.do(t, f.client, http.MethodPost, "/api/v1/appointments/request", req); code != http.StatusCreated {
		t.Fatalf("first request: %d %v", code, body)
	}
	req["time"] = "11:00"
	if code, body := f.do(t, f.client, http.MethodPost, "/api/v1/appointments/request", req); code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d %v", code, body)
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("k") || !rl.Allow("k") || rl.Allow("k") {
		t.Fatalf("limit of 2 not enforced")
	}
	if !rl.Allow("other") {
		t.Fatalf("keys must be independent")
	}
	now = now.Add(2 * time.Minute)
	if !rl.Allow("k") {
		t.Fatalf("window did not reset")
	}
}

func TestServicesEndpoint(t *testing.T) {
	f := newAPIFixture(t, nil)
	for _, slug := range []string{"therapy", "couples"} {
		if err := f.store.Services.Create(context.Background(), &model.Service{Name: slug, Slug: slug, IsActive: true}); err != nil {
			t.Fatalf("create service: %v", err)
		}
	}

	code, body := f.do(t, f.client, http.MethodGet, "/api/v1/services?page_size=1", nil)
	if code != http.StatusOK || body["total"].(float64) != 2 || body["has_next"] != true {
		t.Fatalf("services: %d %v", code, body)
	}
	if first := body["items"].([]any)[0].(map[string]any); first["slug"] != "couples" {
		t.Fatalf("first = %v", first)
	}

	if code, _ := f.do(t, f.client, http.MethodGet, "/api/v1/services?page=x", nil); code != http.StatusBadRequest {
		t.Fatalf("bad page: %d", code)
	}
}
