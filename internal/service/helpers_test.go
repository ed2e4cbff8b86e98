package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/meeting"
	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/repository"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// newTestStore открывает отдельную in-memory базу на тест.
// Одно соединение: транзакции и запросы вне них не конкурируют за блокировку.
func newTestStore(t *testing.T) *repository.Store {
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
	return repository.NewStore(db)
}

func seedUser(t *testing.T, store *repository.Store, role model.Role, first string) *model.User {
	t.Helper()
	u := &model.User{
		Email:     fmt.Sprintf("%s-%s@example.com", first, uuid.NewString()[:8]),
		FirstName: first,
		LastName:  "Test",
		Role:      role,
		IsActive:  true,
	}
	if err := store.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// seedActor создаёт пользователя (и профиль для эксперта) и возвращает Actor
// так же, как его получает HTTP-слой.
func seedActor(t *testing.T, store *repository.Store, role model.Role, first string) Actor {
	t.Helper()
	ctx := context.Background()
	u := seedUser(t, store, role, first)
	if role == model.RoleExpert {
		if err := store.Experts.Create(ctx, &model.ExpertProfile{UserID: u.ID, About: "about " + first}); err != nil {
			t.Fatalf("create expert profile: %v", err)
		}
	}
	actor, err := NewIdentityService(store).ResolveActor(ctx, u.ID)
	if err != nil {
		t.Fatalf("resolve actor: %v", err)
	}
	return actor
}

func seedService(t *testing.T, store *repository.Store, slug string) *model.Service {
	t.Helper()
	svc := &model.Service{Name: slug, Slug: slug, IsActive: true}
	if err := store.Services.Create(context.Background(), svc); err != nil {
		t.Fatalf("create service: %v", err)
	}
	return svc
}

func clock(s string) datatypes.Time {
	return calendar.MustClock(s)
}

func day(s string) time.Time {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func weekly(dow int, start, end string) WeeklyRuleInput {
	return WeeklyRuleInput{DayOfWeek: dow, StartTime: clock(start), EndTime: clock(end)}
}

func mustUpsertWeekly(t *testing.T, svc *AvailabilityService, actor Actor, items ...WeeklyRuleInput) UpsertWeeklyResult {
	t.Helper()
	res, err := svc.UpsertWeekly(context.Background(), actor, items)
	if err != nil {
		t.Fatalf("upsert weekly: %v", err)
	}
	return res
}

func ruleSpans(rules []model.WeeklyRule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, fmt.Sprintf("%d %s-%s", r.DayOfWeek, calendar.FormatClock(r.StartTime), calendar.FormatClock(r.EndTime)))
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func conflictReason(t *testing.T, err error) string {
	t.Helper()
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	return cErr.Reason
}

// memCache — кэш в памяти с подсчётом обращений.
type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	counts map[string]int64
	hits   int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, counts: map[string]int64{}}
}

func (m *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counts[key]; ok {
		return []byte(fmt.Sprint(c)), true, nil
	}
	v, ok := m.data[key]
	if ok {
		m.hits++
	}
	return v, ok, nil
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	delete(m.counts, key)
	return nil
}

func (m *memCache) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], nil
}

// brokenCache отказывает на каждом вызове.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errCacheDown
}
func (brokenCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errCacheDown
}
func (brokenCache) Delete(ctx context.Context, key string) error { return errCacheDown }
func (brokenCache) Incr(ctx context.Context, key string) (int64, error) {
	return 0, errCacheDown
}

// recordingProvisioner запоминает запросы и может отказывать.
type recordingProvisioner struct {
	mu     sync.Mutex
	topics []string
	starts []time.Time
	fail   error
}

func (p *recordingProvisioner) CreateMeeting(ctx context.Context, topic string, start time.Time, durationMin int) (meeting.Meeting, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.starts = append(p.starts, start)
	if p.fail != nil {
		return meeting.Meeting{}, p.fail
	}
	n := len(p.topics)
	return meeting.Meeting{
		ID:       fmt.Sprintf("m-%d", n),
		StartURL: fmt.Sprintf("https://meet.example/s/%d", n),
		JoinURL:  fmt.Sprintf("https://meet.example/j/%d", n),
	}, nil
}

func (p *recordingProvisioner) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topics)
}
