package grpcapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/model"
	"github.com/mindcare/booking-core/internal/repository"
	"github.com/mindcare/booking-core/internal/service"
)

func newTestConn(t *testing.T) (*grpc.ClientConn, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

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

	store := repository.NewStore(db)
	user := &model.User{Email: "anna@example.com", FirstName: "anna", Role: model.RoleExpert, IsActive: true}
	if err := store.Users.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	expert := &model.ExpertProfile{UserID: user.ID}
	if err := store.Experts.Create(ctx, expert); err != nil {
		t.Fatalf("create expert: %v", err)
	}
	rule := model.WeeklyRule{
		ExpertID:    expert.ID,
		DayOfWeek:   0,
		StartTime:   calendar.MustClock("09:00"),
		EndTime:     calendar.MustClock("17:00"),
		IsActive:    true,
		SlotMinutes: model.DefaultSlotMinutes,
		Capacity:    model.DefaultCapacity,
	}
	if err := store.WeeklyRules.Apply(ctx, nil, nil, []model.WeeklyRule{rule}); err != nil {
		t.Fatalf("seed rule: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cc := service.NewCalendarCache(nil, 0, log)
	srv, _ := NewServer(Config{Logger: log, Calendars: service.NewCalendarService(store, cc, log)})

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, user.ID
}

func TestCheckSlot(t *testing.T) {
	conn, expertUserID := newTestConn(t)
	ctx := context.Background()

	cases := []struct {
		date, at   string
		wantOK     bool
		wantReason string
	}{
		{"2025-10-20", "10:00", true, ""},
		{"2025-10-20", "17:00", false, "no_weekly_coverage"},
		{"2025-10-21", "10:00", false, "no_weekly_coverage"},
	}
	for _, tc := range cases {
		ok, reason, err := CheckSlot(ctx, conn, expertUserID, tc.date, tc.at)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.date, tc.at, err)
		}
		if ok != tc.wantOK || reason != tc.wantReason {
			t.Fatalf("%s %s: got (%v, %q), want (%v, %q)", tc.date, tc.at, ok, reason, tc.wantOK, tc.wantReason)
		}
	}
}

func TestCheckSlot_Errors(t *testing.T) {
	conn, expertUserID := newTestConn(t)
	ctx := context.Background()

	_, _, err := CheckSlot(ctx, conn, expertUserID, "20.10.2025", "10:00")
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad date: %v", err)
	}
	_, _, err = CheckSlot(ctx, conn, expertUserID, "2025-10-20", "25:00")
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("bad time: %v", err)
	}
	_, _, err = CheckSlot(ctx, conn, uuid.New(), "2025-10-20", "10:00")
	if status.Code(err) != codes.NotFound {
		t.Fatalf("unknown expert: %v", err)
	}
}

func TestHealth(t *testing.T) {
	conn, _ := newTestConn(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: availabilityServiceName})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("load: %w", service.ErrNotFound), codes.NotFound},
		{service.ErrForbidden, codes.PermissionDenied},
		{&service.ValidationError{Fields: map[string]string{"date": "required"}}, codes.InvalidArgument},
		{&service.ConflictError{Reason: service.ReasonExpertBusy}, codes.FailedPrecondition},
		{fmt.Errorf("boom"), codes.Internal},
	}
	for _, tc := range cases {
		if got := status.Code(statusFromError(tc.err)); got != tc.want {
			t.Fatalf("%v: got %v, want %v", tc.err, got, tc.want)
		}
	}
}
