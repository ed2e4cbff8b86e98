package grpcapi

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mindcare/booking-core/internal/calendar"
	"github.com/mindcare/booking-core/internal/service"
)

const (
	availabilityServiceName = "booking.v1.Availability"
	checkSlotMethod         = "/" + availabilityServiceName + "/CheckSlot"
)

// AvailabilityHandler — серверная часть booking.v1.Availability.
// Сообщения передаются как google.protobuf.Struct:
//
//	запрос:  {"expert_user_id": "...", "date": "YYYY-MM-DD", "time": "HH:MM"}
//	ответ:   {"available": bool, "reason": "..."}
type AvailabilityHandler interface {
	CheckSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckSlot", Handler: checkSlotHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "booking/v1/availability.proto",
}

func registerAvailability(s grpc.ServiceRegistrar, h AvailabilityHandler) {
	s.RegisterService(&availabilityServiceDesc, h)
}

func checkSlotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AvailabilityHandler).CheckSlot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: checkSlotMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AvailabilityHandler).CheckSlot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type availabilityServer struct {
	calendars *service.CalendarService
}

func (s *availabilityServer) CheckSlot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	str := func(key string) string {
		return strings.TrimSpace(fields[key].GetStringValue())
	}

	expertUserID, err := uuid.Parse(str("expert_user_id"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "expert_user_id is required")
	}
	date, err := calendar.ParseDate(str("date"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
	}
	at, err := calendar.ParseClock(str("time"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "time must be HH:MM")
	}

	res, err := s.calendars.CheckAvailability(ctx, expertUserID, date, at)
	if err != nil {
		return nil, statusFromError(err)
	}
	return structpb.NewStruct(map[string]any{
		"available": res.Available,
		"reason":    res.Reason,
	})
}

// statusFromError переводит ошибки сервисного слоя в коды gRPC.
func statusFromError(err error) error {
	var vErr *service.ValidationError
	var cErr *service.ConflictError
	switch {
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, service.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.As(err, &vErr):
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.As(err, &cErr):
		return status.Error(codes.FailedPrecondition, cErr.Reason)
	default:
		return status.Errorf(codes.Internal, "internal: %v", err)
	}
}

// CheckSlot вызывает booking.v1.Availability/CheckSlot на соединении cc.
func CheckSlot(ctx context.Context, cc grpc.ClientConnInterface, expertUserID uuid.UUID, date, at string) (bool, string, error) {
	req, err := structpb.NewStruct(map[string]any{
		"expert_user_id": expertUserID.String(),
		"date":           date,
		"time":           at,
	})
	if err != nil {
		return false, "", err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, checkSlotMethod, req, out); err != nil {
		return false, "", err
	}
	fields := out.GetFields()
	return fields["available"].GetBoolValue(), fields["reason"].GetStringValue(), nil
}
