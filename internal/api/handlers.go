package api

import (
	"context"
	"math"
	"strings"
	"time"

	"hallbook/internal/domain"
	"hallbook/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	availabilityServiceName = "hallbook.availability.v1.AvailabilityService"

	methodCheckAvailability = "/" + availabilityServiceName + "/CheckAvailability"
	methodGetCalendar       = "/" + availabilityServiceName + "/GetCalendar"
	methodListHalls         = "/" + availabilityServiceName + "/ListHalls"
)

// AvailabilityServer is the read-only availability API for partner systems.
// Messages are google.protobuf.Struct documents.
type AvailabilityServer interface {
	CheckAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCalendar(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListHalls(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type AvailabilityService struct {
	bookings domain.BookingService
	halls    domain.HallService
}

func NewAvailabilityService(bookings domain.BookingService, halls domain.HallService) *AvailabilityService {
	return &AvailabilityService{bookings: bookings, halls: halls}
}

// CheckAvailability: {hall_id, date} -> {hall_id, date, available}.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	hallID, err := hallIDField(req)
	if err != nil {
		return nil, err
	}

	dateStr := strings.TrimSpace(req.GetFields()["date"].GetStringValue())
	if dateStr == "" {
		return nil, status.Error(codes.InvalidArgument, "date is required")
	}
	date, err := models.ParseDate(dateStr)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	available, err := s.bookings.CheckAvailability(ctx, hallID, date)
	if err != nil {
		return nil, grpcError(err)
	}

	return newStruct(map[string]interface{}{
		"hall_id":   hallID,
		"date":      models.FormatDate(date),
		"available": available,
	})
}

// GetCalendar: {hall_id, from?, days?} -> {hall_id, days: [{date, state}]}.
func (s *AvailabilityService) GetCalendar(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	hallID, err := hallIDField(req)
	if err != nil {
		return nil, err
	}

	var from time.Time
	if raw := strings.TrimSpace(req.GetFields()["from"].GetStringValue()); raw != "" {
		if from, err = models.ParseDate(raw); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	days := int(req.GetFields()["days"].GetNumberValue())

	calendar, err := s.bookings.Calendar(ctx, hallID, from, days)
	if err != nil {
		return nil, grpcError(err)
	}

	out := make([]interface{}, 0, len(calendar))
	for _, d := range calendar {
		out = append(out, map[string]interface{}{
			"date":  models.FormatDate(d.Date),
			"state": string(d.State),
		})
	}
	return newStruct(map[string]interface{}{
		"hall_id": hallID,
		"days":    out,
	})
}

// ListHalls: {district?, q?, sort?} -> {halls: [...]}. Only approved halls are listed.
func (s *AvailabilityService) ListHalls(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	halls, err := s.halls.ListHalls(ctx, models.HallQuery{
		ApprovedOnly: true,
		District:     fields["district"].GetStringValue(),
		Search:       fields["q"].GetStringValue(),
		Sort:         models.HallSort(fields["sort"].GetStringValue()),
	})
	if err != nil {
		return nil, grpcError(err)
	}

	out := make([]interface{}, 0, len(halls))
	for _, h := range halls {
		out = append(out, map[string]interface{}{
			"id":              h.ID,
			"name":            h.Name,
			"district":        h.District,
			"capacity":        h.Capacity,
			"price_per_guest": h.PricePerGuest,
		})
	}
	return newStruct(map[string]interface{}{"halls": out})
}

func hallIDField(req *structpb.Struct) (int64, error) {
	v := req.GetFields()["hall_id"].GetNumberValue()
	if v <= 0 || v != math.Trunc(v) {
		return 0, status.Error(codes.InvalidArgument, "hall_id is required")
	}
	return int64(v), nil
}

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

// RegisterAvailabilityServer registers srv on s.
func RegisterAvailabilityServer(s grpc.ServiceRegistrar, srv AvailabilityServer) {
	s.RegisterService(&availabilityServiceDesc, srv)
}

var availabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: unaryHandler(methodCheckAvailability, AvailabilityServer.CheckAvailability)},
		{MethodName: "GetCalendar", Handler: unaryHandler(methodGetCalendar, AvailabilityServer.GetCalendar)},
		{MethodName: "ListHalls", Handler: unaryHandler(methodListHalls, AvailabilityServer.ListHalls)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hallbook/availability/v1/availability.proto",
}

type structMethod func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AvailabilityClient calls the availability API over conn.
type AvailabilityClient struct {
	conn grpc.ClientConnInterface
}

func NewAvailabilityClient(conn grpc.ClientConnInterface) *AvailabilityClient {
	return &AvailabilityClient{conn: conn}
}

func (c *AvailabilityClient) CheckAvailability(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCheckAvailability, in, opts...)
}

func (c *AvailabilityClient) GetCalendar(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetCalendar, in, opts...)
}

func (c *AvailabilityClient) ListHalls(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodListHalls, in, opts...)
}

func (c *AvailabilityClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
