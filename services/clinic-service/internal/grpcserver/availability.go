package grpcserver

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "clinicdesk.scheduling.v1.Availability"

const (
	methodGetAvailableSlots = "/" + ServiceName + "/GetAvailableSlots"
	methodValidateBooking   = "/" + ServiceName + "/ValidateBooking"
)

// Availability is the read side of the booking service exposed over gRPC.
type Availability interface {
	Location() *time.Location
	AvailableSlots(ctx context.Context, professionalID string, d scheduling.Date) ([]scheduling.TimeOfDay, error)
	ValidateBooking(ctx context.Context, req scheduling.Request) (scheduling.Verdict, error)
}

// AvailabilityServer is the handler type of the service descriptor. Messages
// are google.protobuf.Struct documents.
type AvailabilityServer interface {
	GetAvailableSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ValidateBooking(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var AvailabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailableSlots", Handler: unaryHandler(methodGetAvailableSlots, AvailabilityServer.GetAvailableSlots)},
		{MethodName: "ValidateBooking", Handler: unaryHandler(methodValidateBooking, AvailabilityServer.ValidateBooking)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clinicdesk/scheduling/v1/availability.proto",
}

func unaryHandler(fullMethod string, call func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
		})
	}
}

type server struct {
	svc Availability
}

func Register(s grpc.ServiceRegistrar, svc Availability) {
	s.RegisterService(&AvailabilityServiceDesc, &server{svc: svc})
}

func (s *server) GetAvailableSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	professionalID := field(in, "professional_id")
	if err := requireIDs(map[string]string{"professional_id": professionalID}); err != nil {
		return nil, err
	}
	d, err := scheduling.ParseDate(field(in, "date"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "date must be YYYY-MM-DD")
	}
	slots, err := s.svc.AvailableSlots(ctx, professionalID, d)
	if err != nil {
		return nil, status.Error(codes.Internal, "availability lookup failed")
	}
	list := make([]any, len(slots))
	for i, slot := range slots {
		list[i] = slot.String()
	}
	return structpb.NewStruct(map[string]any{
		"professional_id": professionalID,
		"date":            d.String(),
		"slots":           list,
	})
}

func (s *server) ValidateBooking(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := scheduling.Request{
		ProfessionalID:       field(in, "professional_id"),
		PatientID:            field(in, "patient_id"),
		ExcludeAppointmentID: field(in, "exclude_appointment_id"),
	}
	if err := requireIDs(map[string]string{
		"professional_id": req.ProfessionalID,
		"patient_id":      req.PatientID,
	}); err != nil {
		return nil, err
	}
	if req.ExcludeAppointmentID != "" {
		if _, err := uuid.Parse(req.ExcludeAppointmentID); err != nil {
			return nil, status.Error(codes.InvalidArgument, "exclude_appointment_id must be a uuid")
		}
	}
	at, err := time.Parse(time.RFC3339, field(in, "scheduled_at"))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "scheduled_at must be RFC3339")
	}
	req.At = at

	v, err := s.svc.ValidateBooking(ctx, req)
	if err != nil {
		return nil, status.Error(codes.Internal, "validation failed")
	}
	out := map[string]any{"accepted": v.Accepted}
	if !v.Accepted {
		out["reason"] = string(v.Reason)
		out["message"] = v.Reason.Message()
	}
	return structpb.NewStruct(out)
}

// requireIDs rejects missing or malformed ids before they reach storage.
func requireIDs(ids map[string]string) error {
	for name, id := range ids {
		if id == "" {
			return status.Error(codes.InvalidArgument, name+" is required")
		}
		if _, err := uuid.Parse(id); err != nil {
			return status.Error(codes.InvalidArgument, name+" must be a uuid")
		}
	}
	return nil
}

func field(in *structpb.Struct, name string) string {
	return strings.TrimSpace(in.GetFields()[name].GetStringValue())
}

// AvailabilityClient calls the service over conn.
type AvailabilityClient struct {
	cc grpc.ClientConnInterface
}

func NewAvailabilityClient(cc grpc.ClientConnInterface) *AvailabilityClient {
	return &AvailabilityClient{cc: cc}
}

func (c *AvailabilityClient) GetAvailableSlots(ctx context.Context, professionalID, date string) ([]string, error) {
	in, err := structpb.NewStruct(map[string]any{"professional_id": professionalID, "date": date})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetAvailableSlots, in, out); err != nil {
		return nil, err
	}
	var slots []string
	for _, v := range out.GetFields()["slots"].GetListValue().GetValues() {
		slots = append(slots, v.GetStringValue())
	}
	return slots, nil
}

func (c *AvailabilityClient) ValidateBooking(ctx context.Context, professionalID, patientID string, at time.Time) (scheduling.Verdict, error) {
	in, err := structpb.NewStruct(map[string]any{
		"professional_id": professionalID,
		"patient_id":      patientID,
		"scheduled_at":    at.Format(time.RFC3339),
	})
	if err != nil {
		return scheduling.Verdict{}, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodValidateBooking, in, out); err != nil {
		return scheduling.Verdict{}, err
	}
	f := out.GetFields()
	return scheduling.Verdict{
		Accepted: f["accepted"].GetBoolValue(),
		Reason:   scheduling.Reason(f["reason"].GetStringValue()),
	}, nil
}
