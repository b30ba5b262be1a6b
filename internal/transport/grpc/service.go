package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "apptbook.v1.BookingService"

type BookingServiceServer interface {
	GetAvailableSlots(context.Context, *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error)
	CreateAppointment(context.Context, *CreateAppointmentRequest) (*CreateAppointmentResponse, error)
	GetAppointment(context.Context, *GetAppointmentRequest) (*GetAppointmentResponse, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*ListAppointmentsResponse, error)
	RescheduleAppointment(context.Context, *RescheduleAppointmentRequest) (*RescheduleAppointmentResponse, error)
	SwapAppointments(context.Context, *SwapAppointmentsRequest) (*SwapAppointmentsResponse, error)
	CancelAppointment(context.Context, *CancelAppointmentRequest) (*CancelAppointmentResponse, error)
	DeleteAppointment(context.Context, *DeleteAppointmentRequest) (*DeleteAppointmentResponse, error)
	RegisterPayment(context.Context, *RegisterPaymentRequest) (*RegisterPaymentResponse, error)
	BookTemplate(context.Context, *BookTemplateRequest) (*BookTemplateResponse, error)
	SetWorkingHours(context.Context, *SetWorkingHoursRequest) (*SetWorkingHoursResponse, error)
	GetWorkingHours(context.Context, *GetWorkingHoursRequest) (*GetWorkingHoursResponse, error)
}

// unary builds the method descriptor for one RPC, including interceptor
// dispatch, the way protoc-gen-go-grpc output does per method.
func unary[Req, Resp any](name string, call func(BookingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BookingServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BookingServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetAvailableSlots", BookingServiceServer.GetAvailableSlots),
		unary("CreateAppointment", BookingServiceServer.CreateAppointment),
		unary("GetAppointment", BookingServiceServer.GetAppointment),
		unary("ListAppointments", BookingServiceServer.ListAppointments),
		unary("RescheduleAppointment", BookingServiceServer.RescheduleAppointment),
		unary("SwapAppointments", BookingServiceServer.SwapAppointments),
		unary("CancelAppointment", BookingServiceServer.CancelAppointment),
		unary("DeleteAppointment", BookingServiceServer.DeleteAppointment),
		unary("RegisterPayment", BookingServiceServer.RegisterPayment),
		unary("BookTemplate", BookingServiceServer.BookTemplate),
		unary("SetWorkingHours", BookingServiceServer.SetWorkingHours),
		unary("GetWorkingHours", BookingServiceServer.GetWorkingHours),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "apptbook/v1/booking.proto",
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

// BookingServiceClient is a thin client for the JSON-coded service. Every
// call forces the json content-subtype.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingServiceClient) GetAvailableSlots(ctx context.Context, in *GetAvailableSlotsRequest, opts ...grpc.CallOption) (*GetAvailableSlotsResponse, error) {
	return invoke[GetAvailableSlotsResponse](ctx, c.cc, "GetAvailableSlots", in, opts)
}

func (c *BookingServiceClient) CreateAppointment(ctx context.Context, in *CreateAppointmentRequest, opts ...grpc.CallOption) (*CreateAppointmentResponse, error) {
	return invoke[CreateAppointmentResponse](ctx, c.cc, "CreateAppointment", in, opts)
}

func (c *BookingServiceClient) GetAppointment(ctx context.Context, in *GetAppointmentRequest, opts ...grpc.CallOption) (*GetAppointmentResponse, error) {
	return invoke[GetAppointmentResponse](ctx, c.cc, "GetAppointment", in, opts)
}

func (c *BookingServiceClient) ListAppointments(ctx context.Context, in *ListAppointmentsRequest, opts ...grpc.CallOption) (*ListAppointmentsResponse, error) {
	return invoke[ListAppointmentsResponse](ctx, c.cc, "ListAppointments", in, opts)
}

func (c *BookingServiceClient) RescheduleAppointment(ctx context.Context, in *RescheduleAppointmentRequest, opts ...grpc.CallOption) (*RescheduleAppointmentResponse, error) {
	return invoke[RescheduleAppointmentResponse](ctx, c.cc, "RescheduleAppointment", in, opts)
}

func (c *BookingServiceClient) SwapAppointments(ctx context.Context, in *SwapAppointmentsRequest, opts ...grpc.CallOption) (*SwapAppointmentsResponse, error) {
	return invoke[SwapAppointmentsResponse](ctx, c.cc, "SwapAppointments", in, opts)
}

func (c *BookingServiceClient) CancelAppointment(ctx context.Context, in *CancelAppointmentRequest, opts ...grpc.CallOption) (*CancelAppointmentResponse, error) {
	return invoke[CancelAppointmentResponse](ctx, c.cc, "CancelAppointment", in, opts)
}

func (c *BookingServiceClient) DeleteAppointment(ctx context.Context, in *DeleteAppointmentRequest, opts ...grpc.CallOption) (*DeleteAppointmentResponse, error) {
	return invoke[DeleteAppointmentResponse](ctx, c.cc, "DeleteAppointment", in, opts)
}

func (c *BookingServiceClient) RegisterPayment(ctx context.Context, in *RegisterPaymentRequest, opts ...grpc.CallOption) (*RegisterPaymentResponse, error) {
	return invoke[RegisterPaymentResponse](ctx, c.cc, "RegisterPayment", in, opts)
}

func (c *BookingServiceClient) BookTemplate(ctx context.Context, in *BookTemplateRequest, opts ...grpc.CallOption) (*BookTemplateResponse, error) {
	return invoke[BookTemplateResponse](ctx, c.cc, "BookTemplate", in, opts)
}

func (c *BookingServiceClient) SetWorkingHours(ctx context.Context, in *SetWorkingHoursRequest, opts ...grpc.CallOption) (*SetWorkingHoursResponse, error) {
	return invoke[SetWorkingHoursResponse](ctx, c.cc, "SetWorkingHours", in, opts)
}

func (c *BookingServiceClient) GetWorkingHours(ctx context.Context, in *GetWorkingHoursRequest, opts ...grpc.CallOption) (*GetWorkingHoursResponse, error) {
	return invoke[GetWorkingHoursResponse](ctx, c.cc, "GetWorkingHours", in, opts)
}
