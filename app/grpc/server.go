package grpc

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-paylink/app/mapper"
	"github.com/vibast-solutions/ms-go-paylink/app/service"
	"github.com/vibast-solutions/ms-go-paylink/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "paylink.v1.ReconcilerService"

// ReconcilerServer is the paylink.v1.ReconcilerService contract. Requests carry {"id": "<uuid>"}.
type ReconcilerServer interface {
	GetPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TriggerPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WatchPayment(req *structpb.Struct, stream grpc.ServerStream) error
}

var ReconcilerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReconcilerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPayment", Handler: getPaymentHandler},
		{MethodName: "TriggerPayment", Handler: triggerPaymentHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchPayment", Handler: watchPaymentHandler, ServerStreams: true},
	},
	Metadata: "paylink/v1/reconciler.proto",
}

func RegisterReconcilerServer(registrar grpc.ServiceRegistrar, srv ReconcilerServer) {
	registrar.RegisterService(&ReconcilerServiceDesc, srv)
}

type Server struct {
	paymentService *service.PaymentService
}

var _ ReconcilerServer = (*Server)(nil)

func NewServer(paymentService *service.PaymentService) *Server {
	return &Server{paymentService: paymentService}
}

func (s *Server) GetPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := types.NewPaymentIDRequestFromStruct(req)
	if err := in.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.paymentService.GetPayment(ctx, in.GetId())
	if err != nil {
		return nil, statusFromError(ctx, err, "Get payment failed")
	}

	msg, err := mapper.PaymentToStruct(item)
	return encode(ctx, msg, err)
}

func (s *Server) TriggerPayment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in := types.NewPaymentIDRequestFromStruct(req)
	if err := in.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, item, err := s.paymentService.TriggerNow(ctx, in.GetId())
	if err != nil {
		return nil, statusFromError(ctx, err, "Trigger payment failed")
	}

	msg, err := mapper.TriggerToStruct(string(result), item)
	return encode(ctx, msg, err)
}

// WatchPayment streams every snapshot published for the payment until the client cancels or the
// hub shuts down.
func (s *Server) WatchPayment(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	in := types.NewPaymentIDRequestFromStruct(req)
	if err := in.Validate(); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if _, err := s.paymentService.GetPayment(ctx, in.GetId()); err != nil {
		return statusFromError(ctx, err, "Watch payment failed")
	}

	sub, err := s.paymentService.Subscribe(in.GetId())
	if err != nil {
		return statusFromError(ctx, err, "Watch payment failed")
	}
	defer s.paymentService.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-sub.C():
			if !ok {
				return nil
			}
			msg, err := mapper.PaymentToStruct(snap)
			if err != nil {
				loggerWithContext(ctx).WithError(err).Warn("watch_encode_failed")
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func encode(ctx context.Context, msg *structpb.Struct, err error) (*structpb.Struct, error) {
	if err != nil {
		loggerWithContext(ctx).WithError(err).Error("Encode response failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return msg, nil
}

func statusFromError(ctx context.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrPaymentNotFound):
		return status.Error(codes.NotFound, "payment not found")
	case errors.Is(err, service.ErrRefundAlreadyStarted),
		errors.Is(err, service.ErrAlreadyRefunded),
		errors.Is(err, service.ErrRefundNotAllowed),
		errors.Is(err, service.ErrPaymentNotSettled):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrRefundRejected), errors.Is(err, service.ErrGatewayUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		loggerWithContext(ctx).WithError(err).Error(logMessage)
		return status.Error(codes.Internal, "internal server error")
	}
}

func getPaymentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconcilerServer).GetPayment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetPayment"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReconcilerServer).GetPayment(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func triggerPaymentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReconcilerServer).TriggerPayment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/TriggerPayment"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReconcilerServer).TriggerPayment(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchPaymentHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ReconcilerServer).WatchPayment(in, stream)
}
