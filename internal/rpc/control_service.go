package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name a
// `service ControlService` definition in this package would generate.
const ServiceName = "yanet2.rpc.ControlService"

// RegisterControlServiceServer registers srv's methods against server
// using the hand-built ServiceDesc below, playing the role a generated
// *_grpc.pb.go's RegisterControlServiceServer normally would.
func RegisterControlServiceServer(server *grpc.Server, srv ControlServiceServer) {
	server.RegisterService(&controlServiceDesc, srv)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
		{MethodName: "ListPipelines", Handler: listPipelinesHandler},
		{MethodName: "GetGeneration", Handler: getGenerationHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/rpc/control_service.go",
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PublishRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServiceServer).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/Publish"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServiceServer).Publish(ctx, req.(*PublishRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listPipelinesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListPipelinesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServiceServer).ListPipelines(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/ListPipelines"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServiceServer).ListPipelines(ctx, req.(*ListPipelinesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getGenerationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetGenerationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServiceServer).GetGeneration(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/GetGeneration"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServiceServer).GetGeneration(ctx, req.(*GetGenerationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ControlServiceClient is the client-side counterpart to
// ControlServiceServer, mirroring the method set a generated
// *_grpc.pb.go client stub would expose.
type ControlServiceClient interface {
	Publish(ctx context.Context, req *PublishRequest, opts ...grpc.CallOption) (*PublishResponse, error)
	ListPipelines(ctx context.Context, req *ListPipelinesRequest, opts ...grpc.CallOption) (*ListPipelinesResponse, error)
	GetGeneration(ctx context.Context, req *GetGenerationRequest, opts ...grpc.CallOption) (*GetGenerationResponse, error)
}

type controlServiceClient struct {
	cc *grpc.ClientConn
}

// NewControlServiceClient wraps an established connection, defaulting
// every call to the JSON content-subtype so it lands on jsonCodec
// instead of gRPC's built-in proto codec.
func NewControlServiceClient(cc *grpc.ClientConn) ControlServiceClient {
	return &controlServiceClient{cc: cc}
}

func (c *controlServiceClient) callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

func (c *controlServiceClient) Publish(ctx context.Context, req *PublishRequest, opts ...grpc.CallOption) (*PublishResponse, error) {
	out := new(PublishResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Publish", req, out, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controlServiceClient) ListPipelines(ctx context.Context, req *ListPipelinesRequest, opts ...grpc.CallOption) (*ListPipelinesResponse, error) {
	out := new(ListPipelinesResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ListPipelines", req, out, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controlServiceClient) GetGeneration(ctx context.Context, req *GetGenerationRequest, opts ...grpc.CallOption) (*GetGenerationResponse, error) {
	out := new(GetGenerationResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetGeneration", req, out, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}
