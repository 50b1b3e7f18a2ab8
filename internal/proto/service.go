// Package proto declares the RemoteStore gRPC service. Messages are protobuf
// well-known types (structpb, wrapperspb, emptypb) so no generated code is
// required; typed helpers in messages.go convert them to Go values.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "moodkeeper.remotestore.RemoteStore"

const (
	RemoteStore_Create_FullMethodName      = "/" + ServiceName + "/Create"
	RemoteStore_Update_FullMethodName      = "/" + ServiceName + "/Update"
	RemoteStore_QueryByUser_FullMethodName = "/" + ServiceName + "/QueryByUser"
	RemoteStore_Ping_FullMethodName        = "/" + ServiceName + "/Ping"
)

// RemoteStoreClient is the client API for the RemoteStore service.
type RemoteStoreClient interface {
	Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	QueryByUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error)
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
}

type remoteStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewRemoteStoreClient(cc grpc.ClientConnInterface) RemoteStoreClient {
	return &remoteStoreClient{cc: cc}
}

func (c *remoteStoreClient) Create(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, RemoteStore_Create_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *remoteStoreClient) Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, RemoteStore_Update_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *remoteStoreClient) QueryByUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, RemoteStore_QueryByUser_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *remoteStoreClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, RemoteStore_Ping_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RemoteStoreServer is the server API for the RemoteStore service.
type RemoteStoreServer interface {
	Create(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	Update(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	QueryByUser(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// UnimplementedRemoteStoreServer can be embedded to get forward-compatible
// implementations.
type UnimplementedRemoteStoreServer struct{}

func (UnimplementedRemoteStoreServer) Create(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Create not implemented")
}

func (UnimplementedRemoteStoreServer) Update(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Update not implemented")
}

func (UnimplementedRemoteStoreServer) QueryByUser(context.Context, *structpb.Struct) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method QueryByUser not implemented")
}

func (UnimplementedRemoteStoreServer) Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

func RegisterRemoteStoreServer(s grpc.ServiceRegistrar, srv RemoteStoreServer) {
	s.RegisterService(&RemoteStore_ServiceDesc, srv)
}

func _RemoteStore_Create_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteStoreServer).Create(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteStore_Create_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RemoteStoreServer).Create(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _RemoteStore_Update_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteStoreServer).Update(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteStore_Update_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RemoteStoreServer).Update(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _RemoteStore_QueryByUser_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteStoreServer).QueryByUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteStore_QueryByUser_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RemoteStoreServer).QueryByUser(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _RemoteStore_Ping_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RemoteStoreServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RemoteStore_Ping_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RemoteStoreServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// RemoteStore_ServiceDesc is the grpc.ServiceDesc for the RemoteStore service.
var RemoteStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RemoteStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: _RemoteStore_Create_Handler},
		{MethodName: "Update", Handler: _RemoteStore_Update_Handler},
		{MethodName: "QueryByUser", Handler: _RemoteStore_QueryByUser_Handler},
		{MethodName: "Ping", Handler: _RemoteStore_Ping_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "moodkeeper/remotestore.proto",
}
