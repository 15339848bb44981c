// Package rpc serves the cipher over gRPC as citadel.v1.Cipher. Messages are
// google.protobuf.Struct so clients need no generated stubs.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "citadel.v1.Cipher"

// Full method names.
const (
	MethodEncrypt     = "/" + ServiceName + "/Encrypt"
	MethodDecrypt     = "/" + ServiceName + "/Decrypt"
	MethodGenerateKey = "/" + ServiceName + "/GenerateKey"
)

// CipherServer is the server API for citadel.v1.Cipher.
type CipherServer interface {
	Encrypt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Decrypt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GenerateKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(CipherServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CipherServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CipherServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes citadel.v1.Cipher for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CipherServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Encrypt", Handler: unaryHandler(MethodEncrypt, CipherServer.Encrypt)},
		{MethodName: "Decrypt", Handler: unaryHandler(MethodDecrypt, CipherServer.Decrypt)},
		{MethodName: "GenerateKey", Handler: unaryHandler(MethodGenerateKey, CipherServer.GenerateKey)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "citadel/v1/cipher.proto",
}

// RegisterCipherServer registers srv on s.
func RegisterCipherServer(s grpc.ServiceRegistrar, srv CipherServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls citadel.v1.Cipher.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Encrypt(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodEncrypt, in, opts...)
}

func (c *Client) Decrypt(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodDecrypt, in, opts...)
}

func (c *Client) GenerateKey(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, MethodGenerateKey, in, opts...)
}
