package tracing

import (
	"context"
	"strings"

	"google.golang.org/grpc"
)

// UnaryServerInterceptor wraps each unary handler in a server span that
// continues any traceparent sent by the client.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx = ContextWithMetadataSpan(ctx)
		service, method := splitMethod(info.FullMethod)
		attrs := map[string]any{"rpc.system": "grpc", "rpc.service": service, "rpc.method": method}
		ctx, span := StartSpan(ctx, info.FullMethod, WithSpanKind(SpanKindServer), WithAttributes(attrs))
		resp, err := handler(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.End()
			return resp, err
		}
		span.EndWithStatus(StatusOK, "")
		return resp, nil
	}
}

// UnaryClientInterceptor forwards the caller's span context as traceparent
// metadata.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(InjectTraceParent(ctx), method, req, reply, cc, opts...)
	}
}

func splitMethod(full string) (string, string) {
	service, method, ok := strings.Cut(strings.TrimPrefix(full, "/"), "/")
	if !ok {
		return service, ""
	}
	return service, method
}
