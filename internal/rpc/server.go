package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/citadel/internal/cipher"
	"github.com/RowanDark/citadel/internal/exporter"
	"github.com/RowanDark/citadel/internal/hill"
	"github.com/RowanDark/citadel/internal/logging"
	"github.com/RowanDark/citadel/internal/observability/metrics"
	"github.com/RowanDark/citadel/internal/observability/tracing"
)

// Server implements CipherServer on top of a cipher.Service.
type Server struct {
	svc *cipher.Service
}

// NewServer returns a gRPC handler for svc.
func NewServer(svc *cipher.Service) (*Server, error) {
	if svc == nil {
		return nil, errors.New("cipher service is required")
	}
	return &Server{svc: svc}, nil
}

// NewGRPCServer builds a grpc.Server with tracing and metrics interceptors
// and the cipher service registered.
func NewGRPCServer(svc *cipher.Service, opts ...grpc.ServerOption) (*grpc.Server, error) {
	impl, err := NewServer(svc)
	if err != nil {
		return nil, err
	}
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(tracing.UnaryServerInterceptor(), metricsInterceptor()),
	}, opts...)
	srv := grpc.NewServer(opts...)
	RegisterCipherServer(srv, impl)
	return srv, nil
}

// Serve runs srv on lis until ctx is cancelled, then stops gracefully.
func Serve(ctx context.Context, srv *grpc.Server, lis net.Listener, logger *logging.AuditLogger) error {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()
	_ = logger.Emit(logging.AuditEvent{
		EventType: logging.EventServerLifecycle,
		Decision:  logging.DecisionInfo,
		Metadata:  map[string]any{"server": "grpc", "state": "listening", "addr": lis.Addr().String()},
	})

	select {
	case <-ctx.Done():
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			srv.Stop()
		}
		_ = logger.Emit(logging.AuditEvent{
			EventType: logging.EventServerLifecycle,
			Decision:  logging.DecisionInfo,
			Metadata:  map[string]any{"server": "grpc", "state": "stopped"},
		})
		if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Encrypt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.pass(ctx, in, hill.DirectionEncrypt)
}

func (s *Server) Decrypt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.pass(ctx, in, hill.DirectionDecrypt)
}

// pass reads mode, text, key, iv and the optional trace flag from in.
func (s *Server) pass(ctx context.Context, in *structpb.Struct, dir hill.Direction) (*structpb.Struct, error) {
	fields := in.GetFields()
	pass, err := s.svc.Run(ctx, cipher.PassRequest{
		Mode:      fields["mode"].GetStringValue(),
		Direction: dir,
		Text:      fields["text"].GetStringValue(),
		Key:       fields["key"].GetStringValue(),
		IV:        fields["iv"].GetStringValue(),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	report := exporter.NewReport(pass.ID, pass.Result, fields["trace"].GetBoolValue())
	return toStruct(report)
}

func (s *Server) GenerateKey(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw := in.GetFields()["size"].GetNumberValue()
	if raw != math.Trunc(raw) || math.IsInf(raw, 0) {
		return nil, status.Errorf(codes.InvalidArgument, "size must be an integer, got %v", raw)
	}
	size := int(raw)
	if err := cipher.CheckKeySize(size); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	km, err := s.svc.GenerateKey(ctx, size)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return structpb.NewStruct(map[string]any{
		"size": km.Key.Size(),
		"key":  hill.FormatInts(km.Key.Flat()),
		"iv":   hill.FormatInts(km.IV),
	})
}

// toStatus maps cipher sentinels onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, hill.ErrKeyNotInvertible):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.InvalidArgument, err.Error())
	}
}

// toStruct converts v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func metricsInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		metrics.RecordRequest(ctx, "grpc", info.FullMethod, code.String(), code != codes.OK, time.Since(start))
		return resp, err
	}
}
