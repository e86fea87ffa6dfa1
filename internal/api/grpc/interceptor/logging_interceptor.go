package interceptor

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"teamnet-backend/internal/logger"
)

type LoggingInterceptor struct {
	log logger.Logger
}

func NewLoggingInterceptor(log logger.Logger) *LoggingInterceptor {
	return &LoggingInterceptor{log: log}
}

// Unary returns a server interceptor that logs each unary RPC and turns
// panics into codes.Internal.
func (i *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				i.log.Error("panic in rpc", "method", info.FullMethod, "panic", p)
				err = status.Error(codes.Internal, "internal error")
			}
			i.log.Debug("rpc handled",
				"method", info.FullMethod,
				"code", status.Code(err).String(),
				"duration_ms", time.Since(start).Milliseconds())
		}()
		return handler(ctx, req)
	}
}

// Stream does the same for streaming RPCs such as health Watch.
func (i *LoggingInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if p := recover(); p != nil {
				i.log.Error("panic in stream", "method", info.FullMethod, "panic", p)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(srv, ss)
	}
}
