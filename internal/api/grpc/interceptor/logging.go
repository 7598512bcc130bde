package interceptor

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"bookshare-backend/internal/logger"
)

// TraceMetadataKey is the metadata key carrying the caller's request id.
const TraceMetadataKey = "x-request-id"

type LoggingInterceptor struct{}

func NewLoggingInterceptor() *LoggingInterceptor {
	return &LoggingInterceptor{}
}

// Unary returns a server interceptor that attaches the trace id to the
// context, logs each call and turns panics into codes.Internal.
func (i *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		if traceID := traceFromMetadata(ctx); traceID != "" {
			ctx = logger.ContextWithTraceID(ctx, traceID)
		}
		log := logger.FromContext(ctx)
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				log.Error("gRPC handler panicked", "method", info.FullMethod, "panic", r)
				err = status.Errorf(codes.Internal, "internal error")
			}
			log.Debug("gRPC request",
				"method", info.FullMethod,
				"code", status.Code(err).String(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()

		return handler(ctx, req)
	}
}

func traceFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(TraceMetadataKey)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
