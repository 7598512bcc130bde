package interceptor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"bookshare-backend/internal/logger"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestUnary_AttachesTraceID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(TraceMetadataKey, "trace-1"))

	var seen string
	resp, err := NewLoggingInterceptor().Unary()(ctx, "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = logger.TraceIDFromContext(ctx)
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, "trace-1", seen)
}

func TestUnary_PassesErrorsThrough(t *testing.T) {
	want := status.Error(codes.NotFound, "unknown service")

	_, err := NewLoggingInterceptor().Unary()(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, want
	})

	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestUnary_RecoversPanics(t *testing.T) {
	_, err := NewLoggingInterceptor().Unary()(context.Background(), "req", info, func(ctx context.Context, req interface{}) (interface{}, error) {
		panic("boom")
	})

	assert.Equal(t, codes.Internal, status.Code(err))
}
