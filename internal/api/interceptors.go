package api

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// requestIDKey: один и тот же id в HTTP-заголовке и gRPC metadata.
const requestIDKey = "x-request-id"

// ChainUnaryInterceptors runs interceptors in order, the first one outermost.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var call func(i int) grpc.UnaryHandler
		call = func(i int) grpc.UnaryHandler {
			if i == len(interceptors) {
				return handler
			}
			return func(ctx context.Context, req any) (any, error) {
				return interceptors[i](ctx, req, info, call(i+1))
			}
		}
		return call(0)(ctx, req)
	}
}

// LoggingUnaryInterceptor пишет одну строку на вызов. Ошибки клиента
// (неверный запрос, занятая дата) идут в warn, сбои сервера в error.
func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "grpc").Logger()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var incoming string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			incoming = first(md.Get(requestIDKey))
		}
		requestID := ensureRequestID(incoming)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		event := levelFor(&base, code)
		if err != nil {
			event = event.Err(err)
		}
		event.
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Str("remote", peerAddr(ctx)).
			Str("code", code.String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		return resp, err
	}
}

// RecoveryUnaryInterceptor turns a handler panic into codes.Internal.
func RecoveryUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if logger != nil {
				logger.Error().
					Interface("panic", r).
					Str("method", info.FullMethod).
					Bytes("stack", debug.Stack()).
					Msg("grpc handler panic")
			}
			err = status.Error(codes.Internal, "internal error")
		}()
		return handler(ctx, req)
	}
}

func levelFor(logger *zerolog.Logger, code codes.Code) *zerolog.Event {
	switch code {
	case codes.OK:
		return logger.Info()
	case codes.Internal, codes.Unavailable, codes.Unknown, codes.DataLoss:
		return logger.Error()
	default:
		return logger.Warn()
	}
}

// ensureRequestID keeps a caller-supplied id or mints a new one.
func ensureRequestID(incoming string) string {
	if id := strings.TrimSpace(incoming); id != "" {
		return id
	}
	return uuid.NewString()
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
