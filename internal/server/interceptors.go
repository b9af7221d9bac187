package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Probes skip auth and log at debug level on both transports.
const (
	healthCheckMethod = "/grpc.health.v1.Health/Check"
	healthHTTPPath    = "/v1/health"
)

// bearer checks "Authorization: Bearer <token>" values. A zero bearer
// accepts everything.
type bearer struct {
	token []byte
}

func (b bearer) enabled() bool { return len(b.token) > 0 }

// check returns why auth was rejected, or "" when it matches.
func (b bearer) check(auth string) string {
	if auth == "" {
		return "missing authorization header"
	}
	provided, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return "invalid authorization scheme"
	}
	if subtle.ConstantTimeCompare([]byte(provided), b.token) != 1 {
		return "invalid token"
	}
	return ""
}

// unaryInterceptors returns the chain in execution order: panics are
// recovered outermost so a crashing handler is still logged.
func unaryInterceptors(logger *slog.Logger, token string) []grpc.UnaryServerInterceptor {
	return []grpc.UnaryServerInterceptor{
		recoverUnary(logger),
		logUnary(logger),
		authUnary(bearer{token: []byte(token)}),
	}
}

func logUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{"method", info.FullMethod, "duration", time.Since(start)}
		switch {
		case err != nil:
			logger.Error("rpc failed", append(attrs, "code", status.Code(err).String(), "err", err)...)
		case info.FullMethod == healthCheckMethod:
			logger.Debug("rpc", attrs...)
		default:
			logger.Info("rpc", attrs...)
		}
		return resp, err
	}
}

func recoverUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("rpc panic", "method", info.FullMethod, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func authUnary(b bearer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !b.enabled() || info.FullMethod == healthCheckMethod {
			return handler(ctx, req)
		}
		var auth string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("authorization"); len(vals) > 0 {
				auth = vals[0]
			}
		}
		if msg := b.check(auth); msg != "" {
			return nil, status.Error(codes.Unauthenticated, msg)
		}
		return handler(ctx, req)
	}
}

// AuthMiddleware rejects HTTP requests without the bearer token. An empty
// token disables auth. GET /v1/health is always let through.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	b := bearer{token: []byte(token)}
	if !b.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == healthHTTPPath {
			next.ServeHTTP(w, r)
			return
		}
		if msg := b.check(r.Header.Get("Authorization")); msg != "" {
			writeError(w, http.StatusUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// accessLog logs one line per HTTP request. Server errors are logged by the
// handlers themselves with more detail, so only the status is recorded here.
func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		level := slog.LevelInfo
		if r.URL.Path == healthHTTPPath {
			level = slog.LevelDebug
		}
		logger.Log(r.Context(), level, "http",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
