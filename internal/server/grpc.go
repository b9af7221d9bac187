package server

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer serves lane health and reflection behind the auth and
// logging interceptors, traced with otelgrpc.
func NewGRPCServer(h *LaneHealth, authToken string, logger *slog.Logger) *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unaryInterceptors(logger, authToken)...),
	)
	healthpb.RegisterHealthServer(srv, h.Server())
	reflection.Register(srv)
	return srv
}
