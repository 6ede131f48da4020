package server

import (
	"github.com/erain9/clobreplay/pkg/logging"
	"github.com/erain9/clobreplay/pkg/otel"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

// RegisterSnapshotService registers the snapshot service with the provided gRPC server
func RegisterSnapshotService(grpcServer *grpc.Server, service SnapshotServiceServer) {
	grpcServer.RegisterService(&SnapshotServiceDesc, service)
}

// NewGRPCServer creates a gRPC server with tracing, metrics and request logging installed
// and the snapshot service registered
func NewGRPCServer(service SnapshotServiceServer, opts ...grpc.ServerOption) *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{logging.UnaryServerInterceptor()}
	if metrics, err := otel.MetricsServerInterceptor(); err != nil {
		log.Warn().Err(err).Msg("gRPC server metrics disabled")
	} else {
		interceptors = append(interceptors, metrics)
	}

	serverOpts := append([]grpc.ServerOption{
		grpc.StatsHandler(otel.NewGRPCStatsHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
		grpc.ChainStreamInterceptor(logging.StreamServerInterceptor()),
	}, opts...)

	grpcServer := grpc.NewServer(serverOpts...)
	RegisterSnapshotService(grpcServer, service)
	return grpcServer
}
