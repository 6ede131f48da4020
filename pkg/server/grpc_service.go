// Package server serves snapshot queries over historical order logs.
package server

import (
	"context"
	"errors"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/erain9/clobreplay/pkg/logging"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GRPCSnapshotService implements SnapshotServiceServer on top of a QueryService
type GRPCSnapshotService struct {
	query *QueryService
}

var _ SnapshotServiceServer = (*GRPCSnapshotService)(nil)

// NewGRPCSnapshotService creates a new GRPCSnapshotService
func NewGRPCSnapshotService(query *QueryService) *GRPCSnapshotService {
	return &GRPCSnapshotService{query: query}
}

// Query implements the Query RPC method
func (s *GRPCSnapshotService) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	logger := logging.FromContext(ctx).With().Str("method", "Query").Logger()
	logger.Debug().
		Str("log", req.Log).
		Str("instrument", req.Instrument).
		Int64("index", req.Index).
		Msg("Request received")

	if req.Log == "" || req.Instrument == "" {
		return nil, status.Error(codes.InvalidArgument, "log and instrument are required")
	}

	snapshot, err := s.query.Query(ctx, req.Log, req.Instrument, req.Index)
	if err != nil {
		return nil, toStatus(err, req.Log)
	}
	return &QueryResponse{Snapshot: snapshot}, nil
}

// ListLogs implements the ListLogs RPC method
func (s *GRPCSnapshotService) ListLogs(ctx context.Context, _ *ListLogsRequest) (*ListLogsResponse, error) {
	return &ListLogsResponse{Logs: s.query.Manager().List(ctx)}, nil
}

// toStatus maps domain errors onto gRPC status codes
func toStatus(err error, logName string) error {
	switch {
	case errors.Is(err, core.ErrInvalidIndex):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrLogNotFound):
		return status.Errorf(codes.NotFound, "order log %s not found", logName)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Errorf(codes.Internal, "query failed: %v", err)
	}
}
