package server

import (
	"context"

	"github.com/erain9/clobreplay/pkg/core"
	"google.golang.org/grpc"
)

// SnapshotServiceName is the fully qualified gRPC service name
const SnapshotServiceName = "clob.v1.SnapshotService"

// Full method names
const (
	QueryMethod    = "/" + SnapshotServiceName + "/Query"
	ListLogsMethod = "/" + SnapshotServiceName + "/ListLogs"
)

// QueryRequest asks for the report of one instrument at one log position
type QueryRequest struct {
	Log        string `json:"log"`
	Instrument string `json:"instrument"`
	Index      int64  `json:"index"`
}

// QueryResponse carries the report
type QueryResponse struct {
	Snapshot *core.Snapshot `json:"snapshot"`
}

// ListLogsRequest has no fields
type ListLogsRequest struct{}

// ListLogsResponse lists the logs being served
type ListLogsResponse struct {
	Logs []*LogInfo `json:"logs"`
}

// SnapshotServiceServer is the server API for the snapshot service
type SnapshotServiceServer interface {
	Query(context.Context, *QueryRequest) (*QueryResponse, error)
	ListLogs(context.Context, *ListLogsRequest) (*ListLogsResponse, error)
}

func querySnapshotHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotServiceServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: QueryMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotServiceServer).Query(ctx, req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listLogsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListLogsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotServiceServer).ListLogs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListLogsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotServiceServer).ListLogs(ctx, req.(*ListLogsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// SnapshotServiceDesc describes the service to grpc.Server.RegisterService
var SnapshotServiceDesc = grpc.ServiceDesc{
	ServiceName: SnapshotServiceName,
	HandlerType: (*SnapshotServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: querySnapshotHandler},
		{MethodName: "ListLogs", Handler: listLogsHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// SnapshotServiceClient calls the snapshot service. Every call uses the JSON codec.
type SnapshotServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSnapshotServiceClient wraps a connection
func NewSnapshotServiceClient(cc grpc.ClientConnInterface) *SnapshotServiceClient {
	return &SnapshotServiceClient{cc: cc}
}

// Query calls SnapshotService.Query
func (c *SnapshotServiceClient) Query(ctx context.Context, in *QueryRequest, opts ...grpc.CallOption) (*QueryResponse, error) {
	out := new(QueryResponse)
	if err := c.cc.Invoke(ctx, QueryMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListLogs calls SnapshotService.ListLogs
func (c *SnapshotServiceClient) ListLogs(ctx context.Context, in *ListLogsRequest, opts ...grpc.CallOption) (*ListLogsResponse, error) {
	out := new(ListLogsResponse)
	if err := c.cc.Invoke(ctx, ListLogsMethod, in, out, c.callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SnapshotServiceClient) callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
}
