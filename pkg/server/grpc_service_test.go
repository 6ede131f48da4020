package server

import (
	"context"
	"net"
	"testing"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// startBufServer serves svc on an in-memory listener and returns a connected client
func startBufServer(t *testing.T, svc *QueryService) *SnapshotServiceClient {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	s := NewGRPCServer(NewGRPCSnapshotService(svc))
	go func() {
		_ = s.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		s.GracefulStop()
		_ = lis.Close()
	})
	return NewSnapshotServiceClient(conn)
}

func TestGRPCSnapshotService(t *testing.T) {
	client := startBufServer(t, newTestQueryService(t))
	ctx := context.Background()

	t.Run("Query", func(t *testing.T) {
		resp, err := client.Query(ctx, &QueryRequest{Log: "daily", Instrument: "1131", Index: 2})
		require.NoError(t, err)
		require.NotNil(t, resp.Snapshot)
		assertLevels(t, [][2]string{{"10.0", "20"}}, resp.Snapshot.Sells)
		assert.Empty(t, resp.Snapshot.Buys)
		assert.Equal(t, core.Sell, resp.Snapshot.Sells[0].Side)
	})

	t.Run("ListLogs", func(t *testing.T) {
		resp, err := client.ListLogs(ctx, &ListLogsRequest{})
		require.NoError(t, err)
		require.Len(t, resp.Logs, 1)
		assert.Equal(t, "daily", resp.Logs[0].Name)
		assert.Equal(t, 4, resp.Logs[0].Records)
	})

	tests := []struct {
		name string
		req  *QueryRequest
		code codes.Code
	}{
		{"negative index", &QueryRequest{Log: "daily", Instrument: "1131", Index: -1}, codes.InvalidArgument},
		{"index past end", &QueryRequest{Log: "daily", Instrument: "1131", Index: 4}, codes.InvalidArgument},
		{"unknown log", &QueryRequest{Log: "weekly", Instrument: "1131", Index: 0}, codes.NotFound},
		{"missing instrument", &QueryRequest{Log: "daily", Index: 0}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Query(ctx, tt.req)
			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, st.Code(), st.Message())
		})
	}
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled, "x")))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.DeadlineExceeded, "x")))
	assert.Equal(t, codes.Internal, status.Code(toStatus(assert.AnError, "x")))
}
