package main

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/erain9/clobreplay/pkg/feed"
	"github.com/erain9/clobreplay/pkg/server"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

const scenarioCSV = `ID,Ticker,Type,Side,Price,Volume
0,1131,L,Sell,10.0,50
1,1131,L,Sell,9.5,30
2,1131,M,Buy,-1,60
`

func newTestClient(t *testing.T) *server.SnapshotServiceClient {
	t.Helper()
	color.NoColor = true

	orders, err := feed.ReadCSV(strings.NewReader(scenarioCSV))
	require.NoError(t, err)
	manager := server.NewLogManager()
	_, err = manager.Register(context.Background(), "daily", orders)
	require.NoError(t, err)

	lis := bufconn.Listen(bufSize)
	s := server.NewGRPCServer(server.NewGRPCSnapshotService(server.NewQueryService(manager)))
	go func() {
		_ = s.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		s.Stop()
	})
	return server.NewSnapshotServiceClient(conn)
}

func TestDispatch_Query(t *testing.T) {
	client := newTestClient(t)
	*view = "snapshot"

	var out bytes.Buffer
	require.NoError(t, dispatch(context.Background(), client, []string{"query", "daily", "1131", "2"}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "Printing OrderBook ----"))
	assert.Contains(t, out.String(), " 20\n")
}

func TestDispatch_ListLogs(t *testing.T) {
	client := newTestClient(t)

	var out bytes.Buffer
	require.NoError(t, dispatch(context.Background(), client, []string{"list-logs"}, &out))
	assert.Contains(t, out.String(), "daily")
	assert.Contains(t, out.String(), "memory")
}

func TestDispatch_Errors(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	var out bytes.Buffer

	assert.Error(t, dispatch(ctx, client, []string{"query", "daily"}, &out))
	assert.Error(t, dispatch(ctx, client, []string{"query", "daily", "1131", "x"}, &out))
	assert.Error(t, dispatch(ctx, client, []string{"create-book"}, &out))

	err := dispatch(ctx, client, []string{"query", "daily", "1131", "3"}, &out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	err = dispatch(ctx, client, []string{"query", "weekly", "1131", "0"}, &out)
	assert.Equal(t, codes.NotFound, status.Code(err))
}
