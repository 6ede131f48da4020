package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/erain9/clobreplay/config"
	"github.com/erain9/clobreplay/pkg/feed"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioCSV = `ID,Ticker,Type,Side,Price,Volume
0,1131,L,Sell,10.0,50
1,1131,L,Sell,9.5,30
2,1131,M,Buy,-1,60
`

func testContext() context.Context {
	return zerolog.Nop().WithContext(context.Background())
}

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daily.csv")
	require.NoError(t, os.WriteFile(path, []byte(scenarioCSV), 0o600))
	return path
}

func TestLoadLogs(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Logs = []config.LogSource{{Name: "daily", Format: feed.FormatCSV, Path: writeLog(t)}}

	manager, err := loadLogs(testContext(), cfg)
	require.NoError(t, err)
	defer manager.Close()

	driver, info, err := manager.Get(context.Background(), "daily")
	require.NoError(t, err)
	assert.Equal(t, 3, info.Records)
	assert.Equal(t, []string{"1131"}, info.Instruments)

	snapshot, err := driver.Query(context.Background(), "1131", 2)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Buys)
	require.Len(t, snapshot.Sells, 1)
	assert.Equal(t, int64(20), snapshot.Sells[0].Quantity)
}

func TestLoadLogs_MissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Logs = []config.LogSource{{Name: "daily", Format: feed.FormatCSV, Path: filepath.Join(t.TempDir(), "missing.csv")}}

	_, err := loadLogs(testContext(), cfg)
	assert.ErrorContains(t, err, "log daily")
}

func TestLoadLogs_Empty(t *testing.T) {
	manager, err := loadLogs(testContext(), config.Default())
	require.NoError(t, err)
	defer manager.Close()
	assert.Empty(t, manager.List(context.Background()))
}

func TestQueryOptions_Disabled(t *testing.T) {
	opts, closers := queryOptions(testContext(), config.Default())
	assert.Empty(t, opts)
	assert.Empty(t, closers)
}

func TestQueryOptions_UnreachableRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	opts, closers := queryOptions(testContext(), cfg)
	assert.Empty(t, opts)
	assert.Empty(t, closers)
}

func TestNewSender_UnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.Kafka.Driver = "carrier-pigeon"

	_, err := newSender(cfg)
	assert.ErrorContains(t, err, "unknown kafka driver")
}
