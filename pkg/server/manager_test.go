package server

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/erain9/clobreplay/pkg/feed"
	"github.com/erain9/clobreplay/pkg/feed/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogManager_Register(t *testing.T) {
	ctx := context.Background()
	manager := NewLogManager()
	defer manager.Close()

	info, err := manager.Register(ctx, "daily", scenarioLog(t))
	require.NoError(t, err)
	assert.Equal(t, "daily", info.Name)
	assert.Equal(t, 4, info.Records)
	assert.Equal(t, []string{"1131", "2211"}, info.Instruments)
	assert.NotEmpty(t, info.Fingerprint)

	_, err = manager.Register(ctx, "daily", scenarioLog(t))
	assert.ErrorIs(t, err, ErrLogExists)

	_, err = manager.Register(ctx, "", scenarioLog(t))
	assert.Error(t, err)

	driver, got, err := manager.Get(ctx, "daily")
	require.NoError(t, err)
	assert.Equal(t, 4, driver.Len())
	assert.Same(t, info, got)

	_, _, err = manager.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestLogManager_ListAndRemove(t *testing.T) {
	ctx := context.Background()
	manager := NewLogManager()

	for _, name := range []string{"b", "a", "c"} {
		_, err := manager.Register(ctx, name, scenarioLog(t))
		require.NoError(t, err)
	}

	list := manager.List(ctx)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "c", list[2].Name)

	require.NoError(t, manager.Remove(ctx, "b"))
	assert.ErrorIs(t, manager.Remove(ctx, "b"), ErrLogNotFound)
	assert.Len(t, manager.List(ctx), 2)

	manager.Close()
	assert.Empty(t, manager.List(ctx))
}

func TestLogManager_LoadCSV(t *testing.T) {
	ctx := context.Background()
	manager := NewLogManager()
	path := writeScenarioCSV(t)

	info, err := manager.Load(ctx, "csv", feed.FormatCSV, path)
	require.NoError(t, err)
	assert.Equal(t, feed.FormatCSV, info.Format)
	assert.Equal(t, path, info.Path)

	_, err = manager.LoadCSV(ctx, "csv", path)
	assert.ErrorIs(t, err, ErrLogExists)

	_, err = manager.LoadCSV(ctx, "missing", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)

	_, err = manager.Load(ctx, "x", "parquet", path)
	assert.ErrorIs(t, err, feed.ErrUnknownFormat)
}

func TestLogManager_LoadSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orders.db")

	store, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Import(ctx, scenarioLog(t)))
	require.NoError(t, store.Close())

	manager := NewLogManager()
	info, err := manager.Load(ctx, "hist", feed.FormatSQLite, path)
	require.NoError(t, err)
	assert.Equal(t, 4, info.Records)
	assert.Equal(t, scenarioLog(t).Fingerprint(), info.Fingerprint, "same content, same fingerprint")
}
