package server

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/erain9/clobreplay/pkg/feed"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioCSV = `ID,Ticker,Type,Side,Price,Volume
0,1131,L,Sell,10.0,50
1,1131,L,Sell,9.5,30
2,1131,M,Buy,-1,60
3,2211,L,Buy,10.0,20
`

func scenarioLog(t testing.TB) *feed.Log {
	t.Helper()
	log, err := feed.ReadCSV(strings.NewReader(scenarioCSV))
	require.NoError(t, err)
	return log
}

func writeScenarioCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.csv")
	require.NoError(t, os.WriteFile(path, []byte(scenarioCSV), 0o600))
	return path
}

func dec(t testing.TB, s string) fpdecimal.Decimal {
	t.Helper()
	d, err := fpdecimal.FromString(s)
	require.NoError(t, err)
	return d
}

func assertLevels(t *testing.T, want [][2]string, got []core.Level) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.True(t, dec(t, w[0]).Equal(got[i].Price), "level %d price: want %s got %s", i, w[0], got[i].Price)
		qty, err := strconv.ParseInt(w[1], 10, 64)
		require.NoError(t, err)
		assert.Equal(t, qty, got[i].Quantity, "level %d quantity", i)
	}
}

// mapCache is an in-process ReportCache
type mapCache struct {
	mu      sync.Mutex
	entries map[string]*core.Snapshot
	gets    int
	hits    int
	err     error
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*core.Snapshot)}
}

func cacheKey(log, fingerprint, instrument string, index int64) string {
	return strings.Join([]string{log, fingerprint, instrument, strconv.FormatInt(index, 10)}, ":")
}

func (c *mapCache) Get(_ context.Context, log, fingerprint, instrument string, index int64) (*core.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.err != nil {
		return nil, false, c.err
	}
	s, ok := c.entries[cacheKey(log, fingerprint, instrument, index)]
	if ok {
		c.hits++
	}
	return s, ok, nil
}

func (c *mapCache) Set(_ context.Context, log, fingerprint string, snapshot *core.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[cacheKey(log, fingerprint, snapshot.Instrument, snapshot.Index)] = snapshot
	return nil
}
