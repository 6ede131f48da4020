package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHandler_Snapshot(t *testing.T) {
	h := NewHTTPHandler(newTestQueryService(t))

	rec := doGet(t, h, "/api/v1/logs/daily/snapshot/1131?index=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snapshot core.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "1131", snapshot.Instrument)
	assertLevels(t, [][2]string{{"10.0", "20"}}, snapshot.Sells)
	assert.Empty(t, snapshot.Buys)
}

func TestHTTPHandler_Ladder(t *testing.T) {
	h := NewHTTPHandler(newTestQueryService(t))

	rec := doGet(t, h, "/api/v1/logs/daily/ladder/1131?index=1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ladder LadderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ladder))
	require.Len(t, ladder.Rows, 2)
	assert.True(t, dec(t, "10.0").Equal(dec(t, ladder.Rows[0].Price)))
	assert.Equal(t, int64(50), ladder.Rows[0].AskSize)
	assert.Equal(t, int64(30), ladder.Rows[1].AskSize)
	assert.Equal(t, int64(0), ladder.Rows[1].BidSize)
}

func TestHTTPHandler_Errors(t *testing.T) {
	h := NewHTTPHandler(newTestQueryService(t))

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/logs/daily/snapshot/1131", http.StatusBadRequest},
		{"/api/v1/logs/daily/snapshot/1131?index=abc", http.StatusBadRequest},
		{"/api/v1/logs/daily/snapshot/1131?index=-1", http.StatusBadRequest},
		{"/api/v1/logs/daily/snapshot/1131?index=4", http.StatusBadRequest},
		{"/api/v1/logs/weekly/snapshot/1131?index=0", http.StatusNotFound},
		{"/api/v1/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := doGet(t, h, tt.path)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestHTTPHandler_ListAndHealth(t *testing.T) {
	h := NewHTTPHandler(newTestQueryService(t))

	rec := doGet(t, h, "/api/v1/logs")
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListLogsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Logs, 1)
	assert.Equal(t, []string{"1131", "2211"}, list.Logs[0].Instruments)

	doGet(t, h, "/api/v1/logs/daily/snapshot/1131?index=0")
	rec = doGet(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(1), health["logs"])
	assert.Equal(t, float64(1), health["queries"])
}
