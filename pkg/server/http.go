package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// HTTPHandler serves the snapshot API as JSON over HTTP
type HTTPHandler struct {
	query     *QueryService
	router    *mux.Router
	startTime time.Time
	queries   atomic.Int64
}

// NewHTTPHandler creates the handler and registers its routes
func NewHTTPHandler(query *QueryService) *HTTPHandler {
	h := &HTTPHandler{
		query:     query,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}
	h.registerRoutes()
	return h
}

func (h *HTTPHandler) registerRoutes() {
	h.router.Use(requestLogger)

	api := h.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/logs", h.handleListLogs).Methods("GET")
	api.HandleFunc("/logs/{log}/snapshot/{instrument}", h.handleSnapshot).Methods("GET")
	api.HandleFunc("/logs/{log}/ladder/{instrument}", h.handleLadder).Methods("GET")

	h.router.HandleFunc("/health", h.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// requestLogger attaches a request-scoped logger to the context and logs completion
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLogger := log.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Logger()

		next.ServeHTTP(w, r.WithContext(reqLogger.WithContext(r.Context())))

		reqLogger.Debug().Dur("duration", time.Since(start)).Msg("HTTP request completed")
	})
}

// LadderRowResponse is one ladder line with the price as a decimal string
type LadderRowResponse struct {
	Price   string `json:"price"`
	BidSize int64  `json:"bidSize"`
	AskSize int64  `json:"askSize"`
}

// LadderResponse is the ladder view of a report
type LadderResponse struct {
	Instrument string              `json:"instrument"`
	Index      int64               `json:"index"`
	Rows       []LadderRowResponse `json:"rows"`
}

// handleListLogs handles GET /api/v1/logs
func (h *HTTPHandler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ListLogsResponse{Logs: h.query.Manager().List(r.Context())})
}

// handleSnapshot handles GET /api/v1/logs/{log}/snapshot/{instrument}?index=N
func (h *HTTPHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.runQuery(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// handleLadder handles GET /api/v1/logs/{log}/ladder/{instrument}?index=N
func (h *HTTPHandler) handleLadder(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.runQuery(w, r)
	if !ok {
		return
	}

	ladder := snapshot.Ladder()
	rows := make([]LadderRowResponse, 0, len(ladder))
	for _, row := range ladder {
		rows = append(rows, LadderRowResponse{Price: row.Price.String(), BidSize: row.BidSize, AskSize: row.AskSize})
	}
	respondJSON(w, http.StatusOK, LadderResponse{
		Instrument: snapshot.Instrument,
		Index:      snapshot.Index,
		Rows:       rows,
	})
}

func (h *HTTPHandler) runQuery(w http.ResponseWriter, r *http.Request) (*core.Snapshot, bool) {
	vars := mux.Vars(r)

	raw := r.URL.Query().Get("index")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "index is required")
		return nil, false
	}
	index, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "index must be an integer")
		return nil, false
	}

	h.queries.Add(1)
	snapshot, err := h.query.Query(r.Context(), vars["log"], vars["instrument"], index)
	if err != nil {
		respondError(w, httpStatus(err), err.Error())
		return nil, false
	}
	return snapshot, true
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidIndex):
		return http.StatusBadRequest
	case errors.Is(err, ErrLogNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth handles GET /health
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"logs":           len(h.query.Manager().List(r.Context())),
		"queries":        h.queries.Load(),
	})
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}
