package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/erain9/clobreplay/pkg/feed"
	"github.com/erain9/clobreplay/pkg/feed/sqlite"
	"github.com/erain9/clobreplay/pkg/logging"
	"github.com/erain9/clobreplay/pkg/replay"
	"github.com/rs/zerolog"
)

var (
	// ErrLogExists is returned when registering a log under a name already in use
	ErrLogExists = errors.New("order log with this name already exists")

	// ErrLogNotFound is returned when accessing a log that was never loaded
	ErrLogNotFound = errors.New("order log not found")
)

// LogInfo contains metadata about a loaded order log
type LogInfo struct {
	Name        string    `json:"name"`
	Format      string    `json:"format"`
	Path        string    `json:"path,omitempty"`
	Records     int       `json:"records"`
	Instruments []string  `json:"instruments"`
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loadedAt"`
}

type managedLog struct {
	log    *feed.Log
	driver *replay.Driver
	info   *LogInfo
}

// LogManager holds the named order logs served by the query service, each with its replay driver.
// Logs are immutable once registered, so drivers are shared by concurrent queries.
type LogManager struct {
	mu   sync.RWMutex
	logs map[string]*managedLog
	opts []replay.Option
}

// NewLogManager creates a manager; opts configure every driver it creates
func NewLogManager(opts ...replay.Option) *LogManager {
	return &LogManager{
		logs: make(map[string]*managedLog),
		opts: opts,
	}
}

// Register serves an already loaded log under name
func (m *LogManager) Register(ctx context.Context, name string, log *feed.Log) (*LogInfo, error) {
	return m.register(ctx, name, "memory", "", log)
}

// Load reads a log in the given format and registers it
func (m *LogManager) Load(ctx context.Context, name, format, path string) (*LogInfo, error) {
	switch format {
	case "", feed.FormatCSV:
		return m.LoadCSV(ctx, name, path)
	case feed.FormatSQLite:
		return m.LoadSQLite(ctx, name, path)
	default:
		return nil, fmt.Errorf("%w: %s", feed.ErrUnknownFormat, format)
	}
}

// LoadCSV reads a CSV order log and registers it
func (m *LogManager) LoadCSV(ctx context.Context, name, path string) (*LogInfo, error) {
	if err := m.checkFree(name); err != nil {
		return nil, err
	}
	log, err := feed.LoadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return m.register(ctx, name, feed.FormatCSV, path, log)
}

// LoadSQLite reads an order log from a SQLite store and registers it
func (m *LogManager) LoadSQLite(ctx context.Context, name, path string) (*LogInfo, error) {
	if err := m.checkFree(name); err != nil {
		return nil, err
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	log, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return m.register(ctx, name, feed.FormatSQLite, path, log)
}

func (m *LogManager) checkFree(name string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, exists := m.logs[name]; exists {
		return ErrLogExists
	}
	return nil
}

func (m *LogManager) register(ctx context.Context, name, format, path string, log *feed.Log) (*LogInfo, error) {
	logger := logging.FromContext(ctx).With().Str("order_log", name).Logger()

	if name == "" {
		return nil, errors.New("order log name must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.logs[name]; exists {
		logger.Error().Msg("Order log already exists")
		return nil, ErrLogExists
	}

	info := &LogInfo{
		Name:        name,
		Format:      format,
		Path:        path,
		Records:     log.Len(),
		Instruments: log.Instruments(),
		Fingerprint: log.Fingerprint(),
		LoadedAt:    time.Now(),
	}
	m.logs[name] = &managedLog{
		log:    log,
		driver: replay.New(log, m.opts...),
		info:   info,
	}

	LogSummary(logger, info)
	return info, nil
}

// Get retrieves a log and its driver by name
func (m *LogManager) Get(ctx context.Context, name string) (*replay.Driver, *LogInfo, error) {
	logger := logging.FromContext(ctx).With().Str("order_log", name).Logger()

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.logs[name]
	if !exists {
		logger.Debug().Msg("Order log not found")
		return nil, nil, ErrLogNotFound
	}
	return entry.driver, entry.info, nil
}

// Remove stops serving a log
func (m *LogManager) Remove(ctx context.Context, name string) error {
	logger := logging.FromContext(ctx).With().Str("order_log", name).Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.logs[name]; !exists {
		logger.Debug().Msg("Order log not found")
		return ErrLogNotFound
	}
	delete(m.logs, name)

	logger.Info().Msg("Removed order log")
	return nil
}

// List returns information about all logs, sorted by name
func (m *LogManager) List(ctx context.Context) []*LogInfo {
	logger := logging.FromContext(ctx)

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*LogInfo, 0, len(m.logs))
	for _, entry := range m.logs {
		result = append(result, entry.info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	logger.Debug().Int("count", len(result)).Msg("Listed order logs")
	return result
}

// Close drops every log
func (m *LogManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = make(map[string]*managedLog)
}

// LogSummary logs summary information about an order log
func LogSummary(logger zerolog.Logger, info *LogInfo) {
	logger.Info().
		Str("name", info.Name).
		Str("format", info.Format).
		Str("path", info.Path).
		Int("records", info.Records).
		Int("instruments", len(info.Instruments)).
		Str("fingerprint", info.Fingerprint).
		Msg("Order log loaded")
}
