package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CLOB_REDIS_ADDR
const EnvPrefix = "CLOB"

// Message drivers
const (
	DriverKafkaGo = "kafka-go"
	DriverSarama  = "sarama"
)

// LogSource names an order log the server loads at startup
type LogSource struct {
	Name   string `yaml:"name"`
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// Config represents the application configuration
type Config struct {
	Server struct {
		GRPCAddr  string `yaml:"grpc_addr"`
		HTTPAddr  string `yaml:"http_addr"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
		LogFile   string `yaml:"log_file"`
	} `yaml:"server"`

	Feed struct {
		Logs []LogSource `yaml:"logs"`
	} `yaml:"feed"`

	Replay struct {
		Parallelism   int `yaml:"parallelism"`
		CheckInterval int `yaml:"check_interval"`
	} `yaml:"replay"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
		Prefix   string        `yaml:"prefix"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled    bool   `yaml:"enabled"`
		Driver     string `yaml:"driver"`
		BrokerAddr string `yaml:"broker_addr"`
		Topic      string `yaml:"topic"`
		PoolSize   int    `yaml:"pool_size"`
	} `yaml:"kafka"`

	Otel struct {
		Enabled     bool   `yaml:"enabled"`
		Endpoint    string `yaml:"endpoint"`
		ServiceName string `yaml:"service_name"`
	} `yaml:"otel"`
}

// logFlags collects repeated -log name=path[,format] flags
type logFlags []LogSource

func (l *logFlags) String() string {
	parts := make([]string, 0, len(*l))
	for _, src := range *l {
		parts = append(parts, src.Name+"="+src.Path)
	}
	return strings.Join(parts, ",")
}

func (l *logFlags) Set(value string) error {
	src, err := ParseLogSource(value)
	if err != nil {
		return err
	}
	*l = append(*l, src)
	return nil
}

// ParseLogSource parses "name=path" or "name=path,format". Without a format, .db and
// .sqlite files are read as SQLite and everything else as CSV.
func ParseLogSource(value string) (LogSource, error) {
	name, rest, ok := strings.Cut(value, "=")
	if !ok || name == "" || rest == "" {
		return LogSource{}, fmt.Errorf("invalid log source %q, want name=path[,format]", value)
	}
	path, format, _ := strings.Cut(rest, ",")
	if format == "" {
		format = formatFor(path)
	}
	return LogSource{Name: name, Path: path, Format: format}, nil
}

func formatFor(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") {
		return "sqlite"
	}
	return "csv"
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	cfg := &Config{}
	cfg.Server.GRPCAddr = ":50051"
	cfg.Server.HTTPAddr = ":8080"
	cfg.Server.LogLevel = "info"
	cfg.Server.LogFormat = "pretty"
	cfg.Replay.Parallelism = 1
	cfg.Replay.CheckInterval = 4096
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.TTL = time.Hour
	cfg.Redis.Prefix = "clob"
	cfg.Kafka.Driver = DriverKafkaGo
	cfg.Kafka.BrokerAddr = "localhost:9092"
	cfg.Kafka.Topic = "clob-reports"
	cfg.Kafka.PoolSize = 4
	cfg.Otel.Endpoint = "localhost:4317"
	cfg.Otel.ServiceName = "query-service"
	return cfg
}

// LoadConfig loads the configuration from the process command line and environment
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load applies, in order: defaults, the YAML file named by -config, command line flags
// that were set explicitly, then CLOB_* environment variables.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("clob", flag.ContinueOnError)
	var (
		configFile  = fs.String("config", "", "Path to config file (YAML)")
		grpcPort    = fs.Int("grpc_port", 50051, "The gRPC server port")
		httpPort    = fs.Int("http_port", 8080, "The HTTP server port")
		logLevel    = fs.String("log_level", "info", "Log level: debug, info, warn, error")
		logFormat   = fs.String("log_format", "pretty", "Log format: json, pretty")
		parallelism = fs.Int("parallelism", 1, "Instruments replayed concurrently per query")
		logs        logFlags
	)
	fs.Var(&logs, "log", "Order log to serve as name=path[,format]; repeatable")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()

	if *configFile != "" {
		yamlFile, err := os.ReadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Info().Str("path", *configFile).Msg("Loaded configuration file")
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "grpc_port":
			cfg.Server.GRPCAddr = fmt.Sprintf(":%d", *grpcPort)
		case "http_port":
			cfg.Server.HTTPAddr = fmt.Sprintf(":%d", *httpPort)
		case "log_level":
			cfg.Server.LogLevel = *logLevel
		case "log_format":
			cfg.Server.LogFormat = *logFormat
		case "parallelism":
			cfg.Replay.Parallelism = *parallelism
		}
	})
	cfg.Feed.Logs = append(cfg.Feed.Logs, logs...)

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides settings from CLOB_<SECTION>_<KEY> environment variables
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	str := func(key string, dst *string) {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	integer := func(key string, dst *int) {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	boolean := func(key string, dst *bool) {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	duration := func(key string, dst *time.Duration) {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}

	str("server.grpc_addr", &cfg.Server.GRPCAddr)
	str("server.http_addr", &cfg.Server.HTTPAddr)
	str("server.log_level", &cfg.Server.LogLevel)
	str("server.log_format", &cfg.Server.LogFormat)
	str("server.log_file", &cfg.Server.LogFile)

	integer("replay.parallelism", &cfg.Replay.Parallelism)
	integer("replay.check_interval", &cfg.Replay.CheckInterval)

	boolean("redis.enabled", &cfg.Redis.Enabled)
	str("redis.addr", &cfg.Redis.Addr)
	str("redis.password", &cfg.Redis.Password)
	integer("redis.db", &cfg.Redis.DB)
	duration("redis.ttl", &cfg.Redis.TTL)
	str("redis.prefix", &cfg.Redis.Prefix)

	boolean("kafka.enabled", &cfg.Kafka.Enabled)
	str("kafka.driver", &cfg.Kafka.Driver)
	str("kafka.broker_addr", &cfg.Kafka.BrokerAddr)
	str("kafka.topic", &cfg.Kafka.Topic)
	integer("kafka.pool_size", &cfg.Kafka.PoolSize)

	boolean("otel.enabled", &cfg.Otel.Enabled)
	str("otel.endpoint", &cfg.Otel.Endpoint)
	str("otel.service_name", &cfg.Otel.ServiceName)

	// CLOB_FEED_LOGS="daily=/data/daily.csv;hist=/data/hist.db"
	_ = v.BindEnv("feed.logs")
	if v.IsSet("feed.logs") {
		for _, item := range strings.Split(v.GetString("feed.logs"), ";") {
			if item = strings.TrimSpace(item); item == "" {
				continue
			}
			src, err := ParseLogSource(item)
			if err != nil {
				log.Warn().Err(err).Msg("Ignoring log source from environment")
				continue
			}
			cfg.Feed.Logs = append(cfg.Feed.Logs, src)
		}
	}
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	var errs []error

	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("at least one of server.grpc_addr and server.http_addr must be set"))
	}
	if c.Server.LogFormat != "json" && c.Server.LogFormat != "pretty" {
		errs = append(errs, fmt.Errorf("server.log_format must be json or pretty, got %q", c.Server.LogFormat))
	}

	seen := make(map[string]bool, len(c.Feed.Logs))
	for i, src := range c.Feed.Logs {
		if src.Name == "" || src.Path == "" {
			errs = append(errs, fmt.Errorf("feed.logs[%d] needs a name and a path", i))
			continue
		}
		if seen[src.Name] {
			errs = append(errs, fmt.Errorf("feed.logs: duplicate log name %q", src.Name))
		}
		seen[src.Name] = true
	}

	if c.Replay.Parallelism < 1 {
		errs = append(errs, errors.New("replay.parallelism must be positive"))
	}
	if c.Replay.CheckInterval < 1 {
		errs = append(errs, errors.New("replay.check_interval must be positive"))
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr must be set when redis is enabled"))
		}
		if c.Redis.TTL < 0 {
			errs = append(errs, errors.New("redis.ttl must not be negative"))
		}
	}

	if c.Kafka.Enabled {
		if c.Kafka.Driver != DriverKafkaGo && c.Kafka.Driver != DriverSarama {
			errs = append(errs, fmt.Errorf("kafka.driver must be %s or %s, got %q", DriverKafkaGo, DriverSarama, c.Kafka.Driver))
		}
		if c.Kafka.BrokerAddr == "" || c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.broker_addr and kafka.topic must be set when kafka is enabled"))
		}
		if c.Kafka.Driver == DriverSarama && c.Kafka.PoolSize < 1 {
			errs = append(errs, errors.New("kafka.pool_size must be positive"))
		}
	}

	if c.Otel.Enabled && c.Otel.Endpoint == "" {
		errs = append(errs, errors.New("otel.endpoint must be set when otel is enabled"))
	}

	return errors.Join(errs...)
}

// Brokers splits the comma-separated broker list
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.Kafka.BrokerAddr, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
