package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM      LLMConfig
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Redis    RedisConfig
	Planner  PlannerConfig
	Prompt   PromptConfig
	Resolver ResolverConfig
	Log      LogConfig
}

// LLMConfig holds the reasoning service configuration
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// Database drivers understood by the datastore package.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig describes the relational data store the planner queries.
type DatabaseConfig struct {
	Driver   string          `mapstructure:"driver"`
	URL      string          `mapstructure:"url"`
	MaxConns int32           `mapstructure:"max_conns"`
	MaxRows  int             `mapstructure:"max_rows"`
	Names    []NameSourceCfg `mapstructure:"names"`
}

// NameSourceCfg is one table of the name directory used to resolve identifiers.
type NameSourceCfg struct {
	Table      string `mapstructure:"table"`
	IDColumn   string `mapstructure:"id_column"`
	NameColumn string `mapstructure:"name_column"`
}

// Session store backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// SessionConfig holds the conversation memory configuration
type SessionConfig struct {
	Backend     string        `mapstructure:"backend"`
	MaxSessions int           `mapstructure:"max_sessions"`
	TTL         time.Duration `mapstructure:"ttl"`
	JournalPath string        `mapstructure:"journal_path"`
}

// RedisConfig holds the Redis connection used by the redis session backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PlannerConfig bounds the reasoning loop
type PlannerConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// PromptConfig points at optional overrides for the embedded prompt texts
type PromptConfig struct {
	SchemaPath string `mapstructure:"schema_path"`
	RulesPath  string `mapstructure:"rules_path"`
}

// ResolverConfig holds the static fallback tier of identifier resolution
type ResolverConfig struct {
	LegacyLabels []LegacyLabel `mapstructure:"legacy_labels"`
}

// LegacyLabel maps a legacy label as it appears in answers to a display name.
type LegacyLabel struct {
	Label string `mapstructure:"label"`
	Name  string `mapstructure:"name"`
}

// LogConfig holds logging options
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File, when set, receives a copy of every log line and backs GET /logs.
	File string `mapstructure:"file"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_rows", 50)
	v.SetDefault("database.names", []map[string]any{
		{"table": "users", "id_column": "id", "name_column": "name"},
		{"table": "products", "id_column": "id", "name_column": "name"},
	})
	v.SetDefault("session.backend", SessionBackendMemory)
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("planner.max_iterations", 15)
	v.SetDefault("planner.timeout", "60s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load loads the configuration from CONFIG_PATH, or config.yaml in the working directory.
// A missing file is not an error: defaults and ASKDATA_* environment variables still apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("askdata")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return errors.New("database.driver must be postgres or sqlite")
	}
	switch c.Session.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return errors.New("session.backend must be memory or redis")
	}
	if c.Planner.MaxIterations <= 0 {
		return errors.New("planner.max_iterations must be positive")
	}
	for _, l := range c.Resolver.LegacyLabels {
		if strings.TrimSpace(l.Label) == "" || l.Name == "" {
			return errors.New("resolver.legacy_labels entries need both label and name")
		}
	}
	return nil
}
