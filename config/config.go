// Package config provides application configuration management.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	// Server configuration
	Port        string
	APIToken    string
	CORSOrigins []string

	// Relay tuning
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	FanoutConcurrency int
	ToolTimeout       time.Duration

	// Tool catalog configuration
	ToolsManifest string
	WatchManifest bool

	// Weather alerts upstream
	NWSBaseURL       string
	NWSUserAgent     string
	WeatherCacheTTL  time.Duration
	WeatherCacheSize int

	// Redis / events configuration
	RedisAddr        string
	RedisUsername    string
	RedisPassword    string
	RedisDB          int
	RedisTLSEnabled  bool
	RedisTLSInsecure bool
	EventsChannel    string

	// Invocation history
	HistoryDriver string
	HistoryDSN    string

	// Logging
	LogLevel  string
	LogFormat string
}

var defaults = map[string]interface{}{
	"RELAY_PORT":                     "3000",
	"RELAY_API_TOKEN":                "",
	"RELAY_CORS_ORIGINS":             "*",
	"RELAY_WRITE_TIMEOUT":            "5s",
	"RELAY_HEARTBEAT_INTERVAL":       "30s",
	"RELAY_FANOUT_CONCURRENCY":       32,
	"RELAY_TOOL_TIMEOUT":             "15s",
	"RELAY_TOOLS_MANIFEST":           "",
	"RELAY_WATCH_MANIFEST":           true,
	"RELAY_NWS_BASE_URL":             "https://api.weather.gov",
	"RELAY_NWS_USER_AGENT":           "ol-tool-relay/1.0",
	"RELAY_WEATHER_CACHE_TTL":        "5m",
	"RELAY_WEATHER_CACHE_SIZE":       128,
	"REDIS_ADDR":                     "",
	"REDIS_USERNAME":                 "",
	"REDIS_PASSWORD":                 "",
	"REDIS_DB":                       0,
	"REDIS_TLS_ENABLED":              false,
	"REDIS_TLS_INSECURE_SKIP_VERIFY": false,
	"RELAY_EVENTS_CHANNEL":           "tool-relay-events",
	"RELAY_HISTORY_DRIVER":           "none",
	"RELAY_HISTORY_DSN":              "",
	"LOG_LEVEL":                      "info",
	"LOG_FORMAT":                     "json",
}

// Load reads configuration from the environment, after merging an optional
// .env file from the working directory.
func Load() (*Config, error) {
	return FromViper(NewViper())
}

// NewViper returns a viper instance with every key bound to its environment
// variable and default. An optional .env file is merged into the environment first.
func NewViper() *viper.Viper {
	_ = godotenv.Load()
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		_ = v.BindEnv(key)
	}
	return v
}

// FromViper builds a Config from v. Callers may layer flag bindings onto v first.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:              v.GetString("RELAY_PORT"),
		APIToken:          v.GetString("RELAY_API_TOKEN"),
		CORSOrigins:       splitList(v.GetString("RELAY_CORS_ORIGINS")),
		WriteTimeout:      v.GetDuration("RELAY_WRITE_TIMEOUT"),
		HeartbeatInterval: v.GetDuration("RELAY_HEARTBEAT_INTERVAL"),
		FanoutConcurrency: v.GetInt("RELAY_FANOUT_CONCURRENCY"),
		ToolTimeout:       v.GetDuration("RELAY_TOOL_TIMEOUT"),
		ToolsManifest:     v.GetString("RELAY_TOOLS_MANIFEST"),
		WatchManifest:     v.GetBool("RELAY_WATCH_MANIFEST"),
		NWSBaseURL:        strings.TrimRight(v.GetString("RELAY_NWS_BASE_URL"), "/"),
		NWSUserAgent:      v.GetString("RELAY_NWS_USER_AGENT"),
		WeatherCacheTTL:   v.GetDuration("RELAY_WEATHER_CACHE_TTL"),
		WeatherCacheSize:  v.GetInt("RELAY_WEATHER_CACHE_SIZE"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisUsername:     v.GetString("REDIS_USERNAME"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		RedisTLSEnabled:   v.GetBool("REDIS_TLS_ENABLED"),
		RedisTLSInsecure:  v.GetBool("REDIS_TLS_INSECURE_SKIP_VERIFY"),
		EventsChannel:     v.GetString("RELAY_EVENTS_CHANNEL"),
		HistoryDriver:     strings.ToLower(v.GetString("RELAY_HISTORY_DRIVER")),
		HistoryDSN:        v.GetString("RELAY_HISTORY_DSN"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the relay cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("RELAY_PORT is required"))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RELAY_WRITE_TIMEOUT must be positive, got %s", c.WriteTimeout))
	}
	if c.HeartbeatInterval < 0 {
		errs = append(errs, fmt.Errorf("RELAY_HEARTBEAT_INTERVAL must not be negative, got %s", c.HeartbeatInterval))
	}
	if c.FanoutConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("RELAY_FANOUT_CONCURRENCY must be positive, got %d", c.FanoutConcurrency))
	}
	if c.ToolTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RELAY_TOOL_TIMEOUT must be positive, got %s", c.ToolTimeout))
	}
	switch c.HistoryDriver {
	case "", "none":
	case "sqlite", "postgres":
		if c.HistoryDSN == "" {
			errs = append(errs, fmt.Errorf("RELAY_HISTORY_DSN is required for driver %s", c.HistoryDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported RELAY_HISTORY_DRIVER %q", c.HistoryDriver))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
