package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Transport TransportConfig `yaml:"transport"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	// Accounts maps an MSP ID to AUTHORIZED, PENDING or UNAUTHORIZED.
	Accounts map[string]string `yaml:"accounts"`
	// Policy overrides the rule for individual operations.
	Policy  map[string]string `yaml:"policy"`
	Events  EventsConfig      `yaml:"events"`
	Gateway GatewayConfig     `yaml:"gateway"`
	Log     LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"`
}

type LedgerConfig struct {
	AdminMSP string `yaml:"admin_msp"`
	Store    string `yaml:"store"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type AuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	JWTSecret  string `yaml:"jwt_secret"`
	Issuer     string `yaml:"issuer"`
	DefaultMSP string `yaml:"default_msp"`
}

type EventsConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	Topic        string   `yaml:"topic"`
}

type GatewayConfig struct {
	MaxRetries      uint64        `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel maps Level onto slog, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Transport: TransportConfig{Mode: "http"},
		Ledger: LedgerConfig{
			AdminMSP: "AdminMSP",
			Store:    "sqlite",
		},
		DB: DBConfig{
			Path: "blossom.db",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "blossom",
		},
		Events: EventsConfig{
			Topic: "blossom.events",
		},
		Gateway: GatewayConfig{
			MaxRetries:      5,
			InitialInterval: 10 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("BLOSSOM_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := map[string]*string{
		"BLOSSOM_SERVER_HOST":    &cfg.Server.Host,
		"BLOSSOM_TRANSPORT_MODE": &cfg.Transport.Mode,
		"BLOSSOM_ADMIN_MSP":      &cfg.Ledger.AdminMSP,
		"BLOSSOM_LEDGER_STORE":   &cfg.Ledger.Store,
		"BLOSSOM_DB_PATH":        &cfg.DB.Path,
		"BLOSSOM_REDIS_ADDR":     &cfg.Redis.Addr,
		"BLOSSOM_REDIS_PASSWORD": &cfg.Redis.Password,
		"BLOSSOM_REDIS_PREFIX":   &cfg.Redis.Prefix,
		"BLOSSOM_JWT_SECRET":     &cfg.Auth.JWTSecret,
		"BLOSSOM_JWT_ISSUER":     &cfg.Auth.Issuer,
		"BLOSSOM_DEFAULT_MSP":    &cfg.Auth.DefaultMSP,
		"BLOSSOM_EVENTS_TOPIC":   &cfg.Events.Topic,
		"BLOSSOM_LOG_LEVEL":      &cfg.Log.Level,
	}
	for name, dst := range setString {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if portStr := os.Getenv("BLOSSOM_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid BLOSSOM_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbStr := os.Getenv("BLOSSOM_REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return fmt.Errorf("invalid BLOSSOM_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}
	if enabled := os.Getenv("BLOSSOM_AUTH_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid BLOSSOM_AUTH_ENABLED: %w", err)
		}
		cfg.Auth.Enabled = v
	}
	if retries := os.Getenv("BLOSSOM_GATEWAY_MAX_RETRIES"); retries != "" {
		v, err := strconv.ParseUint(retries, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid BLOSSOM_GATEWAY_MAX_RETRIES: %w", err)
		}
		cfg.Gateway.MaxRetries = v
	}
	if brokers := os.Getenv("BLOSSOM_KAFKA_BROKERS"); brokers != "" {
		cfg.Events.KafkaBrokers = splitList(brokers)
	}
	return nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport.mode %q: want http or stdio", c.Transport.Mode)
	}
	switch c.Ledger.Store {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("invalid ledger.store %q: want memory, sqlite or redis", c.Ledger.Store)
	}
	if c.Ledger.AdminMSP == "" {
		return fmt.Errorf("ledger.admin_msp is required")
	}
	if c.Ledger.Store == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the redis store")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if !c.Auth.Enabled && c.Transport.Mode == "http" && !isLoopback(c.Server.Host) {
		return fmt.Errorf("auth.enabled is required to serve http on non-loopback host %q", c.Server.Host)
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
