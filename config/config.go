package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const defaultPath = "./config/config.yaml"

type HTTP struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	ReadTimeout  time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"` // 0: streams stay open
	IdleTimeout  time.Duration `yaml:"idleTimeout" env:"IDLE_TIMEOUT"`
}

type GRPC struct {
	Enabled *bool  `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" env:"ADDR"`
}

type WS struct {
	PingEvery time.Duration `yaml:"pingEvery" env:"PING_EVERY"`
	ReadLimit int64         `yaml:"readLimit" env:"READ_LIMIT"`
}

type Relay struct {
	HistoryLimit int `yaml:"historyLimit" env:"HISTORY_LIMIT"`
	BufferSize   int `yaml:"bufferSize" env:"BUFFER_SIZE"`
}

type CORS struct {
	AllowedOrigins   []string `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" envSeparator:","`
	AllowCredentials *bool    `yaml:"allowCredentials" env:"ALLOW_CREDENTIALS"`
	MaxAge           int      `yaml:"maxAge" env:"MAX_AGE"`
}

type Logging struct {
	Env       string `yaml:"env" env:"ENV"`         // dev|stage|prod
	Service   string `yaml:"service" env:"SERVICE"` // chat-relay
	Version   string `yaml:"version" env:"VERSION"`
	Backend   string `yaml:"backend" env:"BACKEND"` // std|zap
	Level     string `yaml:"level" env:"LEVEL"`     // debug|info|warn|error
	AddSource bool   `yaml:"addSource" env:"ADD_SOURCE"`
	Debug     bool   `yaml:"debug" env:"DEBUG"`
}

type Config struct {
	HTTP    HTTP    `yaml:"http" envPrefix:"HTTP_"`
	GRPC    GRPC    `yaml:"grpc" envPrefix:"GRPC_"`
	WS      WS      `yaml:"ws" envPrefix:"WS_"`
	Relay   Relay   `yaml:"relay" envPrefix:"RELAY_"`
	CORS    CORS    `yaml:"cors" envPrefix:"CORS_"`
	Logging Logging `yaml:"logging" envPrefix:"LOG_"`
}

// LoadConfig reads the YAML file at CONFIG_PATH, applies RELAY_* environment
// overrides and fills defaults. A missing file is only tolerated when
// CONFIG_PATH is unset.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "RELAY_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) GRPCEnabled() bool {
	return c.GRPC.Enabled == nil || *c.GRPC.Enabled
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.IdleTimeout == 0 {
		c.HTTP.IdleTimeout = 60 * time.Second
	}
	if c.HTTP.WriteTimeout < 0 || c.HTTP.ReadTimeout < 0 || c.HTTP.IdleTimeout < 0 {
		return errors.New("http timeouts must not be negative")
	}

	if c.GRPCEnabled() && c.GRPC.Addr == "" {
		c.GRPC.Addr = ":9090"
	}

	if c.WS.PingEvery == 0 {
		c.WS.PingEvery = 15 * time.Second
	}
	if c.WS.PingEvery < 0 {
		return errors.New("ws.pingEvery must be positive")
	}
	if c.WS.ReadLimit == 0 {
		c.WS.ReadLimit = 64 << 10
	}

	if c.Relay.HistoryLimit == 0 {
		c.Relay.HistoryLimit = 10
	}
	if c.Relay.BufferSize == 0 {
		c.Relay.BufferSize = 1024
	}
	if c.Relay.HistoryLimit < 0 || c.Relay.BufferSize < 0 {
		return errors.New("relay.historyLimit and relay.bufferSize must be positive")
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.CORS.AllowCredentials == nil {
		allow := true
		c.CORS.AllowCredentials = &allow
	}
	if c.CORS.MaxAge == 0 {
		c.CORS.MaxAge = 300
	}

	if c.Logging.Service == "" {
		c.Logging.Service = "chat-relay"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}
