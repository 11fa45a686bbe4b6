package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// RealtimeConfig holds the tuning knobs of the websocket hub.
type RealtimeConfig struct {
	TypingExpiry     time.Duration `yaml:"typing_expiry"`
	PresenceDebounce time.Duration `yaml:"presence_debounce"`
	SendBufferSize   int           `yaml:"send_buffer_size"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	// InboundRate limits how many frames per second one connection may send.
	InboundRate  float64 `yaml:"inbound_rate"`
	InboundBurst int     `yaml:"inbound_burst"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Realtime RealtimeConfig `yaml:"realtime"`
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "courier.db"},
		JWT:      JWTConfig{TTL: 24 * time.Hour},
		Realtime: RealtimeConfig{
			TypingExpiry:     3 * time.Second,
			PresenceDebounce: 50 * time.Millisecond,
			SendBufferSize:   64,
			WriteTimeout:     10 * time.Second,
			InboundRate:      25,
			InboundBurst:     50,
		},
	}
}

// Load reads the optional YAML file at path, then applies environment
// overrides. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("COURIER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("COURIER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("COURIER_JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("COURIER_JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse COURIER_JWT_TTL: %w", err)
		}
		cfg.JWT.TTL = d
	}
	if v := os.Getenv("COURIER_SEND_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse COURIER_SEND_BUFFER: %w", err)
		}
		cfg.Realtime.SendBufferSize = n
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required (set COURIER_JWT_SECRET)")
	}
	return cfg, nil
}
