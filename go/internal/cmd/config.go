package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/mcdev12/courtside/go/internal/scoreboard"
	"gopkg.in/yaml.v3"
)

// Persistence backends selectable with PERSIST_BACKEND.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendNone     = "none"
)

// Config is the optional YAML file holding match defaults.
type Config struct {
	Match struct {
		Duration  time.Duration `yaml:"duration"`
		NextMatch string        `yaml:"next_match"`
		Courts    struct {
			Court1 CourtConfig `yaml:"court1"`
			Court2 CourtConfig `yaml:"court2"`
		} `yaml:"courts"`
	} `yaml:"match"`
}

type CourtConfig struct {
	Team1 string `yaml:"team1"`
	Team2 string `yaml:"team2"`
}

// ServerConfig is everything read from the environment.
type ServerConfig struct {
	Port              string
	AllowedOrigin     string
	PublicDir         string
	ConfigPath        string
	PersistBackend    string
	StateFile         string
	NATSURL           string
	NATSSubject       string
	BroadcastInterval time.Duration
	LogLevel          string
	LogFormat         string
}

func loadServerConfig() (ServerConfig, error) {
	cfg := ServerConfig{
		Port:              getEnv("PORT", "8000"),
		AllowedOrigin:     getEnv("ALLOWED_ORIGIN", "*"),
		PublicDir:         getEnv("PUBLIC_DIR", "public"),
		ConfigPath:        getEnv("CONFIG_PATH", "config.yaml"),
		PersistBackend:    getEnv("PERSIST_BACKEND", BackendFile),
		StateFile:         getEnv("STATE_FILE", "data/match-state.json"),
		NATSURL:           getEnv("NATS_URL", ""),
		NATSSubject:       getEnv("NATS_SUBJECT", "courtside.state"),
		BroadcastInterval: getEnvAsDuration("BROADCAST_INTERVAL", time.Second),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
	}

	switch cfg.PersistBackend {
	case BackendFile, BackendPostgres, BackendNone:
	default:
		return ServerConfig{}, fmt.Errorf("unknown PERSIST_BACKEND %q (want file, postgres or none)", cfg.PersistBackend)
	}
	if cfg.BroadcastInterval <= 0 {
		return ServerConfig{}, fmt.Errorf("BROADCAST_INTERVAL must be positive, got %s", cfg.BroadcastInterval)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadConfig reads the YAML file at path. A missing file yields an empty
// Config.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// Settings overlays the file values on the built-in defaults.
func (c *Config) Settings() scoreboard.Settings {
	s := scoreboard.DefaultSettings()
	if c.Match.Duration > 0 {
		s.MatchDuration = c.Match.Duration.Truncate(time.Second)
	}
	if c.Match.NextMatch != "" {
		s.NextMatch = c.Match.NextMatch
	}
	overlay := func(dst *scoreboard.CourtTeams, src CourtConfig) {
		if src.Team1 != "" {
			dst.Team1 = src.Team1
		}
		if src.Team2 != "" {
			dst.Team2 = src.Team2
		}
	}
	overlay(&s.Court1, c.Match.Courts.Court1)
	overlay(&s.Court2, c.Match.Courts.Court2)
	return s
}
