// Package daemon manages the sunbird service lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Store     StoreConfig     `toml:"store"`
	Rotation  RotationConfig  `toml:"rotation"`
	Weekly    WeeklyConfig    `toml:"weekly"`
	Events    EventsConfig    `toml:"events"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   float64  `toml:"rate_limit"` // requests/second per client, 0 = off
	RateBurst   int      `toml:"rate_burst"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend         string `toml:"backend"` // sqlite, postgres, firestore, mongo, memory
	Dir             string `toml:"dir"`     // sqlite data directory
	DSN             string `toml:"dsn"`     // postgres or mongo connection string
	ProjectID       string `toml:"project_id"`
	CredentialsFile string `toml:"credentials_file"`
	Database        string `toml:"database"` // mongo database name
}

// RotationConfig controls weekly challenge selection.
type RotationConfig struct {
	SeedAlgorithm string `toml:"seed_algorithm"`
	CatalogFile   string `toml:"catalog_file"`
}

// WeeklyConfig controls the pair weekly goal.
type WeeklyConfig struct {
	DefaultTarget int            `toml:"default_target"`
	StrictClaims  bool           `toml:"strict_claims"`
	TierPoints    map[string]int `toml:"tier_points"`
}

// EventsConfig selects where engagement events go.
type EventsConfig struct {
	Backend  string `toml:"backend"` // log or amqp
	AMQPURL  string `toml:"amqp_url"`
	Exchange string `toml:"exchange"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns a configuration that runs locally on SQLite.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8787,
			CORSOrigins: []string{"*"},
			RateBurst:   20,
		},
		Store: StoreConfig{
			Backend:  "sqlite",
			Dir:      sunbirdHome(),
			Database: "sunbird",
		},
		Rotation: RotationConfig{
			SeedAlgorithm: "charsum",
		},
		Weekly: WeeklyConfig{
			DefaultTarget: 50,
		},
		Events: EventsConfig{
			Backend:  "log",
			Exchange: "sunbird.engagement",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads $SUNBIRD_HOME/config.toml, falling back to defaults.
// A .env file in the working directory is loaded first.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadConfigFile(filepath.Join(sunbirdHome(), "config.toml"))
}

// LoadConfigFile decodes path over DefaultConfig and applies environment
// overrides. A missing file is not an error.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if dsn := os.Getenv("SUNBIRD_STORE_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if url := os.Getenv("SUNBIRD_AMQP_URL"); url != "" {
		cfg.Events.AMQPURL = url
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = sunbirdHome()
	}

	return cfg, cfg.Validate()
}

// Validate rejects settings the daemon cannot start with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "memory", "firestore":
	case "postgres", "mongo":
		if c.Store.DSN == "" {
			return fmt.Errorf("store backend %q needs a dsn", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Events.Backend {
	case "", "log":
	case "amqp":
		if c.Events.AMQPURL == "" {
			return errors.New("events backend amqp needs amqp_url")
		}
	default:
		return fmt.Errorf("unknown events backend %q", c.Events.Backend)
	}

	if c.Weekly.DefaultTarget <= 0 {
		return errors.New("weekly default_target must be positive")
	}
	return nil
}

// SaveConfig writes the config to $SUNBIRD_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(sunbirdHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// sunbirdHome returns the sunbird data directory.
func sunbirdHome() string {
	if env := os.Getenv("SUNBIRD_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sunbird")
}

// SunbirdHome is exported for use by other packages.
func SunbirdHome() string {
	return sunbirdHome()
}
