// Package config loads and validates the simulation configuration from a
// YAML file, with defaults for everything omitted.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/luna-sim/internal/engine"
)

// Duration parses YAML scalars like "250ms" or "1s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full lunasim configuration.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Stream     StreamConfig     `yaml:"stream"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SimulationConfig tunes the orchestrator.
type SimulationConfig struct {
	Seed           int64    `yaml:"seed"`
	TickInterval   Duration `yaml:"tick_interval"`
	SimStart       string   `yaml:"sim_start"` // RFC3339; empty means now
	InitialActors  int      `yaml:"initial_actors"`
	ActiveFraction float64  `yaml:"active_fraction"`
	ActChance      float64  `yaml:"act_chance"`
	AvgFriends     int      `yaml:"avg_friends"`
	SpawnMin       int      `yaml:"spawn_min"`
	SpawnMax       int      `yaml:"spawn_max"`
}

// StreamConfig tunes the event bus and its storage.
type StreamConfig struct {
	Backend    string `yaml:"backend"` // memory or sqlite
	MemoryCap  int    `yaml:"memory_cap"`
	SQLiteCap  int    `yaml:"sqlite_cap"`
	DBPath     string `yaml:"db_path"`
	ArchiveDir string `yaml:"archive_dir"` // empty disables the archive
}

// ServerConfig tunes the HTTP/WebSocket control plane.
type ServerConfig struct {
	Port          int     `yaml:"port"`
	AdminKey      string  `yaml:"admin_key"` // overridden by LUNASIM_ADMIN_KEY
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

// LoggingConfig tunes slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the configuration used when no file is given.
func Default() Config {
	e := engine.DefaultConfig()
	return Config{
		Simulation: SimulationConfig{
			Seed:           e.Seed,
			TickInterval:   Duration(e.TickInterval),
			InitialActors:  e.InitialActors,
			ActiveFraction: e.ActiveFraction,
			ActChance:      e.ActChance,
			AvgFriends:     e.AvgFriends,
			SpawnMin:       e.SpawnMin,
			SpawnMax:       e.SpawnMax,
		},
		Stream: StreamConfig{
			Backend:   "sqlite",
			MemoryCap: 1000,
			SQLiteCap: 10000,
			DBPath:    "data/luna.db",
		},
		Server: ServerConfig{
			Port:          8080,
			RatePerSecond: 20,
			RateBurst:     40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	s := c.Simulation
	if s.TickInterval <= 0 {
		return fmt.Errorf("simulation.tick_interval must be > 0, got %v", time.Duration(s.TickInterval))
	}
	if s.InitialActors <= 0 {
		return fmt.Errorf("simulation.initial_actors must be > 0, got %d", s.InitialActors)
	}
	if s.ActiveFraction <= 0 || s.ActiveFraction > 1 {
		return fmt.Errorf("simulation.active_fraction must be in (0, 1], got %v", s.ActiveFraction)
	}
	if s.ActChance <= 0 || s.ActChance > 1 {
		return fmt.Errorf("simulation.act_chance must be in (0, 1], got %v", s.ActChance)
	}
	if s.SpawnMin < 1 || s.SpawnMax < s.SpawnMin {
		return fmt.Errorf("spawn bounds [%d, %d] invalid", s.SpawnMin, s.SpawnMax)
	}
	if s.SimStart != "" {
		if _, err := time.Parse(time.RFC3339, s.SimStart); err != nil {
			return fmt.Errorf("simulation.sim_start: %w", err)
		}
	}

	switch c.Stream.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("stream.backend must be memory or sqlite, got %q", c.Stream.Backend)
	}
	if c.Stream.Backend == "sqlite" && c.Stream.DBPath == "" {
		return fmt.Errorf("stream.db_path required for the sqlite backend")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q invalid", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q invalid", c.Logging.Format)
	}
	return nil
}

// Engine converts the simulation section to an orchestrator config.
func (c Config) Engine() engine.Config {
	e := engine.DefaultConfig()
	s := c.Simulation
	e.Seed = s.Seed
	e.TickInterval = time.Duration(s.TickInterval)
	e.InitialActors = s.InitialActors
	e.ActiveFraction = s.ActiveFraction
	e.ActChance = s.ActChance
	e.AvgFriends = s.AvgFriends
	e.SpawnMin = s.SpawnMin
	e.SpawnMax = s.SpawnMax
	if s.SimStart != "" {
		if t, err := time.Parse(time.RFC3339, s.SimStart); err == nil {
			e.SimStart = t.UTC()
		}
	}
	return e
}
