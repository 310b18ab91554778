package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/helmsman/internal/core/fleet"
	"github.com/zeusync/helmsman/internal/core/observability/log"
)

var (
	ErrEmptyListenAddr  = errors.New("server listen address is empty")
	ErrInvalidTimeUnit  = errors.New("movement time unit must be at least one millisecond")
	ErrNoClasses        = errors.New("fleet defines no vessel classes")
	ErrInvalidDisperse  = errors.New("fleet spawn dispersion must not be negative")
	ErrInvalidEncoding  = errors.New("log encoding must be json or console")
	ErrInvalidMessageSz = errors.New("server max message size must be positive")
)

// Config is the root of the helmsman configuration file.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Movement MovementConfig `yaml:"movement"`
	Fleet    FleetConfig    `yaml:"fleet"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type MovementConfig struct {
	// TimeUnit is the wall-clock length of one kinematic time unit.
	TimeUnit time.Duration `yaml:"time_unit"`
}

type FleetConfig struct {
	Shards   int           `yaml:"shards"`
	Disperse int           `yaml:"disperse"`
	Seed     int64         `yaml:"seed"`
	Classes  []fleet.Class `yaml:"classes"`
}

// Default returns a configuration that runs out of the box.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxMessageSize:  64 * 1024,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Movement: MovementConfig{
			TimeUnit: 200 * time.Millisecond,
		},
		Fleet: FleetConfig{
			Shards:   16,
			Disperse: 50,
			Seed:     1,
			Classes: []fleet.Class{
				{Name: "corvette", Speed: 10, TurnAccel: 1},
				{Name: "frigate", Speed: 6, TurnAccel: 1},
				{Name: "freighter", Speed: 4, TurnAccel: 0},
			},
		},
	}
}

// Load reads and validates a YAML file. Missing keys keep their Default values.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadYAML(f)
}

func LoadYAML(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.ListenAddr == "" {
		errs = append(errs, ErrEmptyListenAddr)
	}
	if c.Server.MaxMessageSize <= 0 {
		errs = append(errs, ErrInvalidMessageSz)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidEncoding, c.Log.Encoding))
	}
	if c.Movement.TimeUnit < time.Millisecond {
		errs = append(errs, ErrInvalidTimeUnit)
	}
	if c.Fleet.Disperse < 0 {
		errs = append(errs, ErrInvalidDisperse)
	}
	if len(c.Fleet.Classes) == 0 {
		errs = append(errs, ErrNoClasses)
	}
	seen := make(map[string]struct{}, len(c.Fleet.Classes))
	for _, class := range c.Fleet.Classes {
		if err := class.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := seen[class.Name]; ok {
			errs = append(errs, fmt.Errorf("%w: %s", fleet.ErrDuplicateClass, class.Name))
		}
		seen[class.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

// LogLevel is the parsed Log.Level. Validate guarantees it parses.
func (c Config) LogLevel() log.Level {
	level, _ := log.ParseLevel(c.Log.Level)
	return level
}

// TimeUnitMillis is Movement.TimeUnit in whole milliseconds.
func (c Config) TimeUnitMillis() int64 {
	return c.Movement.TimeUnit.Milliseconds()
}

// Registry converts the fleet section into registry settings.
func (c Config) Registry() fleet.Config {
	return fleet.Config{
		Shards:   c.Fleet.Shards,
		TimeUnit: c.TimeUnitMillis(),
		Disperse: c.Fleet.Disperse,
		Classes:  c.Fleet.Classes,
	}
}
