// Package config loads the YAML configuration shared by the server, the
// worker and the local analysis command.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jacokyle01/analysis-session/session"
)

var validate = validator.New()

// Config is the whole configuration file.
type Config struct {
	Engine Engine `yaml:"engine"`
	Server Server `yaml:"server"`
	Worker Worker `yaml:"worker"`
	Log    Log    `yaml:"log"`
}

// Engine configures one engine session.
type Engine struct {
	Path        string            `yaml:"path" validate:"required"`
	MultiPV     int               `yaml:"multipv" validate:"gte=1,lte=500"`
	StableDepth int               `yaml:"stable_depth" validate:"gte=1,lte=100"`
	AckTimeout  time.Duration     `yaml:"ack_timeout" validate:"gte=0"`
	Options     map[string]string `yaml:"options"`
}

// Server configures the job server.
type Server struct {
	Addr          string        `yaml:"addr" validate:"required"`
	QueueSize     int           `yaml:"queue_size" validate:"gte=1"`
	PollWait      time.Duration `yaml:"poll_wait" validate:"gt=0"`
	StorePath     string        `yaml:"store_path"` // empty keeps results in memory
	DefaultDepth  int           `yaml:"default_depth" validate:"gte=1,lte=100"`
	DefaultTimeMS int           `yaml:"default_time_ms" validate:"gte=1"`
}

// Worker configures a job-pulling worker.
type Worker struct {
	ServerURL  string        `yaml:"server_url" validate:"required,url"`
	PollRate   float64       `yaml:"poll_rate" validate:"gt=0"` // job polls per second
	PollBurst  int           `yaml:"poll_burst" validate:"gte=1"`
	RetryDelay time.Duration `yaml:"retry_delay" validate:"gte=0"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Engine: Engine{
			Path:        "stockfish",
			MultiPV:     1,
			StableDepth: 12,
			AckTimeout:  30 * time.Second,
		},
		Server: Server{
			Addr:          ":8080",
			QueueSize:     100,
			PollWait:      5 * time.Second,
			DefaultDepth:  15,
			DefaultTimeMS: 5000,
		},
		Worker: Worker{
			ServerURL:  "http://localhost:8080",
			PollRate:   2,
			PollBurst:  1,
			RetryDelay: 5 * time.Second,
		},
		Log: Log{Level: "info"},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	return validate.Struct(c)
}

// Session converts the engine section into a session.Config. Extra options
// are ordered by name so the handshake is deterministic.
func (e Engine) Session(logger *slog.Logger) session.Config {
	names := make([]string, 0, len(e.Options))
	for name := range e.Options {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]session.Option, 0, len(names))
	for _, name := range names {
		opts = append(opts, session.Option{Name: name, Value: e.Options[name]})
	}
	return session.Config{
		EnginePath:  e.Path,
		MultiPV:     e.MultiPV,
		StableDepth: e.StableDepth,
		Options:     opts,
		AckTimeout:  e.AckTimeout,
		Logger:      logger,
	}
}
