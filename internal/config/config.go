// Package config loads clefcat settings from a YAML file and the
// environment. Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"go.yaml.in/yaml/v3"

	"github.com/juliosaraiva/clefreader/internal/emitter"
	"github.com/juliosaraiva/clefreader/internal/reader"
	"github.com/juliosaraiva/clefreader/internal/sink"
)

// Config holds every setting that can come from a file or the environment.
type Config struct {
	Output        string   `yaml:"output"`
	Pretty        bool     `yaml:"pretty"`
	Fields        []string `yaml:"fields"`
	AddTimestamp  bool     `yaml:"add_timestamp"`
	AddLineNumber bool     `yaml:"add_line_number"`
	Strict        bool     `yaml:"strict"`

	// DecimalFloats keeps fractional property values exact.
	DecimalFloats bool `yaml:"decimal_floats"`

	// Location is the IANA zone for timestamps written without an offset.
	Location string `yaml:"location"`

	MaxLineSize int `yaml:"max_line_size"`

	Sink SinkConfig `yaml:"sink"`
}

// SinkConfig selects and tunes the storage sink.
type SinkConfig struct {
	Kind         string        `yaml:"kind"`
	DSN          string        `yaml:"dsn"`
	QueueMaxSize int           `yaml:"queue_size"`
	BatchMaxSize int           `yaml:"batch_size"`
	BatchMaxWait time.Duration `yaml:"batch_wait"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Output:      emitter.FormatText,
		Location:    "UTC",
		MaxLineSize: reader.DefaultMaxLineSize,
		Sink: SinkConfig{
			Kind:         sink.KindNone,
			QueueMaxSize: 10_000,
			BatchMaxSize: 500,
			BatchMaxWait: 200 * time.Millisecond,
		},
	}
}

// Override adjusts a loaded Config before it is validated.
type Override func(*Config)

// Load reads path (if not empty) over the defaults, then applies
// environment overrides, then overrides, and validates the result.
func Load(path string, overrides ...Override) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	for _, o := range overrides {
		o(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Output = getString("CLEF_OUTPUT", c.Output)
	c.Sink.Kind = getString("CLEF_SINK", c.Sink.Kind)
	c.Sink.DSN = getString("CLEF_DSN", c.Sink.DSN)
	c.Sink.QueueMaxSize = getInt("CLEF_QUEUE_SIZE", c.Sink.QueueMaxSize)
	c.Sink.BatchMaxSize = getInt("CLEF_BATCH_SIZE", c.Sink.BatchMaxSize)
	if ms := getInt("CLEF_BATCH_WAIT_MS", -1); ms >= 0 {
		c.Sink.BatchMaxWait = time.Duration(ms) * time.Millisecond
	}
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if !emitter.ValidFormat(c.Output) {
		return fmt.Errorf("unknown output format %q (want json or text)", c.Output)
	}
	if _, err := c.TimeLocation(); err != nil {
		return err
	}
	if c.MaxLineSize <= 0 {
		return fmt.Errorf("max_line_size must be positive, got %d", c.MaxLineSize)
	}

	switch c.Sink.Kind {
	case sink.KindNone:
		return nil
	case sink.KindPostgres, sink.KindClickHouse:
	default:
		return fmt.Errorf("unknown sink %q (want none, postgres or clickhouse)", c.Sink.Kind)
	}

	if c.Sink.DSN == "" {
		return fmt.Errorf("sink %s requires a dsn", c.Sink.Kind)
	}
	if c.Sink.QueueMaxSize <= 0 || c.Sink.BatchMaxSize <= 0 {
		return errors.New("sink queue_size and batch_size must be positive")
	}
	if c.Sink.BatchMaxWait <= 0 {
		return errors.New("sink batch_wait must be positive")
	}
	return nil
}

// TimeLocation resolves Location.
func (c Config) TimeLocation() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("location %q: %w", c.Location, err)
	}
	return loc, nil
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
