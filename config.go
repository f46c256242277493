package procmgr

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk supervisor configuration
type Config struct {
	// StopTimeout is the default graceful termination budget
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// KillGrace is how long Stop waits after SIGKILL
	KillGrace time.Duration `yaml:"kill_grace"`
	// PollInterval is the liveness probe interval used by Stop
	PollInterval time.Duration `yaml:"poll_interval"`
	// QueueSize is the capacity of the shared output queue
	QueueSize int `yaml:"queue_size"`
	// Concurrency bounds StopAll
	Concurrency int `yaml:"concurrency"`
	// Log configures the structured logger
	Log LogConfig `yaml:"log"`
	// Tools are named command presets that command sources launch by name
	Tools []ToolConfig `yaml:"tools,omitempty"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
	// File receives log records instead of the default writer when set
	File string `yaml:"file,omitempty"`
}

// ToolConfig is a named external tool
type ToolConfig struct {
	Name    string   `yaml:"name"`
	Command []string `yaml:"command"`
	// Output is discard, console, file or both
	Output string   `yaml:"output,omitempty"`
	File   string   `yaml:"file,omitempty"`
	Dir    string   `yaml:"dir,omitempty"`
	Env    []string `yaml:"env,omitempty"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		StopTimeout:  DefaultStopTimeout,
		KillGrace:    DefaultKillGrace,
		PollInterval: DefaultPollInterval,
		QueueSize:    DefaultQueueSize,
		Concurrency:  DefaultConcurrency,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML configuration over the defaults. A missing file
// yields the defaults and an error wrapping fs.ErrNotExist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &OpError{Op: OpConfig, Name: path, Err: err}
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), &OpError{Op: OpConfig, Name: path, Err: fmt.Errorf("parsing yaml: %w", err)}
	}

	if err := cfg.Validate(); err != nil {
		return DefaultConfig(), &OpError{Op: OpConfig, Name: path, Err: err}
	}

	return cfg, nil
}

// Save writes the configuration atomically
func (c Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return &OpError{Op: OpConfig, Name: path, Err: err}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return &OpError{Op: OpConfig, Name: path, Err: fmt.Errorf("encoding yaml: %w", err)}
	}

	if err := os.MkdirAll(filepath.Dir(path), DirMode); err != nil {
		return &OpError{Op: OpConfig, Name: path, Err: err}
	}

	if err := renameio.WriteFile(path, data, FileMode); err != nil {
		return &OpError{Op: OpConfig, Name: path, Err: err}
	}

	return nil
}

// Validate checks tool presets and logging settings
func (c Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	seen := make(map[string]struct{}, len(c.Tools))
	for i, t := range c.Tools {
		if t.Name == "" {
			return fmt.Errorf("tool %d: missing name", i)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("tool %q: duplicate name", t.Name)
		}
		seen[t.Name] = struct{}{}

		if _, err := t.routing(); err != nil {
			return fmt.Errorf("tool %q: %w", t.Name, err)
		}
		if len(t.Command) == 0 || t.Command[0] == "" {
			return fmt.Errorf("tool %q: %w", t.Name, ErrEmptyCommand)
		}
	}
	return nil
}

// Tool returns the preset with the given name
func (c Config) Tool(name string) (ToolConfig, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolConfig{}, false
}

// Options converts the tunables into supervisor options
func (c Config) Options() []Option {
	var opts []Option
	if c.StopTimeout > 0 {
		opts = append(opts, WithStopTimeout(c.StopTimeout))
	}
	if c.KillGrace > 0 {
		opts = append(opts, WithKillGrace(c.KillGrace))
	}
	if c.PollInterval > 0 {
		opts = append(opts, WithPollInterval(c.PollInterval))
	}
	if c.QueueSize > 0 {
		opts = append(opts, WithQueueSize(c.QueueSize))
	}
	if c.Concurrency > 0 {
		opts = append(opts, WithConcurrency(c.Concurrency))
	}
	return opts
}

func (t ToolConfig) routing() (Routing, error) {
	mode, err := ParseOutputMode(t.Output)
	if err != nil {
		return Routing{}, err
	}
	r := mode.Routing(t.File)
	if err := r.validate(); err != nil {
		return Routing{}, err
	}
	return r, nil
}

// SpawnOptions converts the preset into Spawn options
func (t ToolConfig) SpawnOptions() ([]SpawnOption, error) {
	r, err := t.routing()
	if err != nil {
		return nil, err
	}
	opts := []SpawnOption{WithName(t.Name), WithRouting(r)}
	if t.Dir != "" {
		opts = append(opts, WithDir(t.Dir))
	}
	if len(t.Env) > 0 {
		opts = append(opts, WithEnv(append(os.Environ(), t.Env...)))
	}
	return opts, nil
}

// Logger builds a slog.Logger writing to w, or to File when set. The
// returned close function releases the log file.
func (l LogConfig) Logger(w io.Writer) (*slog.Logger, func() error, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, nil, err
	}

	closer := func() error { return nil }
	if l.File != "" {
		if err := os.MkdirAll(filepath.Dir(l.File), DirMode); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(l.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, FileMode)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closer = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(l.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, errors.New("unknown log level " + s)
	}
	return level, nil
}
