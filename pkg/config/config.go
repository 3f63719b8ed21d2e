// Package config provides the configuration surface of a markdown stream.
// Options are stored as YAML (by default in ~/.config/mdstream/config.yaml)
// and every field has a usable default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/natefinch/atomic"

	"github.com/docker/mdstream/pkg/paths"
	"github.com/docker/mdstream/pkg/recovery"
)

// Features toggles the enhanced rendering features.
type Features struct {
	Math                bool `yaml:"math"`
	Diagram             bool `yaml:"diagram"`
	SecurityHardening   bool `yaml:"security_hardening"`
	AdvancedTables      bool `yaml:"advanced_tables"`
	InteractiveControls bool `yaml:"interactive_controls"`
}

// Thresholds above which the performance monitor raises a warning.
type Thresholds struct {
	ParseMS     int   `yaml:"parse_ms"`
	RenderMS    int   `yaml:"render_ms"`
	MemoryBytes int64 `yaml:"memory_bytes"`
	ChunkSize   int   `yaml:"chunk_size"`
	TokenCount  int   `yaml:"token_count"`
}

func (t Thresholds) Parse() time.Duration  { return time.Duration(t.ParseMS) * time.Millisecond }
func (t Thresholds) Render() time.Duration { return time.Duration(t.RenderMS) * time.Millisecond }

// Performance configures the performance monitor.
type Performance struct {
	Enabled        bool       `yaml:"enabled"`
	SampleRate     float64    `yaml:"sample_rate"`
	MaxHistorySize int        `yaml:"max_history_size"`
	TrackMemory    bool       `yaml:"track_memory"`
	Thresholds     Thresholds `yaml:"thresholds"`
}

// Retry configures the recovery policy of parse and render failures.
type Retry struct {
	MaxRetries  int `yaml:"max_retries"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// Policy converts the retry settings into a recovery policy.
func (r Retry) Policy() recovery.Policy {
	return recovery.Policy{
		MaxRetries: r.MaxRetries,
		BaseDelay:  time.Duration(r.BaseDelayMS) * time.Millisecond,
		MaxDelay:   time.Duration(r.MaxDelayMS) * time.Millisecond,
	}
}

// Options is the full configuration of a stream.
type Options struct {
	ParseIncompleteMarkdown bool        `yaml:"parse_incomplete_markdown"`
	SyntaxHighlight         bool        `yaml:"syntax_highlight"`
	AutoScroll              bool        `yaml:"auto_scroll"`
	MaxWidth                int         `yaml:"max_width"`
	GFM                     bool        `yaml:"gfm"`
	Features                Features    `yaml:"features"`
	Theme                   string      `yaml:"theme"`
	MaxToolResultLength     int         `yaml:"max_tool_result_length"`
	RenderTimestamps        bool        `yaml:"render_timestamps"`
	ShowThinking            bool        `yaml:"show_thinking"`
	HideToolCalls           bool        `yaml:"hide_tool_calls"`
	Performance             Performance `yaml:"performance"`
	Retry                   Retry       `yaml:"retry"`
}

// Default returns the options used when nothing is configured.
func Default() Options {
	return Options{
		ParseIncompleteMarkdown: true,
		SyntaxHighlight:         true,
		AutoScroll:              true,
		MaxWidth:                120,
		GFM:                     true,
		Features: Features{
			Math:              true,
			Diagram:           true,
			SecurityHardening: true,
			AdvancedTables:    true,
		},
		Theme:               "dark",
		MaxToolResultLength: 200,
		ShowThinking:        true,
		Performance: Performance{
			Enabled:        true,
			SampleRate:     1,
			MaxHistorySize: 1000,
			Thresholds: Thresholds{
				ParseMS:     16,
				RenderMS:    16,
				MemoryBytes: 50 << 20,
				ChunkSize:   10_000,
				TokenCount:  1_000,
			},
		},
		Retry: Retry{
			MaxRetries:  3,
			BaseDelayMS: 100,
			MaxDelayMS:  2_000,
		},
	}
}

// Path returns the default location of the config file.
func Path() string {
	return filepath.Join(paths.GetConfigDir(), "config.yaml")
}

// Load reads the options stored at path on top of the defaults. A missing
// file yields the defaults.
func Load(path string) (Options, error) {
	opts := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return opts, nil
		}
		return opts, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Default(), &recovery.ConfigError{Option: path, Reason: "malformed YAML", Err: err}
	}

	if err := opts.Validate(); err != nil {
		return Default(), err
	}
	return opts, nil
}

// Save writes the options to path atomically.
func (o Options) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Themes lists the built-in theme names accepted by Validate.
var Themes = []string{"dark", "light"}

// Validate returns a *recovery.ConfigError for the first unusable option.
func (o Options) Validate() error {
	switch {
	case o.MaxWidth < 20:
		return &recovery.ConfigError{Option: "max_width", Value: o.MaxWidth, Reason: "must be at least 20"}
	case o.MaxToolResultLength < 1:
		return &recovery.ConfigError{Option: "max_tool_result_length", Value: o.MaxToolResultLength, Reason: "must be positive"}
	case !validTheme(o.Theme):
		return &recovery.ConfigError{Option: "theme", Value: o.Theme, Reason: "unknown theme"}
	case o.Performance.SampleRate < 0 || o.Performance.SampleRate > 1:
		return &recovery.ConfigError{Option: "performance.sample_rate", Value: o.Performance.SampleRate, Reason: "must be between 0 and 1"}
	case o.Performance.MaxHistorySize < 1:
		return &recovery.ConfigError{Option: "performance.max_history_size", Value: o.Performance.MaxHistorySize, Reason: "must be positive"}
	case o.Retry.MaxRetries < 0:
		return &recovery.ConfigError{Option: "retry.max_retries", Value: o.Retry.MaxRetries, Reason: "must not be negative"}
	case o.Retry.BaseDelayMS < 0 || o.Retry.MaxDelayMS < o.Retry.BaseDelayMS:
		return &recovery.ConfigError{Option: "retry.max_delay_ms", Value: o.Retry.MaxDelayMS, Reason: "must be at least base_delay_ms"}
	}
	return nil
}

func validTheme(name string) bool {
	for _, t := range Themes {
		if t == name {
			return true
		}
	}
	return false
}
