package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	RX      RXConfig      `yaml:"rx"`
	Capture CaptureConfig `yaml:"capture"`
	Replay  ReplayConfig  `yaml:"replay"`
	Sim     SimConfig     `yaml:"sim"`
	UDP     UDPConfig     `yaml:"udp"`
	LED     LEDConfig     `yaml:"led"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

// Byte sources.
const (
	SourceSerial = "serial"
	SourceSim    = "sim"
	SourceReplay = "replay"
)

type RXConfig struct {
	Source   string `yaml:"source"`
	Protocol string `yaml:"protocol"`
	// Device may be empty or "auto" to probe the usual UART paths.
	Device          string        `yaml:"device"`
	Baud            int           `yaml:"baud"`
	StaleTimeout    time.Duration `yaml:"stale_timeout"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	FailsafeTimeout time.Duration `yaml:"failsafe_timeout"`
	ErrorLogRate    float64       `yaml:"error_log_rate"`
}

type CaptureConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ReplayConfig struct {
	Path  string  `yaml:"path"`
	Speed float64 `yaml:"speed"`
	Loop  bool    `yaml:"loop"`
}

type SimConfig struct {
	Channels      int           `yaml:"channels"`
	Period        time.Duration `yaml:"period"`
	FailsafeEvery time.Duration `yaml:"failsafe_every"`
	FailsafeFor   time.Duration `yaml:"failsafe_for"`
	CorruptEvery  int           `yaml:"corrupt_every"`
}

type UDPConfig struct {
	Enable   bool          `yaml:"enable"`
	Dest     string        `yaml:"dest"`
	Interval time.Duration `yaml:"interval"`
}

type LEDConfig struct {
	Enable bool   `yaml:"enable"`
	Chip   string `yaml:"chip"`
	Line   string `yaml:"line"`
}

type HTTPConfig struct {
	Enable bool   `yaml:"enable"`
	Addr   string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string        `yaml:"level"`
	Format string        `yaml:"format"`
	File   LogFileConfig `yaml:"file"`
}

type LogFileConfig struct {
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, rejecting unknown fields, then applies defaults and
// validates. An empty document yields the defaults.
func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	// Defaults alone always validate.
	_ = cfg.Normalize()
	return cfg
}

// Normalize applies defaults and validates. It is idempotent, so callers may
// override fields of a loaded Config and normalize again.
func (cfg *Config) Normalize() error {
	rx := &cfg.RX
	rx.Source = strings.ToLower(strings.TrimSpace(rx.Source))
	if rx.Source == "" {
		rx.Source = SourceSerial
	}
	switch rx.Source {
	case SourceSerial, SourceSim, SourceReplay:
	default:
		return fmt.Errorf("rx.source must be one of serial, sim, replay")
	}
	rx.Protocol = strings.ToLower(strings.TrimSpace(rx.Protocol))
	if rx.Protocol == "" {
		rx.Protocol = "sumd"
	}
	if rx.Protocol != "sumd" {
		return fmt.Errorf("rx.protocol %q is not supported", rx.Protocol)
	}
	if rx.Device == "" {
		rx.Device = "auto"
	}
	if rx.Baud == 0 {
		rx.Baud = 115200
	}
	if rx.Baud < 0 {
		return fmt.Errorf("rx.baud must be > 0")
	}
	if rx.StaleTimeout < 0 || rx.RefreshInterval < 0 || rx.FailsafeTimeout < 0 {
		return fmt.Errorf("rx timeouts must not be negative")
	}
	if rx.FailsafeTimeout == 0 {
		rx.FailsafeTimeout = 500 * time.Millisecond
	}
	if rx.ErrorLogRate <= 0 {
		rx.ErrorLogRate = 1
	}

	if cfg.Capture.Enable {
		if cfg.Capture.Path == "" {
			return fmt.Errorf("capture.path is required when capture.enable is true")
		}
		if rx.Source == SourceReplay {
			return fmt.Errorf("capture cannot be used with rx.source=replay")
		}
	}

	if rx.Source == SourceReplay {
		if cfg.Replay.Path == "" {
			return fmt.Errorf("replay.path is required when rx.source is replay")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
	}

	if cfg.Sim.Channels < 0 || cfg.Sim.Channels > 32 {
		return fmt.Errorf("sim.channels must be between 1 and 32")
	}
	if cfg.Sim.Channels == 0 {
		cfg.Sim.Channels = 16
	}
	if cfg.Sim.Period <= 0 {
		cfg.Sim.Period = 4 * time.Second
	}
	if cfg.Sim.CorruptEvery < 0 {
		return fmt.Errorf("sim.corrupt_every must not be negative")
	}
	if cfg.Sim.FailsafeEvery > 0 && cfg.Sim.FailsafeFor >= cfg.Sim.FailsafeEvery {
		return fmt.Errorf("sim.failsafe_for must be shorter than sim.failsafe_every")
	}

	if cfg.UDP.Enable {
		if cfg.UDP.Dest == "" {
			return fmt.Errorf("udp.dest is required when udp.enable is true")
		}
		if _, _, err := net.SplitHostPort(cfg.UDP.Dest); err != nil {
			return fmt.Errorf("udp.dest: %w", err)
		}
	}
	if cfg.UDP.Interval <= 0 {
		cfg.UDP.Interval = 20 * time.Millisecond
	}

	if cfg.LED.Chip == "" {
		cfg.LED.Chip = "gpiochip0"
	}
	if cfg.LED.Enable && cfg.LED.Line == "" {
		return fmt.Errorf("led.line is required when led.enable is true")
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}

	lc := &cfg.Logging
	if lc.Level == "" {
		lc.Level = "info"
	}
	switch strings.ToLower(lc.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not valid", lc.Level)
	}
	if lc.Format == "" {
		lc.Format = "json"
	}
	if lc.Format != "json" && lc.Format != "console" {
		return fmt.Errorf("logging.format must be json or console")
	}
	if lc.File.Filename != "" {
		if lc.File.MaxSizeMB <= 0 {
			lc.File.MaxSizeMB = 10
		}
		if lc.File.MaxBackups <= 0 {
			lc.File.MaxBackups = 3
		}
		if lc.File.MaxAgeDays <= 0 {
			lc.File.MaxAgeDays = 7
		}
	}
	return nil
}
