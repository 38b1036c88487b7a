// Package config loads imgpress settings from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/job"
	"github.com/AnyUserName/imgpress-cli/internal/quality"
	"github.com/pelletier/go-toml/v2"
)

const (
	defaultFormat    = "keep-original"
	defaultQuality   = int(quality.DefaultPreset)
	defaultOutputDir = "./imgpress_out"
	defaultLogLevel  = "info"
	defaultLogFormat = "auto"
	maxWorkers       = 64
)

// Tools overrides external codec binaries.
type Tools struct {
	CWebP       string `toml:"cwebp"`
	AVIFEnc     string `toml:"avifenc"`
	AVIFDec     string `toml:"avifdec"`
	CJXL        string `toml:"cjxl"`
	DJXL        string `toml:"djxl"`
	HeifConvert string `toml:"heif_convert"`
}

// Config is the full application configuration.
type Config struct {
	Workers   int    `toml:"workers"`
	Format    string `toml:"format"`
	Quality   int    `toml:"quality"`
	Lossless  bool   `toml:"lossless"`
	OutputDir string `toml:"output_dir"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	Tools     Tools  `toml:"tools"`
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Workers:   runtime.NumCPU(),
		Format:    defaultFormat,
		Quality:   defaultQuality,
		OutputDir: defaultOutputDir,
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "imgpress", "config.toml")
}

// Load reads path over the defaults. A missing file is not an error when
// path is the default location.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Validate checks field ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 || c.Workers > maxWorkers {
		errs = append(errs, fmt.Errorf("workers: must be 1-%d, got %d", maxWorkers, c.Workers))
	}
	if _, err := format.Parse(c.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := quality.ParsePreset(c.Quality); err != nil {
		errs = append(errs, err)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unsupported value %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format: unsupported value %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Settings converts the output options into job settings.
func (c Config) Settings() (job.Settings, error) {
	f, err := format.Parse(c.Format)
	if err != nil {
		return job.Settings{}, err
	}
	p, err := quality.ParsePreset(c.Quality)
	if err != nil {
		return job.Settings{}, err
	}
	return job.Settings{Format: f, Preset: p, Lossless: c.Lossless}, nil
}

// CodecTools maps tool overrides onto codec.Tools.
func (c Config) CodecTools() codec.Tools {
	return codec.Tools{
		CWebP:       c.Tools.CWebP,
		AVIFEnc:     c.Tools.AVIFEnc,
		AVIFDec:     c.Tools.AVIFDec,
		CJXL:        c.Tools.CJXL,
		DJXL:        c.Tools.DJXL,
		HeifConvert: c.Tools.HeifConvert,
	}
}
