// Package config loads voro settings from defaults, a YAML file and the
// environment. Command line flags are layered on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/brensch/voro/builder"
	"github.com/brensch/voro/logging"
	"github.com/brensch/voro/referee"
	"github.com/brensch/voro/store"
	"gopkg.in/yaml.v3"
)

const (
	AppName     = "voro"
	Permissions = 0755

	EnvListen     = "VORO_LISTEN"
	EnvDatabase   = "VORO_DATABASE"
	EnvRedisURL   = "VORO_REDIS_URL"
	EnvLogLevel   = "VORO_LOG_LEVEL"
	EnvLogFormat  = "VORO_LOG_FORMAT"
	EnvBoardCache = "VORO_BOARD_CACHE"
	EnvArchiveDir = "VORO_ARCHIVE_DIR"
)

var (
	ConfigDirectory = filepath.Join(xdg.ConfigHome, AppName)
	DataDirectory   = filepath.Join(xdg.DataHome, AppName)

	DefaultPath     = filepath.Join(ConfigDirectory, "config.yaml")
	DefaultDatabase = filepath.Join(DataDirectory, "voro.db")
)

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Builder struct {
	Border     int   `yaml:"border"`
	Interior   int   `yaml:"interior"`
	Iterations int   `yaml:"iterations"`
	Seed       int64 `yaml:"seed"`
}

// Archive configures live archiving of finished games. An empty Dir turns
// it off.
type Archive struct {
	Dir   string `yaml:"dir"`
	Batch int    `yaml:"batch"`
}

type Config struct {
	Listen     string  `yaml:"listen"`
	Database   string  `yaml:"database"`
	RedisURL   string  `yaml:"redis_url"`
	StaticDir  string  `yaml:"static_dir"`
	BoardCache int     `yaml:"board_cache"`
	Log        Log     `yaml:"log"`
	Builder    Builder `yaml:"builder"`
	Archive    Archive `yaml:"archive"`
}

func Default() Config {
	return Config{
		Listen:     "127.0.0.1:8080",
		Database:   DefaultDatabase,
		BoardCache: referee.DefaultBoardCache,
		Log: Log{
			Level:  "info",
			Format: logging.FormatText,
		},
		Builder: Builder{
			Border:     builder.DefaultBorder,
			Interior:   builder.DefaultInterior,
			Iterations: builder.DefaultIterations,
		},
		Archive: Archive{
			Batch: store.DefaultBatchGames,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path and then the
// VORO_* environment. An empty path means DefaultPath, which may be absent.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		EnvListen:     &c.Listen,
		EnvDatabase:   &c.Database,
		EnvRedisURL:   &c.RedisURL,
		EnvLogLevel:   &c.Log.Level,
		EnvLogFormat:  &c.Log.Format,
		EnvArchiveDir: &c.Archive.Dir,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv(EnvBoardCache); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBoardCache, err)
		}
		c.BoardCache = n
	}
	return nil
}

// BuilderOptions converts the builder section for builder.Generate.
func (c Config) BuilderOptions() builder.Options {
	return builder.Options{
		Border:     c.Builder.Border,
		Interior:   c.Builder.Interior,
		Iterations: c.Builder.Iterations,
		Seed:       c.Builder.Seed,
	}
}

// Write stores c as YAML at path, creating its directory.
func (c Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), Permissions); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
