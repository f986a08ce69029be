package ginauth

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// Config is the file-loadable configuration for the integration layer.
type Config struct {
	// Prefix for generated raw keys, passed through to apikey.Config.
	Prefix string `yaml:"prefix"`

	Header             string   `yaml:"header"`
	Scheme             string   `yaml:"scheme"`
	AllowXAPIKey       bool     `yaml:"allow-x-api-key"`
	QueryParam         string   `yaml:"query-param"`
	BypassPathPrefixes []string `yaml:"bypass-path-prefixes"`

	// RoutePrefix mounts the management endpoints. Empty uses /api-keys.
	RoutePrefix string `yaml:"route-prefix"`

	Log LogConfig `yaml:"log"`
}

// LogConfig controls the logrus setup, with optional file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		Header:       "Authorization",
		Scheme:       "Bearer",
		AllowXAPIKey: true,
		Log:          LogConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML config file, filling unset fields with defaults.
func LoadConfig(path string) (Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return Config{}, fmt.Errorf("ginauth: read config: %w", errRead)
	}

	cfg := DefaultConfig()
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return Config{}, fmt.Errorf("ginauth: parse config: %w", errUnmarshal)
	}
	if strings.TrimSpace(cfg.Header) == "" {
		cfg.Header = "Authorization"
	}
	return cfg, nil
}

// Options converts the file configuration into middleware options.
func (c Config) Options() Options {
	return Options{
		Header:             c.Header,
		Scheme:             c.Scheme,
		AllowXAPIKey:       c.AllowXAPIKey,
		QueryParam:         c.QueryParam,
		BypassPathPrefixes: c.BypassPathPrefixes,
	}
}

// SetupLogger configures logrus from cfg. When a file is set, output
// rotates through lumberjack; otherwise it stays on stderr.
func SetupLogger(cfg LogConfig) error {
	level, errParse := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errParse != nil {
		return fmt.Errorf("ginauth: parse log level: %w", errParse)
	}
	log.SetLevel(level)

	if strings.TrimSpace(cfg.File) != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}
	return nil
}
