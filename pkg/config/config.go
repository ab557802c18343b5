package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fulmenhq/preflight/pkg/cooling"
	"github.com/fulmenhq/preflight/pkg/findings"
)

// Config holds all configuration for preflight
type Config struct {
	Scan       ScanConfig      `mapstructure:"scan"`
	Audit      AuditConfig     `mapstructure:"audit"`
	Reputation cooling.Policy  `mapstructure:"reputation"`
	Typosquat  TyposquatConfig `mapstructure:"typosquat"`
	// FailOn is the lowest severity that makes the scan command exit non-zero; empty disables it.
	FailOn string `mapstructure:"fail_on"`

	// Source is the project config file that was merged, if any.
	Source string `mapstructure:"-"`
}

// ScanConfig holds file scanning settings
type ScanConfig struct {
	MaxFileSize int64    `mapstructure:"max_file_size"`
	Workers     int      `mapstructure:"workers"`
	Extensions  []string `mapstructure:"extensions"`
}

// AuditConfig holds network audit settings
type AuditConfig struct {
	Concurrency       int            `mapstructure:"concurrency"`
	BatchSize         int            `mapstructure:"batch_size"`
	ReputationCeiling int            `mapstructure:"reputation_ceiling"`
	Timeouts          TimeoutsConfig `mapstructure:"timeouts"`
	Endpoints         EndpointConfig `mapstructure:"endpoints"`
}

type TimeoutsConfig struct {
	Metadata  time.Duration `mapstructure:"metadata"`
	Downloads time.Duration `mapstructure:"downloads"`
	Detail    time.Duration `mapstructure:"detail"`
	Batch     time.Duration `mapstructure:"batch"`
}

type EndpointConfig struct {
	Registry  string `mapstructure:"registry"`
	Downloads string `mapstructure:"downloads"`
	OSV       string `mapstructure:"osv"`
}

// TyposquatConfig controls where the popular package list comes from
type TyposquatConfig struct {
	// Live fetches the list from the registry; otherwise the built-in seed list is used.
	Live    bool          `mapstructure:"live"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProjectFiles are looked up, in order, in the scan target directory.
var ProjectFiles = []string{
	".preflight.yaml",
	".preflight.yml",
	".preflight.toml",
	".preflight.json",
	"preflight.yaml",
	"preflight.yml",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scan.max_file_size", 1<<20)
	v.SetDefault("scan.workers", runtime.NumCPU())
	v.SetDefault("scan.extensions", []string{"js", "ts", "jsx", "tsx", "json"})

	v.SetDefault("audit.concurrency", 10)
	v.SetDefault("audit.batch_size", 500)
	v.SetDefault("audit.reputation_ceiling", 200)
	v.SetDefault("audit.timeouts.metadata", "5s")
	v.SetDefault("audit.timeouts.downloads", "3s")
	v.SetDefault("audit.timeouts.detail", "5s")
	v.SetDefault("audit.timeouts.batch", "10s")
	v.SetDefault("audit.endpoints.registry", "https://registry.npmjs.org")
	v.SetDefault("audit.endpoints.downloads", "https://api.npmjs.org/downloads/point")
	v.SetDefault("audit.endpoints.osv", "https://api.osv.dev")

	v.SetDefault("reputation.enabled", true)
	v.SetDefault("reputation.min_age_days", cooling.DefaultMinAgeDays)
	v.SetDefault("reputation.min_weekly_downloads", cooling.DefaultMinWeeklyDownloads)
	v.SetDefault("reputation.exceptions", []cooling.Exception{})

	v.SetDefault("typosquat.live", true)
	v.SetDefault("typosquat.timeout", "5s")

	v.SetDefault("fail_on", "")
}

// Load builds the configuration from defaults, the user config file
// (preflight.yaml in $PREFLIGHT_HOME or $HOME), PREFLIGHT_* environment
// variables, and finally a project file in dir, which wins over the rest.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("preflight")
	v.SetConfigType("yaml")
	if home, err := GetPreflightHome(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix("PREFLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading user config: %w", err)
		}
	}

	source := ""
	if dir != "" {
		if path := FindProjectFile(dir); path != "" {
			if err := ValidateFile(path); err != nil {
				return nil, err
			}
			// Separate reader so the file extension picks the format
			pv := viper.New()
			pv.SetConfigFile(path)
			if err := pv.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading %s: %w", path, err)
			}
			if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
				return nil, fmt.Errorf("error merging %s: %w", path, err)
			}
			source = path
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Source = source
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// FindProjectFile returns the first ProjectFiles entry present in dir.
func FindProjectFile(dir string) string {
	for _, name := range ProjectFiles {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Validate checks value ranges that the schema cannot express.
func (c *Config) Validate() error {
	if c.Scan.MaxFileSize <= 0 {
		return fmt.Errorf("scan.max_file_size must be positive, got %d", c.Scan.MaxFileSize)
	}
	if c.Audit.Concurrency < 1 {
		return fmt.Errorf("audit.concurrency must be at least 1, got %d", c.Audit.Concurrency)
	}
	// OSV rejects batches above 1000 queries
	if c.Audit.BatchSize < 1 || c.Audit.BatchSize > 1000 {
		return fmt.Errorf("audit.batch_size must be between 1 and 1000, got %d", c.Audit.BatchSize)
	}
	if c.FailOn != "" {
		if _, err := findings.ParseSeverity(c.FailOn); err != nil {
			return fmt.Errorf("fail_on: %w", err)
		}
	}
	for _, exc := range c.Reputation.Exceptions {
		if exc.Pattern == "" {
			return errors.New("reputation.exceptions: pattern is required")
		}
	}
	return nil
}

// GetPreflightHome returns the preflight home directory
func GetPreflightHome() (string, error) {
	if home := os.Getenv("PREFLIGHT_HOME"); home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".preflight"), nil
}
