// Package config loads and validates the ingestoor configuration file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"

	// DefaultExecutionsDir is the default base directory for extracted
	// execution archives.
	DefaultExecutionsDir = "./executions"

	// DefaultIngestConcurrency bounds parallel country parsing per upload.
	DefaultIngestConcurrency = 4

	// EnvPrefix is the prefix of environment variables overriding secrets.
	EnvPrefix = "INGESTOOR"
)

// Config is the root configuration for ingestoor.
type Config struct {
	Global   GlobalConfig    `yaml:"global" mapstructure:"global"`
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth     AuthConfig      `yaml:"auth,omitempty" mapstructure:"auth"`
	Database DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Ingest   IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Archive  ArchiveConfig   `yaml:"archive,omitempty" mapstructure:"archive"`
	Projects []ProjectConfig `yaml:"projects" mapstructure:"projects"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// IngestConfig contains ingestion pipeline settings.
type IngestConfig struct {
	// ExecutionsDir is the base directory archives are extracted under:
	// {dir}/{project}/{branch}/{cycle}/incoming/{uploadID}.
	ExecutionsDir string `yaml:"executions_dir" mapstructure:"executions_dir"`

	// Concurrency bounds the number of country directories of one upload
	// parsed in parallel.
	Concurrency int `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
}

// Load reads and parses a configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	return &cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the
// config file, e.g. INGESTOOR_DATABASE_POSTGRES_PASSWORD.
func (c *Config) applyEnvOverrides() {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if s := v.GetString("database.postgres.password"); s != "" {
		c.Database.Postgres.Password = s
	}

	if c.Archive.S3 != nil {
		if s := v.GetString("archive.s3.access_key_id"); s != "" {
			c.Archive.S3.AccessKeyID = s
		}

		if s := v.GetString("archive.s3.secret_access_key"); s != "" {
			c.Archive.S3.SecretAccessKey = s
		}
	}
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Ingest.ExecutionsDir == "" {
		c.Ingest.ExecutionsDir = DefaultExecutionsDir
	}

	if c.Ingest.Concurrency <= 0 {
		c.Ingest.Concurrency = DefaultIngestConcurrency
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}

	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = "ingestoor.db"
	}

	for i := range c.Projects {
		c.Projects[i].applyDefaults()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if len(c.Projects) == 0 {
		return fmt.Errorf("at least one project must be configured")
	}

	seen := make(map[string]struct{}, len(c.Projects))

	for i := range c.Projects {
		p := &c.Projects[i]

		if p.Code == "" {
			return fmt.Errorf("project %d: code is required", i)
		}

		if _, exists := seen[p.Code]; exists {
			return fmt.Errorf("project %d: duplicate code %q", i, p.Code)
		}

		seen[p.Code] = struct{}{}

		if err := p.validate(); err != nil {
			return fmt.Errorf("project %q: %w", p.Code, err)
		}
	}

	if c.Archive.S3 != nil && c.Archive.Local != nil &&
		c.Archive.S3.Enabled && c.Archive.Local.Enabled {
		return fmt.Errorf("archive: only one retention backend may be enabled")
	}

	return nil
}

// Project returns the configured project with the given code.
func (c *Config) Project(code string) (*ProjectConfig, bool) {
	for i := range c.Projects {
		if c.Projects[i].Code == code {
			return &c.Projects[i], true
		}
	}

	return nil, false
}
