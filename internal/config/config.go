package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when no --config flag or HARVESTER_CONFIG is given
const DefaultConfigPath = "config/config.yaml"

// Config holds the application configuration
type Config struct {
	EnvFile   string          `yaml:"env_file"`
	Catalog   string          `yaml:"catalog"`
	Paths     PathsConfig     `yaml:"paths"`
	Run       RunConfig       `yaml:"run"`
	Generator GeneratorConfig `yaml:"generator"`
	Mirror    MirrorConfig    `yaml:"mirror"`
	History   HistoryConfig   `yaml:"history"`
	Reporting ReportingConfig `yaml:"reporting"`
}

// PathsConfig holds the artifact and log roots
type PathsConfig struct {
	JSONDir    string `yaml:"json_dir"`
	SchemasDir string `yaml:"schemas_dir"`
	TypesDir   string `yaml:"types_dir"`
	LogDir     string `yaml:"log_dir"`
}

// RunConfig holds batch execution configuration
type RunConfig struct {
	Mode       string      `yaml:"mode"`
	LogFile    string      `yaml:"log_file"`
	Concurrent bool        `yaml:"concurrent"`
	MaxWorkers int         `yaml:"max_workers"`
	Timeout    int         `yaml:"timeout"`
	RateLimit  float64     `yaml:"rate_limit"`
	RateBurst  int         `yaml:"rate_burst"`
	Retry      RetryConfig `yaml:"retry"`
}

// RetryConfig holds retry configuration for list calls
type RetryConfig struct {
	Attempts int `yaml:"attempts"`
	Delay    int `yaml:"delay"`
}

// GeneratorConfig selects and configures the schema/type generator
type GeneratorConfig struct {
	Backend    string    `yaml:"backend"`
	JSONSchema bool      `yaml:"json_schema"`
	LLM        LLMConfig `yaml:"llm"`
}

// MirrorConfig configures the optional object storage mirror of artifacts
type MirrorConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// HistoryConfig configures the optional SQL run history
type HistoryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Formats   []string `yaml:"formats"`
	OutputDir string   `yaml:"output_dir"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{
		Run:       RunConfig{Concurrent: true},
		Generator: GeneratorConfig{JSONSchema: true},
		Reporting: ReportingConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads the configuration from a YAML file and environment variables.
// A missing file at the default path is not an error; a missing explicit path is.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv("HARVESTER_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg := Default()
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides secrets from environment variables if set
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Generator.LLM.APIKey = v
	}
	if v := os.Getenv("HARVESTER_S3_ACCESS_KEY"); v != "" {
		c.Mirror.AccessKey = v
	}
	if v := os.Getenv("HARVESTER_S3_SECRET_KEY"); v != "" {
		c.Mirror.SecretKey = v
	}
	if v := os.Getenv("HARVESTER_HISTORY_PASSWORD"); v != "" {
		c.History.Password = v
	}
}

// applyDefaults sets default values where none are specified
func (c *Config) applyDefaults() {
	if c.EnvFile == "" {
		c.EnvFile = ".env"
	}
	if c.Catalog == "" {
		c.Catalog = filepath.Join("lib", "endpoints.json")
	}
	if c.Paths.JSONDir == "" {
		c.Paths.JSONDir = "json"
	}
	if c.Paths.SchemasDir == "" {
		c.Paths.SchemasDir = "schemas"
	}
	if c.Paths.TypesDir == "" {
		c.Paths.TypesDir = "types"
	}
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = "logs"
	}
	if c.Run.Mode == "" {
		c.Run.Mode = "list"
	}
	if c.Run.LogFile == "" {
		c.Run.LogFile = "generate"
	}
	if c.Run.MaxWorkers == 0 {
		c.Run.MaxWorkers = 5
	}
	if c.Run.Timeout == 0 {
		c.Run.Timeout = 30
	}
	if c.Run.RateBurst == 0 {
		c.Run.RateBurst = 1
	}
	if c.Run.Retry.Attempts == 0 {
		c.Run.Retry.Attempts = 1
	}
	if c.Run.Retry.Delay == 0 {
		c.Run.Retry.Delay = 1
	}
	if c.Generator.Backend == "" {
		c.Generator.Backend = "infer"
	}
	c.Generator.LLM.applyDefaults()
	if c.Mirror.Region == "" {
		c.Mirror.Region = "us-east-1"
	}
	if c.History.Type == "" {
		c.History.Type = "postgres"
	}
	if c.Reporting.OutputDir == "" {
		c.Reporting.OutputDir = "reports"
	}
	if len(c.Reporting.Formats) == 0 {
		c.Reporting.Formats = []string{"json"}
	}
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	switch c.Generator.Backend {
	case "infer":
	case "llm":
		if err := c.Generator.LLM.Validate(); err != nil {
			return fmt.Errorf("invalid generator.llm config: %w", err)
		}
	default:
		return fmt.Errorf("unknown generator backend %q (expected infer or llm)", c.Generator.Backend)
	}
	if c.Run.MaxWorkers < 0 || c.Run.Timeout < 0 || c.Run.RateLimit < 0 {
		return fmt.Errorf("run.max_workers, run.timeout and run.rate_limit must not be negative")
	}
	if strings.ContainsAny(c.Run.LogFile, `/\`) {
		return fmt.Errorf("run.log_file must be a bare file name, got %q", c.Run.LogFile)
	}
	if c.Mirror.Enabled && (c.Mirror.Endpoint == "" || c.Mirror.Bucket == "") {
		return fmt.Errorf("mirror.endpoint and mirror.bucket are required when the mirror is enabled")
	}
	for _, f := range c.Reporting.Formats {
		if f != "json" && f != "text" {
			return fmt.Errorf("unknown reporting format %q (expected json or text)", f)
		}
	}
	if c.History.Enabled {
		switch c.History.Type {
		case "postgres", "mysql", "sqlserver":
		default:
			return fmt.Errorf("unsupported history database type: %s", c.History.Type)
		}
	}
	return nil
}
