// Package config loads agentforge configuration.
//
// Values are resolved as defaults < YAML file < environment variables and
// validated before the pipeline starts.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment constants
const (
	EnvProduction  = "production"
	EnvStaging     = "staging"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Config holds the complete agentforge configuration.
type Config struct {
	Environment string           `yaml:"environment"`
	Generation  GenerationConfig `yaml:"generation"`
	Project     ProjectConfig    `yaml:"project"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Journal     JournalConfig    `yaml:"journal"`
	Artifacts   ArtifactsConfig  `yaml:"artifacts"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// GenerationConfig configures the chat-completion service.
type GenerationConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	RequestsPerMinute int     `yaml:"requests_per_minute"` // 0 = unlimited
	RepairJSON        bool    `yaml:"repair_json"`
}

// ProjectConfig points at the backend project the build agent rewrites.
// Relative artifact paths are resolved against Dir.
type ProjectConfig struct {
	Dir          string `yaml:"dir"`
	TemplatePath string `yaml:"template_path"`
	SourcePath   string `yaml:"source_path"`
	SchemaPath   string `yaml:"schema_path"`
	BuildCommand string `yaml:"build_command"`
	RunCommand   string `yaml:"run_command"`
	ServerAddr   string `yaml:"server_addr"`
}

// PipelineConfig holds orchestration timings and limits.
type PipelineConfig struct {
	AgentPause   time.Duration `yaml:"agent_pause"`
	WarmUp       time.Duration `yaml:"warm_up"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	StopGrace    time.Duration `yaml:"stop_grace"`
	MaxBugs      int           `yaml:"max_bugs"`
	ImproveCode  bool          `yaml:"improve_code"`
	AutoConfirm  bool          `yaml:"auto_confirm"`
}

// JournalConfig configures the run journal. An empty DSN disables it.
// DSNs starting with postgres:// or postgresql:// use Postgres, anything
// else is a sqlite file path.
type JournalConfig struct {
	DSN string `yaml:"dsn"`
}

// ArtifactsConfig configures optional S3 mirroring of persisted artifacts.
type ArtifactsConfig struct {
	S3Bucket          string `yaml:"s3_bucket"`
	S3Prefix          string `yaml:"s3_prefix"`
	S3Region          string `yaml:"s3_region"`
	S3Endpoint        string `yaml:"s3_endpoint"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
}

// MetricsConfig configures the Prometheus listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Environment: GetEnvironment(),
		Generation: GenerationConfig{
			Model: "gpt-3.5-turbo-16k",
		},
		Project: ProjectConfig{
			Dir:          "web_template",
			TemplatePath: "src/code_template.rs",
			SourcePath:   "src/main.rs",
			SchemaPath:   "schemas/api_schema.json",
			BuildCommand: "cargo build",
			RunCommand:   "cargo run",
			ServerAddr:   "127.0.0.1:8080",
		},
		Pipeline: PipelineConfig{
			AgentPause:   20 * time.Second,
			WarmUp:       5 * time.Second,
			ProbeTimeout: 5 * time.Second,
			StopGrace:    5 * time.Second,
			MaxBugs:      2,
		},
		Journal: JournalConfig{
			DSN: "agentforge.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Path resolves an artifact path against the project directory.
func (p ProjectConfig) Path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) || p.Dir == "" {
		return rel
	}
	return filepath.Join(p.Dir, rel)
}

// GetEnvironment returns the current environment
func GetEnvironment() string {
	// Check multiple environment variables for compatibility
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = os.Getenv("AGENTFORGE_ENV")
	}
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = EnvDevelopment
	}
	return strings.ToLower(env)
}

// IsProductionEnvironment returns true if running in production
func IsProductionEnvironment() bool {
	env := GetEnvironment()
	return env == EnvProduction || env == "prod"
}
