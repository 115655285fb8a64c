package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "agentforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Generation.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Generation.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Generation.Model, "OPENAI_MODEL")
	setFloat32(&cfg.Generation.Temperature, "AGENTFORGE_TEMPERATURE")
	setInt(&cfg.Generation.RequestsPerMinute, "AGENTFORGE_REQUESTS_PER_MINUTE")
	setBool(&cfg.Generation.RepairJSON, "AGENTFORGE_REPAIR_JSON")

	setString(&cfg.Project.Dir, "AGENTFORGE_PROJECT_DIR")
	setString(&cfg.Project.TemplatePath, "AGENTFORGE_TEMPLATE_PATH")
	setString(&cfg.Project.SourcePath, "AGENTFORGE_SOURCE_PATH")
	setString(&cfg.Project.SchemaPath, "AGENTFORGE_SCHEMA_PATH")
	setString(&cfg.Project.BuildCommand, "AGENTFORGE_BUILD_COMMAND")
	setString(&cfg.Project.RunCommand, "AGENTFORGE_RUN_COMMAND")
	setString(&cfg.Project.ServerAddr, "AGENTFORGE_SERVER_ADDR")

	setDuration(&cfg.Pipeline.AgentPause, "AGENTFORGE_AGENT_PAUSE")
	setDuration(&cfg.Pipeline.WarmUp, "AGENTFORGE_WARM_UP")
	setDuration(&cfg.Pipeline.ProbeTimeout, "AGENTFORGE_PROBE_TIMEOUT")
	setDuration(&cfg.Pipeline.StopGrace, "AGENTFORGE_STOP_GRACE")
	setInt(&cfg.Pipeline.MaxBugs, "AGENTFORGE_MAX_BUGS")
	setBool(&cfg.Pipeline.ImproveCode, "AGENTFORGE_IMPROVE_CODE")
	setBool(&cfg.Pipeline.AutoConfirm, "AGENTFORGE_AUTO_CONFIRM")

	setString(&cfg.Journal.DSN, "AGENTFORGE_JOURNAL_DSN")

	// Artifacts
	setString(&cfg.Artifacts.S3Bucket, "AGENTFORGE_S3_BUCKET")
	setString(&cfg.Artifacts.S3Prefix, "AGENTFORGE_S3_PREFIX")
	setString(&cfg.Artifacts.S3Region, "AGENTFORGE_S3_REGION")
	setString(&cfg.Artifacts.S3Endpoint, "AGENTFORGE_S3_ENDPOINT")
	setString(&cfg.Artifacts.S3AccessKeyID, "AGENTFORGE_S3_ACCESS_KEY_ID")
	setString(&cfg.Artifacts.S3SecretAccessKey, "AGENTFORGE_S3_SECRET_ACCESS_KEY")

	setString(&cfg.Metrics.Addr, "AGENTFORGE_METRICS_ADDR")
	setString(&cfg.Logging.Level, "AGENTFORGE_LOG_LEVEL")
}

func validate(cfg *Config) error {
	if cfg.Generation.Model == "" {
		return errors.New("generation.model is required")
	}
	if cfg.Generation.RequestsPerMinute < 0 {
		return errors.New("generation.requests_per_minute must be >= 0")
	}
	if cfg.Project.SourcePath == "" || cfg.Project.TemplatePath == "" || cfg.Project.SchemaPath == "" {
		return errors.New("project.template_path, project.source_path and project.schema_path are required")
	}
	if len(strings.Fields(cfg.Project.BuildCommand)) == 0 {
		return errors.New("project.build_command is required")
	}
	if len(strings.Fields(cfg.Project.RunCommand)) == 0 {
		return errors.New("project.run_command is required")
	}
	if cfg.Project.ServerAddr == "" {
		return errors.New("project.server_addr is required")
	}
	if cfg.Pipeline.MaxBugs < 0 {
		return errors.New("pipeline.max_bugs must be >= 0")
	}
	if cfg.Pipeline.ProbeTimeout <= 0 {
		return errors.New("pipeline.probe_timeout must be > 0")
	}
	if cfg.Pipeline.AgentPause < 0 || cfg.Pipeline.WarmUp < 0 || cfg.Pipeline.StopGrace < 0 {
		return errors.New("pipeline durations must not be negative")
	}
	if (cfg.Artifacts.S3AccessKeyID == "") != (cfg.Artifacts.S3SecretAccessKey == "") {
		return errors.New("artifacts.s3_access_key_id and artifacts.s3_secret_access_key must be set together")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat32(dst *float32, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
