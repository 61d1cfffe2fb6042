package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the tool's configuration file.
type Config struct {
	Qualys      QualysConfig      `yaml:"qualys"`
	Remediation RemediationConfig `yaml:"remediation"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Logging     LoggingConfig     `yaml:"logging"`
	Report      ReportConfig      `yaml:"report"`
	Audit       AuditConfig       `yaml:"audit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// QualysConfig stores API information.
type QualysConfig struct {
	APIURL      string `yaml:"api_url"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	ProxyEnable bool   `yaml:"proxy_enable"`
	ProxyURL    string `yaml:"proxy_url"`
	Debug       bool   `yaml:"debug"`
}

// RemediationConfig controls what the run changes.
type RemediationConfig struct {
	Impact          string `yaml:"impact"`
	Simulate        bool   `yaml:"simulate"`
	ContinueOnError bool   `yaml:"continue_on_error"`
}

// SchedulerConfig configures periodic runs.
type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Tick    string `yaml:"tick"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// ReportConfig controls where the run summary goes.
type ReportConfig struct {
	Path string   `yaml:"path"`
	S3   S3Config `yaml:"s3"`
}

// S3Config points at S3-compatible object storage for report uploads.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Enabled reports whether enough is set to upload.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// AuditConfig enables the Postgres change log.
type AuditConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

// MetricsConfig enables the node_exporter textfile output.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Remediation: RemediationConfig{Impact: "Minor"},
		Scheduler:   SchedulerConfig{Tick: "24h"},
		Logging:     LoggingConfig{Level: "info", Format: "text"},
		Report:      ReportConfig{S3: S3Config{UseSSL: true, KeyPrefix: "reset-asset-groups/"}},
	}
}

// Load reads a YAML or JSON configuration file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads the first .env files found; missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env.local", ".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// ApplyEnv overlays values set in the environment. Lookup is normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setString("QUALYS_USER", &c.Qualys.User)
	setString("QUALYS_PASSWORD", &c.Qualys.Password)
	setString("QUALYS_API_URL", &c.Qualys.APIURL)
	setString("QUALYS_PROXY_URL", &c.Qualys.ProxyURL)
	setBool("QUALYS_PROXY_ENABLE", &c.Qualys.ProxyEnable)
	setString("RESET_ASSET_GROUPS_DATABASE_URL", &c.Audit.DatabaseURL)
	setString("RESET_ASSET_GROUPS_S3_ENDPOINT", &c.Report.S3.Endpoint)
	setString("RESET_ASSET_GROUPS_S3_ACCESS_KEY", &c.Report.S3.AccessKey)
	setString("RESET_ASSET_GROUPS_S3_SECRET_KEY", &c.Report.S3.SecretKey)
	setString("RESET_ASSET_GROUPS_S3_BUCKET", &c.Report.S3.Bucket)
	setBool("RESET_ASSET_GROUPS_S3_USE_SSL", &c.Report.S3.UseSSL)
}
