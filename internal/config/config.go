package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `env:"APP_NAME"          envDefault:"ISO"`
	AppEnv         string        `env:"APP_ENV"           envDefault:"development"`
	Port           string        `env:"PORT"              envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL"         envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT"        envDefault:"json"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT"  envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL"   envDefault:"24h"`
	VerifyLimit    int           `env:"VERIFY_RATE_LIMIT" envDefault:"5"`
	DevVerifyCode  string        `env:"DEV_VERIFY_CODE"   envDefault:"123456"`

	Snapshot SnapshotConfig
	Twilio   TwilioConfig
}

// SnapshotConfig selects where the store is persisted and how often.
type SnapshotConfig struct {
	Backend  string        `env:"SNAPSHOT_BACKEND"  envDefault:"file"`
	Path     string        `env:"SNAPSHOT_PATH"     envDefault:"db.json"`
	Name     string        `env:"SNAPSHOT_NAME"     envDefault:"iso"`
	Interval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"60s"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Key       string `env:"S3_KEY"        envDefault:"snapshots/db.json"`
	S3Region    string `env:"S3_REGION"     envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
}

// TwilioConfig holds Verify credentials. Values missing from the environment
// are read from the YAML file at CredentialsFile when it is set.
type TwilioConfig struct {
	ServiceSID      string        `env:"TWILIO_SERVICE_SID"      yaml:"service_sid"`
	AccountSID      string        `env:"TWILIO_ACCOUNT_SID"      yaml:"account_sid"`
	AuthToken       string        `env:"TWILIO_AUTH_TOKEN"       yaml:"auth_token"`
	BaseURL         string        `env:"TWILIO_BASE_URL"         yaml:"base_url"`
	Timeout         time.Duration `env:"VERIFY_TIMEOUT"          yaml:"-"           envDefault:"10s"`
	CredentialsFile string        `env:"TWILIO_CREDENTIALS_FILE" yaml:"-"`
}

// Configured reports whether all credentials needed to reach Twilio are present.
func (t TwilioConfig) Configured() bool {
	return t.ServiceSID != "" && t.AccountSID != "" && t.AuthToken != ""
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Snapshot.Backend = strings.ToLower(cfg.Snapshot.Backend)

	if cfg.Twilio.CredentialsFile != "" {
		if err := cfg.Twilio.mergeFile(cfg.Twilio.CredentialsFile); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (t *TwilioConfig) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read twilio credentials file: %w", err)
	}
	var file TwilioConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse twilio credentials file: %w", err)
	}
	fill(&t.ServiceSID, file.ServiceSID)
	fill(&t.AccountSID, file.AccountSID)
	fill(&t.AuthToken, file.AuthToken)
	fill(&t.BaseURL, file.BaseURL)
	return nil
}

func fill(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func (c Config) validate() error {
	switch c.Snapshot.Backend {
	case BackendFile:
		if c.Snapshot.Path == "" {
			return fmt.Errorf("SNAPSHOT_PATH must be set for the file backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the postgres snapshot backend")
		}
	case BackendS3:
		if c.Snapshot.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET must be set for the s3 snapshot backend")
		}
	default:
		return fmt.Errorf("invalid SNAPSHOT_BACKEND %q", c.Snapshot.Backend)
	}

	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be positive")
	}

	if !c.IsDev() && !c.Twilio.Configured() {
		return fmt.Errorf("TWILIO_SERVICE_SID, TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN must be set when APP_ENV=%s", c.AppEnv)
	}
	return nil
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
