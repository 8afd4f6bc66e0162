package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func loadFrom(t *testing.T, vars map[string]string) (Config, error) {
	t.Helper()
	return load(env.Options{Environment: vars})
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.Snapshot.Backend != BackendFile || cfg.Snapshot.Path != "db.json" {
		t.Fatalf("unexpected snapshot defaults %+v", cfg.Snapshot)
	}
	if cfg.Snapshot.Interval != time.Minute {
		t.Fatalf("expected one minute interval, got %s", cfg.Snapshot.Interval)
	}
	if cfg.Twilio.Timeout != 10*time.Second {
		t.Fatalf("expected 10s verify timeout, got %s", cfg.Twilio.Timeout)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected development environment by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{
		"PORT":              ":9000",
		"LOG_LEVEL":         "DEBUG",
		"SNAPSHOT_BACKEND":  "Postgres",
		"DATABASE_URL":      "postgres://localhost/iso",
		"SNAPSHOT_INTERVAL": "5s",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9000" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.LogLevel != "debug" || cfg.Snapshot.Backend != BackendPostgres {
		t.Fatalf("values not normalized: %q %q", cfg.LogLevel, cfg.Snapshot.Backend)
	}
	if cfg.Snapshot.Interval != 5*time.Second {
		t.Fatalf("unexpected interval %s", cfg.Snapshot.Interval)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"postgres without url", map[string]string{"SNAPSHOT_BACKEND": "postgres"}, "DATABASE_URL"},
		{"s3 without bucket", map[string]string{"SNAPSHOT_BACKEND": "s3"}, "S3_BUCKET"},
		{"unknown backend", map[string]string{"SNAPSHOT_BACKEND": "floppy"}, "SNAPSHOT_BACKEND"},
		{"zero interval", map[string]string{"SNAPSHOT_INTERVAL": "0s"}, "SNAPSHOT_INTERVAL"},
		{"production without twilio", map[string]string{"APP_ENV": "production"}, "TWILIO_SERVICE_SID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadFrom(t, tc.vars)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestTwilioCredentialsFileFillsMissingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twilio.yaml")
	doc := "service_sid: VA-file\naccount_sid: AC-file\nauth_token: secret-file\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := loadFrom(t, map[string]string{
		"APP_ENV":                 "production",
		"TWILIO_SERVICE_SID":      "VA-env",
		"TWILIO_CREDENTIALS_FILE": path,
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Twilio.ServiceSID != "VA-env" {
		t.Fatalf("environment value should win, got %q", cfg.Twilio.ServiceSID)
	}
	if cfg.Twilio.AccountSID != "AC-file" || cfg.Twilio.AuthToken != "secret-file" {
		t.Fatalf("file values not applied: %+v", cfg.Twilio)
	}
	if !cfg.Twilio.Configured() {
		t.Fatalf("expected twilio to be configured")
	}
}

func TestTwilioCredentialsFileMissing(t *testing.T) {
	_, err := loadFrom(t, map[string]string{
		"TWILIO_CREDENTIALS_FILE": filepath.Join(t.TempDir(), "absent.yaml"),
	})
	if err == nil {
		t.Fatalf("expected error for missing credentials file")
	}
}
