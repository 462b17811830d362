package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/moodlog/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Stats.QueryTimeout != 5*time.Second {
		t.Errorf("query timeout = %v, want 5s", cfg.Stats.QueryTimeout)
	}
	if cfg.Kafka.Enabled() {
		t.Error("kafka should be disabled without brokers")
	}
}

func TestStoreConfig_Driver(t *testing.T) {
	cfg := StoreConfig{}
	if err := cfg.Validate(); err != nil || cfg.Driver != DriverSQLite {
		t.Fatalf("empty driver should default to sqlite: %v, %q", err, cfg.Driver)
	}
	if err := (&StoreConfig{Driver: "mysql"}).Validate(); err == nil {
		t.Error("unknown driver should fail")
	}
}

func TestFullConfig_PostgresNeedsURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = DriverPostgres
	if err := cfg.Validate(); err == nil {
		t.Fatal("postgres driver without url should fail")
	}
	cfg.Postgres.URL = "postgres://moodlog@localhost/moodlog"
	cfg.SQLite.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sqlite path is irrelevant for postgres: %v", err)
	}
}

func TestStatsConfig_TimeoutRequired(t *testing.T) {
	if err := (&StatsConfig{}).Validate(); err == nil {
		t.Error("zero timeout should fail")
	}
	if err := (&StatsConfig{QueryTimeout: 250 * time.Millisecond}).Validate(); err != nil {
		t.Errorf("250ms should pass: %v", err)
	}
}

func TestKafkaConfig(t *testing.T) {
	if err := (&KafkaConfig{Brokers: []string{"localhost:9092"}}).Validate(); err == nil {
		t.Error("brokers without topic should fail")
	}
	cfg := KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "moodlog.records"}
	if err := cfg.Validate(); err != nil || !cfg.Enabled() {
		t.Errorf("valid kafka config: err=%v enabled=%v", err, cfg.Enabled())
	}
}

func TestLoadYAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("MOODLOG_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
store:
  driver: sqlite
sqlite:
  path: /tmp/moodlog.db
auth:
  mode: token
  token: ${MOODLOG_TEST_TOKEN}
stats:
  query_timeout: 750ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel != slog.LevelDebug {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Stats.QueryTimeout != 750*time.Millisecond {
		t.Errorf("query timeout = %v", cfg.Stats.QueryTimeout)
	}
	if cfg.Attachments.Path != "./attachments" {
		t.Errorf("attachments default lost: %q", cfg.Attachments.Path)
	}
}
