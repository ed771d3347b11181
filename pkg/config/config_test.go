package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"PORT", "ENVIRONMENT", "BASE_URL", "LOG_LEVEL", "TLS_CERT_PATH", "TLS_KEY_PATH", "MCP_ENABLED",
	"WAREHOUSE_EVENTS_TABLE", "WAREHOUSE_SESSIONS_TABLE", "WAREHOUSE_LEGACY_SESSIONS_TABLE", "WAREHOUSE_EVENT_DATA_TABLE",
	"TEMPLATE_DEFAULT_LOOKBACK_DAYS", "TEMPLATE_PATH_COLUMN", "TEMPLATE_DATE_FIELDS", "TEMPLATE_REJECT_SUSPICIOUS_VALUES",
}

// writeConfig writes a config file into a temp dir with every config env var cleared.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	for _, key := range configEnv {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("pem"), 0o600))
	return path
}

func TestLoad_ReadsDefaultPath(t *testing.T) {
	path := writeConfig(t, "env: test\n")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(filepath.Dir(path)))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("v1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "v1.2.3", cfg.Version)
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "env: test\n"), "dev")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.BindAddr)
	assert.Equal(t, "3480", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://localhost:3480", cfg.BaseURL)
	assert.True(t, cfg.MCP.Enabled)

	assert.Equal(t, WarehouseConfig{
		EventsTable:         "analytics-prod.umami.public_website_event",
		SessionsTable:       "analytics-prod.umami.public_session",
		LegacySessionsTable: "analytics-prod.umami_views.session",
		EventDataTable:      "analytics-prod.umami.public_event_data",
	}, cfg.Warehouse)
	assert.Equal(t, TemplateConfig{
		DefaultLookbackDays: 30,
		PathColumn:          "url_path",
		DateFields:          []string{"created_at"},
	}, cfg.Template)
}

func TestLoadFile_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
port: "3480"
warehouse:
  events_table: "proj.umami.events"
template:
  default_lookback_days: 7
`)
	t.Setenv("PORT", "4480")
	t.Setenv("TEMPLATE_DEFAULT_LOOKBACK_DAYS", "14")
	t.Setenv("TEMPLATE_DATE_FIELDS", "created_at,visit_time")
	t.Setenv("TEMPLATE_REJECT_SUSPICIOUS_VALUES", "true")

	cfg, err := LoadFile(path, "dev")
	require.NoError(t, err)

	assert.Equal(t, "4480", cfg.Port)
	assert.Equal(t, "http://localhost:4480", cfg.BaseURL)
	assert.Equal(t, "proj.umami.events", cfg.Warehouse.EventsTable)
	assert.Equal(t, 14, cfg.Template.DefaultLookbackDays)
	assert.Equal(t, []string{"created_at", "visit_time"}, cfg.Template.DateFields)
	assert.True(t, cfg.Template.RejectSuspiciousValues)
}

func TestConfig_Options(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "template:\n  default_lookback_days: 14\n  path_column: page_path\n"), "dev")
	require.NoError(t, err)

	opts := cfg.EngineOptions()
	assert.Equal(t, 14*24*time.Hour, opts.DefaultLookback)
	assert.Equal(t, "page_path", opts.PathColumn)
	assert.Equal(t, cfg.Warehouse.Tables(), opts.Tables)
	assert.Equal(t, cfg.Warehouse.EventDataTable, cfg.FunnelOptions().Tables.EventData)
}

func TestLoadFile_ExplicitBaseURL(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "base_url: http://sitelens.internal:8080\n"), "dev")
	require.NoError(t, err)
	assert.Equal(t, "http://sitelens.internal:8080", cfg.BaseURL)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), "dev")
	assert.ErrorContains(t, err, "failed to read")
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"zero lookback", "template:\n  default_lookback_days: 0\n", "default_lookback_days must be positive"},
		{"blank table", "warehouse:\n  sessions_table: \" \"\n", "warehouse.sessions_table must not be empty"},
		{"backticked table", "warehouse:\n  events_table: \"`a.b.c`\"\n", "must not contain backticks"},
		{"unknown log level", "log_level: trace\n", "log_level must be one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.yaml), "dev")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadFile_TLS(t *testing.T) {
	dir := t.TempDir()
	cert := touch(t, dir, "cert.pem")
	key := touch(t, dir, "key.pem")

	t.Run("cert and key", func(t *testing.T) {
		cfg, err := LoadFile(writeConfig(t, fmt.Sprintf("tls_cert_path: %q\ntls_key_path: %q\n", cert, key)), "dev")
		require.NoError(t, err)
		assert.Equal(t, "https://localhost:3480", cfg.BaseURL)
	})

	t.Run("cert only", func(t *testing.T) {
		_, err := LoadFile(writeConfig(t, fmt.Sprintf("tls_cert_path: %q\n", cert)), "dev")
		assert.ErrorContains(t, err, "must be provided together")
	})

	t.Run("missing key file", func(t *testing.T) {
		missing := filepath.Join(dir, "absent.pem")
		_, err := LoadFile(writeConfig(t, fmt.Sprintf("tls_cert_path: %q\ntls_key_path: %q\n", cert, missing)), "dev")
		assert.ErrorContains(t, err, "TLS key file does not exist")
	})
}

func TestConfig_TLSEnabled(t *testing.T) {
	assert.False(t, (&Config{TLSCertPath: "c.pem"}).TLSEnabled())
	assert.True(t, (&Config{TLSCertPath: "c.pem", TLSKeyPath: "k.pem"}).TLSEnabled())
}
