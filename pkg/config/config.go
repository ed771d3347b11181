package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/sitelens/sitelens-engine/pkg/funnel"
	sqltemplate "github.com/sitelens/sitelens-engine/pkg/sql"
)

// DefaultPath is the config file read by Load.
const DefaultPath = "config.yaml"

// Config is the engine configuration. Values come from config.yaml; environment
// variables win over the file.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // derived from Port and TLS when empty
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// HTTPS is served when both are set.
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Warehouse WarehouseConfig `yaml:"warehouse"`
	Template  TemplateConfig  `yaml:"template"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// WarehouseConfig names the analytics tables queries are generated against.
// Names are fully qualified BigQuery table ids without backticks.
type WarehouseConfig struct {
	EventsTable         string `yaml:"events_table" env:"WAREHOUSE_EVENTS_TABLE" env-default:"analytics-prod.umami.public_website_event"`
	SessionsTable       string `yaml:"sessions_table" env:"WAREHOUSE_SESSIONS_TABLE" env-default:"analytics-prod.umami.public_session"`
	LegacySessionsTable string `yaml:"legacy_sessions_table" env:"WAREHOUSE_LEGACY_SESSIONS_TABLE" env-default:"analytics-prod.umami_views.session"`
	EventDataTable      string `yaml:"event_data_table" env:"WAREHOUSE_EVENT_DATA_TABLE" env-default:"analytics-prod.umami.public_event_data"`
}

// Tables converts the configured names for the template engine and funnel compiler.
func (w WarehouseConfig) Tables() sqltemplate.Tables {
	return sqltemplate.Tables{
		Events:         w.EventsTable,
		Sessions:       w.SessionsTable,
		LegacySessions: w.LegacySessionsTable,
		EventData:      w.EventDataTable,
	}
}

// TemplateConfig controls template rendering.
type TemplateConfig struct {
	// DefaultLookbackDays is the date window used when a request sets no dates.
	DefaultLookbackDays int `yaml:"default_lookback_days" env:"TEMPLATE_DEFAULT_LOOKBACK_DAYS" env-default:"30"`
	// PathColumn is the column compared by the conditional path directive.
	PathColumn string `yaml:"path_column" env:"TEMPLATE_PATH_COLUMN" env-default:"url_path"`
	// DateFields are placeholder names treated as date range fields.
	DateFields []string `yaml:"date_fields" env:"TEMPLATE_DATE_FIELDS" env-separator:"," env-default:"created_at"`
	// RejectSuspiciousValues fails rendering when a variable value looks like SQL injection.
	// When false such values are logged and still escaped.
	RejectSuspiciousValues bool `yaml:"reject_suspicious_values" env:"TEMPLATE_REJECT_SUSPICIOUS_VALUES" env-default:"false"`
}

// EngineOptions converts the template settings into engine options.
func (c *Config) EngineOptions() sqltemplate.EngineOptions {
	return sqltemplate.EngineOptions{
		Tables:          c.Warehouse.Tables(),
		PathColumn:      c.Template.PathColumn,
		DateFields:      c.Template.DateFields,
		DefaultLookback: time.Duration(c.Template.DefaultLookbackDays) * 24 * time.Hour,
	}
}

// FunnelOptions converts the warehouse settings into funnel compiler options.
func (c *Config) FunnelOptions() funnel.Options {
	return funnel.Options{Tables: c.Warehouse.Tables()}
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads DefaultPath. version is stamped at build time.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultPath, version)
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{Version: version}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.checkTLSFiles(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = cfg.defaultBaseURL()
	}
	return cfg, nil
}

// TLSEnabled reports whether a certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertPath != "" && c.TLSKeyPath != ""
}

func (c *Config) defaultBaseURL() string {
	u := url.URL{Scheme: "http", Host: "localhost:" + c.Port}
	if c.TLSEnabled() {
		u.Scheme = "https"
	}
	return u.String()
}

// validate checks the template and warehouse settings.
func (c *Config) validate() error {
	if c.Template.DefaultLookbackDays <= 0 {
		return fmt.Errorf("template.default_lookback_days must be positive, got %d", c.Template.DefaultLookbackDays)
	}

	tables := map[string]string{
		"warehouse.events_table":          c.Warehouse.EventsTable,
		"warehouse.sessions_table":        c.Warehouse.SessionsTable,
		"warehouse.legacy_sessions_table": c.Warehouse.LegacySessionsTable,
		"warehouse.event_data_table":      c.Warehouse.EventDataTable,
	}
	for key, name := range tables {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
		if strings.Contains(name, "`") {
			return fmt.Errorf("%s must not contain backticks", key)
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}

// checkTLSFiles requires the cert and key to be set together and to exist.
// Whether they parse is left to the listener.
func (c *Config) checkTLSFiles() error {
	if (c.TLSCertPath == "") != (c.TLSKeyPath == "") {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}
	if !c.TLSEnabled() {
		return nil
	}
	for label, path := range map[string]string{"cert": c.TLSCertPath, "key": c.TLSKeyPath} {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("TLS %s file does not exist: %w", label, err)
		}
	}
	return nil
}
