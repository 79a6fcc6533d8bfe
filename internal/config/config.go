// Package config provides configuration types for sheetlogin.
//
// The schema is small and file-based: one spreadsheet source, the column
// names used for login, and the HTTP listener. Every key can be overridden
// with a SHEETLOGIN_ environment variable.
package config

import (
	"strings"
	"time"
)

// Source types.
const (
	SourceSheets = "sheets"
	SourceCSV    = "csv"
)

// Config is the top-level configuration for sheetlogin.
type Config struct {
	// Server configures the HTTP server listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Source configures where the student table is read from.
	Source SourceConfig `yaml:"source" mapstructure:"source"`

	// Table names the columns used for login.
	Table TableConfig `yaml:"table" mapstructure:"table"`

	// Telemetry selects OpenTelemetry exporters.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables development features (verbose logging, short cache).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
// Plain HTTP is served unless both TLS files are set.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Defaults to "127.0.0.1:8080" (localhost only) if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	// Defaults to "info" if empty. DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// SessionTimeout is how long an idle session lives (e.g., "30m").
	// Defaults to "30m".
	SessionTimeout string `yaml:"session_timeout" mapstructure:"session_timeout" validate:"omitempty,duration"`

	// Title is shown at the top of the page.
	Title string `yaml:"title" mapstructure:"title"`

	// TLSCertFile and TLSKeyFile are PEM files for serving HTTPS.
	// Set both or neither.
	TLSCertFile string `yaml:"tls_cert_file" mapstructure:"tls_cert_file" validate:"omitempty,file"`
	TLSKeyFile  string `yaml:"tls_key_file" mapstructure:"tls_key_file" validate:"omitempty,file"`
}

// TLSEnabled reports whether both TLS files are configured.
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// SourceConfig configures the table source.
type SourceConfig struct {
	// Type is "sheets" (Google Sheets API) or "csv" (CSV URL or file).
	// Inferred from Location when empty.
	Type string `yaml:"type" mapstructure:"type" validate:"omitempty,oneof=sheets csv"`

	// Location is the spreadsheet ID or URL for "sheets", or the CSV URL or
	// file path for "csv".
	Location string `yaml:"location" mapstructure:"location" validate:"required"`

	// Range is the A1 range read by the "sheets" source (e.g., "Sheet1!A:F").
	Range string `yaml:"range" mapstructure:"range"`

	// CredentialsFile is a service-account JSON key file.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`

	// CredentialsJSON is an inline service-account JSON key.
	CredentialsJSON string `yaml:"credentials_json" mapstructure:"credentials_json"`

	// APIKey is a Google API key for link-shared sheets.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// TTL is how long a loaded table is reused (e.g., "60s"). "0s" reloads
	// on every request. Defaults to "60s".
	TTL string `yaml:"ttl" mapstructure:"ttl" validate:"omitempty,duration"`

	// Timeout bounds one fetch from the source. Defaults to "30s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`

	// Watch reloads a local CSV file as soon as it changes.
	// Only used when Type is "csv" and Location is a file path.
	Watch bool `yaml:"watch" mapstructure:"watch"`
}

// TableConfig names the columns matched at login.
type TableConfig struct {
	// IDColumn holds the student ID. Defaults to "학번".
	IDColumn string `yaml:"id_column" mapstructure:"id_column" validate:"required"`

	// NameColumn holds the student name. Defaults to "이름".
	NameColumn string `yaml:"name_column" mapstructure:"name_column" validate:"required"`

	// RequiredColumns must also be present, or the table is rejected.
	RequiredColumns []string `yaml:"required_columns" mapstructure:"required_columns" validate:"omitempty,dive,required"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	// TraceExporter is "none" or "stdout". Defaults to "none".
	TraceExporter string `yaml:"trace_exporter" mapstructure:"trace_exporter" validate:"omitempty,oneof=none stdout"`

	// MetricExporter is "none" or "stdout". Defaults to "none".
	MetricExporter string `yaml:"metric_exporter" mapstructure:"metric_exporter" validate:"omitempty,oneof=none stdout"`
}

// SetDevDefaults applies development defaults.
// These defaults are applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}

	c.Server.LogLevel = "debug"

	// Pick up sheet edits quickly while developing.
	if c.Source.TTL == "" || c.Source.TTL == defaultTTL {
		c.Source.TTL = "5s"
	}
	if c.Source.Type == SourceCSV && !isURL(c.Source.Location) {
		c.Source.Watch = true
	}
}

const defaultTTL = "60s"

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	// Server defaults: bind to localhost only.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.SessionTimeout == "" {
		c.Server.SessionTimeout = "30m"
	}
	if c.Server.Title == "" {
		c.Server.Title = "학생 정보 조회"
	}

	// Source defaults
	c.Source.Location = strings.TrimSpace(c.Source.Location)
	if c.Source.Type == "" {
		c.Source.Type = inferSourceType(c.Source.Location)
	}
	if c.Source.TTL == "" {
		c.Source.TTL = defaultTTL
	}
	if c.Source.Timeout == "" {
		c.Source.Timeout = "30s"
	}

	// Table defaults
	if c.Table.IDColumn == "" {
		c.Table.IDColumn = "학번"
	}
	if c.Table.NameColumn == "" {
		c.Table.NameColumn = "이름"
	}

	// Telemetry defaults
	if c.Telemetry.TraceExporter == "" {
		c.Telemetry.TraceExporter = "none"
	}
	if c.Telemetry.MetricExporter == "" {
		c.Telemetry.MetricExporter = "none"
	}
}

// inferSourceType picks "csv" for CSV files and CSV export URLs, and
// "sheets" for everything else (spreadsheet IDs and edit URLs).
func inferSourceType(location string) string {
	l := strings.ToLower(location)
	switch {
	case strings.HasSuffix(l, ".csv"),
		strings.Contains(l, "format=csv"),
		strings.Contains(l, "output=csv"):
		return SourceCSV
	case isURL(l) && !strings.Contains(l, "/spreadsheets/d/"):
		return SourceCSV
	default:
		return SourceSheets
	}
}

func isURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// SessionTimeoutDuration returns Server.SessionTimeout parsed.
// Invalid values fall back to 30 minutes; Validate rejects them earlier.
func (c *Config) SessionTimeoutDuration() time.Duration {
	return parseDurationOr(c.Server.SessionTimeout, 30*time.Minute)
}

// SourceTTL returns Source.TTL parsed.
func (c *Config) SourceTTL() time.Duration {
	return parseDurationOr(c.Source.TTL, 60*time.Second)
}

// SourceTimeout returns Source.Timeout parsed.
func (c *Config) SourceTimeout() time.Duration {
	return parseDurationOr(c.Source.Timeout, 30*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
