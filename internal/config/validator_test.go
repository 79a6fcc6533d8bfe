package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// minimalValidConfig returns a minimal valid Config for testing.
func minimalValidConfig() *Config {
	cfg := &Config{
		Source: SourceConfig{Location: "https://docs.google.com/spreadsheets/d/abc/edit"},
	}
	cfg.SetDefaults()
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	if err := minimalValidConfig().Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing location",
			mutate:  func(c *Config) { c.Source.Location = "" },
			wantErr: "Config.Source.Location is required",
		},
		{
			name:    "bad source type",
			mutate:  func(c *Config) { c.Source.Type = "xlsx" },
			wantErr: "Config.Source.Type must be one of: sheets csv",
		},
		{
			name:    "bad http addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "not-an-addr" },
			wantErr: "must be a valid host:port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "Config.Server.LogLevel must be one of",
		},
		{
			name:    "bad ttl",
			mutate:  func(c *Config) { c.Source.TTL = "a minute" },
			wantErr: "Config.Source.TTL must be a duration",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Source.Timeout = "-5s" },
			wantErr: "Config.Source.Timeout must be a duration",
		},
		{
			name:    "bad session timeout",
			mutate:  func(c *Config) { c.Server.SessionTimeout = "forever" },
			wantErr: "Config.Server.SessionTimeout must be a duration",
		},
		{
			name:    "bad exporter",
			mutate:  func(c *Config) { c.Telemetry.TraceExporter = "jaeger" },
			wantErr: "Config.Telemetry.TraceExporter must be one of",
		},
		{
			name: "two credential kinds",
			mutate: func(c *Config) {
				c.Source.CredentialsFile = "/sa.json"
				c.Source.APIKey = "key"
			},
			wantErr: "specify one of credentials_file, credentials_json or api_key",
		},
		{
			name: "credentials on csv",
			mutate: func(c *Config) {
				c.Source.Type = SourceCSV
				c.Source.APIKey = "key"
			},
			wantErr: "credentials are only used by the sheets source",
		},
		{
			name: "range on csv",
			mutate: func(c *Config) {
				c.Source.Type = SourceCSV
				c.Source.Range = "A:B"
			},
			wantErr: "range is only used by the sheets source",
		},
		{
			name: "same id and name column",
			mutate: func(c *Config) {
				c.Table.IDColumn = "student id"
				c.Table.NameColumn = "student  id"
			},
			wantErr: "id_column and name_column must differ",
		},
		{
			name: "id column equal to name column after normalization",
			mutate: func(c *Config) {
				c.Table.IDColumn = " 학번"
				c.Table.NameColumn = "학번\t"
			},
			wantErr: "id_column and name_column must differ",
		},
		{
			name:    "blank required column",
			mutate:  func(c *Config) { c.Table.RequiredColumns = []string{"반", ""} },
			wantErr: "Config.Table.RequiredColumns[1] is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := minimalValidConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_ZeroTTLIsValid(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Source.TTL = "0s"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with ttl 0s error: %v", err)
	}
}

func TestValidate_TLS(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")
	for _, p := range []string{cert, key} {
		if err := os.WriteFile(p, []byte("pem"), 0600); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		cert    string
		key     string
		wantErr string
	}{
		{"both set", cert, key, ""},
		{"cert only", cert, "", "must be set together"},
		{"key only", "", key, "must be set together"},
		{"missing cert file", filepath.Join(dir, "nope.pem"), key, "Config.Server.TLSCertFile must be an existing file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := minimalValidConfig()
			cfg.Server.TLSCertFile = tt.cert
			cfg.Server.TLSKeyFile = tt.key

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				if !cfg.Server.TLSEnabled() {
					t.Error("TLSEnabled() = false with both files set")
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
