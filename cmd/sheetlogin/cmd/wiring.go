package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gaepo/sheetlogin/internal/adapter/outbound/csvsource"
	"github.com/gaepo/sheetlogin/internal/adapter/outbound/sheets"
	"github.com/gaepo/sheetlogin/internal/config"
	"github.com/gaepo/sheetlogin/internal/port/outbound"
	"github.com/gaepo/sheetlogin/internal/service"
)

// loadConfig loads the configuration, applies the CLI overrides shared by
// every command, and validates the result.
func loadConfig(dev bool, source string) (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if dev {
		cfg.DevMode = true
	}
	if source != "" {
		cfg.Source.Location = source
		cfg.Source.Type = ""
		cfg.Source.Range = ""
		cfg.SetDefaults()
	}

	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// newLogger writes text logs to stderr at the configured level.
// DevMode always forces debug.
func newLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// parseLogLevel converts a log level string to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newSource builds the configured table source.
func newSource(ctx context.Context, cfg *config.Config) (outbound.TableSource, error) {
	switch cfg.Source.Type {
	case config.SourceSheets:
		src, err := sheets.New(ctx, sheets.Config{
			Spreadsheet:     cfg.Source.Location,
			Range:           cfg.Source.Range,
			CredentialsFile: cfg.Source.CredentialsFile,
			CredentialsJSON: cfg.Source.CredentialsJSON,
			APIKey:          cfg.Source.APIKey,
			Timeout:         cfg.SourceTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceCSV:
		src, err := csvsource.New(cfg.Source.Location, csvsource.WithTimeout(cfg.SourceTimeout()))
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// newLoader wraps source in a TableLoader that requires the login columns.
func newLoader(cfg *config.Config, source outbound.TableSource, logger *slog.Logger, opts ...service.LoaderOption) *service.TableLoader {
	required := append([]string{cfg.Table.IDColumn, cfg.Table.NameColumn}, cfg.Table.RequiredColumns...)
	base := []service.LoaderOption{
		service.WithTTL(cfg.SourceTTL()),
		service.WithRequiredColumns(required...),
		service.WithKeyColumns(cfg.Table.IDColumn, cfg.Table.NameColumn),
	}
	return service.NewTableLoader(source, logger, append(base, opts...)...)
}
