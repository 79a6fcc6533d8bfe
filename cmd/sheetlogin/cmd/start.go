package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaepo/sheetlogin/internal/adapter/inbound/http"
	"github.com/gaepo/sheetlogin/internal/adapter/inbound/web"
	"github.com/gaepo/sheetlogin/internal/adapter/outbound/csvsource"
	"github.com/gaepo/sheetlogin/internal/adapter/outbound/memory"
	"github.com/gaepo/sheetlogin/internal/config"
	"github.com/gaepo/sheetlogin/internal/domain/session"
	"github.com/gaepo/sheetlogin/internal/service"
	"github.com/gaepo/sheetlogin/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the web server",
	Long: `Start the sheetlogin web server.

The table is read from the configured source (Google Sheets or CSV) on first
use and reused for source.ttl (default 60s). If the source cannot be read the
page shows an error instead of the login form until it recovers.

Examples:
  # Start with config file settings
  sheetlogin start

  # Try it out against a local CSV file (debug logs, file watching)
  sheetlogin start --dev --source ./students.csv

  # Start with a specific config file
  sheetlogin --config /path/to/config.yaml start`,
	RunE: runStart,
}

var (
	devMode        bool
	sourceOverride string
)

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, short cache, error details)")
	startCmd.Flags().StringVar(&sourceOverride, "source", "", "Override source.location (sheet URL, CSV URL or CSV file)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(devMode, sourceOverride)
	if err != nil {
		return err
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(cfg)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	// Write PID file so "sheetlogin stop" can find us.
	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("sheetlogin stopped")
	return nil
}

// run wires all components together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "sheetlogin",
		ServiceVersion: Version,
		DevMode:        cfg.DevMode,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		Writer:         os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	source, err := newSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create %s source: %w", cfg.Source.Type, err)
	}
	loader := newLoader(cfg, source, logger)

	sessionStore := memory.NewSessionStore()
	sessionStore.StartCleanup(ctx)
	defer sessionStore.Stop()

	sessions := session.NewSessionService(sessionStore, session.Config{Timeout: cfg.SessionTimeoutDuration()})
	controller := session.NewController(cfg.Table.IDColumn, cfg.Table.NameColumn)
	loginService := service.NewLoginService(sessions, loader, controller, logger)

	webHandler, err := web.NewHandler(loginService, logger,
		web.WithTitle(cfg.Server.Title),
		web.WithNameColumn(cfg.Table.NameColumn),
		web.WithErrorDetails(cfg.DevMode),
	)
	if err != nil {
		return fmt.Errorf("failed to create web handler: %w", err)
	}

	transportOpts := []http.Option{
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithLogger(logger),
		http.WithHandler(webHandler.Handler()),
		http.WithSessionCounter(sessionStore),
		http.WithHealthChecker(http.NewHealthChecker(sessionStore, loader, Version)),
	}
	if cfg.Server.TLSEnabled() {
		transportOpts = append(transportOpts, http.WithTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile))
	}
	transport := http.NewHTTPTransport(transportOpts...)
	loader.SetOnLoad(transport.Metrics().RecordTableLoad)
	loginService.SetOnAttempt(transport.Metrics().RecordLoginAttempt)

	if cfg.Source.Watch {
		if csv, ok := source.(*csvsource.Source); ok && !csv.IsRemote() {
			watcher, err := csvsource.NewWatcher(csv.Location(), csvsource.DefaultDebounce, func() {
				loader.Invalidate()
				logger.Info("table file changed, cache invalidated", "path", csv.Location())
			})
			if err != nil {
				logger.Warn("failed to watch table file", "path", csv.Location(), "error", err)
			} else {
				defer watcher.Stop()
			}
		} else {
			logger.Warn("source.watch only applies to a local CSV file; ignoring")
		}
	}

	// Warm the cache. A failure is not fatal: the page reports it per request.
	rows := 0
	if t, err := loader.Table(ctx); err != nil {
		logger.Warn("initial table load failed", "error", err)
	} else {
		rows = t.Len()
	}

	printBanner(Version, cfg.Server.HTTPAddr, cfg.Server.TLSEnabled(), cfg.DevMode, source.Name(), rows)

	return transport.Start(ctx)
}

// printBanner prints a formatted startup banner to stderr.
func printBanner(version, httpAddr string, tls, devMode bool, sourceName string, rows int) {
	const (
		reset  = "\033[0m"
		bold   = "\033[1m"
		cyan   = "\033[36m"
		green  = "\033[32m"
		yellow = "\033[33m"
		dim    = "\033[2m"
	)

	scheme := "http"
	if tls {
		scheme = "https"
	}
	pageURL := fmt.Sprintf("%s://%s/", scheme, httpAddr)
	if strings.HasPrefix(httpAddr, ":") {
		pageURL = fmt.Sprintf("%s://localhost%s/", scheme, httpAddr)
	}

	modeStr := green + "production" + reset
	if devMode {
		modeStr = yellow + "development" + reset
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  %s%s sheetlogin %s%s\n", bold, cyan, version, reset)
	fmt.Fprintf(os.Stderr, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(os.Stderr, "  %-10s %s\n", "Page:", pageURL)
	fmt.Fprintf(os.Stderr, "  %-10s %s\n", "Mode:", modeStr)
	fmt.Fprintf(os.Stderr, "  %-10s %s (%d rows)\n", "Source:", sourceName, rows)
	fmt.Fprintf(os.Stderr, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(os.Stderr, "\n")
}

// pidFilePath returns the standard location for the sheetlogin PID file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".sheetlogin", "server.pid")
	}
	return filepath.Join(os.TempDir(), "sheetlogin-server.pid")
}

// writePIDFile writes the current process PID to the given path, creating
// parent directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
