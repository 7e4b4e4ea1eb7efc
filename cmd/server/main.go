/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reminder bridge server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (YAML, .env, environment, flags)
  3. Initialize SQLite run history
  4. Build the sheet gateway (google, xlsx or demo memory sheet)
  5. Build and start the messaging channel (whatsapp or email)
  6. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (optional)
  -port    HTTP server port (overrides config)
  -db      SQLite run history path (overrides config)
           Use ":memory:" for in-memory database
  -demo    Use a built-in in-memory sheet (mixed, backlog, offset)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests, including a running pass (30s timeout)
  3. Disconnect the messaging channel
  4. Close database connection
  5. Exit

EXAMPLES:
  # Google Sheets + WhatsApp, pair at http://localhost:8080/qr
  SPREADSHEET_ID=1AbC... DESTINATIONS=5215550001234 ./server

  # Local workbook + e-mail
  ./server -config=config.yaml

  # Demo sheet
  ./server -demo=mixed -db=":memory:"

SEE ALSO:
  - config/config.go: Keys and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Run history
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warp/reminder-bridge/api"
	"github.com/warp/reminder-bridge/channel"
	"github.com/warp/reminder-bridge/config"
	"github.com/warp/reminder-bridge/reminder"
	"github.com/warp/reminder-bridge/sheet"
	"github.com/warp/reminder-bridge/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite run history path (overrides config)")
	demo := flag.String("demo", "", "Use a built-in demo sheet: "+strings.Join(sheet.ScenarioIDs(), ", "))
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *demo != "" {
		cfg.Sheet.Backend = config.SheetMemory
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, *demo, logger); err != nil {
		logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, demo string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, _ := cfg.Location()
	delay, _ := cfg.Delay()

	// Initialize run history
	runs, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer runs.Close()

	// Sheet gateway
	store, err := newSheet(ctx, cfg, demo, reminder.Today(loc))
	if err != nil {
		return err
	}

	// Messaging channel
	gateway, session, pairer, shutdown, err := newChannel(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	// Reminder service
	svc := reminder.NewService(store, gateway, cfg.Destinations)
	svc.Engine.Delay = delay
	svc.Engine.Logger = logger
	svc.Location = loc
	svc.DefaultMode = reminder.ParseMode(cfg.SendMode)
	svc.Logger = logger

	handler := api.NewHandler(svc, runs, session)
	handler.Pairer = pairer
	handler.Logger = logger

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // a pass over a long sheet is paced by send_delay
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errc := make(chan error, 1)
	go func() {
		logger.Info("server_starting",
			"addr", server.Addr,
			"sheet", cfg.Sheet.Backend,
			"channel", cfg.Channel.Backend,
			"destinations", len(cfg.Destinations),
			"mode", svc.DefaultMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	// Wait for interrupt signal
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server_stopped")
	return nil
}

func newSheet(ctx context.Context, cfg config.Config, demo string, today reminder.Date) (reminder.StoreGateway, error) {
	if demo != "" {
		return sheet.Demo(demo, today)
	}

	rng, err := sheet.ParseRange(cfg.Sheet.Range)
	if err != nil {
		return nil, fmt.Errorf("sheet range: %w", err)
	}

	switch cfg.Sheet.Backend {
	case config.SheetGoogle:
		return sheet.NewGoogle(ctx, sheet.GoogleConfig{
			SpreadsheetID:   cfg.Sheet.SpreadsheetID,
			Range:           rng,
			CredentialsFile: cfg.Sheet.CredentialsFile,
		})
	case config.SheetXLSX:
		return sheet.NewWorkbook(cfg.Sheet.XLSXPath, rng), nil
	default:
		return sheet.NewMemory(rng, nil), nil
	}
}

func newChannel(ctx context.Context, cfg config.Config, logger *slog.Logger) (reminder.ChannelGateway, *channel.Session, api.Pairer, func(), error) {
	switch cfg.Channel.Backend {
	case config.ChannelEmail:
		email := channel.NewEmail(channel.EmailConfig{
			APIKey:  cfg.Channel.ResendAPIKey,
			From:    cfg.Channel.EmailFrom,
			Subject: cfg.Channel.EmailSubject,
		}, logger)
		if !email.IsReady() {
			logger.Warn("email_channel_unconfigured", "hint", "set RESEND_API_KEY and EMAIL_FROM")
		}
		return email, email.Session(), nil, func() {}, nil

	default:
		wa, err := channel.NewWhatsApp(ctx, channel.WhatsAppConfig{
			SessionDB: cfg.Channel.SessionDB,
			LogLevel:  whatsmeowLevel(cfg.LogLevel),
		}, logger)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("whatsapp: %w", err)
		}
		if err := wa.Start(); err != nil {
			// Not fatal: /api/session/pair retries.
			logger.Error("whatsapp_start_failed", "error", err)
		}
		return wa, wa.Session(), wa, wa.Stop, nil
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

// whatsmeowLevel keeps the client library one step quieter than the app.
func whatsmeowLevel(level string) string {
	if strings.EqualFold(level, "debug") {
		return "INFO"
	}
	return "WARN"
}
