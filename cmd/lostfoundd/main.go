package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jongsul/lostfound/internal/api"
	"github.com/jongsul/lostfound/internal/awsutil"
	"github.com/jongsul/lostfound/internal/config"
	"github.com/jongsul/lostfound/internal/db"
	"github.com/jongsul/lostfound/internal/ingest"
	"github.com/jongsul/lostfound/internal/locker"
	"github.com/jongsul/lostfound/internal/mailer"
	"github.com/jongsul/lostfound/internal/photo"
	"github.com/jongsul/lostfound/internal/service"
	"github.com/jongsul/lostfound/internal/store"
	"github.com/jongsul/lostfound/internal/verify"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	fs := flag.NewFlagSet("lostfoundd", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", ".", "")
	fs.StringVar(&configPath, "c", ".", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: lostfoundd [flags]

Flags:
  -c, -config <dir>   directory containing config.yaml (default: .)
  -h, -help           show this help and exit

All settings can also be set via LOSTFOUND_* environment variables.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	// JWT secret comes from config when set, otherwise it is generated once
	// and persisted in the settings table.
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = store.GetJWTSecret(context.Background(), database)
		if err != nil {
			slog.Error("failed to get JWT secret", "error", err)
			os.Exit(1)
		}
	}

	awsCfg, err := awsutil.Load(context.Background(), cfg.AWS.Region)
	if err != nil {
		slog.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dispatcher := locker.NewFromConfig(awsCfg, cfg.AWS.LockerTopicPrefix)

	var photos *photo.Store
	if cfg.AWS.PhotoBucket != "" {
		photos = photo.NewFromConfig(awsCfg, cfg.AWS.PhotoBucket)
	} else {
		slog.Warn("photo bucket not configured, photo upload disabled")
	}

	var verifier *verify.Repo
	if cfg.AWS.VerificationTable != "" {
		verifier = verify.NewFromConfig(awsCfg, cfg.AWS.VerificationTable, jwtSecret)
	} else {
		slog.Warn("verification table not configured, signup disabled")
	}

	sender := &mailer.SMTP{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}

	svc := service.New(database, dispatcher, service.Config{
		ClaimFrom: cfg.ClaimFrom,
		CodeTTL:   cfg.CodeTTL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AWS.IngestQueueURL != "" {
		consumer := ingest.NewConsumerFromConfig(awsCfg, cfg.AWS.IngestQueueURL, svc)
		go consumer.Run(ctx)
		slog.Info("ingest consumer started", "queue", cfg.AWS.IngestQueueURL)
	}

	handler := api.NewRouter(api.Deps{
		DB:        database,
		JWTSecret: jwtSecret,
		Service:   svc,
		Locker:    dispatcher,
		Photos:    photos,
		Verifier:  verifier,
		Mailer:    sender,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}
