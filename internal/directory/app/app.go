package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/duosync/internal/directory/service"
	"github.com/aussiebroadwan/duosync/internal/directory/store"
	"github.com/aussiebroadwan/duosync/internal/directory/store/drivers/postgres"
	"github.com/aussiebroadwan/duosync/internal/directory/store/drivers/sqlite"
	"github.com/aussiebroadwan/duosync/pkg/duoapi"
	"github.com/aussiebroadwan/duosync/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// ErrAuthFailed is returned when Duo rejects the configured credentials.
var ErrAuthFailed = errors.New("authentication failed: check the Duo integration key, secret key and API host")

// Application wires configuration, storage, the Duo client and the sync
// service together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	client *duoapi.Client

	syncService *service.SyncService
	scheduler   *service.Scheduler
}

// New creates an Application. cfg must already carry resolved credentials.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "duosync",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// RunOnce performs a single sync and writes the summary to w.
func (app *Application) RunOnce(ctx context.Context, w io.Writer) error {
	ctx = slogx.WithContext(ctx, app.logger)

	summary, err := app.syncService.Run(ctx)
	if duoapi.IsUnauthorized(err) {
		app.logger.Error("duo authentication failed", "host", app.cfg.Duo.Host, "error", err)
		return fmt.Errorf("sync failed: %w: %w", ErrAuthFailed, err)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	return PrintSummary(w, summary)
}

// Watch syncs on the configured interval until SIGINT or SIGTERM.
func (app *Application) Watch(w io.Writer) error {
	ctx, cancel := context.WithCancel(slogx.WithContext(context.Background(), app.logger))
	defer cancel()

	app.scheduler = service.NewScheduler(app.syncService, app.logger, app.cfg.Interval)
	app.scheduler.OnResult = func(summary service.Summary, err error) {
		if err == nil {
			_ = PrintSummary(w, summary)
		}
	}

	app.logger.Info("duosync watching", "interval", app.cfg.Interval, "version", BuildVersion)
	app.scheduler.Start(ctx)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	// Abort an in-flight run, then wait for the loop to exit
	cancel()
	app.scheduler.Stop()
	app.scheduler = nil

	return nil
}

// Shutdown releases the database.
func (app *Application) Shutdown() error {
	if app.scheduler != nil {
		app.scheduler.Stop()
		app.scheduler = nil
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Debug("duosync stopped")
	return nil
}

// initDatabase opens the configured driver and applies migrations.
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(app.cfg.DatabaseDSN)
	case DriverSQLite:
		db, err = sqlite.NewStore(sqliteDSN(app.cfg.DatabaseDSN))
	default:
		err = fmt.Errorf("unsupported database driver %q", app.cfg.DatabaseDriver)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// sqliteDSN turns a bare file path into a URI with a busy timeout. URIs and
// ":memory:" pass through untouched.
func sqliteDSN(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dsn)
}

func (app *Application) initServices() error {
	loc, err := app.cfg.Location()
	if err != nil {
		return err
	}

	client := duoapi.NewClient(duoapi.Credentials{
		IntegrationKey: app.cfg.Duo.IntegrationKey,
		SecretKey:      app.cfg.Duo.SecretKey,
		Host:           app.cfg.Duo.Host,
	}).WithRateLimit(app.cfg.APIRate, app.cfg.APIBurst)
	if app.cfg.APITimeout > 0 {
		client.HTTPClient.Timeout = app.cfg.APITimeout
	}
	client.UserAgent = "duosync/" + BuildVersion
	app.client = client

	app.syncService, err = service.NewSyncService(app.client, app.db, service.SyncOptions{
		Entities:   app.cfg.Entities,
		Location:   loc,
		PruneLinks: app.cfg.PruneLinks,
	})
	if err != nil {
		return fmt.Errorf("invalid sync options: %w", err)
	}
	return nil
}

// PrintSummary renders a run summary as an aligned table followed by one
// line per failure.
func PrintSummary(w io.Writer, s service.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ENTITY\tCREATED\tUPDATED\tFAILED\n")
	for _, row := range []struct {
		name string
		res  service.Result
	}{
		{"groups", s.Groups},
		{"users", s.Users},
		{"tokens", s.Tokens},
		{"phones", s.Phones},
	} {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", row.name, row.res.Created, row.res.Updated, len(row.res.Failed))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "removed stale users: %d (failed %d)\n", s.Removed, len(s.RemoveFailed))
	fmt.Fprintf(w, "links: %d linked, %d unlinked, %d failed\n", s.Linked, s.Unlinked, len(s.LinkFailed))

	var errs []error
	for _, f := range s.Failures() {
		errs = append(errs, f)
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(w, "failures:\n%v\n", err)
	}

	_, err := fmt.Fprintf(w, "run %s finished in %s\n", s.RunID, s.Duration.Round(time.Millisecond))
	return err
}
