// Package server initializes and runs the reference device service. It
// picks the storage backend, runs migrations, serves the HTTP API and
// shuts down gracefully on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/dmitrijs2005/devicekeeper/internal/logging"
	"github.com/dmitrijs2005/devicekeeper/internal/server/api"
	"github.com/dmitrijs2005/devicekeeper/internal/server/config"
	"github.com/dmitrijs2005/devicekeeper/internal/server/repositories/devices"
	"github.com/dmitrijs2005/devicekeeper/internal/server/repositories/repomanager"
)

type App struct {
	config *config.Config
	logger logging.Logger
	repo   devices.Repository
	db     *sql.DB
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger.With("module", "server")}

	if c.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database DSN configured, devices are kept in memory")
		app.repo = devices.NewMemoryRepository()
		return app, nil
	}

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := app.prepareDatabase(ctx, db, rm); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app.db = db
	app.repo = rm.Devices(db)
	return app, nil
}

// prepareDatabase pings and migrates, retrying while the database is still
// coming up.
func (app *App) prepareDatabase(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager) error {
	return retry.Do(func() error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		return rm.RunMigrations(ctx, db)
	},
		retry.Context(ctx),
		retry.Attempts(app.config.ConnectAttempts),
		retry.Delay(app.config.ConnectBackoff),
		retry.MaxDelay(10*app.config.ConnectBackoff),
		retry.OnRetry(func(n uint, err error) {
			app.logger.Warn(ctx, "database not ready", "attempt", n+1, "error", err)
		}),
	)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a termination signal arrives or ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	ln, err := net.Listen("tcp", app.config.Addr)
	if err != nil {
		return err
	}
	return app.serve(ctx, ln)
}

func (app *App) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           api.NewHandlers(app.repo, app.logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "Starting app...", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		app.close(ctx)
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errCh; !errors.Is(serveErr, http.ErrServerClosed) && err == nil {
		err = serveErr
	}
	app.close(ctx)
	return err
}

func (app *App) close(ctx context.Context) {
	if app.db == nil {
		return
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "close database", "error", err)
	}
}
