package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/client/client"
	"github.com/dmitrijs2005/devicekeeper/internal/client/config"
	"github.com/dmitrijs2005/devicekeeper/internal/client/models"
	"github.com/dmitrijs2005/devicekeeper/internal/client/services"
	"github.com/dmitrijs2005/devicekeeper/internal/logging"
)

// deviceService is the part of services.DeviceService the commands use.
type deviceService interface {
	Refresh(ctx context.Context) ([]*models.Device, error)
	Devices() []*models.Device
	Device(ctx context.Context, id int64) (*models.Device, error)
	AddDevice(ctx context.Context, name, os, manufacturer string) (*models.Device, error)
	CheckIn(ctx context.Context, id int64) (*models.Device, error)
	CheckOut(ctx context.Context, id int64, by string) (*models.Device, error)
	Delete(ctx context.Context, id int64) error
	Reset(ctx context.Context) error
	LastSession() *services.Session
	LastSyncAt(ctx context.Context) (time.Time, error)
}

type App struct {
	config  *config.Config
	service deviceService
	watcher *client.Watcher
	log     logging.Logger
	reader  *bufio.Reader
	out     io.Writer
	closers []io.Closer
}

// NewApp opens the local database, builds the remote client and the
// device service.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	repos, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	apiClient, err := client.NewHTTPClient(c.ServerURL, c.RequestTimeout, log)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	policy, err := services.ParseSyncPolicy(c.SyncPolicy)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	watcher := client.NewWatcher(apiClient, c.OnlineCheckInterval, c.RequestTimeout, log)
	svc := services.NewDeviceService(apiClient, watcher, repos.Devices, repos.Metadata, services.Options{
		Policy:            policy,
		MaxDeleteAttempts: c.MaxDeleteAttempts,
		AdoptServerIDs:    c.AdoptServerIDs,
	}, log)

	return &App{
		config:  c,
		service: svc,
		watcher: watcher,
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		closers: []io.Closer{apiClient, repos},
	}, nil
}

// Close releases the remote client and the database.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (a *App) getStatus() string {
	mode := services.ModeOffline
	if a.watcher.IsOnline(context.Background()) {
		mode = services.ModeOnline
	}
	return fmt.Sprintf("(%s)", mode)
}

// Run checks connectivity, loads the working list and blocks in the REPL
// until the user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.watcher.Check(ctx)
	go a.watcher.Run(ctx)

	if interactive() {
		printlnFn("Device catalog client (type 'help' for commands)")
	}
	if err := a.Refresh(ctx); err != nil {
		printlnFn("Error:", err)
	}

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}
