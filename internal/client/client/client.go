package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/client/models"
)

// Client is the remote device service. Every failure, whatever its cause,
// is reported as an error wrapping common.ErrTransport.
type Client interface {
	List(ctx context.Context) ([]*models.Device, error)
	// Create returns the device echoed by the server, or nil when the
	// response body carried none.
	Create(ctx context.Context, name, os, manufacturer string) (*models.Device, error)
	SetCheckedIn(ctx context.Context, id int64) error
	SetCheckedOut(ctx context.Context, id int64, by string, at time.Time) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close() error
}
