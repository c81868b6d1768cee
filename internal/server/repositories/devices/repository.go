// Package devices stores the catalog of the reference device service.
// PostgresRepository is used when a DSN is configured, MemoryRepository
// otherwise.
package devices

import (
	"context"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/server/models"
)

// Repository returns common.ErrNotFound for unknown ids.
type Repository interface {
	List(ctx context.Context) ([]*models.Device, error)
	Create(ctx context.Context, d *models.Device) (*models.Device, error)
	SetCheckedIn(ctx context.Context, id int64) (*models.Device, error)
	SetCheckedOut(ctx context.Context, id int64, by string, at time.Time) (*models.Device, error)
	Delete(ctx context.Context, id int64) error
}
