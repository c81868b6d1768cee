package devices

import (
	"context"

	"github.com/dmitrijs2005/devicekeeper/internal/client/models"
)

// Mutator changes a device in place. Returning an error aborts the update.
type Mutator func(d *models.Device) error

// Repository describes the local store for device records.
type Repository interface {
	// Insert adds a new record. It fails if the id is already present.
	Insert(ctx context.Context, d *models.Device) error

	// GetByID returns the record with the given id or common.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.Device, error)

	// Update applies fn to the stored record and persists the result.
	Update(ctx context.Context, id int64, fn Mutator) (*models.Device, error)

	// DeleteByID removes the record physically.
	DeleteByID(ctx context.Context, id int64) error

	// Scan returns the records matching f ordered by id.
	Scan(ctx context.Context, f Filter) ([]*models.Device, error)

	// Count returns the total number of records.
	Count(ctx context.Context) (int, error)

	// ChangeID re-keys a record, e.g. to adopt a server-assigned id.
	ChangeID(ctx context.Context, oldID, newID int64) error

	// Clear removes every record.
	Clear(ctx context.Context) error
}

// Filter selects records by their pending operation tag.
type Filter struct {
	pendingOnly bool
	op          *models.PendingOperation
}

// All matches every record.
func All() Filter { return Filter{} }

// PendingOnly matches records whose tag is not OpSynced.
func PendingOnly() Filter { return Filter{pendingOnly: true} }

// WithOperation matches records tagged op.
func WithOperation(op models.PendingOperation) Filter { return Filter{op: &op} }

func (f Filter) where() (string, []any) {
	switch {
	case f.op != nil:
		return " WHERE offline_operation = ?", []any{string(*f.op)}
	case f.pendingOnly:
		return " WHERE offline_operation <> ''", nil
	default:
		return "", nil
	}
}
