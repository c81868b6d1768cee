package devices

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/common"
	"github.com/dmitrijs2005/devicekeeper/internal/server/models"
)

// MemoryRepository keeps devices in a map. Ids start at 1 and are never
// reused.
type MemoryRepository struct {
	mu      sync.Mutex
	devices map[int64]*models.Device
	nextID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{devices: map[int64]*models.Device{}, nextID: 1}
}

func (r *MemoryRepository) List(ctx context.Context) ([]*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*models.Device, 0, len(r.devices))
	for _, d := range r.devices {
		result = append(result, clone(d))
	}
	slices.SortFunc(result, func(a, b *models.Device) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return result, nil
}

func (r *MemoryRepository) Create(ctx context.Context, d *models.Device) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := &models.Device{ID: r.nextID, Name: d.Name, OS: d.OS, Manufacturer: d.Manufacturer}
	r.nextID++
	r.devices[stored.ID] = stored
	return clone(stored), nil
}

func (r *MemoryRepository) SetCheckedIn(ctx context.Context, id int64) (*models.Device, error) {
	return r.update(id, func(d *models.Device) {
		d.IsCheckedOut = false
	})
}

func (r *MemoryRepository) SetCheckedOut(ctx context.Context, id int64, by string, at time.Time) (*models.Device, error) {
	return r.update(id, func(d *models.Device) {
		d.IsCheckedOut = true
		d.LastCheckedOutBy = &by
		d.LastCheckedOutDate = &at
	})
}

func (r *MemoryRepository) update(id int64, fn func(*models.Device)) (*models.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	fn(d)
	return clone(d), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.devices, id)
	return nil
}

func clone(d *models.Device) *models.Device {
	c := *d
	if d.LastCheckedOutBy != nil {
		by := *d.LastCheckedOutBy
		c.LastCheckedOutBy = &by
	}
	if d.LastCheckedOutDate != nil {
		at := *d.LastCheckedOutDate
		c.LastCheckedOutDate = &at
	}
	return &c
}
