package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/client/client"
	"github.com/dmitrijs2005/devicekeeper/internal/client/models"
	"github.com/dmitrijs2005/devicekeeper/internal/client/repositories/devices"
	"github.com/dmitrijs2005/devicekeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/devicekeeper/internal/common"
	"github.com/dmitrijs2005/devicekeeper/internal/logging"
	"github.com/google/uuid"
)

// Mode is the connectivity state of one sync session.
type Mode int

const (
	ModeOffline Mode = iota
	ModeOnline
)

func (m Mode) String() string {
	if m == ModeOnline {
		return "online"
	}
	return "offline"
}

// Session describes the last completed Refresh.
type Session struct {
	ID       string
	Mode     Mode
	Report   Report
	Finished time.Time
}

const maxIDAttempts = 3

// DeviceService is the API the front end uses. Every mutation is written to
// the local store first; when the remote is reachable it is pushed right
// away and the row is marked synced on success.
//
// Refresh runs exclusively. Mutations run concurrently with each other but
// are serialized per device id, and never overlap a Refresh.
type DeviceService struct {
	remote     client.Client
	reach      client.Reachability
	store      devices.Repository
	meta       metadata.Repository
	reconciler *Reconciler
	log        logging.Logger
	now        func() time.Time

	sessionMu sync.RWMutex
	ids       *idLocks

	listMu  sync.RWMutex
	working []*models.Device
	last    *Session
}

func NewDeviceService(remote client.Client, reach client.Reachability, store devices.Repository,
	meta metadata.Repository, opts Options, log logging.Logger) *DeviceService {
	if log == nil {
		log = logging.Nop()
	}
	return &DeviceService{
		remote:     remote,
		reach:      reach,
		store:      store,
		meta:       meta,
		reconciler: NewReconciler(store, remote, opts, log),
		log:        log.With("module", "devices"),
		now:        time.Now,
		ids:        newIDLocks(),
	}
}

// Refresh runs one sync session and returns the new working list. The
// mode is decided once: online sessions fetch the remote list and
// reconcile, falling back to offline when the fetch fails.
func (s *DeviceService) Refresh(ctx context.Context) ([]*models.Device, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.refresh(ctx)
}

// TryRefresh is Refresh without waiting: it fails with
// common.ErrSyncInProgress while another session or mutation holds the
// session lock.
func (s *DeviceService) TryRefresh(ctx context.Context) ([]*models.Device, error) {
	if !s.sessionMu.TryLock() {
		return nil, common.ErrSyncInProgress
	}
	defer s.sessionMu.Unlock()
	return s.refresh(ctx)
}

func (s *DeviceService) refresh(ctx context.Context) ([]*models.Device, error) {
	sess := &Session{ID: uuid.NewString(), Mode: ModeOffline}
	log := s.log.With("session_id", sess.ID)

	if s.reach.IsOnline(ctx) {
		sess.Mode = ModeOnline
	}

	if sess.Mode == ModeOnline {
		snapshot, err := s.remote.List(ctx)
		if err != nil {
			log.Warn(ctx, "remote list failed, using local data", "error", err)
			sess.Mode = ModeOffline
		} else {
			rep, err := s.reconciler.Reconcile(ctx, snapshot)
			sess.Report = rep
			if err != nil {
				log.Error(ctx, "reconciliation incomplete", "error", err)
			}
			if err := metadata.SetTime(ctx, s.meta, metadata.KeyLastSyncAt, s.now()); err != nil {
				log.Error(ctx, "failed to record sync time", "error", err)
			}
		}
	}

	list, err := s.loadWorkingList(ctx)
	if err != nil {
		return nil, err
	}

	sess.Finished = s.now()
	s.listMu.Lock()
	s.working = list
	s.last = sess
	s.listMu.Unlock()

	log.Info(ctx, "refresh finished", "mode", sess.Mode.String(), "devices", len(list))
	return cloneList(list), nil
}

// loadWorkingList reads the store, hiding rows queued for deletion.
func (s *DeviceService) loadWorkingList(ctx context.Context) ([]*models.Device, error) {
	all, err := s.store.Scan(ctx, devices.All())
	if err != nil {
		return nil, fmt.Errorf("load local devices: %w", err)
	}
	list := make([]*models.Device, 0, len(all))
	for _, d := range all {
		if d.PendingOperation == models.OpDelete {
			continue
		}
		list = append(list, d)
	}
	return list, nil
}

// Devices returns a copy of the working list.
func (s *DeviceService) Devices() []*models.Device {
	s.listMu.RLock()
	defer s.listMu.RUnlock()
	return cloneList(s.working)
}

// Device returns one device from the local store.
func (s *DeviceService) Device(ctx context.Context, id int64) (*models.Device, error) {
	d, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.PendingOperation == models.OpDelete {
		return nil, fmt.Errorf("device %d: %w", id, common.ErrNotFound)
	}
	return d, nil
}

// LastSession describes the last Refresh, or nil before the first one.
func (s *DeviceService) LastSession() *Session {
	s.listMu.RLock()
	defer s.listMu.RUnlock()
	if s.last == nil {
		return nil
	}
	c := *s.last
	return &c
}

// LastSyncAt returns when an online session last reconciled.
func (s *DeviceService) LastSyncAt(ctx context.Context) (time.Time, error) {
	return metadata.GetTime(ctx, s.meta, metadata.KeyLastSyncAt)
}

// AddDevice stores a new device tagged for creation and, when online,
// creates it remotely.
func (s *DeviceService) AddDevice(ctx context.Context, name, os, manufacturer string) (*models.Device, error) {
	name, os, manufacturer = strings.TrimSpace(name), strings.TrimSpace(os), strings.TrimSpace(manufacturer)

	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()

	d, err := s.insertNew(ctx, name, os, manufacturer)
	if err != nil {
		return nil, err
	}

	unlock := s.ids.Lock(d.ID)
	defer unlock()

	if s.reach.IsOnline(ctx) {
		echo, err := s.remote.Create(ctx, name, os, manufacturer)
		if err != nil {
			s.log.Warn(ctx, "create queued for next sync", "id", d.ID, "error", err)
		} else {
			d = s.markSynced(ctx, d, models.OpAdd)
			d = s.adoptEcho(ctx, d, echo)
		}
	}

	s.upsertWorking(d)
	return d.Clone(), nil
}

func (s *DeviceService) insertNew(ctx context.Context, name, os, manufacturer string) (*models.Device, error) {
	var lastErr error
	for i := 0; i < maxIDAttempts; i++ {
		d, err := models.NewOfflineDevice(name, os, manufacturer)
		if err != nil {
			return nil, err
		}
		if _, err := s.store.GetByID(ctx, d.ID); !errors.Is(err, common.ErrNotFound) {
			if err == nil {
				err = fmt.Errorf("%w: id %d already taken", common.ErrStorage, d.ID)
			}
			lastErr = err
			continue
		}
		if err := s.store.Insert(ctx, d); err != nil {
			lastErr = err
			continue
		}
		return d, nil
	}
	return nil, fmt.Errorf("add device: %w", lastErr)
}

// adoptEcho re-keys a freshly created device to the server id.
func (s *DeviceService) adoptEcho(ctx context.Context, d *models.Device, echo *models.Device) *models.Device {
	var rep Report
	id := s.reconciler.adoptServerID(ctx, d.ID, echo, &rep)
	if id != d.ID {
		s.dropWorking(d.ID)
		d.ID = id
	}
	return d
}

// CheckIn marks a device as returned.
func (s *DeviceService) CheckIn(ctx context.Context, id int64) (*models.Device, error) {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	unlock := s.ids.Lock(id)
	defer unlock()

	d, err := s.store.Update(ctx, id, func(d *models.Device) error {
		if d.PendingOperation == models.OpDelete {
			return fmt.Errorf("device %d: %w", id, common.ErrNotFound)
		}
		d.CheckIn()
		if d.PendingOperation != models.OpAdd {
			d.PendingOperation = models.OpCheckIn
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("check in: %w", err)
	}

	if d.PendingOperation == models.OpCheckIn && s.reach.IsOnline(ctx) {
		if err := s.remote.SetCheckedIn(ctx, id); err != nil {
			s.log.Warn(ctx, "check-in queued for next sync", "id", id, "error", err)
		} else {
			d = s.markSynced(ctx, d, models.OpCheckIn)
		}
	}

	s.upsertWorking(d)
	return d.Clone(), nil
}

// CheckOut records that by took the device now. An empty name is rejected
// before the store is touched.
func (s *DeviceService) CheckOut(ctx context.Context, id int64, by string) (*models.Device, error) {
	by = strings.TrimSpace(by)
	if by == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}

	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	unlock := s.ids.Lock(id)
	defer unlock()

	at := s.now().Truncate(time.Second)
	d, err := s.store.Update(ctx, id, func(d *models.Device) error {
		if d.PendingOperation == models.OpDelete {
			return fmt.Errorf("device %d: %w", id, common.ErrNotFound)
		}
		d.CheckOut(by, at)
		if d.PendingOperation != models.OpAdd {
			d.PendingOperation = models.OpCheckOut
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("check out: %w", err)
	}

	if d.PendingOperation == models.OpCheckOut && s.reach.IsOnline(ctx) {
		if err := s.remote.SetCheckedOut(ctx, id, by, at); err != nil {
			s.log.Warn(ctx, "check-out queued for next sync", "id", id, "error", err)
		} else {
			d = s.markSynced(ctx, d, models.OpCheckOut)
		}
	}

	s.upsertWorking(d)
	return d.Clone(), nil
}

// Delete removes a device. A device that never reached the remote is
// dropped locally; otherwise the row is tagged for deletion and removed
// once the remote confirms.
func (s *DeviceService) Delete(ctx context.Context, id int64) error {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	unlock := s.ids.Lock(id)
	defer unlock()

	d, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if d.PendingOperation == models.OpDelete {
		return fmt.Errorf("delete: device %d: %w", id, common.ErrNotFound)
	}

	if d.PendingOperation == models.OpAdd {
		if err := s.store.DeleteByID(ctx, id); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		s.dropWorking(id)
		return nil
	}

	if _, err := s.store.Update(ctx, id, func(d *models.Device) error {
		d.PendingOperation = models.OpDelete
		return nil
	}); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	s.dropWorking(id)

	if !s.reach.IsOnline(ctx) {
		return nil
	}
	if err := s.remote.Delete(ctx, id); err != nil {
		s.log.Warn(ctx, "delete queued for next sync", "id", id, "error", err)
		return nil
	}
	if err := s.store.DeleteByID(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
		s.log.Error(ctx, "failed to remove deleted device", "id", id, "error", err)
	}
	return nil
}

// Reset wipes the local store and bookkeeping.
func (s *DeviceService) Reset(ctx context.Context) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("reset devices: %w", err)
	}
	if err := s.meta.Clear(ctx); err != nil {
		return fmt.Errorf("reset metadata: %w", err)
	}

	s.listMu.Lock()
	s.working = nil
	s.last = nil
	s.listMu.Unlock()

	s.log.Info(ctx, "local data cleared")
	return nil
}

// markSynced clears op on the stored row after the remote accepted it. On
// a storage failure the row stays queued and is returned unchanged.
func (s *DeviceService) markSynced(ctx context.Context, d *models.Device, op models.PendingOperation) *models.Device {
	updated, err := s.store.Update(ctx, d.ID, func(cur *models.Device) error {
		if cur.PendingOperation == op {
			cur.PendingOperation = models.OpSynced
		}
		return nil
	})
	if err != nil {
		s.log.Error(ctx, "failed to mark device synced", "id", d.ID, "error", err)
		return d
	}
	return updated
}

func (s *DeviceService) upsertWorking(d *models.Device) {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	for i, cur := range s.working {
		if cur.ID == d.ID {
			s.working[i] = d.Clone()
			return
		}
	}
	s.working = append(s.working, d.Clone())
}

func (s *DeviceService) dropWorking(id int64) {
	s.listMu.Lock()
	defer s.listMu.Unlock()
	for i, cur := range s.working {
		if cur.ID == id {
			s.working = append(s.working[:i], s.working[i+1:]...)
			return
		}
	}
}

func cloneList(list []*models.Device) []*models.Device {
	out := make([]*models.Device, 0, len(list))
	for _, d := range list {
		out = append(out, d.Clone())
	}
	return out
}
