package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/devicekeeper/internal/client/client"
	"github.com/dmitrijs2005/devicekeeper/internal/client/models"
	"github.com/dmitrijs2005/devicekeeper/internal/client/repositories/devices"
	"github.com/dmitrijs2005/devicekeeper/internal/common"
	"github.com/dmitrijs2005/devicekeeper/internal/logging"
)

// Report counts what one reconciliation did.
type Report struct {
	Inserted     int // phase A: remote rows new to the store
	Refreshed    int // phase A: synced rows overwritten from the remote
	Preserved    int // phase A: pending rows left untouched
	Bootstrapped int

	Pushed    int // phase B: replays the remote accepted
	Failed    int // phase B: replays the remote rejected
	Malformed int // phase B: replays skipped for missing data
	Remapped  int // phase B: ids re-keyed to server ids

	Purged     int // phase C
	Retained   int // phase C: queued deletes kept for another attempt
	Normalized int // phase D

	StorageErrors int
}

// Reconciler merges a remote snapshot into the local store and drains the
// queue of pending operations. Callers must not run two reconciliations on
// the same store at once.
type Reconciler struct {
	store  devices.Repository
	remote client.Client
	opts   Options
	log    logging.Logger
}

func NewReconciler(store devices.Repository, remote client.Client, opts Options, log logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Nop()
	}
	return &Reconciler{store: store, remote: remote, opts: opts.withDefaults(), log: log.With("module", "reconciler")}
}

// replayState carries the phase B outcome into phases C and D.
type replayState struct {
	confirmedDeletes map[int64]bool
	malformed        map[int64]bool
}

// Reconcile runs pull-merge, bootstrap, push, purge and normalization in
// that order. A storage failure on one record is logged and skipped; the
// returned error is only set when a whole phase could not read the store.
func (r *Reconciler) Reconcile(ctx context.Context, snapshot []*models.Device) (Report, error) {
	var rep Report
	var errs []error

	r.pullMerge(ctx, snapshot, &rep)

	if err := r.bootstrap(ctx, snapshot, &rep); err != nil {
		errs = append(errs, err)
	}

	state, err := r.push(ctx, &rep)
	if err != nil {
		errs = append(errs, err)
	}

	if err := r.purge(ctx, state, &rep); err != nil {
		errs = append(errs, err)
	}

	if err := r.normalize(ctx, state, &rep); err != nil {
		errs = append(errs, err)
	}

	r.log.Info(ctx, "reconciliation finished",
		"inserted", rep.Inserted, "refreshed", rep.Refreshed, "preserved", rep.Preserved,
		"bootstrapped", rep.Bootstrapped, "pushed", rep.Pushed, "failed", rep.Failed,
		"malformed", rep.Malformed, "remapped", rep.Remapped, "purged", rep.Purged,
		"retained", rep.Retained, "normalized", rep.Normalized, "storage_errors", rep.StorageErrors)

	return rep, errors.Join(errs...)
}

// pullMerge is phase A. Remote wins for rows the client has not touched;
// a pending local row always wins.
func (r *Reconciler) pullMerge(ctx context.Context, snapshot []*models.Device, rep *Report) {
	for _, remote := range snapshot {
		local, err := r.store.GetByID(ctx, remote.ID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			d := remote.Clone()
			d.PendingOperation = models.OpSynced
			d.DeleteAttempts = 0
			if err := r.store.Insert(ctx, d); err != nil {
				r.storageFailure(ctx, rep, "insert remote device", remote.ID, err)
				continue
			}
			rep.Inserted++

		case err != nil:
			r.storageFailure(ctx, rep, "lookup device", remote.ID, err)

		case local.IsPending():
			rep.Preserved++
			r.log.Debug(ctx, "local edit wins", "id", remote.ID, "op", local.PendingOperation.String())

		default:
			_, err := r.store.Update(ctx, remote.ID, func(d *models.Device) error {
				if d.IsPending() {
					return nil
				}
				d.CopyStatusFrom(remote)
				return nil
			})
			if err != nil {
				r.storageFailure(ctx, rep, "refresh device", remote.ID, err)
				continue
			}
			rep.Refreshed++
		}
	}
}

// bootstrap fills a store that is still empty after phase A.
func (r *Reconciler) bootstrap(ctx context.Context, snapshot []*models.Device, rep *Report) error {
	n, err := r.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if n != 0 || len(snapshot) == 0 {
		return nil
	}

	r.log.Info(ctx, "initializing empty local store from snapshot", "count", len(snapshot))
	for _, remote := range snapshot {
		d := remote.Clone()
		d.PendingOperation = models.OpSynced
		d.DeleteAttempts = 0
		if err := r.store.Insert(ctx, d); err != nil {
			r.storageFailure(ctx, rep, "bootstrap device", d.ID, err)
			continue
		}
		rep.Bootstrapped++
	}
	return nil
}

// push is phase B: replay every pending row against the remote.
func (r *Reconciler) push(ctx context.Context, rep *Report) (replayState, error) {
	state := replayState{confirmedDeletes: map[int64]bool{}, malformed: map[int64]bool{}}

	pending, err := r.store.Scan(ctx, devices.PendingOnly())
	if err != nil {
		return state, fmt.Errorf("push: %w", err)
	}

	for _, d := range pending {
		switch d.PendingOperation {
		case models.OpAdd:
			echo, err := r.remote.Create(ctx, d.Name, d.OS, d.Manufacturer)
			r.settle(ctx, d, err, rep)
			if err == nil {
				r.afterCreate(ctx, d, echo, rep)
			}

		case models.OpCheckIn:
			r.settle(ctx, d, r.remote.SetCheckedIn(ctx, d.ID), rep)

		case models.OpCheckOut:
			if d.LastCheckedOutBy == nil || d.LastCheckedOutDate == nil {
				state.malformed[d.ID] = true
				rep.Malformed++
				r.log.Warn(ctx, "skipping replay", "id", d.ID, "error", common.ErrMalformedPending)
				continue
			}
			r.settle(ctx, d, r.remote.SetCheckedOut(ctx, d.ID, *d.LastCheckedOutBy, *d.LastCheckedOutDate), rep)

		case models.OpDelete:
			err := r.remote.Delete(ctx, d.ID)
			if err == nil {
				state.confirmedDeletes[d.ID] = true
				rep.Pushed++
				continue
			}
			rep.Failed++
			r.log.Warn(ctx, "remote delete failed", "id", d.ID, "attempt", d.DeleteAttempts+1, "error", err)
			if _, err := r.store.Update(ctx, d.ID, func(d *models.Device) error {
				d.DeleteAttempts++
				return nil
			}); err != nil {
				r.storageFailure(ctx, rep, "count delete attempt", d.ID, err)
			}

		default:
			r.log.Warn(ctx, "unknown pending operation", "id", d.ID, "op", string(d.PendingOperation))
		}
	}
	return state, nil
}

// settle records the outcome of a non-delete replay. Under the optimistic
// policy the tag is cleared whatever err is.
func (r *Reconciler) settle(ctx context.Context, d *models.Device, err error, rep *Report) {
	if err != nil {
		rep.Failed++
		r.log.Warn(ctx, "replay failed", "id", d.ID, "op", d.PendingOperation.String(), "error", err)
		if r.opts.Policy != PolicyOptimistic {
			return
		}
	} else {
		rep.Pushed++
	}

	op := d.PendingOperation
	if _, err := r.store.Update(ctx, d.ID, func(cur *models.Device) error {
		if cur.PendingOperation == op {
			cur.PendingOperation = models.OpSynced
		}
		return nil
	}); err != nil {
		r.storageFailure(ctx, rep, "clear pending tag", d.ID, err)
	}
}

// afterCreate adopts the server id and pushes a checkout made while the
// device only existed locally.
func (r *Reconciler) afterCreate(ctx context.Context, d *models.Device, echo *models.Device, rep *Report) {
	id := r.adoptServerID(ctx, d.ID, echo, rep)

	if !d.IsCheckedOut || d.LastCheckedOutBy == nil || d.LastCheckedOutDate == nil {
		return
	}
	if err := r.remote.SetCheckedOut(ctx, id, *d.LastCheckedOutBy, *d.LastCheckedOutDate); err != nil {
		r.log.Warn(ctx, "checkout of new device failed", "id", id, "error", err)
		if r.opts.Policy == PolicyOptimistic {
			return
		}
		if _, err := r.store.Update(ctx, id, func(cur *models.Device) error {
			cur.PendingOperation = models.OpCheckOut
			return nil
		}); err != nil {
			r.storageFailure(ctx, rep, "requeue checkout", id, err)
		}
	}
}

// adoptServerID re-keys the local row to the id the server echoed and
// returns the id the row ends up with.
func (r *Reconciler) adoptServerID(ctx context.Context, localID int64, echo *models.Device, rep *Report) int64 {
	if !r.opts.AdoptServerIDs || echo == nil || echo.ID == localID {
		return localID
	}
	if _, err := r.store.GetByID(ctx, echo.ID); !errors.Is(err, common.ErrNotFound) {
		r.log.Warn(ctx, "server id already used locally, keeping client id", "id", localID, "server_id", echo.ID)
		return localID
	}
	if err := r.store.ChangeID(ctx, localID, echo.ID); err != nil {
		r.storageFailure(ctx, rep, "adopt server id", localID, err)
		return localID
	}
	rep.Remapped++
	r.log.Debug(ctx, "adopted server id", "id", localID, "server_id", echo.ID)
	return echo.ID
}

// purge is phase C.
func (r *Reconciler) purge(ctx context.Context, state replayState, rep *Report) error {
	deletes, err := r.store.Scan(ctx, devices.WithOperation(models.OpDelete))
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	for _, d := range deletes {
		if r.opts.Policy != PolicyOptimistic && !state.confirmedDeletes[d.ID] {
			if d.DeleteAttempts < r.opts.MaxDeleteAttempts {
				rep.Retained++
				continue
			}
			r.log.Warn(ctx, "giving up remote delete", "id", d.ID, "attempts", d.DeleteAttempts)
		}
		if err := r.store.DeleteByID(ctx, d.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			r.storageFailure(ctx, rep, "purge device", d.ID, err)
			continue
		}
		rep.Purged++
	}
	return nil
}

// normalize is phase D. The optimistic policy clears every remaining tag;
// the confirmed policy only clears tags that can never replay.
func (r *Reconciler) normalize(ctx context.Context, state replayState, rep *Report) error {
	pending, err := r.store.Scan(ctx, devices.PendingOnly())
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	for _, d := range pending {
		if d.PendingOperation == models.OpDelete {
			continue
		}
		if r.opts.Policy != PolicyOptimistic && d.PendingOperation.Known() && !state.malformed[d.ID] {
			continue
		}
		if _, err := r.store.Update(ctx, d.ID, func(cur *models.Device) error {
			cur.PendingOperation = models.OpSynced
			return nil
		}); err != nil {
			r.storageFailure(ctx, rep, "normalize tag", d.ID, err)
			continue
		}
		rep.Normalized++
	}
	return nil
}

func (r *Reconciler) storageFailure(ctx context.Context, rep *Report, op string, id int64, err error) {
	rep.StorageErrors++
	r.log.Error(ctx, "storage failure, skipping record", "op", op, "id", id, "error", err)
}
