// Package devices provides the client-side persistence layer for the device
// catalog (the local store).
//
// # Overview
//
// Repository describes point lookups, predicate scans and single-row
// mutations over models.Device. SQLiteRepository persists rows in the
// `devices` table created by internal/client/migrations.
//
// Every method commits on its own; there is no transaction spanning calls.
// Update runs its read-modify-write inside one transaction so a mutator
// always sees the committed row.
//
// Missing rows are reported with common.ErrNotFound, driver failures with
// common.ErrStorage.
//
// Typical usage
//
//	repo := devices.NewSQLiteRepository(db)
//	_ = repo.Insert(ctx, d)
//	pending, _ := repo.Scan(ctx, devices.PendingOnly())
//	_, _ = repo.Update(ctx, id, func(d *models.Device) error {
//	    d.PendingOperation = models.OpSynced
//	    return nil
//	})
package devices
