package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/client/models"
	"github.com/dmitrijs2005/devicekeeper/internal/common"
	"github.com/dmitrijs2005/devicekeeper/internal/dbx"
)

const deviceColumns = `id, device, os, manufacturer, is_checked_out,
	last_checked_out_by, last_checked_out_date, offline_operation, delete_attempts`

// SQLiteRepository implements Repository on top of a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository bound to db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func storageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %w", common.ErrStorage, fmt.Errorf(format, args...))
}

func (r *SQLiteRepository) Insert(ctx context.Context, d *models.Device) error {
	return insert(ctx, r.db, d)
}

func insert(ctx context.Context, db dbx.DBTX, d *models.Device) error {
	query := `INSERT INTO devices (` + deviceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, d.ID, d.Name, d.OS, d.Manufacturer, d.IsCheckedOut,
		nullString(d.LastCheckedOutBy), nullTime(d.LastCheckedOutDate), string(d.PendingOperation), d.DeleteAttempts)
	if err != nil {
		return storageErr("failed to insert device %d: %w", d.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.Device, error) {
	return getByID(ctx, r.db, id)
}

func getByID(ctx context.Context, db dbx.DBTX, id int64) (*models.Device, error) {
	row := db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("failed to get device %d: %w", id, err)
	}
	return d, nil
}

// Update reads, mutates and writes the row in a single transaction.
func (r *SQLiteRepository) Update(ctx context.Context, id int64, fn Mutator) (*models.Device, error) {
	var out *models.Device
	err := dbx.WithTx(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		d, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
		d.ID = id

		query := `UPDATE devices SET is_checked_out = ?, last_checked_out_by = ?,
			last_checked_out_date = ?, offline_operation = ?, delete_attempts = ?
			WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query, d.IsCheckedOut, nullString(d.LastCheckedOutBy),
			nullTime(d.LastCheckedOutDate), string(d.PendingOperation), d.DeleteAttempts, id); err != nil {
			return storageErr("failed to update device %d: %w", id, err)
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return storageErr("failed to delete device %d: %w", id, err)
	}
	n, err := dbx.Affected(res)
	if err != nil {
		return storageErr("%w", err)
	}
	if n == 0 {
		return fmt.Errorf("device %d: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Scan(ctx context.Context, f Filter) ([]*models.Device, error) {
	where, args := f.where()
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, storageErr("failed to select devices: %w", err)
	}
	defer rows.Close()

	var result []*models.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, storageErr("failed to scan device row: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to iterate device rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, storageErr("failed to count devices: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ChangeID(ctx context.Context, oldID, newID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE devices SET id = ? WHERE id = ?`, newID, oldID)
	if err != nil {
		return storageErr("failed to change device id %d -> %d: %w", oldID, newID, err)
	}
	n, err := dbx.Affected(res)
	if err != nil {
		return storageErr("%w", err)
	}
	if n == 0 {
		return fmt.Errorf("device %d: %w", oldID, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM devices`); err != nil {
		return storageErr("failed to clear devices: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(s rowScanner) (*models.Device, error) {
	var (
		d    models.Device
		by   sql.NullString
		date sql.NullString
		op   string
	)
	if err := s.Scan(&d.ID, &d.Name, &d.OS, &d.Manufacturer, &d.IsCheckedOut,
		&by, &date, &op, &d.DeleteAttempts); err != nil {
		return nil, err
	}
	if by.Valid {
		v := by.String
		d.LastCheckedOutBy = &v
	}
	if date.Valid {
		t, err := time.Parse(time.RFC3339Nano, date.String)
		if err != nil {
			return nil, fmt.Errorf("bad last_checked_out_date %q: %w", date.String, err)
		}
		d.LastCheckedOutDate = &t
	}
	d.PendingOperation = models.PendingOperation(op)
	return &d, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}
