package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/devicekeeper/internal/common"
	"github.com/dmitrijs2005/devicekeeper/internal/dbx"
	"github.com/dmitrijs2005/devicekeeper/internal/server/models"
)

const deviceColumns = `id, device, os, manufacturer, is_checked_out, last_checked_out_by, last_checked_out_date`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	defer rows.Close()

	result := []*models.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.Device) (*models.Device, error) {
	query :=
		`INSERT INTO devices (device, os, manufacturer)
		 VALUES ($1, $2, $3)
		 RETURNING ` + deviceColumns

	created, err := scanDevice(r.db.QueryRowContext(ctx, query, d.Name, d.OS, d.Manufacturer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return created, nil
}

func (r *PostgresRepository) SetCheckedIn(ctx context.Context, id int64) (*models.Device, error) {
	query :=
		`UPDATE devices SET is_checked_out = FALSE
		 WHERE id = $1
		 RETURNING ` + deviceColumns

	return r.updateOne(ctx, query, id)
}

func (r *PostgresRepository) SetCheckedOut(ctx context.Context, id int64, by string, at time.Time) (*models.Device, error) {
	query :=
		`UPDATE devices SET is_checked_out = TRUE, last_checked_out_by = $2, last_checked_out_date = $3
		 WHERE id = $1
		 RETURNING ` + deviceColumns

	return r.updateOne(ctx, query, id, by, at)
}

func (r *PostgresRepository) updateOne(ctx context.Context, query string, args ...any) (*models.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return d, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	n, err := dbx.Affected(res)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	if n == 0 {
		return common.ErrNotFound
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
		date sql.NullTime
	)
	if err := s.Scan(&d.ID, &d.Name, &d.OS, &d.Manufacturer, &d.IsCheckedOut, &by, &date); err != nil {
		return nil, err
	}
	if by.Valid {
		d.LastCheckedOutBy = &by.String
	}
	if date.Valid {
		d.LastCheckedOutDate = &date.Time
	}
	return &d, nil
}
