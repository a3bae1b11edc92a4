package mysql

import (
	"context"
	"database/sql"

	"tasktimer/internal/domain"

	"github.com/pkg/errors"
)

var _ domain.TimeRecordRepository = (*DB)(nil)

const timeRecordColumns = "id, description, duration_in_seconds, created_at, user_id"

// Save inserts a time record and reads it back. MySQL has no RETURNING.
func (d *DB) Save(ctx context.Context, rec domain.TimeRecord) (domain.TimeRecord, error) {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO time_records ("+timeRecordColumns+") VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.Description, rec.DurationInSeconds, rec.CreatedAt.UTC(), nullString(rec.UserID),
	)
	if err != nil {
		return domain.TimeRecord{}, domain.NewStorageError("Failed to save time record", errors.Wrap(err, "insert time_records"))
	}
	row := d.sql.QueryRowContext(ctx, "SELECT "+timeRecordColumns+" FROM time_records WHERE id = ?", rec.ID)
	stored, err := scanTimeRecord(row)
	if err != nil {
		return domain.TimeRecord{}, domain.NewStorageError("Failed to save time record", errors.Wrap(err, "read back time_records"))
	}
	return stored, nil
}

// List returns time records for ownerID (all when empty), most recent first.
func (d *DB) List(ctx context.Context, ownerID string) ([]domain.TimeRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if ownerID == "" {
		rows, err = d.sql.QueryContext(ctx,
			"SELECT "+timeRecordColumns+" FROM time_records ORDER BY created_at DESC")
	} else {
		rows, err = d.sql.QueryContext(ctx,
			"SELECT "+timeRecordColumns+" FROM time_records WHERE user_id = ? ORDER BY created_at DESC", ownerID)
	}
	if err != nil {
		return nil, domain.NewStorageError("Failed to fetch time records", errors.Wrap(err, "select time_records"))
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.TimeRecord, 0)
	for rows.Next() {
		rec, err := scanTimeRecord(rows)
		if err != nil {
			return nil, domain.NewStorageError("Failed to fetch time records", errors.Wrap(err, "scan time_records"))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("Failed to fetch time records", errors.Wrap(err, "iterate time_records"))
	}
	return out, nil
}

func scanTimeRecord(row interface{ Scan(...any) error }) (domain.TimeRecord, error) {
	var (
		rec    domain.TimeRecord
		userID sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.Description, &rec.DurationInSeconds, &rec.CreatedAt, &userID); err != nil {
		return domain.TimeRecord{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UserID = userID.String
	return rec, nil
}
