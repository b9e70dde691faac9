package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/model"
	"github.com/sakif/cardbinder/internal/repository"
)

// Compile-time check that *BackupRepo implements repository.BackupRepository.
var _ repository.BackupRepository = (*BackupRepo)(nil)

// BackupRepo stores snapshot records over the shared connection.
type BackupRepo struct {
	conn *sql.DB
}

// Create persists a backup record. The snapshot is stored as a JSON blob —
// it is immutable once produced, so there is nothing to normalise into
// columns beyond the envelope fields the listing needs.
func (r *BackupRepo) Create(ctx context.Context, rec *model.BackupRecord) error {
	rec.ID = xid.New().String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	blob, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("sqlite: encoding snapshot: %w", err)
	}
	rec.SizeBytes = int64(len(blob))

	_, err = r.conn.ExecContext(ctx,
		`INSERT INTO backups (id, user_id, type, snapshot, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, string(rec.Type), string(blob), rec.SizeBytes, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating backup record: %w", err)
	}

	return nil
}

// GetByID loads one backup record including its full snapshot payload.
func (r *BackupRepo) GetByID(ctx context.Context, userID, id string) (*model.BackupRecord, error) {
	var (
		rec     model.BackupRecord
		recType string
		blob    string
	)
	err := r.conn.QueryRowContext(ctx,
		`SELECT id, user_id, type, snapshot, size_bytes, created_at
		 FROM backups WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&rec.ID, &rec.UserID, &recType, &blob, &rec.SizeBytes, &rec.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("backup", id)
		}
		return nil, fmt.Errorf("sqlite: getting backup %s: %w", id, err)
	}

	rec.Type = model.BackupType(recType)
	if err := json.Unmarshal([]byte(blob), &rec.Snapshot); err != nil {
		return nil, fmt.Errorf("sqlite: decoding snapshot for backup %s: %w", id, err)
	}

	return &rec, nil
}

// List returns the user's backups newest first, without the card payloads.
// The metadata is extracted from the stored JSON with SQLite's json_extract
// so listing stays cheap even with large snapshots.
func (r *BackupRepo) List(ctx context.Context, userID string) ([]model.BackupListEntry, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, type, size_bytes, created_at,
		        COALESCE(json_extract(snapshot, '$.metadata.totalCards'), 0),
		        COALESCE(json_extract(snapshot, '$.metadata.totalValue'), 0),
		        COALESCE(json_extract(snapshot, '$.metadata.exportedBy'), ''),
		        COALESCE(json_extract(snapshot, '$.metadata.userName'), ''),
		        COALESCE(json_array_length(snapshot, '$.cards'), 0)
		 FROM backups
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing backups: %w", err)
	}
	defer rows.Close()

	var entries []model.BackupListEntry
	for rows.Next() {
		var (
			e       model.BackupListEntry
			recType string
		)
		if err := rows.Scan(
			&e.ID, &recType, &e.SizeBytes, &e.CreatedAt,
			&e.Metadata.TotalCards, &e.Metadata.TotalValue,
			&e.Metadata.ExportedBy, &e.Metadata.UserName,
			&e.CardsTotal,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning backup row: %w", err)
		}
		e.Type = model.BackupType(recType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating backups: %w", err)
	}

	return entries, nil
}

// Delete removes one backup record.
func (r *BackupRepo) Delete(ctx context.Context, userID, id string) error {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM backups WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting backup %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("backup", id)
	}

	return nil
}

// DeleteByType removes all records of one type for the user. Idempotent —
// deleting zero rows reports 0, not an error.
func (r *BackupRepo) DeleteByType(ctx context.Context, userID string, t model.BackupType) (int, error) {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM backups WHERE user_id = ? AND type = ?`,
		userID, string(t),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting %s backups: %w", t, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(n), nil
}

// DeleteAll removes every backup record for the user. Idempotent.
func (r *BackupRepo) DeleteAll(ctx context.Context, userID string) (int, error) {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM backups WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting all backups: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(n), nil
}
