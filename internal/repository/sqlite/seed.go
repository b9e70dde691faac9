package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/model"
	"github.com/sakif/cardbinder/internal/repository"
)

// Compile-time check that *SeedMarkerRepo implements repository.SeedMarkerRepository.
var _ repository.SeedMarkerRepository = (*SeedMarkerRepo)(nil)

// SeedMarkerRepo stores per-user starter import markers.
type SeedMarkerRepo struct {
	conn *sql.DB
}

// Get returns the user's seed marker, or NotFound if no import has run yet.
func (r *SeedMarkerRepo) Get(ctx context.Context, userID string) (*model.SeedMarker, error) {
	var m model.SeedMarker
	err := r.conn.QueryRowContext(ctx,
		`SELECT user_id, version, imported_at FROM seed_markers WHERE user_id = ?`,
		userID,
	).Scan(&m.UserID, &m.Version, &m.ImportedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("seed marker", userID)
		}
		return nil, fmt.Errorf("sqlite: getting seed marker: %w", err)
	}
	return &m, nil
}

// Put records the imported seed version, replacing any previous marker.
// user_id is the primary key, so ON CONFLICT upgrades the version in place.
func (r *SeedMarkerRepo) Put(ctx context.Context, marker *model.SeedMarker) error {
	if marker.ImportedAt.IsZero() {
		marker.ImportedAt = time.Now().UTC()
	}

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO seed_markers (user_id, version, imported_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET version = excluded.version,
		     imported_at = excluded.imported_at`,
		marker.UserID, marker.Version, marker.ImportedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: writing seed marker: %w", err)
	}
	return nil
}

// Delete drops the marker so the next ShouldImport check says yes again.
// Idempotent: a missing marker is not an error.
func (r *SeedMarkerRepo) Delete(ctx context.Context, userID string) error {
	if _, err := r.conn.ExecContext(ctx,
		`DELETE FROM seed_markers WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting seed marker: %w", err)
	}
	return nil
}
