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

// Compile-time check that *CollectionRepo implements repository.CollectionRepository.
var _ repository.CollectionRepository = (*CollectionRepo)(nil)

// CollectionRepo provides collection storage over the shared connection.
type CollectionRepo struct {
	conn *sql.DB
}

const collectionColumns = `id, user_id, name, description, color, icon,
	is_default, visibility, tags, created_at, updated_at`

// Create inserts a new collection. The ID and timestamps are generated here;
// the caller's struct is updated in place.
//
// Name uniqueness is checked by the service before any write, but the
// UNIQUE(user_id, name) constraint is the backstop against a race between
// two concurrent creates — we translate that failure into the same
// DuplicateName error the service would have returned.
func (r *CollectionRepo) Create(ctx context.Context, c *model.Collection) error {
	c.ID = xid.New().String()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Visibility == "" {
		c.Visibility = model.VisibilityPrivate
	}

	tags, err := marshalTags(c.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding collection tags: %w", err)
	}

	_, err = r.conn.ExecContext(ctx,
		`INSERT INTO collections (id, user_id, name, description, color, icon,
			is_default, visibility, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Description, c.Color, c.Icon,
		c.IsDefault, string(c.Visibility), tags, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "collections.name") {
			return apperror.DuplicateName(c.Name)
		}
		return fmt.Errorf("sqlite: creating collection: %w", err)
	}

	return nil
}

// GetByID retrieves one collection scoped to its owner. A collection owned by
// a different user comes back as "not found" — existence is never leaked
// across user boundaries.
func (r *CollectionRepo) GetByID(ctx context.Context, userID, id string) (*model.Collection, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	c, err := scanCollection(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("collection", id)
		}
		return nil, fmt.Errorf("sqlite: getting collection %s: %w", id, err)
	}
	return c, nil
}

// GetByName looks a collection up by exact (case-sensitive) name.
func (r *CollectionRepo) GetByName(ctx context.Context, userID, name string) (*model.Collection, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE user_id = ? AND name = ?`,
		userID, name,
	)
	c, err := scanCollection(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("collection", name)
		}
		return nil, fmt.Errorf("sqlite: getting collection by name %q: %w", name, err)
	}
	return c, nil
}

// GetDefault returns the user's default collection, or NotFound when the user
// has no collections yet.
func (r *CollectionRepo) GetDefault(ctx context.Context, userID string) (*model.Collection, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE user_id = ? AND is_default = 1`,
		userID,
	)
	c, err := scanCollection(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("default collection", userID)
		}
		return nil, fmt.Errorf("sqlite: getting default collection: %w", err)
	}
	return c, nil
}

// List returns all of a user's collections, oldest first. Creation order is
// the ordering the rest of the engine relies on (e.g. when UnsetDefault
// promotes "the earliest other collection"), so it is fixed here, with id as
// the tie-break — xids sort by creation time, so this is stable.
func (r *CollectionRepo) List(ctx context.Context, userID string) ([]model.Collection, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections
		 WHERE user_id = ?
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing collections: %w", err)
	}
	defer rows.Close()

	var collections []model.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning collection row: %w", err)
		}
		collections = append(collections, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating collections: %w", err)
	}

	return collections, nil
}

// Update writes back every mutable field of the collection. The WHERE clause
// is scoped by user_id, so updating another user's collection reports
// NotFound just like reading one would.
func (r *CollectionRepo) Update(ctx context.Context, c *model.Collection) error {
	c.UpdatedAt = time.Now().UTC()

	tags, err := marshalTags(c.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding collection tags: %w", err)
	}

	result, err := r.conn.ExecContext(ctx,
		`UPDATE collections
		 SET name = ?, description = ?, color = ?, icon = ?, is_default = ?,
		     visibility = ?, tags = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		c.Name, c.Description, c.Color, c.Icon, c.IsDefault,
		string(c.Visibility), tags, c.UpdatedAt,
		c.ID, c.UserID,
	)
	if err != nil {
		if isUniqueViolation(err, "collections.name") {
			return apperror.DuplicateName(c.Name)
		}
		return fmt.Errorf("sqlite: updating collection %s: %w", c.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("collection", c.ID)
	}

	return nil
}

// Delete removes a collection. Invariant checks (default flag, remaining
// cards) happen in the service before this is called; foreign keys are the
// last line of defence against deleting a referenced collection.
func (r *CollectionRepo) Delete(ctx context.Context, userID, id string) error {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM collections WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting collection %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("collection", id)
	}

	return nil
}

// SwapDefault clears the user's current default flag and sets it on
// newDefaultID, inside one transaction.
//
// This is the one read-then-write pair in the schema that must be atomic:
// without the transaction, two concurrent swaps could both clear the old
// default and then both (or neither) set a new one, leaving the user with
// zero or two defaults. The partial unique index on (user_id) WHERE
// is_default = 1 would reject the "two" case; the transaction prevents both.
func (r *CollectionRepo) SwapDefault(ctx context.Context, userID, newDefaultID string) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning default swap: %w", err)
	}
	defer tx.Rollback() // no-op after a successful Commit

	now := time.Now().UTC()

	// Step (a): clear the current default, whichever collection holds it.
	// Clearing first keeps the unique index happy when the flag moves.
	if _, err := tx.ExecContext(ctx,
		`UPDATE collections SET is_default = 0, updated_at = ?
		 WHERE user_id = ? AND is_default = 1 AND id != ?`,
		now, userID, newDefaultID,
	); err != nil {
		return fmt.Errorf("sqlite: clearing old default: %w", err)
	}

	// Step (b): set the flag on the new default. Scoped by user_id so a
	// collection belonging to someone else reads as NotFound.
	result, err := tx.ExecContext(ctx,
		`UPDATE collections SET is_default = 1, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		now, newDefaultID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting new default: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("collection", newDefaultID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing default swap: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows so one scan helper serves
// single-row and multi-row queries.
type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(s scanner) (*model.Collection, error) {
	var (
		c          model.Collection
		visibility string
		tags       string
	)
	err := s.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Description, &c.Color, &c.Icon,
		&c.IsDefault, &visibility, &tags, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Visibility = model.Visibility(visibility)
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return &c, nil
}

// marshalTags stores the tag set as a JSON array in a TEXT column. An empty
// or nil set is stored as "[]" so scans never see NULL.
func marshalTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
