// Package repository defines the storage interfaces the services depend on.
//
// Services receive these interfaces (not the concrete sqlite types), so tests
// can inject in-memory fakes and the storage backend can be swapped without
// touching business logic. Every read and write is scoped by userID — the
// repositories never return or touch another user's rows.
package repository

import (
	"context"

	"github.com/sakif/cardbinder/internal/model"
)

// CollectionRepository is CRUD over collection records.
//
// GetByID and Delete take the owning userID so that a lookup on another
// user's collection behaves exactly like a lookup on a missing one: the
// caller sees "not found", never "exists but forbidden".
type CollectionRepository interface {
	Create(ctx context.Context, c *model.Collection) error
	GetByID(ctx context.Context, userID, id string) (*model.Collection, error)
	GetByName(ctx context.Context, userID, name string) (*model.Collection, error)
	GetDefault(ctx context.Context, userID string) (*model.Collection, error)
	List(ctx context.Context, userID string) ([]model.Collection, error)
	Update(ctx context.Context, c *model.Collection) error
	Delete(ctx context.Context, userID, id string) error

	// SwapDefault atomically clears the user's current default (if any) and
	// sets the flag on newDefaultID, inside one transaction. The store layer
	// owns this because it is the one read-then-write pair that must not
	// interleave with a concurrent swap for the same user.
	SwapDefault(ctx context.Context, userID, newDefaultID string) error
}

// CardLookup is the narrow capability the collection service needs from the
// card store: "is this collection empty, and if not, what's in it". Modelled
// as its own interface so the collection service doesn't depend on full card
// CRUD.
type CardLookup interface {
	CountByCollection(ctx context.Context, userID, collectionID string) (int, error)
	ListByCollection(ctx context.Context, userID, collectionID string) ([]model.Card, error)
}

// CardRepository is CRUD over card records plus the bulk operations the
// backup engine needs.
type CardRepository interface {
	CardLookup

	Create(ctx context.Context, card *model.Card) error
	GetByID(ctx context.Context, userID, id string) (*model.Card, error)
	List(ctx context.Context, userID string) ([]model.Card, error)
	ListIDs(ctx context.Context, userID string) ([]string, error)
	Update(ctx context.Context, card *model.Card) error
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) error
	Count(ctx context.Context, userID string) (int, error)

	// SetCollection reassigns one card to another collection. Returns
	// apperror.ErrNotFound when the card doesn't exist or belongs to a
	// different user.
	SetCollection(ctx context.Context, userID, cardID, collectionID string) error
}

// BackupRepository persists backup records.
type BackupRepository interface {
	Create(ctx context.Context, rec *model.BackupRecord) error
	GetByID(ctx context.Context, userID, id string) (*model.BackupRecord, error)
	List(ctx context.Context, userID string) ([]model.BackupListEntry, error)
	Delete(ctx context.Context, userID, id string) error

	// DeleteByType removes every record of the given type for the user and
	// reports how many went away. Idempotent: zero rows is not an error.
	DeleteByType(ctx context.Context, userID string, t model.BackupType) (int, error)
	DeleteAll(ctx context.Context, userID string) (int, error)
}

// SeedMarkerRepository stores the per-user "starter dataset imported" marker.
type SeedMarkerRepository interface {
	Get(ctx context.Context, userID string) (*model.SeedMarker, error)
	Put(ctx context.Context, marker *model.SeedMarker) error
	Delete(ctx context.Context, userID string) error
}

// UserRepository manages accounts for both sign-in paths.
type UserRepository interface {
	UpsertGitHub(ctx context.Context, user *model.User) (created bool, err error)
	CreateWithPassword(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}
