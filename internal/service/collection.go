// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces invariants, orchestrates
//	Repository (Data layer)  → reads/writes SQLite
//
// The services in this package are the consistency engine: they own the
// invariants (exactly one default collection per user, no deleting referenced
// collections, at most one automatic backup) and return domain errors from
// internal/apperror that the HTTP layer maps onto status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/model"
	"github.com/sakif/cardbinder/internal/repository"
)

// Validation constants for collection fields.
const (
	MaxCollectionNameLength = 100
	MaxDescriptionLength    = 1000
	MaxTags                 = 20
)

// CollectionService enforces the collection invariants:
//
//   - a user's collection names are unique (case-sensitive exact match)
//   - a user with >= 1 collections has exactly one default, never zero or two
//   - the default collection cannot be deleted
//   - a collection with cards referencing it cannot be deleted
//
// It depends on the narrow repository.CardLookup capability (not full card
// CRUD) to check emptiness before a delete — the dependency is explicit and
// injected, not reached into dynamically.
type CollectionService struct {
	repo   repository.CollectionRepository
	cards  repository.CardLookup
	locks  *userLocker
	logger *slog.Logger
}

// NewCollectionService creates a CollectionService. The userLocker may be
// shared with other services so that, for one user, a default swap and a
// clearing restore cannot interleave.
func NewCollectionService(
	repo repository.CollectionRepository,
	cards repository.CardLookup,
	locks *userLocker,
	logger *slog.Logger,
) *CollectionService {
	if locks == nil {
		locks = newUserLocker()
	}
	return &CollectionService{
		repo:   repo,
		cards:  cards,
		locks:  locks,
		logger: logger,
	}
}

// CollectionInput carries the caller-editable fields for Create.
type CollectionInput struct {
	Name        string
	Description string
	Color       string
	Icon        string
	Visibility  model.Visibility
	Tags        []string
}

// Create validates and saves a new collection.
//
// New collections are never created as the default: if this is the user's
// first collection ever, it becomes the default via EnsureDefault-style
// promotion, so the invariant "≥1 collections ⇒ exactly one default" holds
// after every Create.
func (s *CollectionService) Create(ctx context.Context, userID string, in CollectionInput) (*model.Collection, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "collection name is required")
	}
	if len(name) > MaxCollectionNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("collection name must be %d characters or less", MaxCollectionNameLength))
	}
	if len(in.Description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if len(in.Tags) > MaxTags {
		return nil, apperror.ValidationFailed("tags",
			fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = model.VisibilityPrivate
	}
	if visibility != model.VisibilityPrivate && visibility != model.VisibilityPublic {
		return nil, apperror.ValidationFailed("visibility", "visibility must be private or public")
	}

	// The lock covers the duplicate check, the insert, and the possible
	// first-collection promotion, so two concurrent creates can't slip past
	// the name check together or both end up default.
	unlock := s.locks.lock(userID)
	defer unlock()

	// Duplicate names are rejected before any write. The repository's UNIQUE
	// constraint is only a backstop.
	if _, err := s.repo.GetByName(ctx, userID, name); err == nil {
		return nil, apperror.DuplicateName(name)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking collection name: %w", err)
	}

	existing, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	collection := &model.Collection{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Color:       in.Color,
		Icon:        in.Icon,
		IsDefault:   len(existing) == 0, // first collection becomes the default
		Visibility:  visibility,
		Tags:        normalizeTags(in.Tags),
	}

	if err := s.repo.Create(ctx, collection); err != nil {
		s.logger.Error("failed to create collection",
			slog.String("userID", userID),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("collection created",
		slog.String("id", collection.ID),
		slog.String("userID", userID),
		slog.Bool("default", collection.IsDefault),
	)

	return collection, nil
}

// EnsureDefault guarantees the user has a default collection, creating one
// with the sentinel name when none exists. Idempotent, and safe to call
// concurrently for the same user: the per-user lock serialises the
// check-then-create.
func (s *CollectionService) EnsureDefault(ctx context.Context, userID string) (*model.Collection, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	return s.ensureDefaultLocked(ctx, userID)
}

// ensureDefaultLocked is EnsureDefault's body without the lock, for callers
// that already hold the user's lock (seed import).
func (s *CollectionService) ensureDefaultLocked(ctx context.Context, userID string) (*model.Collection, error) {
	def, err := s.repo.GetDefault(ctx, userID)
	if err == nil {
		return def, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("looking up default collection: %w", err)
	}

	// No default. If the user has collections but none is flagged (shouldn't
	// happen, but recoverable), promote the earliest; otherwise create the
	// sentinel collection.
	existing, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	if len(existing) > 0 {
		if err := s.repo.SwapDefault(ctx, userID, existing[0].ID); err != nil {
			return nil, fmt.Errorf("promoting default collection: %w", err)
		}
		return s.repo.GetByID(ctx, userID, existing[0].ID)
	}

	collection := &model.Collection{
		UserID:     userID,
		Name:       model.DefaultCollectionName,
		IsDefault:  true,
		Visibility: model.VisibilityPrivate,
	}
	if err := s.repo.Create(ctx, collection); err != nil {
		return nil, err
	}

	s.logger.Info("default collection created",
		slog.String("id", collection.ID),
		slog.String("userID", userID),
	)

	return collection, nil
}

// Update applies a partial update to a collection.
//
// Two rules beyond plain field validation:
//   - renaming onto another collection's name is a DuplicateName conflict
//   - flipping isDefault true→false through a patch is rejected; the
//     compensating promotion only happens through UnsetDefault. Flipping it
//     false→true is routed through SetDefault so the swap stays atomic.
func (s *CollectionService) Update(ctx context.Context, userID, id string, patch model.CollectionPatch) (*model.Collection, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "collection ID is required")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	collection, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	// The whole patch is validated before any write: a rejected field must
	// not leave the default flag already moved.
	promote := false
	if patch.IsDefault != nil {
		switch {
		case collection.IsDefault && !*patch.IsDefault:
			return nil, apperror.CannotUnsetDefault(id)
		case !collection.IsDefault && *patch.IsDefault:
			promote = true
		}
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.ValidationFailed("name", "collection name is required")
		}
		if len(name) > MaxCollectionNameLength {
			return nil, apperror.ValidationFailed("name",
				fmt.Sprintf("collection name must be %d characters or less", MaxCollectionNameLength))
		}
		if name != collection.Name {
			if other, err := s.repo.GetByName(ctx, userID, name); err == nil && other.ID != id {
				return nil, apperror.DuplicateName(name)
			} else if err != nil && !errors.Is(err, apperror.ErrNotFound) {
				return nil, fmt.Errorf("checking collection name: %w", err)
			}
			collection.Name = name
		}
	}
	if patch.Description != nil {
		if len(*patch.Description) > MaxDescriptionLength {
			return nil, apperror.ValidationFailed("description",
				fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
		}
		collection.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Color != nil {
		collection.Color = *patch.Color
	}
	if patch.Icon != nil {
		collection.Icon = *patch.Icon
	}
	if patch.Visibility != nil {
		v := *patch.Visibility
		if v != model.VisibilityPrivate && v != model.VisibilityPublic {
			return nil, apperror.ValidationFailed("visibility", "visibility must be private or public")
		}
		collection.Visibility = v
	}
	if patch.Tags != nil {
		if len(*patch.Tags) > MaxTags {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("at most %d tags are allowed", MaxTags))
		}
		collection.Tags = normalizeTags(*patch.Tags)
	}

	if promote {
		if err := s.repo.SwapDefault(ctx, userID, id); err != nil {
			return nil, err
		}
		collection.IsDefault = true
	}

	if err := s.repo.Update(ctx, collection); err != nil {
		s.logger.Error("failed to update collection",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("collection updated", slog.String("id", id))
	return collection, nil
}

// SetDefault promotes a collection to be the user's default. The previous
// default loses the flag in the same repository transaction, and the per-user
// lock keeps two concurrent swaps from racing each other's reads. No-op if
// the collection already is the default.
func (s *CollectionService) SetDefault(ctx context.Context, userID, id string) (*model.Collection, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "collection ID is required")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	collection, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if collection.IsDefault {
		return collection, nil
	}

	if err := s.repo.SwapDefault(ctx, userID, id); err != nil {
		return nil, err
	}
	collection.IsDefault = true

	s.logger.Info("default collection changed",
		slog.String("userID", userID),
		slog.String("id", id),
	)
	return collection, nil
}

// UnsetDefault removes the default flag from a collection by promoting
// another one in its place. Only legal when the user has at least two
// collections — with one, the flag has nowhere to go and the call fails with
// LastCollection.
//
// Replacement rule: the earliest remaining collection by creation time (id as
// tie-break). The rule is deterministic on purpose; "first other collection
// found" would depend on iteration order.
func (s *CollectionService) UnsetDefault(ctx context.Context, userID, id string) (*model.Collection, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "collection ID is required")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	collection, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !collection.IsDefault {
		return collection, nil // nothing to unset
	}

	all, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	if len(all) < 2 {
		return nil, apperror.LastCollection(id)
	}

	// List is ordered by creation time, so the first entry that isn't the
	// current default is the promotion target.
	var replacement *model.Collection
	for i := range all {
		if all[i].ID != id {
			replacement = &all[i]
			break
		}
	}

	if err := s.repo.SwapDefault(ctx, userID, replacement.ID); err != nil {
		return nil, err
	}
	collection.IsDefault = false

	s.logger.Info("default collection moved",
		slog.String("userID", userID),
		slog.String("from", id),
		slog.String("to", replacement.ID),
	)
	return collection, nil
}

// Delete removes a collection, enforcing both deletion invariants before any
// write: the default collection is undeletable regardless of card count, and
// a collection still referenced by cards reports the exact count so the UI
// can tell the user what's in the way.
func (s *CollectionService) Delete(ctx context.Context, userID, id string) error {
	if id = strings.TrimSpace(id); id == "" {
		return apperror.ValidationFailed("id", "collection ID is required")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	collection, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if collection.IsDefault {
		return apperror.DefaultUndeletable(id)
	}

	count, err := s.cards.CountByCollection(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("counting cards in collection: %w", err)
	}
	if count > 0 {
		return apperror.NonEmptyCollection(id, count)
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("collection deleted", slog.String("id", id), slog.String("userID", userID))
	return nil
}

// List returns the user's collections in creation order.
func (s *CollectionService) List(ctx context.Context, userID string) ([]model.Collection, error) {
	collections, err := s.repo.List(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list collections", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	if collections == nil {
		collections = []model.Collection{}
	}
	return collections, nil
}

// GetByID returns one collection, scoped to the requesting user.
func (s *CollectionService) GetByID(ctx context.Context, userID, id string) (*model.Collection, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "collection ID is required")
	}
	return s.repo.GetByID(ctx, userID, id)
}

// GetDefault returns the user's default collection.
func (s *CollectionService) GetDefault(ctx context.Context, userID string) (*model.Collection, error) {
	return s.repo.GetDefault(ctx, userID)
}

// normalizeTags trims, drops empties, and de-duplicates while preserving
// first-seen order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
