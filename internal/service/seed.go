package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"
	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/model"
	"github.com/sakif/cardbinder/internal/repository"
)

// datasetLoader abstracts the bundled starter dataset so tests can feed the
// importer a dataset of their own. Production wires seed.Load / seed.Version.
type datasetLoader struct {
	Version int
	Load    func() ([]model.Card, error)
}

// SeedService imports the bundled starter dataset for new users, once per
// user per dataset version.
//
// The "already imported" marker is keyed per user. A single global flag would
// mean the first user's import suppresses everyone else's — the marker table
// exists precisely so each user gets their own starter cards.
type SeedService struct {
	cards       repository.CardRepository
	markers     repository.SeedMarkerRepository
	collections *CollectionService
	dataset     datasetLoader
	locks       *userLocker
	logger      *slog.Logger
}

// NewSeedService creates a SeedService using the bundled dataset.
func NewSeedService(
	cards repository.CardRepository,
	markers repository.SeedMarkerRepository,
	collections *CollectionService,
	datasetVersion int,
	load func() ([]model.Card, error),
	locks *userLocker,
	logger *slog.Logger,
) *SeedService {
	if locks == nil {
		locks = newUserLocker()
	}
	return &SeedService{
		cards:       cards,
		markers:     markers,
		collections: collections,
		dataset:     datasetLoader{Version: datasetVersion, Load: load},
		locks:       locks,
		logger:      logger,
	}
}

// ImportResult reports what a seed import did.
type ImportResult struct {
	Imported int      `json:"imported"`
	Version  int      `json:"version"`
	Skipped  bool     `json:"skipped"` // true when ShouldImport said no
	Errors   []string `json:"errors,omitempty"`
}

// ShouldImport reports whether the starter dataset should be imported for the
// user: yes when the user has zero cards, or when no marker exists yet, or
// when the recorded marker is older than the bundled dataset version.
func (s *SeedService) ShouldImport(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, apperror.ValidationFailed("userId", "user ID is required")
	}

	count, err := s.cards.Count(ctx, userID)
	if err != nil {
		return false, apperror.Store("counting cards", err)
	}
	if count == 0 {
		return true, nil
	}

	marker, err := s.markers.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return true, nil
		}
		return false, apperror.Store("reading seed marker", err)
	}

	return marker.Version < s.dataset.Version, nil
}

// Import writes the starter dataset into the user's default collection.
//
// Idempotence: the call is gated on ShouldImport, and the per-user lock keeps
// two concurrent first-sign-ins from importing twice.
//
// Every starter card gets a fresh id scoped to this user — the bundled ids
// are never reused, so two users' seed cards can't collide and a later
// restore with skipDuplicates can't mistake one user's seeds for another's.
//
// Per-card failures are logged and skipped; they do not prevent the version
// marker from being recorded once the pass completes. A failed card is
// therefore not silently retried on next sign-in — Reset exists for that.
func (s *SeedService) Import(ctx context.Context, userID string) (*ImportResult, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	should, err := s.ShouldImport(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !should {
		return &ImportResult{Skipped: true, Version: s.dataset.Version}, nil
	}

	starters, err := s.dataset.Load()
	if err != nil {
		return nil, fmt.Errorf("loading starter dataset: %w", err)
	}

	// Seed cards land in the default collection; create it if this user
	// doesn't have one yet (first sign-in runs before any collection exists).
	def, err := s.collections.ensureDefaultLocked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ensuring default collection: %w", err)
	}

	result := &ImportResult{Version: s.dataset.Version}
	for i := range starters {
		card := starters[i]
		card.ID = xid.New().String() // never the bundled id
		card.UserID = userID
		card.CollectionID = def.ID

		if err := s.cards.Create(ctx, &card); err != nil {
			s.logger.Warn("seed card import failed",
				slog.String("userID", userID),
				slog.String("player", card.Player),
				slog.String("error", err.Error()),
			)
			result.Errors = append(result.Errors, importErrorMessage(&card, err))
			continue
		}
		result.Imported++
	}

	// The marker is recorded even when individual cards failed: the pass ran.
	if err := s.markers.Put(ctx, &model.SeedMarker{
		UserID:  userID,
		Version: s.dataset.Version,
	}); err != nil {
		return result, apperror.Store("recording seed marker", err)
	}

	s.logger.Info("starter dataset imported",
		slog.String("userID", userID),
		slog.Int("imported", result.Imported),
		slog.Int("version", s.dataset.Version),
	)
	return result, nil
}

// Reset drops the user's seed marker so the next Import runs again.
// It does not delete previously imported cards.
func (s *SeedService) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return apperror.ValidationFailed("userId", "user ID is required")
	}
	if err := s.markers.Delete(ctx, userID); err != nil {
		return apperror.Store("resetting seed marker", err)
	}
	s.logger.Info("seed marker reset", slog.String("userID", userID))
	return nil
}
