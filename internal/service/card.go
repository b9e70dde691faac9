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

// Validation constants for card fields.
const (
	MaxPlayerNameLength = 200
	MaxNotesLength      = 5000
	MaxMoveBatchSize    = 500
)

// CardService handles card CRUD and batch reassignment between collections.
type CardService struct {
	repo        repository.CardRepository
	collections repository.CollectionRepository
	logger      *slog.Logger
}

// NewCardService creates a CardService.
func NewCardService(
	repo repository.CardRepository,
	collections repository.CollectionRepository,
	logger *slog.Logger,
) *CardService {
	return &CardService{
		repo:        repo,
		collections: collections,
		logger:      logger,
	}
}

// CardInput carries the caller-editable card fields.
type CardInput struct {
	CollectionID   string
	Player         string
	Team           string
	Year           int
	Brand          string
	Category       string
	CardNumber     string
	Parallel       string
	Condition      string
	GradingCompany string
	PurchasePrice  float64
	PurchaseDate   string
	CurrentValue   float64
	SellPrice      float64
	SellDate       string
	Notes          string
}

// Create validates and saves a new card. The target collection must exist and
// belong to the user; when CollectionID is empty, the card lands in the
// user's default collection (the fallback destination for uncategorized
// cards).
func (s *CardService) Create(ctx context.Context, userID string, in CardInput) (*model.Card, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}

	player := strings.TrimSpace(in.Player)
	if player == "" {
		return nil, apperror.ValidationFailed("player", "player name is required")
	}
	if len(player) > MaxPlayerNameLength {
		return nil, apperror.ValidationFailed("player",
			fmt.Sprintf("player name must be %d characters or less", MaxPlayerNameLength))
	}
	if len(in.Notes) > MaxNotesLength {
		return nil, apperror.ValidationFailed("notes",
			fmt.Sprintf("notes must be %d characters or less", MaxNotesLength))
	}

	collectionID := strings.TrimSpace(in.CollectionID)
	if collectionID == "" {
		def, err := s.collections.GetDefault(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("resolving default collection: %w", err)
		}
		collectionID = def.ID
	} else {
		// Validates existence AND ownership in one lookup: another user's
		// collection reads as NotFound.
		if _, err := s.collections.GetByID(ctx, userID, collectionID); err != nil {
			return nil, err
		}
	}

	card := &model.Card{
		UserID:         userID,
		CollectionID:   collectionID,
		Player:         player,
		Team:           strings.TrimSpace(in.Team),
		Year:           in.Year,
		Brand:          strings.TrimSpace(in.Brand),
		Category:       strings.TrimSpace(in.Category),
		CardNumber:     strings.TrimSpace(in.CardNumber),
		Parallel:       strings.TrimSpace(in.Parallel),
		Condition:      strings.TrimSpace(in.Condition),
		GradingCompany: strings.TrimSpace(in.GradingCompany),
		PurchasePrice:  in.PurchasePrice,
		PurchaseDate:   strings.TrimSpace(in.PurchaseDate),
		CurrentValue:   in.CurrentValue,
		SellPrice:      in.SellPrice,
		SellDate:       strings.TrimSpace(in.SellDate),
		Notes:          in.Notes,
	}

	if err := s.repo.Create(ctx, card); err != nil {
		s.logger.Error("failed to create card",
			slog.String("userID", userID),
			slog.String("player", player),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating card: %w", err)
	}

	s.logger.Info("card created",
		slog.String("id", card.ID),
		slog.String("collectionID", collectionID),
	)
	return card, nil
}

// GetByID returns one card, scoped to the requesting user.
func (s *CardService) GetByID(ctx context.Context, userID, id string) (*model.Card, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "card ID is required")
	}
	return s.repo.GetByID(ctx, userID, id)
}

// List returns all of the user's cards.
func (s *CardService) List(ctx context.Context, userID string) ([]model.Card, error) {
	cards, err := s.repo.List(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list cards", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	if cards == nil {
		cards = []model.Card{}
	}
	return cards, nil
}

// Update modifies an existing card (fetch, apply, save).
func (s *CardService) Update(ctx context.Context, userID, id string, in CardInput) (*model.Card, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, apperror.ValidationFailed("id", "card ID is required")
	}

	card, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	player := strings.TrimSpace(in.Player)
	if player == "" {
		return nil, apperror.ValidationFailed("player", "player name is required")
	}
	if len(in.Notes) > MaxNotesLength {
		return nil, apperror.ValidationFailed("notes",
			fmt.Sprintf("notes must be %d characters or less", MaxNotesLength))
	}

	if cid := strings.TrimSpace(in.CollectionID); cid != "" && cid != card.CollectionID {
		if _, err := s.collections.GetByID(ctx, userID, cid); err != nil {
			return nil, err
		}
		card.CollectionID = cid
	}

	card.Player = player
	card.Team = strings.TrimSpace(in.Team)
	card.Year = in.Year
	card.Brand = strings.TrimSpace(in.Brand)
	card.Category = strings.TrimSpace(in.Category)
	card.CardNumber = strings.TrimSpace(in.CardNumber)
	card.Parallel = strings.TrimSpace(in.Parallel)
	card.Condition = strings.TrimSpace(in.Condition)
	card.GradingCompany = strings.TrimSpace(in.GradingCompany)
	card.PurchasePrice = in.PurchasePrice
	card.PurchaseDate = strings.TrimSpace(in.PurchaseDate)
	card.CurrentValue = in.CurrentValue
	card.SellPrice = in.SellPrice
	card.SellDate = strings.TrimSpace(in.SellDate)
	card.Notes = in.Notes

	if err := s.repo.Update(ctx, card); err != nil {
		s.logger.Error("failed to update card",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("card updated", slog.String("id", id))
	return card, nil
}

// Delete removes one card.
func (s *CardService) Delete(ctx context.Context, userID, id string) error {
	if id = strings.TrimSpace(id); id == "" {
		return apperror.ValidationFailed("id", "card ID is required")
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("card deleted", slog.String("id", id))
	return nil
}

// MoveResult reports a batch move. Moves are best-effort: each card succeeds
// or fails on its own, and Errors carries one message per failed card.
type MoveResult struct {
	Moved  int      `json:"moved"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// Move reassigns a batch of cards to another collection.
//
// The target must exist and belong to the user — that is checked once, up
// front, and a bad target fails the whole call. Per-card failures (missing
// id, a card owned by someone else) are recorded and skipped; the remaining
// cards still move. Writes are applied card-by-card, not in one transaction:
// a mid-batch failure leaves the earlier cards moved, and callers must treat
// the result as at-least-effort, not all-or-nothing.
func (s *CardService) Move(ctx context.Context, userID string, cardIDs []string, targetCollectionID string) (*MoveResult, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("userId", "user ID is required")
	}
	if len(cardIDs) == 0 {
		return nil, apperror.ValidationFailed("cardIds", "at least one card ID is required")
	}
	if len(cardIDs) > MaxMoveBatchSize {
		return nil, apperror.ValidationFailed("cardIds",
			fmt.Sprintf("at most %d cards can be moved per request", MaxMoveBatchSize))
	}
	targetCollectionID = strings.TrimSpace(targetCollectionID)
	if targetCollectionID == "" {
		return nil, apperror.ValidationFailed("targetCollectionId", "target collection ID is required")
	}

	if _, err := s.collections.GetByID(ctx, userID, targetCollectionID); err != nil {
		return nil, err
	}

	result := &MoveResult{}
	for _, cardID := range cardIDs {
		if err := s.repo.SetCollection(ctx, userID, cardID, targetCollectionID); err != nil {
			result.Failed++
			if errors.Is(err, apperror.ErrNotFound) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("card %s not found", cardID))
			} else {
				result.Errors = append(result.Errors,
					fmt.Sprintf("card %s: %v", cardID, err))
			}
			continue
		}
		result.Moved++
	}

	s.logger.Info("cards moved",
		slog.String("userID", userID),
		slog.String("target", targetCollectionID),
		slog.Int("moved", result.Moved),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
