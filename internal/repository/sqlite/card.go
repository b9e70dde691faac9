package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/cardbinder/internal/apperror"
	"github.com/sakif/cardbinder/internal/model"
	"github.com/sakif/cardbinder/internal/repository"
)

// Compile-time check that *CardRepo implements repository.CardRepository.
var _ repository.CardRepository = (*CardRepo)(nil)

// CardRepo provides card storage over the shared connection.
type CardRepo struct {
	conn *sql.DB
}

const cardColumns = `id, user_id, collection_id, player, team, year, brand,
	category, card_number, parallel, condition, grading_company,
	purchase_price, purchase_date, current_value, sell_price, sell_date,
	notes, created_at, updated_at`

// Create inserts a new card. When the card already carries an ID (restore and
// seed import pre-assign ids), it is kept; otherwise a fresh xid is generated.
func (r *CardRepo) Create(ctx context.Context, card *model.Card) error {
	if card.ID == "" {
		card.ID = xid.New().String()
	}
	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO cards (id, user_id, collection_id, player, team, year,
			brand, category, card_number, parallel, condition, grading_company,
			purchase_price, purchase_date, current_value, sell_price, sell_date,
			notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		card.ID, card.UserID, card.CollectionID, card.Player, card.Team, card.Year,
		card.Brand, card.Category, card.CardNumber, card.Parallel, card.Condition,
		card.GradingCompany, card.PurchasePrice, card.PurchaseDate,
		card.CurrentValue, card.SellPrice, card.SellDate, card.Notes,
		card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		// A constraint failure (duplicate id, unknown collection) condemns
		// this one row; anything else means the store itself is failing and
		// the restore loop must stop instead of burning through every card.
		if isConstraintViolation(err) {
			return fmt.Errorf("sqlite: creating card %s: %w", card.ID, err)
		}
		return apperror.Store("creating card", err)
	}

	return nil
}

// GetByID retrieves a single card scoped to its owner.
func (r *CardRepo) GetByID(ctx context.Context, userID, id string) (*model.Card, error) {
	row := r.conn.QueryRowContext(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	card, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("card", id)
		}
		return nil, fmt.Errorf("sqlite: getting card %s: %w", id, err)
	}
	return card, nil
}

// List returns all of a user's cards, oldest first.
func (r *CardRepo) List(ctx context.Context, userID string) ([]model.Card, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards
		 WHERE user_id = ?
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cards: %w", err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// ListIDs returns just the ids of a user's cards. The restore engine uses
// this to build its duplicate set without loading full rows.
func (r *CardRepo) ListIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id FROM cards WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing card ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning card id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating card ids: %w", err)
	}
	return ids, nil
}

// ListByCollection returns the cards referencing one collection.
func (r *CardRepo) ListByCollection(ctx context.Context, userID, collectionID string) ([]model.Card, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT `+cardColumns+` FROM cards
		 WHERE user_id = ? AND collection_id = ?
		 ORDER BY created_at ASC, id ASC`,
		userID, collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing cards in collection %s: %w", collectionID, err)
	}
	defer rows.Close()

	return collectCards(rows)
}

// CountByCollection reports how many cards reference a collection. The
// collection service calls this before allowing a delete.
func (r *CardRepo) CountByCollection(ctx context.Context, userID, collectionID string) (int, error) {
	var count int
	err := r.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE user_id = ? AND collection_id = ?`,
		userID, collectionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting cards in collection %s: %w", collectionID, err)
	}
	return count, nil
}

// Count reports the user's total card count.
func (r *CardRepo) Count(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting cards: %w", err)
	}
	return count, nil
}

// Update writes back every mutable field of the card.
func (r *CardRepo) Update(ctx context.Context, card *model.Card) error {
	card.UpdatedAt = time.Now().UTC()

	result, err := r.conn.ExecContext(ctx,
		`UPDATE cards
		 SET collection_id = ?, player = ?, team = ?, year = ?, brand = ?,
		     category = ?, card_number = ?, parallel = ?, condition = ?,
		     grading_company = ?, purchase_price = ?, purchase_date = ?,
		     current_value = ?, sell_price = ?, sell_date = ?, notes = ?,
		     updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		card.CollectionID, card.Player, card.Team, card.Year, card.Brand,
		card.Category, card.CardNumber, card.Parallel, card.Condition,
		card.GradingCompany, card.PurchasePrice, card.PurchaseDate,
		card.CurrentValue, card.SellPrice, card.SellDate, card.Notes,
		card.UpdatedAt,
		card.ID, card.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating card %s: %w", card.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("card", card.ID)
	}

	return nil
}

// SetCollection reassigns a card to another collection without touching any
// other field. NotFound covers both "no such card" and "someone else's card".
func (r *CardRepo) SetCollection(ctx context.Context, userID, cardID, collectionID string) error {
	result, err := r.conn.ExecContext(ctx,
		`UPDATE cards SET collection_id = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		collectionID, time.Now().UTC(), cardID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: moving card %s: %w", cardID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("card", cardID)
	}

	return nil
}

// Delete removes one card.
func (r *CardRepo) Delete(ctx context.Context, userID, id string) error {
	result, err := r.conn.ExecContext(ctx,
		`DELETE FROM cards WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting card %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("card", id)
	}

	return nil
}

// DeleteAll removes every card the user owns. Used by restore with
// clearExisting; deleting zero rows is fine.
func (r *CardRepo) DeleteAll(ctx context.Context, userID string) error {
	if _, err := r.conn.ExecContext(ctx,
		`DELETE FROM cards WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting all cards: %w", err)
	}
	return nil
}

func collectCards(rows *sql.Rows) ([]model.Card, error) {
	var cards []model.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning card row: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating cards: %w", err)
	}
	return cards, nil
}

func scanCard(s scanner) (*model.Card, error) {
	var card model.Card
	err := s.Scan(
		&card.ID, &card.UserID, &card.CollectionID, &card.Player, &card.Team,
		&card.Year, &card.Brand, &card.Category, &card.CardNumber,
		&card.Parallel, &card.Condition, &card.GradingCompany,
		&card.PurchasePrice, &card.PurchaseDate, &card.CurrentValue,
		&card.SellPrice, &card.SellDate, &card.Notes,
		&card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &card, nil
}
