package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/cardbinder/internal/model"
	"github.com/sakif/cardbinder/internal/repository"
)

// csvHeader is the fixed column order of a card export. Changing it breaks
// spreadsheets users have built on top of previous exports, so treat it as a
// wire format.
var csvHeader = []string{
	"id", "player", "team", "year", "brand", "category", "card_number",
	"parallel", "condition", "grading_company", "purchase_price",
	"purchase_date", "current_value", "sell_price", "sell_date", "notes",
	"created_at", "updated_at",
}

// ExportService renders a user's inventory as CSV.
//
// encoding/csv handles the quoting rules for us: fields containing a comma,
// quote, or newline are wrapped in double quotes with internal quotes doubled
// (RFC 4180).
type ExportService struct {
	cards repository.CardRepository
}

// NewExportService creates an ExportService.
func NewExportService(cards repository.CardRepository) *ExportService {
	return &ExportService{cards: cards}
}

// CardsCSV exports every card the user owns, one row per card, header first.
func (s *ExportService) CardsCSV(ctx context.Context, userID string) ([]byte, error) {
	cards, err := s.cards.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cards for export: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}

	for i := range cards {
		if err := w.Write(cardRow(&cards[i])); err != nil {
			return nil, fmt.Errorf("writing CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV: %w", err)
	}

	return buf.Bytes(), nil
}

func cardRow(c *model.Card) []string {
	return []string{
		c.ID,
		c.Player,
		c.Team,
		strconv.Itoa(c.Year),
		c.Brand,
		c.Category,
		c.CardNumber,
		c.Parallel,
		c.Condition,
		c.GradingCompany,
		formatMoney(c.PurchasePrice),
		c.PurchaseDate,
		formatMoney(c.CurrentValue),
		formatMoney(c.SellPrice),
		c.SellDate,
		c.Notes,
		c.CreatedAt.UTC().Format(time.RFC3339),
		c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// formatMoney renders prices without trailing zeros ("40", "12.5") the way
// they appear in the JSON backup format.
func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
