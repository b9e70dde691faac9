package model

import "time"

// Card is a single collectible card in a user's inventory.
//
// OWNERSHIP:
// A card belongs to exactly one user (UserID) and, at any time, exactly one
// collection (CollectionID). The engine never lets a card reference a
// collection owned by a different user.
//
// Money fields are float64 to match the JSON backup format. Dates that the
// user enters by hand (purchase/sell) are free-form strings — the reference
// data contains values like "2023" and "June 2021" that don't parse as
// timestamps, so we store what the user typed.
type Card struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CollectionID   string    `json:"collectionId"`
	Player         string    `json:"player"`
	Team           string    `json:"team,omitempty"`
	Year           int       `json:"year"`
	Brand          string    `json:"brand"`
	Category       string    `json:"category,omitempty"`
	CardNumber     string    `json:"cardNumber,omitempty"`
	Parallel       string    `json:"parallel,omitempty"`
	Condition      string    `json:"condition,omitempty"`
	GradingCompany string    `json:"gradingCompany,omitempty"`
	PurchasePrice  float64   `json:"purchasePrice"`
	PurchaseDate   string    `json:"purchaseDate,omitempty"`
	CurrentValue   float64   `json:"currentValue"`
	SellPrice      float64   `json:"sellPrice,omitempty"`
	SellDate       string    `json:"sellDate,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
