// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Visibility controls who can see a collection.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// DefaultCollectionName is the sentinel name used when the engine has to
// create a default collection on a user's behalf (see EnsureDefault).
const DefaultCollectionName = "My Collection"

// Collection groups a user's cards. Every user with at least one collection
// has exactly one collection with IsDefault set — it is the fallback
// destination for cards that would otherwise be uncategorized.
//
// The `json:"..."` tags tell Go's encoding/json package how to serialize this
// struct to/from JSON for API responses and backup files.
type Collection struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	IsDefault   bool       `json:"isDefault"`
	Visibility  Visibility `json:"visibility"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CollectionPatch describes a partial update to a collection. Nil pointer
// fields mean "leave unchanged" — this is how we distinguish "set description
// to empty" from "don't touch description".
type CollectionPatch struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	Color       *string     `json:"color,omitempty"`
	Icon        *string     `json:"icon,omitempty"`
	IsDefault   *bool       `json:"isDefault,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty"`
	Tags        *[]string   `json:"tags,omitempty"`
}
