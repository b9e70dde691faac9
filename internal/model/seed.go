package model

import "time"

// SeedMarker records which starter-dataset version has been imported for a
// user. Keyed per user on purpose: a single global flag would let the first
// user's import suppress everyone else's.
type SeedMarker struct {
	UserID     string    `json:"userId"`
	Version    int       `json:"version"`
	ImportedAt time.Time `json:"importedAt"`
}
