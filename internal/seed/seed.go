// Package seed bundles the starter dataset new users get on first sign-in.
//
// The dataset ships inside the binary via go:embed — no file paths to
// resolve, no missing-file failure mode. Version gates re-imports: bumping it
// (together with editing cards.json) makes the importer run once more for
// users who only have the older dataset.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/sakif/cardbinder/internal/model"
)

// Version is the bundled dataset's version. Bump when cards.json changes.
const Version = 1

//go:embed cards.json
var cardsJSON []byte

// Load parses the embedded dataset. The returned cards carry the bundled
// placeholder ids and no user — the importer re-ids them per user before
// writing anything.
func Load() ([]model.Card, error) {
	var cards []model.Card
	if err := json.Unmarshal(cardsJSON, &cards); err != nil {
		return nil, fmt.Errorf("seed: parsing bundled dataset: %w", err)
	}
	return cards, nil
}
