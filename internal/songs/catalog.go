package songs

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
)

// Catalog is the full immutable song list loaded at startup. Selectors filter
// it per guild; the catalog itself is shared and never mutated after load.
type Catalog struct {
	songs []Song
}

// LoadCatalog reads the song list from a JSON file and sorts it by descending
// view count so limit filters can slice the top of the list directly.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read songs catalog: %w", err)
	}

	var list []Song
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse songs catalog: %w", err)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Views > list[j].Views })
	log.Info().Int("songs", len(list)).Str("path", path).Msg("song catalog loaded")
	return &Catalog{songs: list}, nil
}

// NewCatalog wraps an in-memory song list, sorted by descending views.
func NewCatalog(list []Song) *Catalog {
	sorted := make([]Song, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Views > sorted[j].Views })
	return &Catalog{songs: sorted}
}

// Size returns the number of songs in the catalog.
func (c *Catalog) Size() int { return len(c.songs) }
