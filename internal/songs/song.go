// Package songs provides the song catalog and the selection policy used to
// draw the next song for a round: preference filtering, view-count weighting,
// a unique-song queue and optional gender alternation.
package songs

import (
	"strings"
	"time"

	"github.com/keshon/tunequiz/internal/prefs"
)

// Song is one playable catalog entry. Names carry a primary and a romanized
// locale plus free-form aliases; VideoID is the canonical external ID used for
// streaming and bookmark links.
type Song struct {
	VideoID string `json:"video_id"`

	Title          string   `json:"title"`
	TitleRomanized string   `json:"title_romanized"`
	TitleAliases   []string `json:"title_aliases,omitempty"`

	Artist          string   `json:"artist"`
	ArtistRomanized string   `json:"artist_romanized"`
	ArtistAliases   []string `json:"artist_aliases,omitempty"`

	Gender      prefs.Gender `json:"gender"`
	PublishedAt time.Time    `json:"published_at"`
	Views       int64        `json:"views"`
	DurationSec int          `json:"duration_sec"`
}

// TitleNames returns every acceptable title answer, canonical names first.
func (s *Song) TitleNames() []string {
	names := make([]string, 0, 2+len(s.TitleAliases))
	names = append(names, s.Title)
	if s.TitleRomanized != "" && !strings.EqualFold(s.TitleRomanized, s.Title) {
		names = append(names, s.TitleRomanized)
	}
	return append(names, s.TitleAliases...)
}

// ArtistNames returns every acceptable artist answer, canonical names first.
func (s *Song) ArtistNames() []string {
	names := make([]string, 0, 2+len(s.ArtistAliases))
	names = append(names, s.Artist)
	if s.ArtistRomanized != "" && !strings.EqualFold(s.ArtistRomanized, s.Artist) {
		names = append(names, s.ArtistRomanized)
	}
	return append(names, s.ArtistAliases...)
}

// URL returns the external watch link for bookmarks and result messages.
func (s *Song) URL() string {
	return "https://www.youtube.com/watch?v=" + s.VideoID
}
