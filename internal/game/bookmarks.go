package game

import "github.com/keshon/tunequiz/internal/songs"

// bookmarkRingCap bounds how far back a bookmark button can reach.
const bookmarkRingCap = 50

// bookmarkRing keeps the last N played songs keyed by the result message that
// announced them, so a bookmark press on an older message still resolves.
// Oldest entries are evicted at capacity.
type bookmarkRing struct {
	order []string
	songs map[string]*songs.Song
}

func newBookmarkRing() *bookmarkRing {
	return &bookmarkRing{songs: make(map[string]*songs.Song)}
}

func (r *bookmarkRing) add(messageID string, song *songs.Song) {
	if messageID == "" || song == nil {
		return
	}
	if _, ok := r.songs[messageID]; ok {
		return
	}
	if len(r.order) >= bookmarkRingCap {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.songs, oldest)
	}
	r.order = append(r.order, messageID)
	r.songs[messageID] = song
}

func (r *bookmarkRing) lookup(messageID string) (*songs.Song, bool) {
	s, ok := r.songs[messageID]
	return s, ok
}
