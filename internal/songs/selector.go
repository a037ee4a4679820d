package songs

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/keshon/tunequiz/internal/prefs"
)

// Songs available without any premium member in voice.
const freeTierLimit = 1000

var ErrEmptyPool = errors.New("no songs match the current filters")

// Selector owns one guild session's candidate pool: the filtered slice of the
// catalog plus a unique-song queue so a song repeats only after the whole pool
// has been played. Safe for concurrent use.
type Selector struct {
	catalog *Catalog
	rng     *rand.Rand

	mu         sync.Mutex
	pool       []*Song
	played     map[string]struct{}
	lastGender prefs.Gender
}

// NewSelector creates a selector over the shared catalog. The rng is injected
// so draws are reproducible in tests; pass nil for a time-seeded one.
func NewSelector(catalog *Catalog, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = newTimeSeededRand()
	}
	return &Selector{
		catalog: catalog,
		rng:     rng,
		played:  make(map[string]struct{}),
	}
}

// Reload rebuilds the pool from the catalog for the given options. It keeps
// the played set: songs already heard stay excluded until the queue resets.
func (s *Selector) Reload(p *prefs.Snapshot, premium bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := p.Limit
	if !premium && (limit == 0 || limit > freeTierLimit) {
		limit = freeTierLimit
	}

	pool := make([]*Song, 0, len(s.catalog.songs))
	for i := range s.catalog.songs {
		if limit > 0 && i >= limit {
			break
		}
		song := &s.catalog.songs[i]
		if !matchesFilters(song, p) {
			continue
		}
		pool = append(pool, song)
	}
	s.pool = pool

	if len(pool) == 0 {
		return ErrEmptyPool
	}
	return nil
}

func matchesFilters(song *Song, p *prefs.Snapshot) bool {
	if len(p.Genders) > 0 {
		ok := false
		for _, g := range p.Genders {
			if song.Gender == g {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	year := song.PublishedAt.Year()
	if p.BeginningYear > 0 && year < p.BeginningYear {
		return false
	}
	if p.EndYear > 0 && year > p.EndYear {
		return false
	}
	return true
}

// QueryRandom draws one unplayed song, weighted by view count, optionally
// alternating artist gender between consecutive draws. Returns ErrEmptyPool
// when the filter pool itself is empty; returns nil, nil when every pool song
// has been played (callers reset the unique queue and notify the channel).
func (s *Selector) QueryRandom(p *prefs.Snapshot) (*Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pool) == 0 {
		return nil, ErrEmptyPool
	}

	candidates := s.unplayedLocked()
	if len(candidates) == 0 {
		return nil, nil
	}

	if p.AlternateGender && s.lastGender != "" {
		want := prefs.GenderFemale
		if s.lastGender == prefs.GenderFemale {
			want = prefs.GenderMale
		}
		filtered := candidates[:0:0]
		for _, song := range candidates {
			if song.Gender == want {
				filtered = append(filtered, song)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	song := s.weightedDraw(candidates)
	s.played[song.VideoID] = struct{}{}
	s.lastGender = song.Gender
	return song, nil
}

// weightedDraw picks by view count so better-known songs come up more often.
func (s *Selector) weightedDraw(candidates []*Song) *Song {
	var total int64
	for _, song := range candidates {
		total += song.Views + 1
	}
	n := s.rng.Int63n(total)
	for _, song := range candidates {
		n -= song.Views + 1
		if n < 0 {
			return song
		}
	}
	return candidates[len(candidates)-1]
}

// QueryRandomN draws up to n distinct songs without touching the unique queue.
// Used for multiple-choice decoys.
func (s *Selector) QueryRandomN(n int, exclude *Song) []*Song {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Song, 0, n)
	seen := map[string]struct{}{}
	if exclude != nil {
		seen[exclude.VideoID] = struct{}{}
	}
	for _, i := range s.rng.Perm(len(s.pool)) {
		song := s.pool[i]
		if _, dup := seen[song.VideoID]; dup {
			continue
		}
		seen[song.VideoID] = struct{}{}
		out = append(out, song)
		if len(out) == n {
			break
		}
	}
	return out
}

// UniqueExhausted reports whether every song in the pool has been played.
func (s *Selector) UniqueExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool) > 0 && len(s.unplayedLocked()) == 0
}

// ResetUnique clears the played set so the pool can repeat.
func (s *Selector) ResetUnique() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = make(map[string]struct{})
}

// Count returns the current filtered pool size.
func (s *Selector) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool)
}

func (s *Selector) unplayedLocked() []*Song {
	out := make([]*Song, 0, len(s.pool))
	for _, song := range s.pool {
		if _, done := s.played[song.VideoID]; !done {
			out = append(out, song)
		}
	}
	return out
}
