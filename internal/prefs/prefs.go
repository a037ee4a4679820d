// Package prefs holds per-guild game preferences and change notification.
// The zero storage case falls back to defaults, so a guild can always play.
package prefs

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

type GuessMode string

const (
	GuessModeTitle  GuessMode = "title"
	GuessModeArtist GuessMode = "artist"
	GuessModeBoth   GuessMode = "both"
)

type AnswerType string

const (
	AnswerTyping         AnswerType = "typing"
	AnswerMultipleChoice AnswerType = "multiplechoice"
)

type SeekType string

const (
	SeekBeginning SeekType = "beginning"
	SeekRandom    SeekType = "random"
	SeekMiddle    SeekType = "middle"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderCoed   Gender = "coed"
)

// Snapshot is one guild's full option set at a point in time. Sessions read a
// snapshot per round; edits go through Manager so reload hooks fire.
type Snapshot struct {
	Goal            int        `json:"goal"`             // 0 = no goal
	TimerSeconds    int        `json:"timer_seconds"`    // 0 = no guess timeout
	DurationMinutes int        `json:"duration_minutes"` // 0 = unlimited
	GuessMode       GuessMode  `json:"guess_mode"`
	AnswerType      AnswerType `json:"answer_type"`
	ChoiceCount     int        `json:"choice_count"` // buttons shown in multiple choice
	SeekType        SeekType   `json:"seek_type"`
	Lives           int        `json:"lives"` // elimination starting lives
	TeamsEnabled    bool       `json:"teams_enabled"`
	Elimination     bool       `json:"elimination"`
	Genders         []Gender   `json:"genders"`        // empty = all
	AlternateGender bool       `json:"alternate_gender"`
	Limit           int        `json:"limit"` // top-N songs by views, 0 = all
	BeginningYear   int        `json:"beginning_year"`
	EndYear         int        `json:"end_year"`
	HintPenalty     float64    `json:"hint_penalty"` // points multiplier after a hint
}

// Default returns the options used until a guild changes anything.
func Default() *Snapshot {
	return &Snapshot{
		GuessMode:       GuessModeTitle,
		AnswerType:      AnswerTyping,
		ChoiceCount:     4,
		SeekType:        SeekRandom,
		Lives:           10,
		Limit:           500,
		HintPenalty:     0.5,
		TimerSeconds:    0,
		DurationMinutes: 0,
	}
}

// Store is the persistence surface Manager needs.
type Store interface {
	LoadGuildPrefs(guildID string) (*Snapshot, error)
	SaveGuildPrefs(guildID string, p *Snapshot) error
}

// Manager caches snapshots per guild and notifies interested sessions when a
// guild's options change, so the active song pool can be reloaded mid-game.
type Manager struct {
	store Store

	mu     sync.RWMutex
	cache  map[string]*Snapshot
	reload map[string]func(*Snapshot)
}

func NewManager(store Store) *Manager {
	return &Manager{
		store:  store,
		cache:  make(map[string]*Snapshot),
		reload: make(map[string]func(*Snapshot)),
	}
}

// Get returns the guild's current options, loading from storage on first use.
func (m *Manager) Get(guildID string) *Snapshot {
	m.mu.RLock()
	if p, ok := m.cache[guildID]; ok {
		m.mu.RUnlock()
		return p
	}
	m.mu.RUnlock()

	p, err := m.store.LoadGuildPrefs(guildID)
	if err != nil {
		log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to load guild prefs, using defaults")
		p = Default()
	}
	if p == nil {
		p = Default()
	}

	m.mu.Lock()
	m.cache[guildID] = p
	m.mu.Unlock()
	return p
}

// Update applies fn to a copy of the guild's options, persists the result and
// fires the guild's reload hook if one is registered.
func (m *Manager) Update(guildID string, fn func(*Snapshot)) error {
	cur := m.Get(guildID)

	next := *cur
	genders := make([]Gender, len(cur.Genders))
	copy(genders, cur.Genders)
	next.Genders = genders
	fn(&next)

	if err := m.store.SaveGuildPrefs(guildID, &next); err != nil {
		return fmt.Errorf("save guild prefs: %w", err)
	}

	m.mu.Lock()
	m.cache[guildID] = &next
	hook := m.reload[guildID]
	m.mu.Unlock()

	if hook != nil {
		hook(&next)
	}
	return nil
}

// SetReloadHook registers the callback invoked when the guild's options change.
// A nil fn removes the hook. One hook per guild; the active session owns it.
func (m *Manager) SetReloadHook(guildID string, fn func(*Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn == nil {
		delete(m.reload, guildID)
		return
	}
	m.reload[guildID] = fn
}
