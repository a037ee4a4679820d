package storage

import (
	"time"

	"github.com/keshon/tunequiz/internal/game"
	"github.com/keshon/tunequiz/internal/prefs"
)

// GuildRecord is everything stored per guild: preferences, activity counters
// and the last session's leaderboard snapshot.
type GuildRecord struct {
	Prefs        *prefs.Snapshot      `json:"prefs,omitempty"`
	GamesPlayed  int                  `json:"games_played"`
	LastActiveAt time.Time            `json:"last_active_at"`
	Leaderboard  []game.SnapshotEntry `json:"leaderboard,omitempty"`
	LeaderboardAt time.Time           `json:"leaderboard_at"`
}

func (s *Storage) getOrCreateGuildRecord(guildID string) *GuildRecord {
	rec := &GuildRecord{}
	s.getRecord(guildKeyPrefix+guildID, rec)
	return rec
}

// LoadGuildPrefs returns the guild's stored options, nil when none are saved.
func (s *Storage) LoadGuildPrefs(guildID string) (*prefs.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateGuildRecord(guildID).Prefs, nil
}

func (s *Storage) SaveGuildPrefs(guildID string, p *prefs.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateGuildRecord(guildID)
	rec.Prefs = p
	return s.putRecord(guildKeyPrefix+guildID, rec)
}

func (s *Storage) RecordGuildActivity(guildID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateGuildRecord(guildID)
	if at.After(rec.LastActiveAt) {
		rec.LastActiveAt = at
	}
	return s.putRecord(guildKeyPrefix+guildID, rec)
}

func (s *Storage) IncrementGuildGames(guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateGuildRecord(guildID)
	rec.GamesPlayed++
	return s.putRecord(guildKeyPrefix+guildID, rec)
}

// SaveLeaderboardSnapshot overwrites the guild's end-of-session leaderboard.
func (s *Storage) SaveLeaderboardSnapshot(guildID string, entries []game.SnapshotEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateGuildRecord(guildID)
	rec.Leaderboard = entries
	rec.LeaderboardAt = time.Now()
	return s.putRecord(guildKeyPrefix+guildID, rec)
}

// GetLeaderboardSnapshot returns the guild's last persisted leaderboard and
// when it was taken.
func (s *Storage) GetLeaderboardSnapshot(guildID string) ([]game.SnapshotEntry, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateGuildRecord(guildID)
	return rec.Leaderboard, rec.LeaderboardAt, nil
}
