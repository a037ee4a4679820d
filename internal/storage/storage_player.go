package storage

import (
	"time"

	"github.com/keshon/tunequiz/internal/game"
)

// PlayerRecord is one player's lifetime stats plus their bookmarked songs.
type PlayerRecord struct {
	Stats     game.PlayerStats `json:"stats"`
	Bookmarks []string         `json:"bookmarks,omitempty"`
}

func (s *Storage) getOrCreatePlayerRecord(userID string) *PlayerRecord {
	rec := &PlayerRecord{}
	s.getRecord(playerKeyPrefix+userID, rec)
	if rec.Stats.UserID == "" {
		rec.Stats.UserID = userID
	}
	return rec
}

// GetPlayerStats returns the player's lifetime stats, nil when unknown.
func (s *Storage) GetPlayerStats(userID string) (*game.PlayerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &PlayerRecord{}
	if !s.getRecord(playerKeyPrefix+userID, rec) {
		return nil, nil
	}
	stats := rec.Stats
	return &stats, nil
}

// ApplyPlayerStatsDelta folds one session's results into the player's
// lifetime record and returns the updated stats.
func (s *Storage) ApplyPlayerStatsDelta(delta game.PlayerStatsDelta) (*game.PlayerStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreatePlayerRecord(delta.UserID)
	rec.Stats.GamesPlayed++
	rec.Stats.SongsGuessed += delta.SongsGuessed
	rec.Stats.Exp += delta.ExpGained
	rec.Stats.Level = game.LevelForExp(rec.Stats.Exp)
	rec.Stats.LastPlayedAt = time.Now()
	if err := s.putRecord(playerKeyPrefix+delta.UserID, rec); err != nil {
		return nil, err
	}

	stats := rec.Stats
	return &stats, nil
}

// AddBookmarks appends distinct song IDs to the player's bookmark list.
func (s *Storage) AddBookmarks(userID string, videoIDs []string) error {
	if len(videoIDs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreatePlayerRecord(userID)
	have := make(map[string]struct{}, len(rec.Bookmarks))
	for _, id := range rec.Bookmarks {
		have[id] = struct{}{}
	}
	for _, id := range videoIDs {
		if _, dup := have[id]; !dup {
			rec.Bookmarks = append(rec.Bookmarks, id)
			have[id] = struct{}{}
		}
	}
	return s.putRecord(playerKeyPrefix+userID, rec)
}

// GetBookmarks returns the player's saved song IDs.
func (s *Storage) GetBookmarks(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreatePlayerRecord(userID).Bookmarks, nil
}
