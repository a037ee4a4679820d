package storage

// SongStats aggregates how often a song came up and how often it was guessed.
type SongStats struct {
	Plays   int `json:"plays"`
	Guessed int `json:"guessed"`
}

// IncrementSongPlays bumps a song's play counter, and its guessed counter
// when the round was won.
func (s *Storage) IncrementSongPlays(videoID string, guessed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &SongStats{}
	s.getRecord(songKeyPrefix+videoID, rec)
	rec.Plays++
	if guessed {
		rec.Guessed++
	}
	return s.putRecord(songKeyPrefix+videoID, rec)
}

// GetSongStats returns a song's aggregate counters.
func (s *Storage) GetSongStats(videoID string) (*SongStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &SongStats{}
	s.getRecord(songKeyPrefix+videoID, rec)
	return rec, nil
}
