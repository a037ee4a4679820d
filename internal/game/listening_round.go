package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/keshon/tunequiz/internal/songs"
)

// ListeningRound is the passive variant: no guessing, only a skip vote and
// bookmarking. A majority of non-bot voice members skips the song.
type ListeningRound struct {
	song      *songs.Song
	startedAt time.Time
	finished  bool
	corrID    string

	skipVotes map[string]struct{}
}

func NewListeningRound(song *songs.Song) *ListeningRound {
	return &ListeningRound{
		song:      song,
		startedAt: time.Now(),
		corrID:    uuid.NewString(),
		skipVotes: make(map[string]struct{}),
	}
}

func (r *ListeningRound) Song() *songs.Song     { return r.song }
func (r *ListeningRound) StartedAt() time.Time  { return r.startedAt }
func (r *ListeningRound) Finished() bool        { return r.finished }
func (r *ListeningRound) Finish()               { r.finished = true }
func (r *ListeningRound) CorrelationID() string { return r.corrID }

// AddSkipVote registers one user's skip vote and returns the current tally.
// Voting twice has no extra effect.
func (r *ListeningRound) AddSkipVote(userID string) int {
	r.skipVotes[userID] = struct{}{}
	return len(r.skipVotes)
}

// SkipMajority reports whether the vote tally has reached a majority of the
// given listener count.
func (r *ListeningRound) SkipMajority(listeners int) bool {
	if listeners <= 0 {
		return false
	}
	return len(r.skipVotes) > listeners/2
}
