package game

import (
	"time"

	"github.com/google/uuid"

	"github.com/keshon/tunequiz/internal/prefs"
	"github.com/keshon/tunequiz/internal/songs"
)

// Round is one song's play-through. Rounds carry no locking of their own; the
// owning session serializes all access.
type Round interface {
	Song() *songs.Song
	StartedAt() time.Time
	Finished() bool
	Finish()

	// CorrelationID ties interactive components (answer buttons, skip,
	// bookmark) to this round. Interactions carrying another round's ID are
	// stale and must be rejected.
	CorrelationID() string
}

// CorrectGuess is one credited guesser, in guess order. Points are assigned
// when the round settles, since they depend on the guesser's position.
type CorrectGuess struct {
	UserID string
	At     time.Time
}

// GuessRound is the competitive round: free-text or multiple-choice guessing
// against the song's title and/or artist.
type GuessRound struct {
	song      *songs.Song
	startedAt time.Time
	finished  bool
	corrID    string

	correct   []CorrectGuess
	incorrect map[string]struct{}

	hintUsed bool

	// Multiple choice state: the button order shown, correct index included.
	choices []*songs.Song
}

func NewGuessRound(song *songs.Song, choices []*songs.Song) *GuessRound {
	return &GuessRound{
		song:      song,
		startedAt: time.Now(),
		corrID:    uuid.NewString(),
		incorrect: make(map[string]struct{}),
		choices:   choices,
	}
}

func (r *GuessRound) Song() *songs.Song    { return r.song }
func (r *GuessRound) StartedAt() time.Time { return r.startedAt }
func (r *GuessRound) Finished() bool       { return r.finished }
func (r *GuessRound) Finish()              { r.finished = true }
func (r *GuessRound) CorrelationID() string { return r.corrID }

// CheckGuess evaluates a free-text guess against the round's song under the
// given guess mode. Alias lists are checked alongside canonical names.
func (r *GuessRound) CheckGuess(text string, mode prefs.GuessMode) bool {
	switch mode {
	case prefs.GuessModeArtist:
		return answerMatches(text, r.song.ArtistNames())
	case prefs.GuessModeBoth:
		return answerMatches(text, r.song.TitleNames()) || answerMatches(text, r.song.ArtistNames())
	default:
		return answerMatches(text, r.song.TitleNames())
	}
}

// Choices returns the multiple-choice candidate songs, nil for typing mode.
func (r *GuessRound) Choices() []*songs.Song { return r.choices }

// CheckChoice evaluates a multiple-choice button press by index.
func (r *GuessRound) CheckChoice(index int) bool {
	if index < 0 || index >= len(r.choices) {
		return false
	}
	return r.choices[index].VideoID == r.song.VideoID
}

// RecordCorrect appends a correct guesser once; repeats are ignored. Returns
// the guesser's position (0 = first) and whether the record was accepted.
func (r *GuessRound) RecordCorrect(userID string) (int, bool) {
	for _, g := range r.correct {
		if g.UserID == userID {
			return 0, false
		}
	}
	r.correct = append(r.correct, CorrectGuess{UserID: userID, At: time.Now()})
	return len(r.correct) - 1, true
}

// CorrectGuessers returns the credited guessers in guess order.
func (r *GuessRound) CorrectGuessers() []CorrectGuess { return r.correct }

// RecordIncorrect marks a user as having guessed wrong this round (multiple
// choice locks a user out after a wrong press).
func (r *GuessRound) RecordIncorrect(userID string) {
	r.incorrect[userID] = struct{}{}
}

// GuessedIncorrectly reports whether the user already burned their guess.
func (r *GuessRound) GuessedIncorrectly(userID string) bool {
	_, ok := r.incorrect[userID]
	return ok
}

// AllGuessedWrong reports whether every given user has guessed incorrectly,
// which ends a multiple-choice round with no winner.
func (r *GuessRound) AllGuessedWrong(userIDs []string) bool {
	if len(userIDs) == 0 {
		return false
	}
	for _, id := range userIDs {
		if _, ok := r.incorrect[id]; !ok {
			return false
		}
	}
	return true
}

// UseHint marks the hint as consumed; later correct guesses score reduced
// points. Returns false if the hint was already used.
func (r *GuessRound) UseHint() bool {
	if r.hintUsed {
		return false
	}
	r.hintUsed = true
	return true
}

func (r *GuessRound) HintUsed() bool { return r.hintUsed }

// HintText renders the hint revealed to players: the artist name for title
// mode, otherwise the title's first character outline.
func (r *GuessRound) HintText(mode prefs.GuessMode) string {
	if mode == prefs.GuessModeArtist {
		return "Title: " + r.song.Title
	}
	return "Artist: " + r.song.Artist
}
