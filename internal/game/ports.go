// Package game implements the per-guild quiz session engine: session and
// round lifecycle, scoreboards, streak and EXP bookkeeping, song selection
// policy and the guess-timeout scheduling around playback.
//
// The package talks to the outside world only through the narrow interfaces
// in this file; the discord and storage packages provide the production
// implementations, tests provide fakes.
package game

import (
	"time"

	"github.com/keshon/tunequiz/internal/prefs"
	"github.com/keshon/tunequiz/internal/songs"
)

// Member is one user currently in the session's voice channel.
type Member struct {
	ID      string
	Name    string
	Bot     bool
	Premium bool
}

// PlayResult is the single completion signal of one Play invocation.
// A nil Err means the stream reached its natural end.
type PlayResult struct {
	Err error
}

// Subscription delivers exactly one PlayResult for one Play call, unless
// closed first. Close is idempotent and stops playback; after Close no result
// is delivered. A session must close the previous round's subscription before
// creating the next one so end/error handling never stacks across rounds.
type Subscription interface {
	Done() <-chan PlayResult
	Close()
}

// Connection is an established voice connection for one guild.
type Connection interface {
	// Play starts streaming the song from the given offset and returns the
	// subscription carrying its completion signal.
	Play(song *songs.Song, seek time.Duration) (Subscription, error)
	Close()
}

// VoiceTransport creates or reuses voice connections.
type VoiceTransport interface {
	EnsureConnection(guildID, channelID string) (Connection, error)
}

// Presence reads current voice channel membership.
type Presence interface {
	VoiceMembers(guildID, channelID string) ([]Member, error)
}

// MessageField is one name/value pair of an embed-style message.
type MessageField struct {
	Name   string
	Value  string
	Inline bool
}

// Button is one interactive component attached to a message. CustomID carries
// the round correlation ID so stale presses can be rejected.
type Button struct {
	CustomID string
	Label    string
	Emoji    string
}

// MessagePayload is the structured content the engine hands to the messenger.
type MessagePayload struct {
	Title       string
	Description string
	Fields      []MessageField
	Color       int
	Thumbnail   string
	Buttons     []Button
}

// Messenger renders payloads into the guild's text channel or a user DM.
// The returned message ID correlates later bookmark requests.
type Messenger interface {
	SendRound(channelID string, p MessagePayload) (messageID string, err error)
	SendInfo(channelID string, p MessagePayload) (messageID string, err error)
	SendError(channelID string, p MessagePayload) (messageID string, err error)
	SendDM(userID string, p MessagePayload) error
}

// PlayerStats is a player's persisted lifetime record.
type PlayerStats struct {
	UserID       string    `json:"user_id"`
	GamesPlayed  int       `json:"games_played"`
	SongsGuessed int       `json:"songs_guessed"`
	Exp          float64   `json:"exp"`
	Level        int       `json:"level"`
	LastPlayedAt time.Time `json:"last_played_at"`
}

// PlayerStatsDelta is one session's contribution to a player's lifetime stats.
type PlayerStatsDelta struct {
	UserID       string
	SongsGuessed int
	ExpGained    float64
}

// SnapshotEntry is one row of a persisted end-of-session leaderboard.
type SnapshotEntry struct {
	UserID string  `json:"user_id"`
	Name   string  `json:"name"`
	Score  string  `json:"score"`
	Exp    float64 `json:"exp"`
}

// Store is the persistence surface of the engine. Implementations must treat
// every call as independent; the engine logs and ignores individual failures.
type Store interface {
	RecordGuildActivity(guildID string, at time.Time) error
	IncrementGuildGames(guildID string) error
	GetPlayerStats(userID string) (*PlayerStats, error)
	ApplyPlayerStatsDelta(delta PlayerStatsDelta) (*PlayerStats, error)
	SaveLeaderboardSnapshot(guildID string, entries []SnapshotEntry) error
	IncrementSongPlays(videoID string, guessed bool) error
	AddBookmarks(userID string, videoIDs []string) error
}

// SongPicker is the selection surface the session drives. *songs.Selector is
// the production implementation.
type SongPicker interface {
	Reload(p *prefs.Snapshot, premium bool) error
	QueryRandom(p *prefs.Snapshot) (*songs.Song, error)
	QueryRandomN(n int, exclude *songs.Song) []*songs.Song
	UniqueExhausted() bool
	ResetUnique()
	Count() int
}
