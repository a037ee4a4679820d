package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/tunequiz/internal/prefs"
	"github.com/keshon/tunequiz/internal/songs"
)

// Kind selects the session variant.
type Kind string

const (
	KindGame      Kind = "game"      // competitive guessing
	KindListening Kind = "listening" // passive playback with skip votes
)

var (
	ErrSessionFinished = errors.New("session is finished")
	ErrRoundActive     = errors.New("a round is already active")
	ErrNoVoiceMembers  = errors.New("no listeners in the voice channel")
)

// RoundOutcome describes how a round ended.
type RoundOutcome int

const (
	OutcomeGuessed RoundOutcome = iota
	OutcomeTimeout
	OutcomeSkipped
	OutcomeAllWrong
	OutcomeError
)

// RoundEnd carries a finished round's settled results into endRound.
type RoundEnd struct {
	Outcome RoundOutcome
	Results []RoundResultEntry

	// NoPenalty exempts the round from streak resets and elimination life
	// loss; set for skips and stream errors.
	NoPenalty bool
}

// Deps bundles the collaborators a session needs. All of them must be set.
type Deps struct {
	Transport VoiceTransport
	Messenger Messenger
	Store     Store
	Presence  Presence
	Prefs     *prefs.Manager
	Picker    SongPicker

	// Rand drives seek offsets, EXP jitter and owner picks; nil means
	// time-seeded.
	Rand *rand.Rand

	// MultiGuessDelay is the grace window after the first correct guess.
	MultiGuessDelay time.Duration

	// PowerHour is the UTC hour of the bonus window, -1 when disabled.
	PowerHour int
}

// Session owns one guild's game lifecycle. At most one live session exists
// per guild; the Registry enforces that. All state transitions happen under
// the session mutex, and every asynchronous continuation re-checks the
// terminal flag before touching state.
type Session struct {
	kind          Kind
	guildID       string
	textChannelID string

	deps Deps
	rng  *rand.Rand

	mu             sync.Mutex
	voiceChannelID string
	ownerID        string
	createdAt      time.Time
	lastActive     time.Time

	initialized bool
	finished    bool

	round        Round
	roundsPlayed int

	scoreboard Scoreboard

	conn Connection
	sub  Subscription

	timer roundTimer

	poolLoaded bool
	premium    bool

	streakUser  string
	streakCount int

	settlePending bool

	ring          *bookmarkRing
	userBookmarks map[string]map[string]*songs.Song

	// onEnd runs exactly once after teardown; the registry uses it to drop
	// the guild mapping.
	onEnd func(*Session)
}

// NewGameSession creates a competitive session. The scoreboard variant is
// fixed at creation from the guild's current options: teams, elimination or
// classic.
func NewGameSession(guildID, textChannelID, voiceChannelID, ownerID string, deps Deps) *Session {
	s := newSession(KindGame, guildID, textChannelID, voiceChannelID, ownerID, deps)

	p := deps.Prefs.Get(guildID)
	switch {
	case p.TeamsEnabled:
		s.scoreboard = NewTeamScoreboard()
	case p.Elimination:
		s.scoreboard = NewEliminationScoreboard(p.Lives)
	default:
		s.scoreboard = NewClassicScoreboard()
	}
	return s
}

// NewListeningSession creates a passive playback session: no scoreboard, no
// guessing, skip votes and bookmarks only.
func NewListeningSession(guildID, textChannelID, voiceChannelID, ownerID string, deps Deps) *Session {
	return newSession(KindListening, guildID, textChannelID, voiceChannelID, ownerID, deps)
}

func newSession(kind Kind, guildID, textChannelID, voiceChannelID, ownerID string, deps Deps) *Session {
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := time.Now()
	s := &Session{
		kind:           kind,
		guildID:        guildID,
		textChannelID:  textChannelID,
		voiceChannelID: voiceChannelID,
		ownerID:        ownerID,
		deps:           deps,
		rng:            rng,
		createdAt:      now,
		lastActive:     now,
		ring:           newBookmarkRing(),
		userBookmarks:  make(map[string]map[string]*songs.Song),
		onEnd:          func(*Session) {},
	}

	// Option edits mid-game rebuild the song pool on the next round.
	deps.Prefs.SetReloadHook(guildID, func(p *prefs.Snapshot) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.finished {
			return
		}
		s.poolLoaded = false
		log.Info().Str("guild_id", guildID).Msg("guild options changed, song pool marked for reload")
	})
	return s
}

// --- accessors ---

func (s *Session) Kind() Kind       { return s.kind }
func (s *Session) GuildID() string  { return s.guildID }
func (s *Session) TextChannelID() string { return s.textChannelID }

func (s *Session) VoiceChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceChannelID
}

func (s *Session) OwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID
}

func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

func (s *Session) RoundsPlayed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundsPlayed
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// ScoreFields returns an embed-ready snapshot of the scoreboard, nil for
// listening sessions. Safe to call while rounds are running.
func (s *Session) ScoreFields() []MessageField {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scoreboard == nil {
		return nil
	}
	return s.scoreboard.Fields()
}

// SetVoiceChannel follows the owner when they move to another voice channel.
func (s *Session) SetVoiceChannel(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || channelID == "" || channelID == s.voiceChannelID {
		return
	}
	s.voiceChannelID = channelID
	log.Info().Str("guild_id", s.guildID).Str("channel_id", channelID).Msg("session voice channel moved")
}

// --- round lifecycle ---

// StartRound materializes the song pool if needed, draws a song, verifies the
// voice channel, ensures the connection and begins playback. On any failure
// the session is ended with a user-facing explanation and no dangling round.
func (s *Session) StartRound(ctx context.Context) error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return ErrSessionFinished
	}
	if s.round != nil {
		s.mu.Unlock()
		return ErrRoundActive
	}
	premium := s.premium
	voiceCh := s.voiceChannelID
	poolLoaded := s.poolLoaded
	s.mu.Unlock()

	p := s.deps.Prefs.Get(s.guildID)

	if !poolLoaded {
		if err := s.deps.Picker.Reload(p, premium); err != nil {
			s.failSession("Song pool unavailable", "No songs match the current game options. Adjust them with /options and try again.", err)
			return err
		}
		s.mu.Lock()
		s.poolLoaded = true
		s.mu.Unlock()
	}

	if s.deps.Picker.UniqueExhausted() {
		s.deps.Picker.ResetUnique()
		s.notifyInfo("Song pool exhausted", "Every song in the pool has been played. Shuffling them back in.")
	}

	song, err := s.deps.Picker.QueryRandom(p)
	if err != nil {
		s.failSession("Song pool unavailable", "No songs match the current game options.", err)
		return err
	}
	if song == nil {
		// Exhaustion raced the check above; reset and retry once.
		s.deps.Picker.ResetUnique()
		if song, err = s.deps.Picker.QueryRandom(p); err != nil || song == nil {
			s.failSession("Song pool unavailable", "No songs match the current game options.", songs.ErrEmptyPool)
			return songs.ErrEmptyPool
		}
	}

	members, err := s.deps.Presence.VoiceMembers(s.guildID, voiceCh)
	if err != nil || len(humans(members)) == 0 {
		s.failSession("Nobody is listening", "The voice channel is empty or unreachable, ending the game.", err)
		return ErrNoVoiceMembers
	}

	conn, err := s.deps.Transport.EnsureConnection(s.guildID, voiceCh)
	if err != nil {
		s.failSession("Voice connection failed", "Couldn't join the voice channel, ending the game.", err)
		return fmt.Errorf("ensure voice connection: %w", err)
	}

	round := s.newRound(song, p)
	seek := s.seekStart(p, song)

	sub, err := conn.Play(song, seek)
	if err != nil {
		s.failSession("Playback failed", "Couldn't start the song, ending the game.", err)
		return fmt.Errorf("start playback: %w", err)
	}

	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		sub.Close()
		return ErrSessionFinished
	}
	if s.round != nil {
		// Concurrent double start; the first one wins.
		s.mu.Unlock()
		sub.Close()
		return ErrRoundActive
	}
	if s.sub != nil {
		// Replace, never stack, the playback listener.
		s.sub.Close()
	}
	s.round = round
	s.conn = conn
	s.sub = sub
	s.settlePending = false
	s.initialized = true
	s.premium = anyPremium(members)
	s.lastActive = time.Now()
	if p.TimerSeconds > 0 {
		d := time.Duration(p.TimerSeconds) * time.Second
		s.timer.Arm(d, func() { s.onGuessTimeout(round) })
	}
	s.mu.Unlock()

	log.Debug().
		Str("guild_id", s.guildID).
		Str("video_id", song.VideoID).
		Dur("seek", seek).
		Msg("round started")

	s.announceRound(round, p)
	go s.watchPlayback(sub, round)
	return nil
}

func (s *Session) newRound(song *songs.Song, p *prefs.Snapshot) Round {
	if s.kind == KindListening {
		return NewListeningRound(song)
	}
	var choices []*songs.Song
	if p.AnswerType == prefs.AnswerMultipleChoice {
		n := p.ChoiceCount
		if n < 2 {
			n = 4
		}
		choices = s.deps.Picker.QueryRandomN(n-1, song)
		choices = append(choices, song)
		s.rng.Shuffle(len(choices), func(i, j int) {
			choices[i], choices[j] = choices[j], choices[i]
		})
	}
	return NewGuessRound(song, choices)
}

// seekStart picks the playback offset. Listening sessions always start at the
// top of the track; game sessions follow the configured seek policy.
func (s *Session) seekStart(p *prefs.Snapshot, song *songs.Song) time.Duration {
	if s.kind == KindListening {
		return 0
	}
	dur := time.Duration(song.DurationSec) * time.Second
	if dur <= 0 {
		return 0
	}
	switch p.SeekType {
	case prefs.SeekBeginning:
		return 0
	case prefs.SeekMiddle:
		// A random window around the middle of the track.
		lo := dur * 4 / 10
		span := dur * 2 / 10
		return lo + time.Duration(s.rng.Int63n(int64(span)+1))
	default: // SeekRandom
		// Uniform within the first 60%, backed off a little so there is
		// always something left to hear.
		limit := dur * 6 / 10
		back := time.Duration(s.rng.Int63n(int64(5*time.Second) + 1))
		offset := time.Duration(s.rng.Int63n(int64(limit) + 1))
		if offset > back {
			return offset - back
		}
		return 0
	}
}

// watchPlayback waits for the one completion signal of this round's play.
// A closed channel means the subscription was replaced or torn down.
func (s *Session) watchPlayback(sub Subscription, round Round) {
	res, ok := <-sub.Done()
	if !ok {
		return
	}
	s.onPlaybackDone(round, res)
}

func (s *Session) onPlaybackDone(round Round, res PlayResult) {
	s.mu.Lock()
	if s.finished || s.round != round {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if res.Err != nil {
		log.Warn().Err(res.Err).Str("guild_id", s.guildID).Msg("playback stream error, restarting round")
		s.notifyError("Playback hiccup", "The song stream broke. Starting a new round.")
		if s.endRound(round, RoundEnd{Outcome: OutcomeError, NoPenalty: true}) {
			_ = s.StartRound(context.Background())
		}
		return
	}

	// Natural end of stream counts as a no-guess timeout.
	if s.endRound(round, RoundEnd{Outcome: OutcomeTimeout}) {
		_ = s.StartRound(context.Background())
	}
}

func (s *Session) onGuessTimeout(round Round) {
	if s.endRound(round, RoundEnd{Outcome: OutcomeTimeout}) {
		_ = s.StartRound(context.Background())
	}
}

// endRound tears down the current round: detach (exactly once), cancel the
// guess timer, close the playback subscription, apply results and decide
// whether the game continues. Returns true when the caller should start the
// next round. Never propagates persistence errors.
func (s *Session) endRound(round Round, res RoundEnd) bool {
	p := s.deps.Prefs.Get(s.guildID)

	s.mu.Lock()
	if s.finished || s.round == nil || (round != nil && s.round != round) {
		s.mu.Unlock()
		return false
	}
	if s.settlePending && res.Outcome != OutcomeGuessed {
		// A correct guess is waiting out the multi-guess grace window; its
		// settle call owns the round end.
		s.mu.Unlock()
		return false
	}

	ended := s.round
	s.round = nil
	s.settlePending = false
	s.timer.Stop()
	if s.sub != nil {
		s.sub.Close()
		s.sub = nil
	}

	if res.Outcome != OutcomeError {
		s.roundsPlayed++
	}
	s.lastActive = time.Now()

	if !res.NoPenalty || len(res.Results) > 0 {
		s.updateStreakLocked(res.Results)
		if s.scoreboard != nil {
			s.scoreboard.Update(res.Results)
		}
	}

	duration := time.Duration(p.DurationMinutes) * time.Minute
	durationUp := duration > 0 && time.Since(s.createdAt) >= duration
	goalReached := s.scoreboard != nil && s.scoreboard.GameFinished(p)
	gameOver := durationUp || goalReached
	s.mu.Unlock()

	msgID := s.announceRoundResult(ended, res)

	s.mu.Lock()
	s.ring.add(msgID, ended.Song())
	s.mu.Unlock()

	if err := s.deps.Store.IncrementSongPlays(ended.Song().VideoID, len(res.Results) > 0); err != nil {
		log.Warn().Err(err).Str("video_id", ended.Song().VideoID).Msg("failed to update song stats")
	}
	if err := s.deps.Store.RecordGuildActivity(s.guildID, time.Now()); err != nil {
		log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to record guild activity")
	}

	if gameOver {
		s.EndSession()
		return false
	}
	return true
}

// updateStreakLocked advances or resets the consecutive-winner streak. The
// streak belongs to the single most recent distinct first guesser.
func (s *Session) updateStreakLocked(results []RoundResultEntry) {
	if len(results) == 0 {
		s.streakUser, s.streakCount = "", 0
		return
	}
	first := results[0].UserID
	if s.streakUser == first {
		s.streakCount++
	} else {
		s.streakUser, s.streakCount = first, 1
	}
}

// failSession reports a fatal condition to the text channel and ends the
// session. The explanation is delivered exactly once; EndSession is
// idempotent so concurrent failures collapse.
func (s *Session) failSession(title, description string, cause error) {
	log.Error().Err(cause).Str("guild_id", s.guildID).Str("reason", title).Msg("session failed")
	s.notifyError(title, description)
	s.EndSession()
}

func (s *Session) notifyInfo(title, description string) {
	if _, err := s.deps.Messenger.SendInfo(s.textChannelID, MessagePayload{Title: title, Description: description}); err != nil {
		log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to send info message")
	}
}

func (s *Session) notifyError(title, description string) {
	if _, err := s.deps.Messenger.SendError(s.textChannelID, MessagePayload{Title: title, Description: description}); err != nil {
		log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to send error message")
	}
}

func humans(members []Member) []Member {
	out := members[:0:0]
	for _, m := range members {
		if !m.Bot {
			out = append(out, m)
		}
	}
	return out
}

func anyPremium(members []Member) bool {
	for _, m := range members {
		if m.Premium {
			return true
		}
	}
	return false
}
