package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/tunequiz/internal/prefs"
	"github.com/keshon/tunequiz/internal/songs"
)

// SetOnEnd registers the hook run exactly once after session teardown. The
// registry uses it to drop the guild mapping.
func (s *Session) SetOnEnd(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.onEnd = fn
	}
}

// EndSession terminates the session: detaches the round, releases voice,
// flushes bookmarks, commits statistics and announces the results. Guarded by
// a single check-and-set of the terminal flag, so concurrent end triggers
// (duration expiry, manual stop, all-eliminated) collapse into one execution.
// Persistence failures are logged and never block the announcement.
func (s *Session) EndSession() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true

	s.round = nil
	s.settlePending = false
	s.timer.Stop()
	sub := s.sub
	s.sub = nil
	conn := s.conn
	s.conn = nil

	initialized := s.initialized
	bookmarks := s.userBookmarks
	s.userBookmarks = nil
	onEnd := s.onEnd
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	if conn != nil {
		conn.Close()
	}
	s.deps.Prefs.SetReloadHook(s.guildID, nil)

	s.flushBookmarks(bookmarks)

	var levelUps []string
	if initialized {
		levelUps = s.commitStats()
	}

	s.announceGameEnd(levelUps)
	onEnd(s)

	log.Info().
		Str("guild_id", s.guildID).
		Str("kind", string(s.kind)).
		Int("rounds", s.RoundsPlayed()).
		Msg("session ended")
}

// flushBookmarks delivers each user's collected songs by DM and persists the
// association. Each user is handled independently; one failure never blocks
// the rest.
func (s *Session) flushBookmarks(bookmarks map[string]map[string]*songs.Song) {
	for userID, set := range bookmarks {
		if len(set) == 0 {
			continue
		}
		var lines []string
		ids := make([]string, 0, len(set))
		for id, song := range set {
			ids = append(ids, id)
			lines = append(lines, fmt.Sprintf("%s — %s\n%s", song.Title, song.Artist, song.URL()))
		}

		if err := s.deps.Messenger.SendDM(userID, MessagePayload{
			Title:       "Your bookmarked songs",
			Description: strings.Join(lines, "\n\n"),
		}); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("failed to deliver bookmarks")
		}
		if err := s.deps.Store.AddBookmarks(userID, ids); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("failed to persist bookmarks")
		}
	}
}

// commitStats writes guild and player statistics plus the leaderboard
// snapshot, each operation isolated, and returns rendered level-up lines.
// Called without the session lock held; scoreboard state is snapshotted under
// the lock before any store call runs.
func (s *Session) commitStats() []string {
	if err := s.deps.Store.IncrementGuildGames(s.guildID); err != nil {
		log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to increment guild games")
	}
	if err := s.deps.Store.RecordGuildActivity(s.guildID, time.Now()); err != nil {
		log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to record guild activity")
	}

	s.mu.Lock()
	if s.scoreboard == nil {
		s.mu.Unlock()
		return nil
	}
	entries := make([]SnapshotEntry, 0)
	deltas := make([]PlayerStatsDelta, 0)
	for _, p := range s.scoreboard.Players() {
		entries = append(entries, SnapshotEntry{
			UserID: p.ID,
			Name:   p.Name,
			Score:  s.scoreboard.DisplayedScore(p.ID),
			Exp:    p.ExpGained,
		})
		deltas = append(deltas, PlayerStatsDelta{
			UserID:       p.ID,
			SongsGuessed: songsGuessed(p),
			ExpGained:    p.ExpGained,
		})
	}
	s.mu.Unlock()

	var levelUps []string
	for i, delta := range deltas {
		stats, err := s.deps.Store.ApplyPlayerStatsDelta(delta)
		if err != nil {
			log.Warn().Err(err).Str("user_id", delta.UserID).Msg("failed to update player stats")
			continue
		}
		before := LevelForExp(stats.Exp - delta.ExpGained)
		after := LevelForExp(stats.Exp)
		if after > before {
			levelUps = append(levelUps, fmt.Sprintf("%s reached level %d!", entries[i].Name, after))
		}
	}

	if len(entries) > 0 {
		if err := s.deps.Store.SaveLeaderboardSnapshot(s.guildID, entries); err != nil {
			log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to save leaderboard snapshot")
		}
	}
	return levelUps
}

func songsGuessed(p *Player) int {
	// Fractional points still count the guesses; round up so a half-credit
	// guess is not lost.
	f, _ := p.Score.Float64()
	return int(f + 0.999)
}

// HandleVoiceUpdate re-reads voice membership after any voice state change:
// recomputes the premium flag, refreshes in-VC markers and reassigns the
// owner when they left. No-op once the session is finished.
func (s *Session) HandleVoiceUpdate() {
	members, err := s.deps.Presence.VoiceMembers(s.guildID, s.VoiceChannelID())
	if err != nil {
		return
	}
	h := humans(members)
	present := make(map[string]bool, len(h))
	for _, m := range h {
		present[m.ID] = true
	}

	var newOwner string
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.premium = anyPremium(members)
	if s.scoreboard != nil {
		for _, p := range s.scoreboard.Players() {
			s.scoreboard.SetInVC(p.ID, present[p.ID])
		}
	}

	if !present[s.ownerID] && len(h) > 0 {
		newOwner = s.pickOwnerLocked(h, present)
		if newOwner != "" {
			s.ownerID = newOwner
		}
	}
	s.mu.Unlock()

	if newOwner != "" {
		s.notifyInfo("New game owner", fmt.Sprintf("<@%s> now controls the session.", newOwner))
		log.Info().Str("guild_id", s.guildID).Str("owner_id", newOwner).Msg("session owner reassigned")
	}
}

// pickOwnerLocked applies the variant policy: game sessions hand control to
// the first still-present scoreboard participant, listening sessions to a
// random member.
func (s *Session) pickOwnerLocked(h []Member, present map[string]bool) string {
	if s.kind == KindGame && s.scoreboard != nil {
		for _, p := range s.scoreboard.Players() {
			if present[p.ID] {
				return p.ID
			}
		}
	}
	if len(h) == 0 {
		return ""
	}
	return h[s.rng.Intn(len(h))].ID
}

// --- announcements ---

// announceRound posts the round's interactive message: answer buttons in
// multiple-choice mode, a now-playing card with skip/bookmark controls for
// listening sessions. Typing rounds stay silent so nothing leaks the answer.
func (s *Session) announceRound(round Round, p *prefs.Snapshot) {
	switch r := round.(type) {
	case *ListeningRound:
		song := r.Song()
		msgID, err := s.deps.Messenger.SendRound(s.textChannelID, MessagePayload{
			Title:       "Now playing",
			Description: fmt.Sprintf("**%s** — %s", song.Title, song.Artist),
			Thumbnail:   thumbnailURL(song),
			Buttons: []Button{
				{CustomID: "skip:" + r.CorrelationID(), Label: "Skip", Emoji: "⏭️"},
				{CustomID: "bookmark:" + r.CorrelationID(), Label: "Bookmark", Emoji: "🔖"},
			},
		})
		if err != nil {
			log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to send now-playing message")
			return
		}
		s.mu.Lock()
		s.ring.add(msgID, song)
		s.mu.Unlock()
	case *GuessRound:
		if len(r.Choices()) == 0 {
			return
		}
		buttons := make([]Button, 0, len(r.Choices()))
		for i, c := range r.Choices() {
			label := c.Title
			if p.GuessMode == prefs.GuessModeArtist {
				label = c.Artist
			}
			buttons = append(buttons, Button{
				CustomID: fmt.Sprintf("answer:%s:%d", r.CorrelationID(), i),
				Label:    label,
			})
		}
		if _, err := s.deps.Messenger.SendRound(s.textChannelID, MessagePayload{
			Title:       "Guess the song",
			Description: "Pick the answer you hear. One wrong press locks you out for the round.",
			Buttons:     buttons,
		}); err != nil {
			log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to send answer buttons")
		}
	}
}

// announceRoundResult reveals the song and the round outcome, returning the
// message ID for the bookmark ring. Called without the session lock held.
func (s *Session) announceRoundResult(round Round, res RoundEnd) string {
	song := round.Song()

	var title, desc string
	var fields []MessageField
	s.mu.Lock()
	switch res.Outcome {
	case OutcomeGuessed:
		title = "Correct!"
		desc = winnersLine(res.Results, s.scoreboard)
		if s.scoreboard != nil {
			fields = s.scoreboard.Fields()
		}
	case OutcomeTimeout:
		title = "Time's up"
	case OutcomeSkipped:
		title = "Skipped"
	case OutcomeAllWrong:
		title = "Nobody got it"
	case OutcomeError:
		title = "Round aborted"
	}
	s.mu.Unlock()
	desc += fmt.Sprintf("\nThe song was **%s** — %s\n%s", song.Title, song.Artist, song.URL())

	payload := MessagePayload{
		Title:       title,
		Description: strings.TrimSpace(desc),
		Thumbnail:   thumbnailURL(song),
		Fields:      fields,
		Buttons: []Button{
			{CustomID: "bookmark:" + round.CorrelationID(), Label: "Bookmark", Emoji: "🔖"},
		},
	}

	msgID, err := s.deps.Messenger.SendRound(s.textChannelID, payload)
	if err != nil {
		log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to send round result")
		return ""
	}
	return msgID
}

func winnersLine(results []RoundResultEntry, sb Scoreboard) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		name := r.UserID
		if sb != nil {
			if p, ok := sb.Player(r.UserID); ok {
				name = p.Name
			}
		}
		parts = append(parts, fmt.Sprintf("**%s** (+%s, +%.0f EXP)", name, r.Points.String(), r.Exp))
	}
	return strings.Join(parts, ", ")
}

// announceGameEnd posts the final standings. Called without the session lock
// held.
func (s *Session) announceGameEnd(levelUps []string) {
	payload := MessagePayload{Title: "Game over"}

	s.mu.Lock()
	if s.scoreboard != nil && len(s.scoreboard.Players()) > 0 {
		winners := s.scoreboard.Winners()
		names := make([]string, 0, len(winners))
		for _, w := range winners {
			names = append(names, fmt.Sprintf("%s (%s)", w.Name, expSummary(w)))
		}
		payload.Description = "Winner: " + strings.Join(names, ", ")
		payload.Fields = s.scoreboard.Fields()
	} else {
		payload.Description = "Thanks for listening!"
	}
	s.mu.Unlock()
	if len(levelUps) > 0 {
		payload.Fields = append(payload.Fields, MessageField{
			Name:  "Level ups",
			Value: strings.Join(levelUps, "\n"),
		})
	}

	if _, err := s.deps.Messenger.SendInfo(s.textChannelID, payload); err != nil {
		log.Warn().Err(err).Str("guild_id", s.guildID).Msg("failed to announce game end")
	}
}

func thumbnailURL(song *songs.Song) string {
	return "https://i.ytimg.com/vi/" + song.VideoID + "/hqdefault.jpg"
}
