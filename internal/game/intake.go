package game

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/tunequiz/internal/prefs"
	"github.com/keshon/tunequiz/internal/songs"
)

// HandleGuess processes a free-text guess from the session's text channel.
// Returns true when the guess was credited. Ineligible, wrong and stale
// guesses all return false without side effects visible to the guesser.
func (s *Session) HandleGuess(userID, username, channelID, text string) bool {
	if s.kind != KindGame || channelID != s.textChannelID {
		return false
	}

	p := s.deps.Prefs.Get(s.guildID)
	if p.AnswerType != prefs.AnswerTyping {
		return false
	}

	members, firstGameDay, ok := s.guesserContext(userID)
	if !ok {
		return false
	}

	s.mu.Lock()
	gr, ok := s.activeGuessRoundLocked()
	if !ok {
		s.mu.Unlock()
		return false
	}
	if !s.eligibleLocked(userID, members) {
		s.mu.Unlock()
		return false
	}
	if !gr.CheckGuess(text, p.GuessMode) {
		s.mu.Unlock()
		return false
	}
	return s.creditCorrectLocked(gr, userID, username, members, firstGameDay)
}

// HandleComponent routes a component interaction (answer button, skip,
// bookmark) to the active round. Interactions carrying a correlation ID that
// is not the current round's are stale and rejected.
func (s *Session) HandleComponent(userID, username, messageID, customID string) bool {
	parts := strings.Split(customID, ":")
	switch parts[0] {
	case "answer":
		if len(parts) != 3 {
			return false
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			return false
		}
		return s.handleAnswerButton(userID, username, parts[1], index)
	case "skip":
		if len(parts) != 2 {
			return false
		}
		return s.handleSkip(userID, parts[1])
	case "bookmark":
		return s.handleBookmark(userID, messageID)
	}
	return false
}

func (s *Session) handleAnswerButton(userID, username, corrID string, index int) bool {
	if s.kind != KindGame {
		return false
	}

	members, firstGameDay, ok := s.guesserContext(userID)
	if !ok {
		return false
	}

	s.mu.Lock()
	gr, ok := s.activeGuessRoundLocked()
	if !ok || gr.CorrelationID() != corrID {
		s.mu.Unlock()
		return false
	}
	if !s.eligibleLocked(userID, members) || gr.GuessedIncorrectly(userID) {
		s.mu.Unlock()
		return false
	}

	if gr.CheckChoice(index) {
		return s.creditCorrectLocked(gr, userID, username, members, firstGameDay)
	}

	gr.RecordIncorrect(userID)
	present := make([]string, 0, len(members))
	for _, m := range humans(members) {
		present = append(present, m.ID)
	}
	allWrong := gr.AllGuessedWrong(present)
	s.mu.Unlock()

	if allWrong {
		if s.endRound(gr, RoundEnd{Outcome: OutcomeAllWrong}) {
			_ = s.StartRound(context.Background())
		}
	}
	return false
}

func (s *Session) handleSkip(userID, corrID string) bool {
	members, err := s.deps.Presence.VoiceMembers(s.guildID, s.VoiceChannelID())
	if err != nil {
		return false
	}
	listeners := len(humans(members))

	s.mu.Lock()
	if s.finished || s.round == nil || s.round.CorrelationID() != corrID {
		s.mu.Unlock()
		return false
	}
	round := s.round

	switch r := round.(type) {
	case *ListeningRound:
		r.AddSkipVote(userID)
		if !r.SkipMajority(listeners) {
			s.mu.Unlock()
			return true
		}
	case *GuessRound:
		// Competitive skips are the owner's call.
		if userID != s.ownerID {
			s.mu.Unlock()
			return false
		}
	}
	s.mu.Unlock()

	if s.endRound(round, RoundEnd{Outcome: OutcomeSkipped, NoPenalty: true}) {
		_ = s.StartRound(context.Background())
	}
	return true
}

// Skip requests a skip of the current round without a component press, for
// the slash command path.
func (s *Session) Skip(userID string) bool {
	s.mu.Lock()
	round := s.round
	s.mu.Unlock()
	if round == nil {
		return false
	}
	return s.handleSkip(userID, round.CorrelationID())
}

func (s *Session) handleBookmark(userID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	song, ok := s.ring.lookup(messageID)
	if !ok {
		return false
	}
	set, ok := s.userBookmarks[userID]
	if !ok {
		set = make(map[string]*songs.Song)
		s.userBookmarks[userID] = set
	}
	set[song.VideoID] = song
	return true
}

// UseHint reveals a hint for the current round. Only the session owner may
// trigger it; later correct guesses score reduced points.
func (s *Session) UseHint(userID string) bool {
	p := s.deps.Prefs.Get(s.guildID)

	s.mu.Lock()
	gr, ok := s.activeGuessRoundLocked()
	if !ok || userID != s.ownerID {
		s.mu.Unlock()
		return false
	}
	if !gr.UseHint() {
		s.mu.Unlock()
		return false
	}
	hint := gr.HintText(p.GuessMode)
	s.mu.Unlock()

	s.notifyInfo("Hint", hint)
	return true
}

// JoinTeam registers a player on a team in team mode. Returns false for
// non-team sessions or once the session is finished.
func (s *Session) JoinTeam(userID, username, team string) bool {
	if team == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	sb, ok := s.scoreboard.(*TeamScoreboard)
	if !ok {
		return false
	}
	if p, exists := sb.Player(userID); exists {
		return p.Team == team
	}
	sb.AddPlayer(&Player{ID: userID, Name: username, InVC: true, Team: team})
	return true
}

// SetVoteBonus flags a player's bonus-vote multiplier for this session.
func (s *Session) SetVoteBonus(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scoreboard == nil {
		return
	}
	if p, ok := s.scoreboard.Player(userID); ok {
		p.VoteBonus = true
	}
}

// --- internals ---

// guesserContext gathers the lock-free inputs of a guess: current voice
// membership and the guesser's first-game-of-day flag.
func (s *Session) guesserContext(userID string) ([]Member, bool, bool) {
	members, err := s.deps.Presence.VoiceMembers(s.guildID, s.VoiceChannelID())
	if err != nil {
		return nil, false, false
	}

	firstGameDay := false
	known := false
	s.mu.Lock()
	if s.scoreboard != nil {
		_, known = s.scoreboard.Player(userID)
	}
	s.mu.Unlock()
	if !known {
		stats, err := s.deps.Store.GetPlayerStats(userID)
		if err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("failed to load player stats")
		}
		firstGameDay = stats == nil || !sameDay(stats.LastPlayedAt, time.Now())
	}
	return members, firstGameDay, true
}

func (s *Session) activeGuessRoundLocked() (*GuessRound, bool) {
	if s.finished || s.round == nil || s.sub == nil {
		return nil, false
	}
	gr, ok := s.round.(*GuessRound)
	return gr, ok
}

// eligibleLocked applies variant-specific guess eligibility: the guesser must
// be in the session's voice channel, not eliminated, and on a team in team
// mode.
func (s *Session) eligibleLocked(userID string, members []Member) bool {
	inVC := false
	for _, m := range members {
		if m.ID == userID && !m.Bot {
			inVC = true
			break
		}
	}
	if !inVC {
		return false
	}
	switch sb := s.scoreboard.(type) {
	case *EliminationScoreboard:
		if sb.Eliminated(userID) {
			return false
		}
	case *TeamScoreboard:
		if !sb.HasTeam(userID) {
			return false
		}
	}
	return true
}

// creditCorrectLocked records a correct guess. The first correct guess marks
// the round finished immediately so late guesses are blocked, then waits out
// the multi-guess grace window (skipped when the guesser is alone) before
// settling, so near-simultaneous correct answers are still credited in order.
// Called with s.mu held; releases it.
func (s *Session) creditCorrectLocked(gr *GuessRound, userID, username string, members []Member, firstGameDay bool) bool {
	if gr.Finished() {
		if !s.settlePending {
			s.mu.Unlock()
			return false
		}
		// Concurrent correct guess inside the grace window.
		s.ensurePlayerLocked(userID, username, members, firstGameDay)
		_, accepted := gr.RecordCorrect(userID)
		s.mu.Unlock()
		return accepted
	}

	s.ensurePlayerLocked(userID, username, members, firstGameDay)
	gr.Finish()
	gr.RecordCorrect(userID)
	s.settlePending = true
	s.lastActive = time.Now()

	delay := s.deps.MultiGuessDelay
	if len(humans(members)) <= 1 {
		delay = 0
	}
	s.mu.Unlock()

	if delay <= 0 {
		s.settleRound(gr)
	} else {
		time.AfterFunc(delay, func() { s.settleRound(gr) })
	}
	return true
}

func (s *Session) ensurePlayerLocked(userID, username string, members []Member, firstGameDay bool) {
	if s.scoreboard == nil {
		return
	}
	if _, ok := s.scoreboard.Player(userID); ok {
		return
	}
	premium := false
	for _, m := range members {
		if m.ID == userID {
			premium = m.Premium
			break
		}
	}
	s.scoreboard.AddPlayer(&Player{
		ID:           userID,
		Name:         username,
		InVC:         true,
		FirstGameDay: firstGameDay,
		Premium:      premium,
	})
}

// settleRound converts a round's ordered correct guessers into reward entries
// and ends the round. No-ops if the round already ended or the session is
// finished.
func (s *Session) settleRound(gr *GuessRound) {
	p := s.deps.Prefs.Get(s.guildID)
	members, err := s.deps.Presence.VoiceMembers(s.guildID, s.VoiceChannelID())
	if err != nil {
		members = nil
	}
	participants := len(humans(members))
	now := time.Now()

	s.mu.Lock()
	if s.finished || s.round != gr {
		s.mu.Unlock()
		return
	}
	s.settlePending = false

	guessers := gr.CorrectGuessers()
	poolSize := s.deps.Picker.Count()
	weekend := IsWeekend(now)
	powerHour := IsPowerHour(now, s.deps.PowerHour)

	firstStreak := 1
	if len(guessers) > 0 && s.streakUser == guessers[0].UserID {
		firstStreak = s.streakCount + 1
	}

	results := make([]RoundResultEntry, 0, len(guessers))
	for i, g := range guessers {
		streak := 1
		if i == 0 {
			streak = firstStreak
		}
		in := RewardInput{
			PoolSize:     poolSize,
			Streak:       streak,
			TimeToGuess:  g.At.Sub(gr.StartedAt()),
			Participants: participants,
			GuessIndex:   i,
			HintUsed:     gr.HintUsed(),
			Weekend:      weekend,
			PowerHour:    powerHour,
		}
		if s.scoreboard != nil {
			if pl, ok := s.scoreboard.Player(g.UserID); ok {
				in.VoteBonus = pl.VoteBonus
				in.FirstGameDay = pl.FirstGameDay
			}
		}
		results = append(results, RoundResultEntry{
			UserID: g.UserID,
			Points: GuessPoints(i, gr.HintUsed(), p.HintPenalty),
			Exp:    ComputeExp(in, s.rng),
		})
	}
	s.mu.Unlock()

	if s.endRound(gr, RoundEnd{Outcome: OutcomeGuessed, Results: results}) {
		_ = s.StartRound(context.Background())
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
