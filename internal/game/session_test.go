package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keshon/tunequiz/internal/prefs"
	"github.com/keshon/tunequiz/internal/songs"
)

// --- fakes ---

type fakePrefsStore struct {
	mu    sync.Mutex
	snaps map[string]*prefs.Snapshot
}

func (f *fakePrefsStore) LoadGuildPrefs(guildID string) (*prefs.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps[guildID], nil
}

func (f *fakePrefsStore) SaveGuildPrefs(guildID string, p *prefs.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snaps == nil {
		f.snaps = make(map[string]*prefs.Snapshot)
	}
	f.snaps[guildID] = p
	return nil
}

type fakePicker struct {
	mu      sync.Mutex
	songs   []*songs.Song
	idx     int
	premium bool
}

func (f *fakePicker) Reload(_ *prefs.Snapshot, premium bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.premium = premium
	return nil
}

func (f *fakePicker) lastPremium() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.premium
}

func (f *fakePicker) QueryRandom(*prefs.Snapshot) (*songs.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.songs) == 0 {
		return nil, songs.ErrEmptyPool
	}
	s := f.songs[f.idx%len(f.songs)]
	f.idx++
	return s, nil
}

func (f *fakePicker) QueryRandomN(n int, exclude *songs.Song) []*songs.Song {
	out := make([]*songs.Song, 0, n)
	for i := 0; len(out) < n; i++ {
		decoy := &songs.Song{
			VideoID: fmt.Sprintf("decoy-%d", i),
			Title:   fmt.Sprintf("Decoy %d", i),
			Artist:  fmt.Sprintf("Nobody %d", i),
		}
		if exclude != nil && decoy.VideoID == exclude.VideoID {
			continue
		}
		out = append(out, decoy)
	}
	return out
}

func (f *fakePicker) UniqueExhausted() bool { return false }
func (f *fakePicker) ResetUnique()          {}

func (f *fakePicker) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.songs)
}

type fakeSub struct {
	done chan PlayResult
	once sync.Once
}

func newFakeSub() *fakeSub {
	return &fakeSub{done: make(chan PlayResult, 1)}
}

func (f *fakeSub) Done() <-chan PlayResult { return f.done }

func (f *fakeSub) Close() {
	f.once.Do(func() { close(f.done) })
}

// finish simulates the stream ending on its own.
func (f *fakeSub) finish(res PlayResult) {
	f.once.Do(func() {
		f.done <- res
		close(f.done)
	})
}

type fakeConn struct {
	mu     sync.Mutex
	plays  []*songs.Song
	subs   []*fakeSub
	closed bool
}

func (f *fakeConn) Play(song *songs.Song, _ time.Duration) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := newFakeSub()
	f.plays = append(f.plays, song)
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) playCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.plays)
}

type fakeTransport struct {
	conn *fakeConn
	err  error
}

func (f *fakeTransport) EnsureConnection(guildID, channelID string) (Connection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

type sentMessage struct {
	kind    string
	payload MessagePayload
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	dms  map[string][]MessagePayload
	next int
}

func (f *fakeMessenger) record(kind string, p MessagePayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{kind: kind, payload: p})
	f.next++
	return fmt.Sprintf("msg-%d", f.next), nil
}

func (f *fakeMessenger) SendRound(_ string, p MessagePayload) (string, error) {
	return f.record("round", p)
}

func (f *fakeMessenger) SendInfo(_ string, p MessagePayload) (string, error) {
	return f.record("info", p)
}

func (f *fakeMessenger) SendError(_ string, p MessagePayload) (string, error) {
	return f.record("error", p)
}

func (f *fakeMessenger) SendDM(userID string, p MessagePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dms == nil {
		f.dms = make(map[string][]MessagePayload)
	}
	f.dms[userID] = append(f.dms[userID], p)
	return nil
}

func (f *fakeMessenger) countKind(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.kind == kind {
			n++
		}
	}
	return n
}

type fakeStore struct {
	mu            sync.Mutex
	gamesIncs     int
	deltas        []PlayerStatsDelta
	snapshots     [][]SnapshotEntry
	bookmarks     map[string][]string
	songPlays     map[string]int
	existingStats map[string]*PlayerStats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookmarks: make(map[string][]string),
		songPlays: make(map[string]int),
	}
}

func (f *fakeStore) RecordGuildActivity(string, time.Time) error { return nil }

func (f *fakeStore) IncrementGuildGames(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gamesIncs++
	return nil
}

func (f *fakeStore) GetPlayerStats(userID string) (*PlayerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existingStats[userID], nil
}

func (f *fakeStore) ApplyPlayerStatsDelta(delta PlayerStatsDelta) (*PlayerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, delta)
	prior := 0.0
	if st := f.existingStats[delta.UserID]; st != nil {
		prior = st.Exp
	}
	return &PlayerStats{UserID: delta.UserID, Exp: prior + delta.ExpGained}, nil
}

func (f *fakeStore) SaveLeaderboardSnapshot(_ string, entries []SnapshotEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, entries)
	return nil
}

func (f *fakeStore) IncrementSongPlays(videoID string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.songPlays[videoID]++
	return nil
}

func (f *fakeStore) AddBookmarks(userID string, videoIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookmarks[userID] = append(f.bookmarks[userID], videoIDs...)
	return nil
}

type fakePresence struct {
	mu      sync.Mutex
	members []Member
}

func (f *fakePresence) VoiceMembers(string, string) ([]Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Member, len(f.members))
	copy(out, f.members)
	return out, nil
}

func (f *fakePresence) set(members []Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members = members
}

// --- harness ---

type testEnv struct {
	prefsStore *fakePrefsStore
	prefsMgr   *prefs.Manager
	picker     *fakePicker
	transport  *fakeTransport
	messenger  *fakeMessenger
	store      *fakeStore
	presence   *fakePresence
}

func testSong(id, title, artist string) *songs.Song {
	return &songs.Song{
		VideoID:     id,
		Title:       title,
		Artist:      artist,
		DurationSec: 180,
		Views:       1000,
	}
}

func newTestEnv(p *prefs.Snapshot, members []Member, catalog []*songs.Song) *testEnv {
	store := &fakePrefsStore{snaps: map[string]*prefs.Snapshot{"g1": p}}
	return &testEnv{
		prefsStore: store,
		prefsMgr:   prefs.NewManager(store),
		picker:     &fakePicker{songs: catalog},
		transport:  &fakeTransport{conn: &fakeConn{}},
		messenger:  &fakeMessenger{},
		store:      newFakeStore(),
		presence:   &fakePresence{members: members},
	}
}

func (e *testEnv) deps() Deps {
	return Deps{
		Transport: e.transport,
		Messenger: e.messenger,
		Store:     e.store,
		Presence:  e.presence,
		Prefs:     e.prefsMgr,
		Picker:    e.picker,
		Rand:      rand.New(rand.NewSource(42)),
		PowerHour: -1,
	}
}

func (e *testEnv) newGameSession() *Session {
	return NewGameSession("g1", "text", "voice", "u1", e.deps())
}

func (s *Session) currentRound() Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

func (s *Session) currentSub() *fakeSub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		return nil
	}
	return s.sub.(*fakeSub)
}

func defaultCatalog() []*songs.Song {
	return []*songs.Song{
		testSong("v1", "First Song", "Alpha"),
		testSong("v2", "Second Song", "Beta"),
		testSong("v3", "Third Song", "Gamma"),
		testSong("v4", "Fourth Song", "Delta"),
	}
}

// --- tests ---

func TestSession_ClassicGameReachesGoal(t *testing.T) {
	p := prefs.Default()
	p.Goal = 3
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()

	require.NoError(t, s.StartRound(context.Background()))

	for i := 0; i < 3; i++ {
		round := s.currentRound()
		require.NotNil(t, round, "round %d should be live", i+1)
		title := round.Song().Title

		require.False(t, s.HandleGuess("u1", "Uri", "text", "definitely wrong"))
		require.True(t, s.HandleGuess("u1", "Uri", "text", title))
	}

	// Third point hits the goal and ends the game.
	require.True(t, s.Finished())
	require.Equal(t, 3, s.RoundsPlayed())

	pl, ok := s.scoreboard.Player("u1")
	require.True(t, ok)
	require.Equal(t, "3", pl.Score.String())

	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	require.Equal(t, 1, env.store.gamesIncs)
	require.Len(t, env.store.snapshots, 1)
	require.Len(t, env.store.deltas, 1)
	require.Equal(t, "u1", env.store.deltas[0].UserID)
	require.Equal(t, 3, env.store.deltas[0].SongsGuessed)
	require.Greater(t, env.store.deltas[0].ExpGained, 0.0)
}

func TestSession_WrongChannelAndModeRejected(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	title := s.currentRound().Song().Title
	require.False(t, s.HandleGuess("u1", "Uri", "other-channel", title))

	// Out-of-VC users can't score either.
	require.False(t, s.HandleGuess("u9", "Ghost", "text", title))
	require.Equal(t, 0, s.RoundsPlayed())
}

func TestSession_GuessTimeoutAdvancesRound(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	first := s.currentRound()
	s.onGuessTimeout(first)

	require.False(t, s.Finished())
	require.Equal(t, 1, s.RoundsPlayed())
	next := s.currentRound()
	require.NotNil(t, next)
	require.NotEqual(t, first.CorrelationID(), next.CorrelationID())
}

func TestSession_StaleTimeoutIgnored(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	first := s.currentRound()
	s.onGuessTimeout(first)
	played := s.RoundsPlayed()

	// A late timeout for the already-ended round must not fire again.
	s.onGuessTimeout(first)
	require.Equal(t, played, s.RoundsPlayed())
}

func TestSession_StreamErrorRestartsWithoutCounting(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	sub := s.currentSub()
	require.NotNil(t, sub)
	sub.finish(PlayResult{Err: errors.New("stream broke")})

	require.Eventually(t, func() bool {
		return env.transport.conn.playCount() == 2
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 0, s.RoundsPlayed())
	require.Equal(t, 1, env.messenger.countKind("error"))
	require.False(t, s.Finished())
}

func TestSession_NaturalEndCountsAsTimeout(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	s.currentSub().finish(PlayResult{})

	require.Eventually(t, func() bool {
		return s.RoundsPlayed() == 1
	}, time.Second, 5*time.Millisecond)
	require.False(t, s.Finished())
	require.NotNil(t, s.currentRound())
}

func TestSession_EndSessionIdempotent(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()

	var ends int
	var mu sync.Mutex
	s.SetOnEnd(func(*Session) {
		mu.Lock()
		ends++
		mu.Unlock()
	})

	require.NoError(t, s.StartRound(context.Background()))
	s.EndSession()
	s.EndSession()

	require.True(t, s.Finished())
	require.True(t, env.transport.conn.closed)
	mu.Lock()
	require.Equal(t, 1, ends)
	mu.Unlock()
	env.store.mu.Lock()
	require.Equal(t, 1, env.store.gamesIncs)
	env.store.mu.Unlock()
}

func TestSession_NoCreditAfterEnd(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	round := s.currentRound()
	s.EndSession()
	require.False(t, s.HandleGuess("u1", "Uri", "text", round.Song().Title))
}

func TestSession_SkipIsPenaltyFree(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	// Establish a streak first.
	require.True(t, s.HandleGuess("u1", "Uri", "text", s.currentRound().Song().Title))

	// Non-owner skips are refused in competitive mode.
	require.False(t, s.Skip("u2"))
	require.True(t, s.Skip("u1"))

	require.Equal(t, 2, s.RoundsPlayed())

	env.messenger.mu.Lock()
	var skipped bool
	for _, m := range env.messenger.sent {
		if m.kind == "round" && m.payload.Title == "Skipped" {
			skipped = true
		}
	}
	env.messenger.mu.Unlock()
	require.True(t, skipped, "skip should announce as skipped, not a timeout")
	s.mu.Lock()
	require.Equal(t, "u1", s.streakUser)
	require.Equal(t, 1, s.streakCount)
	s.mu.Unlock()
}

func TestSession_MultiGuessGraceWindow(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}, {ID: "u2", Name: "Vera"}}, defaultCatalog())
	deps := env.deps()
	deps.MultiGuessDelay = 40 * time.Millisecond
	s := NewGameSession("g1", "text", "voice", "u1", deps)
	require.NoError(t, s.StartRound(context.Background()))

	title := s.currentRound().Song().Title
	require.True(t, s.HandleGuess("u1", "Uri", "text", title))
	// Second correct answer inside the grace window still counts, at half
	// credit.
	require.True(t, s.HandleGuess("u2", "Vera", "text", title))

	require.Eventually(t, func() bool {
		return s.RoundsPlayed() == 1
	}, time.Second, 5*time.Millisecond)

	p1, ok := s.scoreboard.Player("u1")
	require.True(t, ok)
	p2, ok := s.scoreboard.Player("u2")
	require.True(t, ok)
	require.Equal(t, "1", p1.Score.String())
	require.Equal(t, "0.5", p2.Score.String())
}

func TestSession_MultipleChoiceFlow(t *testing.T) {
	p := prefs.Default()
	p.AnswerType = prefs.AnswerMultipleChoice
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	gr, ok := s.currentRound().(*GuessRound)
	require.True(t, ok)
	require.Len(t, gr.Choices(), p.ChoiceCount)

	correct := -1
	for i, c := range gr.Choices() {
		if c.VideoID == gr.Song().VideoID {
			correct = i
		}
	}
	require.GreaterOrEqual(t, correct, 0)

	// Typed guesses are ignored in multiple choice mode.
	require.False(t, s.HandleGuess("u1", "Uri", "text", gr.Song().Title))

	customID := fmt.Sprintf("answer:%s:%d", gr.CorrelationID(), correct)
	require.True(t, s.HandleComponent("u1", "Uri", "msg-1", customID))
	require.Equal(t, 1, s.RoundsPlayed())

	// The press's correlation ID belongs to the finished round now.
	require.False(t, s.HandleComponent("u1", "Uri", "msg-1", customID))
}

func TestSession_AllGuessedWrongEndsRound(t *testing.T) {
	p := prefs.Default()
	p.AnswerType = prefs.AnswerMultipleChoice
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	gr := s.currentRound().(*GuessRound)
	wrong := -1
	for i, c := range gr.Choices() {
		if c.VideoID != gr.Song().VideoID {
			wrong = i
			break
		}
	}
	require.GreaterOrEqual(t, wrong, 0)

	s.HandleComponent("u1", "Uri", "msg-1", fmt.Sprintf("answer:%s:%d", gr.CorrelationID(), wrong))

	require.Equal(t, 1, s.RoundsPlayed())
	require.NotNil(t, s.currentRound())
	require.NotEqual(t, gr.CorrelationID(), s.currentRound().CorrelationID())
}

func TestSession_BookmarksFlushedOnEnd(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	first := s.currentRound().Song()
	require.True(t, s.HandleGuess("u1", "Uri", "text", first.Title))

	// The result message for round one carries the bookmark button.
	env.messenger.mu.Lock()
	msgID := fmt.Sprintf("msg-%d", env.messenger.next)
	env.messenger.mu.Unlock()

	require.True(t, s.HandleComponent("u1", "Uri", msgID, "bookmark"))
	s.EndSession()

	env.store.mu.Lock()
	require.Equal(t, []string{first.VideoID}, env.store.bookmarks["u1"])
	env.store.mu.Unlock()

	env.messenger.mu.Lock()
	require.Len(t, env.messenger.dms["u1"], 1)
	env.messenger.mu.Unlock()
}

func TestSession_OwnerReassignedWhenLeaving(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}, {ID: "u2", Name: "Vera"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	// u2 gets on the scoreboard by guessing.
	require.True(t, s.HandleGuess("u2", "Vera", "text", s.currentRound().Song().Title))

	env.presence.set([]Member{{ID: "u2", Name: "Vera"}})
	s.HandleVoiceUpdate()

	require.Equal(t, "u2", s.OwnerID())
}

func TestSession_EmptyVoiceChannelFailsSession(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, nil, defaultCatalog())
	s := env.newGameSession()

	err := s.StartRound(context.Background())
	require.ErrorIs(t, err, ErrNoVoiceMembers)
	require.True(t, s.Finished())
}

func TestSession_EmptyPoolFailsSession(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, nil)
	s := env.newGameSession()

	require.Error(t, s.StartRound(context.Background()))
	require.True(t, s.Finished())
	require.Equal(t, 1, env.messenger.countKind("error"))
}

func TestSession_EliminationScoreboardSelected(t *testing.T) {
	p := prefs.Default()
	p.Elimination = true
	p.Lives = 5
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()

	_, ok := s.scoreboard.(*EliminationScoreboard)
	require.True(t, ok)
}

func TestSession_TeamModeRequiresTeam(t *testing.T) {
	p := prefs.Default()
	p.TeamsEnabled = true
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	title := s.currentRound().Song().Title
	require.False(t, s.HandleGuess("u1", "Uri", "text", title))

	require.True(t, s.JoinTeam("u1", "Uri", "Red"))
	require.True(t, s.HandleGuess("u1", "Uri", "text", title))
}

func TestSession_ListeningSkipVotes(t *testing.T) {
	p := prefs.Default()
	members := []Member{{ID: "u1", Name: "Uri"}, {ID: "u2", Name: "Vera"}, {ID: "u3", Name: "Wim"}}
	env := newTestEnv(p, members, defaultCatalog())
	s := NewListeningSession("g1", "text", "voice", "u1", env.deps())
	require.NoError(t, s.StartRound(context.Background()))

	lr, ok := s.currentRound().(*ListeningRound)
	require.True(t, ok)
	corrID := lr.CorrelationID()

	// One vote out of three listeners is no majority.
	require.True(t, s.HandleComponent("u2", "Vera", "", "skip:"+corrID))
	require.Equal(t, 0, s.RoundsPlayed())

	require.True(t, s.HandleComponent("u3", "Wim", "", "skip:"+corrID))
	require.Equal(t, 1, s.RoundsPlayed())
	require.NotEqual(t, corrID, s.currentRound().CorrelationID())
}

func TestSession_HintReducesPoints(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()
	require.NoError(t, s.StartRound(context.Background()))

	// Hints are the owner's call.
	require.False(t, s.UseHint("u2"))
	require.True(t, s.UseHint("u1"))
	require.False(t, s.UseHint("u1"), "second hint for the same round")

	require.True(t, s.HandleGuess("u1", "Uri", "text", s.currentRound().Song().Title))

	pl, ok := s.scoreboard.Player("u1")
	require.True(t, ok)
	require.Equal(t, "0.5", pl.Score.String())
}

func TestRegistry_OneSessionPerGuild(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())

	reg := NewRegistry()
	s1 := env.newGameSession()
	reg.Add(s1)
	require.Equal(t, 1, reg.Len())

	got, ok := reg.Get("g1")
	require.True(t, ok)
	require.Same(t, s1, got)

	// Adding a replacement terminates the previous session.
	s2 := NewGameSession("g1", "text", "voice", "u1", env.deps())
	reg.Add(s2)
	require.True(t, s1.Finished())
	require.Equal(t, 1, reg.Len())

	s2.EndSession()
	require.Equal(t, 0, reg.Len())
}

func TestRegistry_ReapIdle(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())

	reg := NewRegistry()
	s := env.newGameSession()
	reg.Add(s)

	reg.ReapIdle(time.Hour)
	require.Equal(t, 1, reg.Len())

	time.Sleep(10 * time.Millisecond)
	reg.ReapIdle(time.Nanosecond)
	require.True(t, s.Finished())
	require.Equal(t, 0, reg.Len())
}

func TestSession_ScoreFieldsDuringJoins(t *testing.T) {
	p := prefs.Default()
	p.TeamsEnabled = true
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri"}}, defaultCatalog())
	s := env.newGameSession()

	// Readers and joiners hammer the scoreboard at the same time; run with
	// -race to catch unsynchronized map access.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.JoinTeam(fmt.Sprintf("u%d", i), fmt.Sprintf("User %d", i), "red")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.ScoreFields()
		}
	}()
	wg.Wait()

	require.NotEmpty(t, s.ScoreFields())
}

func TestSession_PremiumMemberWidensPool(t *testing.T) {
	p := prefs.Default()
	env := newTestEnv(p, []Member{{ID: "u1", Name: "Uri", Premium: true}}, defaultCatalog())
	s := env.newGameSession()

	// The first load happens before voice membership has been read.
	require.NoError(t, s.StartRound(context.Background()))
	require.False(t, env.picker.lastPremium())

	// An options change invalidates the pool; the reload picks up the
	// premium membership seen during the first round.
	require.NoError(t, env.prefsMgr.Update("g1", func(*prefs.Snapshot) {}))
	require.True(t, s.Skip("u1"))
	require.True(t, env.picker.lastPremium())
}
