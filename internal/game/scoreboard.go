package game

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/keshon/tunequiz/internal/prefs"
)

// Player is one scoreboard participant's session-local record.
type Player struct {
	ID   string
	Name string

	Score     decimal.Decimal
	Lives     int
	ExpGained float64

	InVC         bool
	FirstGameDay bool
	Premium      bool
	VoteBonus    bool
	Team         string
}

// RoundResultEntry is one correct guesser's outcome for a single round,
// ordered by guess position.
type RoundResultEntry struct {
	UserID string
	Points decimal.Decimal
	Exp    float64
}

// Scoreboard is the common contract of the classic, elimination and team
// variants. Implementations are not safe for concurrent use; the owning
// session serializes access.
type Scoreboard interface {
	AddPlayer(p *Player)
	Player(id string) (*Player, bool)
	Players() []*Player
	SetInVC(id string, inVC bool)

	// Update applies one finished round's results. An empty slice means the
	// round had no winner.
	Update(results []RoundResultEntry)

	// Winners returns the player(s) currently in the lead; never empty once
	// at least one player has scored. Ties produce multiple winners.
	Winners() []*Player

	// GameFinished reports whether the variant's end condition holds.
	GameFinished(p *prefs.Snapshot) bool

	// DisplayedScore renders one player's score for messages.
	DisplayedScore(id string) string

	// Fields projects the scoreboard into embed fields, sorted by descending
	// score. Tie order among equals is unspecified.
	Fields() []MessageField
}

// ClassicScoreboard counts correct guesses; the game ends when a configured
// goal score is reached.
type ClassicScoreboard struct {
	players map[string]*Player
}

func NewClassicScoreboard() *ClassicScoreboard {
	return &ClassicScoreboard{players: make(map[string]*Player)}
}

func (sb *ClassicScoreboard) AddPlayer(p *Player) {
	if _, ok := sb.players[p.ID]; ok {
		return
	}
	sb.players[p.ID] = p
}

func (sb *ClassicScoreboard) Player(id string) (*Player, bool) {
	p, ok := sb.players[id]
	return p, ok
}

func (sb *ClassicScoreboard) Players() []*Player {
	return sortedPlayers(sb.players)
}

func (sb *ClassicScoreboard) SetInVC(id string, inVC bool) {
	if p, ok := sb.players[id]; ok {
		p.InVC = inVC
	}
}

func (sb *ClassicScoreboard) Update(results []RoundResultEntry) {
	for _, r := range results {
		p, ok := sb.players[r.UserID]
		if !ok {
			continue
		}
		p.Score = p.Score.Add(r.Points)
		p.ExpGained += r.Exp
	}
}

func (sb *ClassicScoreboard) Winners() []*Player {
	return topByScore(sb.players)
}

func (sb *ClassicScoreboard) GameFinished(p *prefs.Snapshot) bool {
	if p.Goal <= 0 {
		return false
	}
	goal := decimal.NewFromInt(int64(p.Goal))
	for _, pl := range sb.players {
		if pl.Score.GreaterThanOrEqual(goal) {
			return true
		}
	}
	return false
}

func (sb *ClassicScoreboard) DisplayedScore(id string) string {
	p, ok := sb.players[id]
	if !ok {
		return "0"
	}
	return formatScore(p.Score)
}

func (sb *ClassicScoreboard) Fields() []MessageField {
	fields := make([]MessageField, 0, len(sb.players))
	for _, p := range sortedPlayers(sb.players) {
		fields = append(fields, MessageField{
			Name:   p.Name,
			Value:  formatScore(p.Score),
			Inline: true,
		})
	}
	return fields
}

// sortedPlayers orders by descending score, then lives, with ID as the final
// stable key.
func sortedPlayers(players map[string]*Player) []*Player {
	out := make([]*Player, 0, len(players))
	for _, p := range players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Score.Equal(out[j].Score) {
			return out[i].Score.GreaterThan(out[j].Score)
		}
		if out[i].Lives != out[j].Lives {
			return out[i].Lives > out[j].Lives
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func topByScore(players map[string]*Player) []*Player {
	var best decimal.Decimal
	var winners []*Player
	for _, p := range sortedPlayers(players) {
		switch {
		case len(winners) == 0:
			best = p.Score
			winners = append(winners, p)
		case p.Score.Equal(best):
			winners = append(winners, p)
		}
	}
	return winners
}

func formatScore(score decimal.Decimal) string {
	if score.IsInteger() {
		return score.StringFixed(0)
	}
	return score.StringFixed(1)
}

// expSummary renders a player's EXP gain for the results message.
func expSummary(p *Player) string {
	return fmt.Sprintf("+%.0f EXP", p.ExpGained)
}
