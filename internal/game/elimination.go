package game

import (
	"fmt"

	"github.com/keshon/tunequiz/internal/prefs"
)

// EliminationScoreboard gives every player a life pool; everyone who did not
// win a round loses one life, and a player at zero lives is out of the game
// but stays listed (skull marker) until the session ends.
type EliminationScoreboard struct {
	players       map[string]*Player
	startingLives int

	// Player count when the first round settled. A game that started with a
	// single player never auto-ends via last-player-standing.
	originalCount int
}

func NewEliminationScoreboard(lives int) *EliminationScoreboard {
	if lives <= 0 {
		lives = 10
	}
	return &EliminationScoreboard{
		players:       make(map[string]*Player),
		startingLives: lives,
	}
}

// AddPlayer registers a player. Mid-game joiners start at the weakest living
// player's life count so they cannot outlast the field by arriving late.
func (sb *EliminationScoreboard) AddPlayer(p *Player) {
	if _, ok := sb.players[p.ID]; ok {
		return
	}
	p.Lives = sb.startingLives
	if sb.originalCount > 0 {
		if weakest, ok := sb.weakestAlive(); ok {
			p.Lives = weakest
		}
	}
	sb.players[p.ID] = p
}

func (sb *EliminationScoreboard) weakestAlive() (int, bool) {
	lives, found := 0, false
	for _, p := range sb.players {
		if p.Lives <= 0 {
			continue
		}
		if !found || p.Lives < lives {
			lives, found = p.Lives, true
		}
	}
	return lives, found
}

func (sb *EliminationScoreboard) Player(id string) (*Player, bool) {
	p, ok := sb.players[id]
	return p, ok
}

func (sb *EliminationScoreboard) Players() []*Player {
	return sortedPlayers(sb.players)
}

func (sb *EliminationScoreboard) SetInVC(id string, inVC bool) {
	if p, ok := sb.players[id]; ok {
		p.InVC = inVC
	}
}

// Eliminated reports whether the player has run out of lives.
func (sb *EliminationScoreboard) Eliminated(id string) bool {
	p, ok := sb.players[id]
	return ok && p.Lives <= 0
}

// Update decrements every non-winner's lives by one, floored at zero.
// Winners keep their lives and collect EXP.
func (sb *EliminationScoreboard) Update(results []RoundResultEntry) {
	if sb.originalCount == 0 {
		sb.originalCount = len(sb.players)
	}

	won := make(map[string]struct{}, len(results))
	for _, r := range results {
		won[r.UserID] = struct{}{}
		if p, ok := sb.players[r.UserID]; ok {
			p.ExpGained += r.Exp
		}
	}

	for id, p := range sb.players {
		if _, winner := won[id]; winner {
			continue
		}
		if p.Lives > 0 {
			p.Lives--
		}
	}
}

// Winners returns the players with the most remaining lives.
func (sb *EliminationScoreboard) Winners() []*Player {
	best, winners := 0, []*Player(nil)
	for _, p := range sb.playersByLives() {
		switch {
		case len(winners) == 0:
			best = p.Lives
			winners = append(winners, p)
		case p.Lives == best:
			winners = append(winners, p)
		}
	}
	return winners
}

// GameFinished is true when everyone is eliminated, or when exactly one
// player of an originally multi-player game is left standing.
func (sb *EliminationScoreboard) GameFinished(_ *prefs.Snapshot) bool {
	if len(sb.players) == 0 {
		return false
	}
	alive := 0
	for _, p := range sb.players {
		if p.Lives > 0 {
			alive++
		}
	}
	if alive == 0 {
		return true
	}
	return alive == 1 && sb.originalCount >= 2
}

func (sb *EliminationScoreboard) DisplayedScore(id string) string {
	p, ok := sb.players[id]
	if !ok {
		return "0"
	}
	return livesLabel(p)
}

func (sb *EliminationScoreboard) Fields() []MessageField {
	fields := make([]MessageField, 0, len(sb.players))
	for _, p := range sb.playersByLives() {
		fields = append(fields, MessageField{
			Name:   p.Name,
			Value:  livesLabel(p),
			Inline: true,
		})
	}
	return fields
}

func (sb *EliminationScoreboard) playersByLives() []*Player {
	out := sortedPlayers(sb.players)
	// sortedPlayers already breaks score ties by lives; in elimination every
	// score is zero so the lives ordering dominates.
	return out
}

func livesLabel(p *Player) string {
	if p.Lives <= 0 {
		return "💀"
	}
	return fmt.Sprintf("❤️ %d", p.Lives)
}
