package game

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/keshon/tunequiz/internal/prefs"
)

// TeamScoreboard groups players into named teams. A correct guess credits
// both the guesser and their team; winners are decided at the team level.
type TeamScoreboard struct {
	players map[string]*Player
	teams   map[string]decimal.Decimal
}

func NewTeamScoreboard() *TeamScoreboard {
	return &TeamScoreboard{
		players: make(map[string]*Player),
		teams:   make(map[string]decimal.Decimal),
	}
}

// AddPlayer registers a player on their team. Players joining an ongoing game
// start with half the average of their team members' scores, so a late join
// neither drags the team down nor inflates it.
func (sb *TeamScoreboard) AddPlayer(p *Player) {
	if _, ok := sb.players[p.ID]; ok {
		return
	}
	if p.Team == "" {
		return
	}
	if _, ok := sb.teams[p.Team]; !ok {
		sb.teams[p.Team] = decimal.Zero
	}
	if avg, ok := sb.teamAverage(p.Team); ok && avg.IsPositive() {
		p.Score = avg.Div(decimal.NewFromInt(2))
		sb.teams[p.Team] = sb.teams[p.Team].Add(p.Score)
	}
	sb.players[p.ID] = p
}

func (sb *TeamScoreboard) teamAverage(team string) (decimal.Decimal, bool) {
	sum, n := decimal.Zero, 0
	for _, p := range sb.players {
		if p.Team == team {
			sum = sum.Add(p.Score)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}

func (sb *TeamScoreboard) Player(id string) (*Player, bool) {
	p, ok := sb.players[id]
	return p, ok
}

func (sb *TeamScoreboard) Players() []*Player {
	return sortedPlayers(sb.players)
}

func (sb *TeamScoreboard) SetInVC(id string, inVC bool) {
	if p, ok := sb.players[id]; ok {
		p.InVC = inVC
	}
}

// HasTeam reports whether the user has joined a team yet; only team members
// are guess-eligible in team mode.
func (sb *TeamScoreboard) HasTeam(id string) bool {
	p, ok := sb.players[id]
	return ok && p.Team != ""
}

func (sb *TeamScoreboard) Update(results []RoundResultEntry) {
	for _, r := range results {
		p, ok := sb.players[r.UserID]
		if !ok {
			continue
		}
		p.Score = p.Score.Add(r.Points)
		p.ExpGained += r.Exp
		if p.Team != "" {
			sb.teams[p.Team] = sb.teams[p.Team].Add(r.Points)
		}
	}
}

// TeamScore returns a team's aggregate score.
func (sb *TeamScoreboard) TeamScore(team string) decimal.Decimal {
	return sb.teams[team]
}

// Winners returns the members of the leading team(s).
func (sb *TeamScoreboard) Winners() []*Player {
	topTeams := sb.topTeams()
	if len(topTeams) == 0 {
		return nil
	}
	inTop := make(map[string]struct{}, len(topTeams))
	for _, t := range topTeams {
		inTop[t] = struct{}{}
	}
	var winners []*Player
	for _, p := range sortedPlayers(sb.players) {
		if _, ok := inTop[p.Team]; ok {
			winners = append(winners, p)
		}
	}
	return winners
}

func (sb *TeamScoreboard) topTeams() []string {
	names := make([]string, 0, len(sb.teams))
	for name := range sb.teams {
		names = append(names, name)
	}
	sort.Strings(names)

	var best decimal.Decimal
	var top []string
	for _, name := range names {
		score := sb.teams[name]
		switch {
		case len(top) == 0:
			best = score
			top = append(top, name)
		case score.GreaterThan(best):
			best = score
			top = []string{name}
		case score.Equal(best):
			top = append(top, name)
		}
	}
	return top
}

// GameFinished is true when any team reaches the goal score.
func (sb *TeamScoreboard) GameFinished(p *prefs.Snapshot) bool {
	if p.Goal <= 0 {
		return false
	}
	goal := decimal.NewFromInt(int64(p.Goal))
	for _, score := range sb.teams {
		if score.GreaterThanOrEqual(goal) {
			return true
		}
	}
	return false
}

func (sb *TeamScoreboard) DisplayedScore(id string) string {
	p, ok := sb.players[id]
	if !ok {
		return "0"
	}
	return formatScore(p.Score)
}

// Fields lists each team's total followed by its members in score order.
func (sb *TeamScoreboard) Fields() []MessageField {
	names := make([]string, 0, len(sb.teams))
	for name := range sb.teams {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if !sb.teams[names[i]].Equal(sb.teams[names[j]]) {
			return sb.teams[names[i]].GreaterThan(sb.teams[names[j]])
		}
		return names[i] < names[j]
	})

	fields := make([]MessageField, 0, len(names))
	for _, name := range names {
		value := formatScore(sb.teams[name])
		for _, p := range sortedPlayers(sb.players) {
			if p.Team == name {
				value += "\n" + p.Name + ": " + formatScore(p.Score)
			}
		}
		fields = append(fields, MessageField{Name: "Team " + name, Value: value, Inline: true})
	}
	return fields
}
