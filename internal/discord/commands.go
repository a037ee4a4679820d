package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"
	"github.com/rs/zerolog/log"

	"github.com/keshon/tunequiz/internal/game"
	"github.com/keshon/tunequiz/internal/prefs"
)

// slashDefinitions is the application's full command set.
func slashDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Start a game in your voice channel.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mode",
					Description: "Game mode",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Guessing game", Value: "game"},
						{Name: "Listening party", Value: "listening"},
					},
				},
			},
		},
		{Name: "stop", Description: "End the current game."},
		{Name: "skip", Description: "Skip the current song."},
		{Name: "hint", Description: "Reveal a hint for the current song (scores are reduced)."},
		{Name: "score", Description: "Show the current scoreboard."},
		{Name: "leaderboard", Description: "Show the last finished game's results."},
		{Name: "vote", Description: "Claim the vote reward bonus for this game."},
		{
			Name:        "team",
			Description: "Join a team in a team game.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "Team name",
					Required:    true,
				},
			},
		},
		{
			Name:        "options",
			Description: "Show or change the game options for this server.",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "goal", Description: "Points needed to win (0 = none)"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "timer", Description: "Seconds to guess each song (0 = until the song ends)"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "duration", Description: "Game length in minutes (0 = unlimited)"},
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "mode", Description: "What players must guess",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Song title", Value: string(prefs.GuessModeTitle)},
						{Name: "Artist", Value: string(prefs.GuessModeArtist)},
						{Name: "Both", Value: string(prefs.GuessModeBoth)},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "answers", Description: "How answers are given",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Typing", Value: string(prefs.AnswerTyping)},
						{Name: "Multiple choice", Value: string(prefs.AnswerMultipleChoice)},
					},
				},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "choices", Description: "Buttons shown in multiple choice"},
				{
					Type: discordgo.ApplicationCommandOptionString, Name: "seek", Description: "Where in the song playback starts",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Beginning", Value: string(prefs.SeekBeginning)},
						{Name: "Middle", Value: string(prefs.SeekMiddle)},
						{Name: "Random", Value: string(prefs.SeekRandom)},
					},
				},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "lives", Description: "Starting lives in elimination"},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "teams", Description: "Score by teams"},
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "elimination", Description: "Elimination mode"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "limit", Description: "Only the top N songs by popularity (0 = all)"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "from-year", Description: "Earliest release year"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "to-year", Description: "Latest release year"},
			},
		},
	}
}

func (b *Bot) handleSlash(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Member == nil {
		_ = RespondEphemeral(s, i, "This command only works in a server.")
		return
	}

	name := i.ApplicationCommandData().Name
	switch name {
	case "play":
		b.handlePlay(s, i)
	case "stop":
		b.handleStop(s, i)
	case "skip":
		b.handleSkipCmd(s, i)
	case "hint":
		b.handleHint(s, i)
	case "score":
		b.handleScore(s, i)
	case "leaderboard":
		b.handleLeaderboard(s, i)
	case "vote":
		b.handleVote(s, i)
	case "team":
		b.handleTeam(s, i)
	case "options":
		b.handleOptions(s, i)
	default:
		log.Warn().Str("command", name).Msg("Unknown slash command")
	}
}

func (b *Bot) handlePlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := i.Member.User.ID

	if _, exists := b.registry.Get(i.GuildID); exists {
		_ = RespondEphemeral(s, i, "A game is already running here. Use /stop first.")
		return
	}

	voiceCh, err := b.findUserVoiceChannel(i.GuildID, userID)
	if err != nil {
		_ = RespondEphemeral(s, i, "Join a voice channel first, then run /play.")
		return
	}

	mode := "game"
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "mode" {
			mode = opt.StringValue()
		}
	}

	var sess *game.Session
	if mode == "listening" {
		sess = game.NewListeningSession(i.GuildID, i.ChannelID, voiceCh, userID, b.sessionDeps())
		_ = RespondEphemeral(s, i, "Starting a listening party 🎧")
	} else {
		sess = game.NewGameSession(i.GuildID, i.ChannelID, voiceCh, userID, b.sessionDeps())
		_ = RespondEphemeral(s, i, "Starting the game 🎶")
	}
	b.registry.Add(sess)

	go func() {
		if err := sess.StartRound(context.Background()); err != nil {
			log.Warn().Err(err).Str("guild_id", i.GuildID).Msg("First round failed to start")
		}
	}()
}

func (b *Bot) handleStop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := b.registry.Get(i.GuildID)
	if !ok {
		_ = RespondEphemeral(s, i, "No game is running here.")
		return
	}
	if i.Member.User.ID != sess.OwnerID() {
		_ = RespondEphemeral(s, i, "Only the game owner can stop it.")
		return
	}
	_ = RespondEphemeral(s, i, "Ending the game.")
	go sess.EndSession()
}

func (b *Bot) handleSkipCmd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := b.registry.Get(i.GuildID)
	if !ok {
		_ = RespondEphemeral(s, i, "No game is running here.")
		return
	}
	_ = RespondEphemeral(s, i, "Skip requested.")
	go sess.Skip(i.Member.User.ID)
}

func (b *Bot) handleHint(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := b.registry.Get(i.GuildID)
	if !ok {
		_ = RespondEphemeral(s, i, "No game is running here.")
		return
	}
	if sess.UseHint(i.Member.User.ID) {
		_ = RespondEphemeral(s, i, "Hint revealed. Correct answers score less now.")
	} else {
		_ = RespondEphemeral(s, i, "No hint available right now.")
	}
}

func (b *Bot) handleScore(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := b.registry.Get(i.GuildID)
	if !ok {
		_ = RespondEphemeral(s, i, "No game is running here.")
		return
	}
	fields := sess.ScoreFields()
	if fields == nil {
		_ = RespondEphemeral(s, i, "No game is running here.")
		return
	}

	e := embed.NewEmbed().SetColor(embedColor).SetTitle("📊 Scoreboard")
	for _, f := range fields {
		e = e.AddField(f.Name, f.Value)
	}
	_ = RespondEmbed(s, i, e.MessageEmbed)
}

func (b *Bot) handleLeaderboard(s *discordgo.Session, i *discordgo.InteractionCreate) {
	entries, at, err := b.storage.GetLeaderboardSnapshot(i.GuildID)
	if err != nil || len(entries) == 0 {
		_ = RespondEphemeral(s, i, "No finished games recorded here yet.")
		return
	}

	var sb strings.Builder
	for n, entry := range entries {
		fmt.Fprintf(&sb, "%d. **%s** — %s points (%.0f EXP)\n", n+1, entry.Name, entry.Score, entry.Exp)
	}
	e := embed.NewEmbed().
		SetColor(embedColor).
		SetTitle("🏆 Last game").
		SetDescription(sb.String()).
		SetFooter(at.Format(time.DateOnly))
	_ = RespondEmbed(s, i, e.MessageEmbed)
}

func (b *Bot) handleVote(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := b.registry.Get(i.GuildID)
	if !ok {
		_ = RespondEphemeral(s, i, "No game is running here.")
		return
	}
	sess.SetVoteBonus(i.Member.User.ID)
	_ = RespondEphemeral(s, i, "Vote bonus active for this game ✨")
}

func (b *Bot) handleTeam(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess, ok := b.registry.Get(i.GuildID)
	if !ok {
		_ = RespondEphemeral(s, i, "No game is running here.")
		return
	}

	team := ""
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "name" {
			team = opt.StringValue()
		}
	}
	if team == "" {
		_ = RespondEphemeral(s, i, "Give a team name.")
		return
	}

	if sess.JoinTeam(i.Member.User.ID, displayName(i.Member, i.Member.User), team) {
		_ = RespondEphemeral(s, i, fmt.Sprintf("You joined team **%s**.", team))
	} else {
		_ = RespondEphemeral(s, i, "This game doesn't use teams.")
	}
}

func (b *Bot) handleOptions(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := i.ApplicationCommandData().Options
	if len(opts) == 0 {
		b.showOptions(s, i)
		return
	}

	err := b.prefsMgr.Update(i.GuildID, func(p *prefs.Snapshot) {
		for _, opt := range opts {
			applyOption(p, opt)
		}
	})
	if err != nil {
		_ = RespondEphemeral(s, i, "Failed to save the options.")
		return
	}
	_ = RespondEphemeral(s, i, "Options updated. They apply from the next round.")
}

func applyOption(p *prefs.Snapshot, opt *discordgo.ApplicationCommandInteractionDataOption) {
	switch opt.Name {
	case "goal":
		p.Goal = int(opt.IntValue())
	case "timer":
		p.TimerSeconds = int(opt.IntValue())
	case "duration":
		p.DurationMinutes = int(opt.IntValue())
	case "mode":
		p.GuessMode = prefs.GuessMode(opt.StringValue())
	case "answers":
		p.AnswerType = prefs.AnswerType(opt.StringValue())
	case "choices":
		p.ChoiceCount = int(opt.IntValue())
	case "seek":
		p.SeekType = prefs.SeekType(opt.StringValue())
	case "lives":
		p.Lives = int(opt.IntValue())
	case "teams":
		p.TeamsEnabled = opt.BoolValue()
	case "elimination":
		p.Elimination = opt.BoolValue()
	case "limit":
		p.Limit = int(opt.IntValue())
	case "from-year":
		p.BeginningYear = int(opt.IntValue())
	case "to-year":
		p.EndYear = int(opt.IntValue())
	}
}

func (b *Bot) showOptions(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p := b.prefsMgr.Get(i.GuildID)

	e := embed.NewEmbed().SetColor(embedColor).SetTitle("⚙️ Game options").
		AddField("Goal", orNone(p.Goal)).MakeFieldInline().
		AddField("Timer", orNone(p.TimerSeconds)).MakeFieldInline().
		AddField("Duration", orNone(p.DurationMinutes)).MakeFieldInline().
		AddField("Guess", string(p.GuessMode)).MakeFieldInline().
		AddField("Answers", string(p.AnswerType)).MakeFieldInline().
		AddField("Choices", fmt.Sprintf("%d", p.ChoiceCount)).MakeFieldInline().
		AddField("Seek", string(p.SeekType)).MakeFieldInline().
		AddField("Lives", fmt.Sprintf("%d", p.Lives)).MakeFieldInline().
		AddField("Teams", onOff(p.TeamsEnabled)).MakeFieldInline().
		AddField("Elimination", onOff(p.Elimination)).MakeFieldInline().
		AddField("Song limit", orNone(p.Limit)).MakeFieldInline().
		AddField("Years", yearRange(p.BeginningYear, p.EndYear)).MakeFieldInline()
	_ = RespondEmbedEphemeral(s, i, e.MessageEmbed)
}

func orNone(v int) string {
	if v == 0 {
		return "none"
	}
	return fmt.Sprintf("%d", v)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func yearRange(from, to int) string {
	if from == 0 && to == 0 {
		return "all"
	}
	if from == 0 {
		return fmt.Sprintf("until %d", to)
	}
	if to == 0 {
		return fmt.Sprintf("%d onward", from)
	}
	return fmt.Sprintf("%d–%d", from, to)
}
