package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/tunequiz/internal/game"
)

// presence reads voice channel membership from the gateway state cache. It is
// the production game.Presence.
type presence struct {
	dg *discordgo.Session
}

func newPresence(dg *discordgo.Session) *presence {
	return &presence{dg: dg}
}

func (p *presence) VoiceMembers(guildID, channelID string) ([]game.Member, error) {
	guild, err := p.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	var members []game.Member
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		m := game.Member{ID: vs.UserID, Name: vs.UserID}
		if gm, err := p.dg.State.Member(guildID, vs.UserID); err == nil && gm != nil {
			m.Name = gm.User.Username
			if gm.Nick != "" {
				m.Name = gm.Nick
			}
			m.Bot = gm.User.Bot
			m.Premium = gm.PremiumSince != nil
		}
		members = append(members, m)
	}
	return members, nil
}

// findUserVoiceChannel returns the voice channel the user currently sits in.
func (b *Bot) findUserVoiceChannel(guildID, userID string) (string, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("error retrieving guild: %w", err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}
	return "", fmt.Errorf("user is not in a voice channel")
}
