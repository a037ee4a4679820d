package discord

import (
	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"

	"github.com/keshon/tunequiz/internal/game"
)

const (
	embedColor      = 0x5a2da0
	embedColorError = 0xb01e1e
)

// messenger renders engine payloads into Discord messages. It is the
// production game.Messenger.
type messenger struct {
	dg *discordgo.Session
}

func newMessenger(dg *discordgo.Session) *messenger {
	return &messenger{dg: dg}
}

func (m *messenger) SendRound(channelID string, p game.MessagePayload) (string, error) {
	return m.send(channelID, p, embedColor)
}

func (m *messenger) SendInfo(channelID string, p game.MessagePayload) (string, error) {
	return m.send(channelID, p, embedColor)
}

func (m *messenger) SendError(channelID string, p game.MessagePayload) (string, error) {
	return m.send(channelID, p, embedColorError)
}

func (m *messenger) SendDM(userID string, p game.MessagePayload) error {
	ch, err := m.dg.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = m.send(ch.ID, p, embedColor)
	return err
}

func (m *messenger) send(channelID string, p game.MessagePayload, fallbackColor int) (string, error) {
	msg, err := m.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{buildEmbed(p, fallbackColor)},
		Components: buildComponents(p.Buttons),
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func buildEmbed(p game.MessagePayload, fallbackColor int) *discordgo.MessageEmbed {
	color := p.Color
	if color == 0 {
		color = fallbackColor
	}

	e := embed.NewEmbed().SetColor(color)
	if p.Title != "" {
		e = e.SetTitle(p.Title)
	}
	if p.Description != "" {
		e = e.SetDescription(p.Description)
	}
	if p.Thumbnail != "" {
		e = e.SetThumbnail(p.Thumbnail)
	}
	for _, f := range p.Fields {
		if f.Inline {
			e = e.AddField(f.Name, f.Value).MakeFieldInline()
		} else {
			e = e.AddField(f.Name, f.Value)
		}
	}
	return e.MessageEmbed
}

// buildComponents lays the payload's buttons into action rows, five per row
// per Discord's component limit.
func buildComponents(buttons []game.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}

	var rows []discordgo.MessageComponent
	var row []discordgo.MessageComponent
	for _, b := range buttons {
		btn := discordgo.Button{
			CustomID: b.CustomID,
			Label:    b.Label,
			Style:    discordgo.SecondaryButton,
		}
		if b.Emoji != "" {
			btn.Emoji = &discordgo.ComponentEmoji{Name: b.Emoji}
		}
		row = append(row, btn)
		if len(row) == 5 {
			rows = append(rows, discordgo.ActionsRow{Components: row})
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, discordgo.ActionsRow{Components: row})
	}
	return rows
}
