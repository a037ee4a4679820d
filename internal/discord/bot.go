// Package discord adapts the quiz engine to the Discord gateway: slash
// commands, component presses and free-text guesses come in, embeds and voice
// audio go out.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/tunequiz/internal/config"
	"github.com/keshon/tunequiz/internal/game"
	"github.com/keshon/tunequiz/internal/prefs"
	"github.com/keshon/tunequiz/internal/songs"
	"github.com/keshon/tunequiz/internal/storage"
	"github.com/keshon/tunequiz/internal/stream"
	"github.com/keshon/tunequiz/internal/version"
)

// Bot is the Discord-facing half of the application. It owns the gateway
// session and builds one game session per guild on demand.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	storage  *storage.Storage
	catalog  *songs.Catalog
	prefsMgr *prefs.Manager
	registry *game.Registry

	transport *stream.Transport
	messenger *messenger
	presence  *presence
}

// StartBot runs the Discord bot until ctx is cancelled.
func StartBot(ctx context.Context, cfg *config.Config, st *storage.Storage, catalog *songs.Catalog, prefsMgr *prefs.Manager, registry *game.Registry) error {
	b := &Bot{
		cfg:      cfg,
		storage:  st,
		catalog:  catalog,
		prefsMgr: prefsMgr,
		registry: registry,
	}
	if err := b.run(ctx, cfg.DiscordToken); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

func (b *Bot) run(ctx context.Context, token string) error {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.dg = dg
	b.transport = stream.NewTransport(dg)
	b.messenger = newMessenger(dg)
	b.presence = newPresence(dg)

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onVoiceStateUpdate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, ending active sessions")
	for _, s := range b.registry.All() {
		s.EndSession()
	}
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if err := b.registerCommands(); err != nil {
		log.Error().Err(err).Msg("Error registering slash commands")
	}
	log.Info().Str("username", r.User.Username).Msgf("✅ %s is running", version.AppName)
}

// registerCommands overwrites the application's global command set with the
// current definitions.
func (b *Bot) registerCommands() error {
	appID := b.dg.State.User.ID
	if appID == "" {
		user, err := b.dg.User("@me")
		if err != nil {
			return err
		}
		appID = user.ID
	}
	_, err := b.dg.ApplicationCommandBulkOverwrite(appID, "", slashDefinitions())
	return err
}

// onMessageCreate routes free-text messages to the guild's session as typed
// guesses.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	sess, ok := b.registry.Get(m.GuildID)
	if !ok {
		return
	}
	sess.HandleGuess(m.Author.ID, displayName(m.Member, m.Author), m.ChannelID, m.Content)
}

// onVoiceStateUpdate keeps session membership in step with the voice channel.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.UserID == s.State.User.ID {
		return
	}
	sess, ok := b.registry.Get(v.GuildID)
	if !ok {
		return
	}
	sess.HandleVoiceUpdate()
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlash(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

// handleComponent forwards button presses to the session. The engine decides
// whether the press is live; the gateway just acknowledges it.
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Member == nil {
		return
	}

	sess, ok := b.registry.Get(i.GuildID)
	if !ok {
		_ = RespondEphemeral(s, i, "No game is running in this server.")
		return
	}

	customID := i.MessageComponentData().CustomID
	messageID := ""
	if i.Message != nil {
		messageID = i.Message.ID
	}

	handled := sess.HandleComponent(i.Member.User.ID, displayName(i.Member, i.Member.User), messageID, customID)
	if handled {
		_ = AckComponent(s, i)
	} else {
		_ = RespondEphemeral(s, i, "That button is no longer active.")
	}
}

// sessionDeps bundles the production collaborators for a new session. Each
// session gets its own selector so unique-song queues never cross guilds.
func (b *Bot) sessionDeps() game.Deps {
	return game.Deps{
		Transport:       b.transport,
		Messenger:       b.messenger,
		Store:           b.storage,
		Presence:        b.presence,
		Prefs:           b.prefsMgr,
		Picker:          songs.NewSelector(b.catalog, nil),
		MultiGuessDelay: b.cfg.MultiGuessDelay,
		PowerHour:       b.cfg.PowerHour,
	}
}

func displayName(m *discordgo.Member, u *discordgo.User) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u != nil {
		return u.Username
	}
	return "unknown"
}
