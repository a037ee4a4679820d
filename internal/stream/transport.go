package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/keshon/tunequiz/internal/game"
	"github.com/keshon/tunequiz/internal/songs"
)

// Transport joins Discord voice channels and plays songs into them. It
// implements game.VoiceTransport, reusing one voice connection per guild.
type Transport struct {
	dg     *discordgo.Session
	opener *Opener

	mu    sync.Mutex
	conns map[string]*conn
}

func NewTransport(dg *discordgo.Session) *Transport {
	return &Transport{
		dg:     dg,
		opener: NewOpener(),
		conns:  make(map[string]*conn),
	}
}

func (t *Transport) EnsureConnection(guildID, channelID string) (game.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.conns[guildID]; ok {
		if c.channelID() == channelID && c.alive() {
			return c, nil
		}
		c.Close()
	}

	vc, err := t.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}

	c := &conn{transport: t, guildID: guildID, vc: vc}
	t.conns[guildID] = c
	return c, nil
}

func (t *Transport) drop(guildID string, c *conn) {
	t.mu.Lock()
	if t.conns[guildID] == c {
		delete(t.conns, guildID)
	}
	t.mu.Unlock()
}

type conn struct {
	transport *Transport
	guildID   string

	mu     sync.Mutex
	vc     *discordgo.VoiceConnection
	closed bool
}

func (c *conn) channelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return ""
	}
	return c.vc.ChannelID
}

func (c *conn) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Play resolves and streams the song from the given seek offset. The returned
// subscription delivers exactly one PlayResult unless Close is called first.
func (c *conn) Play(song *songs.Song, seek time.Duration) (game.Subscription, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("voice connection closed")
	}
	vc := c.vc
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pcm, cleanup, err := c.transport.opener.Open(ctx, song.VideoID, seek)
	cancel()
	if err != nil {
		return nil, err
	}

	sub := newSubscription()
	go func() {
		defer cleanup()
		defer pcm.Close()
		err := streamToDiscord(pcm, vc, sub.stop)
		if err != nil {
			log.Warn().Err(err).Str("guild_id", c.guildID).Str("video_id", song.VideoID).Msg("Playback stream failed")
		}
		sub.deliver(game.PlayResult{Err: err})
	}()
	return sub, nil
}

func (c *conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	vc := c.vc
	c.mu.Unlock()

	if vc != nil {
		if err := vc.Disconnect(); err != nil {
			log.Warn().Err(err).Str("guild_id", c.guildID).Msg("Voice disconnect failed")
		}
	}
	c.transport.drop(c.guildID, c)
}

// subscription carries the single completion signal for one playback. deliver
// and Close share a sync.Once so a stopped playback never reports a result.
type subscription struct {
	done chan game.PlayResult
	stop chan struct{}
	once sync.Once
}

func newSubscription() *subscription {
	return &subscription{
		done: make(chan game.PlayResult, 1),
		stop: make(chan struct{}),
	}
}

func (s *subscription) Done() <-chan game.PlayResult { return s.done }

func (s *subscription) deliver(res game.PlayResult) {
	s.once.Do(func() {
		s.done <- res
		close(s.done)
	})
}

func (s *subscription) Close() {
	s.once.Do(func() {
		close(s.stop)
		close(s.done)
	})
}
