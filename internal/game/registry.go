package game

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Registry maps guild IDs to their live session. It enforces the one-live-
// session-per-guild invariant: adding a session for a guild first ends and
// finalizes any existing one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Get returns the guild's live session, if any.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// Add installs the session as the guild's live one, terminating a previous
// session first. The session's end hook removes it from the registry.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	prev := r.sessions[s.GuildID()]
	r.sessions[s.GuildID()] = s
	r.mu.Unlock()

	if prev != nil && prev != s {
		log.Info().Str("guild_id", s.GuildID()).Msg("replacing live session")
		prev.EndSession()
	}

	s.SetOnEnd(func(ended *Session) { r.remove(ended) })
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.GuildID()]; ok && cur == s {
		delete(r.sessions, s.GuildID())
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// All returns a snapshot of the live sessions.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// ReapIdle ends every session whose last activity is older than maxIdle.
// Run periodically from the process main loop.
func (r *Registry) ReapIdle(maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	cutoff := time.Now().Add(-maxIdle)
	for _, s := range r.All() {
		if s.LastActive().Before(cutoff) {
			log.Info().Str("guild_id", s.GuildID()).Msg("reaping idle session")
			s.EndSession()
		}
	}
}
