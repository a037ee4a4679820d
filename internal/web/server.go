// Package web serves a small HTTP status surface next to the bot: health,
// runtime stats and per-guild leaderboard snapshots.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/keshon/tunequiz/internal/game"
	"github.com/keshon/tunequiz/internal/songs"
	"github.com/keshon/tunequiz/internal/storage"
	"github.com/keshon/tunequiz/internal/version"
)

type Server struct {
	http     *http.Server
	storage  *storage.Storage
	registry *game.Registry
	catalog  *songs.Catalog
	started  time.Time
}

func New(addr string, st *storage.Storage, registry *game.Registry, catalog *songs.Catalog) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		storage:  st,
		registry: registry,
		catalog:  catalog,
		started:  time.Now(),
	}

	e := gin.New()
	e.Use(gin.Recovery())
	e.GET("/health", s.health)
	e.GET("/stats", s.stats)
	e.GET("/leaderboard/:guildID", s.leaderboard)

	s.http = &http.Server{Addr: addr, Handler: e}
	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() {
	log.Info().Str("addr", s.http.Addr).Msg("Status server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Status server failed")
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":             version.AppName,
		"version":         version.AppVer,
		"uptime_seconds":  int(time.Since(s.started).Seconds()),
		"active_sessions": s.registry.Len(),
		"catalog_size":    s.catalog.Size(),
	})
}

func (s *Server) leaderboard(c *gin.Context) {
	guildID := c.Param("guildID")

	entries, at, err := s.storage.GetLeaderboardSnapshot(guildID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard lookup failed"})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no leaderboard recorded for this guild"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded_at": at, "entries": entries})
}
