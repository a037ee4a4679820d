package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/tunequiz/internal/config"
	"github.com/keshon/tunequiz/internal/discord"
	"github.com/keshon/tunequiz/internal/game"
	"github.com/keshon/tunequiz/internal/logging"
	"github.com/keshon/tunequiz/internal/prefs"
	"github.com/keshon/tunequiz/internal/songs"
	"github.com/keshon/tunequiz/internal/storage"
	"github.com/keshon/tunequiz/internal/web"
	v "github.com/keshon/tunequiz/internal/version"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Config error")
	}

	logging.Init(cfg.LogLevel, cfg.LogFile)
	log.Info().Str("version", v.AppVer).Msgf("Starting %s", v.AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(ctx, cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Storage error")
	}
	defer store.Close()

	catalog, err := songs.LoadCatalog(cfg.SongsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SongsPath).Msg("Song catalog error")
	}
	log.Info().Int("songs", catalog.Size()).Msg("Song catalog loaded")

	prefsMgr := prefs.NewManager(store)
	registry := game.NewRegistry()

	srv := web.New(cfg.HTTPAddr, store, registry, catalog)
	go srv.Run()

	go runIdleReaper(ctx, registry, cfg.IdleSessionTimeout)

	errCh := make(chan error, 1)
	go func() {
		errCh <- discord.StartBot(ctx, cfg, store, catalog, prefsMgr, registry)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("Received signal, shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Discord bot error")
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Status server shutdown error")
	}

	log.Info().Msg("Exited cleanly")
}

// runIdleReaper ends sessions that saw no activity for the configured window.
func runIdleReaper(ctx context.Context, registry *game.Registry, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.ReapIdle(maxIdle)
		}
	}
}
