// Package main is the entry point for the Stellar jukebox player.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-jukebox/internal/config"
	"github.com/edumarques81/stellar-jukebox/internal/domain/command"
	"github.com/edumarques81/stellar-jukebox/internal/domain/history"
	"github.com/edumarques81/stellar-jukebox/internal/domain/playback"
	"github.com/edumarques81/stellar-jukebox/internal/domain/player"
	"github.com/edumarques81/stellar-jukebox/internal/domain/poller"
	"github.com/edumarques81/stellar-jukebox/internal/domain/session"
	"github.com/edumarques81/stellar-jukebox/internal/domain/view"
	"github.com/edumarques81/stellar-jukebox/internal/infra/artwork"
	"github.com/edumarques81/stellar-jukebox/internal/infra/backend"
	"github.com/edumarques81/stellar-jukebox/internal/infra/cache"
	"github.com/edumarques81/stellar-jukebox/internal/infra/mpd"
	"github.com/edumarques81/stellar-jukebox/internal/transport/httpapi"
	"github.com/edumarques81/stellar-jukebox/internal/transport/socketio"
	"github.com/edumarques81/stellar-jukebox/internal/transport/wsfeed"
	"github.com/edumarques81/stellar-jukebox/internal/version"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "jukebox:", err)
		os.Exit(2)
	}

	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Collaborative Queue Player")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("port", cfg.Port).
		Str("api_url", cfg.APIURL).
		Str("mpd_host", cfg.MPDHost).
		Int("mpd_port", cfg.MPDPort).
		Bool("password_set", cfg.MPDPassword != "").
		Str("stream_url", cfg.StreamURL).
		Int("max_clients", cfg.MaxClients).
		Bool("console", cfg.Console).
		Str("db", cfg.DBPath).
		Msg("Configuration")

	sess := session.New(cfg.Name)

	// Infrastructure
	backendClient := backend.NewClient(
		backend.WithBaseURL(cfg.APIURL),
		backend.WithSession(sess.ID()),
	)
	mpdClient := mpd.NewClient(cfg.MPDHost, cfg.MPDPort, cfg.MPDPassword)
	defer mpdClient.Close()

	artworkOpts := []artwork.Option{artwork.WithUserAgent(version.UserAgent())}
	var recorder *history.Recorder
	if cfg.DBPath != "" {
		db := cache.NewDB(cfg.DBPath)
		if err := db.Open(); err != nil {
			log.Warn().Err(err).Msg("Cache database unavailable, history and thumbnails will not persist")
		} else {
			defer db.Close()
			artworkOpts = append(artworkOpts, artwork.WithStore(db))
			recorder = history.NewRecorder(db)
		}
	}
	thumbs := artwork.NewProxy(artworkOpts...)

	// Domain
	adapter := player.NewMPDAdapter(mpdClient, cfg.StreamURL)
	presenter := view.NewPresenter()
	statePoller := poller.New(backendClient)
	controller := playback.NewController(adapter,
		playback.WithListener(presenter.SetStatus),
		playback.WithOnReady(statePoller.Refresh),
	)
	defer controller.Close()

	// The controller sees each poll before the presenter renders it.
	statePoller.Subscribe(controller.OnPollResult)
	statePoller.Subscribe(presenter.SetState)
	if recorder != nil {
		statePoller.Subscribe(recorder.OnPollResult)
	}

	dispatcher := command.New(backendClient, controller, statePoller, command.WithRequester(sess.Name()))
	controller.SetAdvancer(dispatcher)

	// Transports
	socketServer := socketio.NewServer(dispatcher, presenter, sess.Info(),
		socketio.WithConnectionLimit(cfg.MaxClients),
	)
	defer socketServer.Close()

	feed := wsfeed.NewHub()
	presenter.Subscribe(socketServer.Notify)
	presenter.Subscribe(feed.Publish)

	apiOpts := []httpapi.Option{
		httpapi.WithReadiness(func() bool { return mpdClient.Ping() == nil }),
		httpapi.WithStaticDir(cfg.StaticDir),
		httpapi.WithSocketIO(socketServer),
		httpapi.WithFeed(feed.Handler(cfg.AllowedOrigins)),
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins),
	}
	if recorder != nil {
		apiOpts = append(apiOpts, httpapi.WithHistory(recorder))
	}
	api := httpapi.NewServer(presenter, thumbs, apiOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go adapter.Run(ctx, controller)
	go statePoller.Run(ctx)
	go feed.Run(ctx)

	if cfg.Console {
		go runConsole(ctx, cancel, dispatcher, presenter)
	}

	// Start HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.Router(middleware.RealIP, middleware.Recoverer, httpapi.RequestLogger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	log.Info().Str("addr", ":"+cfg.Port).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("HTTP server error")
	}

	// Nobody drives the player once we are gone.
	if err := mpdClient.Stop(); err != nil {
		log.Debug().Err(err).Msg("Stop on exit failed")
	}

	log.Info().Msg("Server stopped")
}
