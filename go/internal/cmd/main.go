package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/snappoll/snappoll/go/internal/gateway"
	"github.com/snappoll/snappoll/go/internal/poll"
	"github.com/snappoll/snappoll/go/internal/registry"
	"github.com/snappoll/snappoll/go/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	clock := clockwork.NewRealClock()
	reg := registry.New()
	store := poll.NewStore(clock)

	wsConfig := gateway.DefaultConnectionConfig()
	wsConfig.SendBuffer = cfg.Websocket.SendBuffer
	wsConfig.PingInterval = time.Duration(cfg.Websocket.PingIntervalSec) * time.Second
	wsConfig.ReadTimeout = time.Duration(cfg.Websocket.ReadTimeoutSec) * time.Second
	wsConfig.WriteTimeout = time.Duration(cfg.Websocket.WriteTimeoutSec) * time.Second
	wsConfig.CheckOrigin = originChecker(cfg.Server.AllowedOrigins)

	cm := gateway.NewConnectionManager(wsConfig)
	sess := session.New(reg, store, clock, cm, session.Config{
		DefaultPollDuration: cfg.defaultPollDuration(),
	})
	cm.SetSink(sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx)

	server := setupServer(cfg, gateway.NewWebSocketHandler(cm))

	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}
