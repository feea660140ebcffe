package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/edgemeet/huddle/internal/adapters/http"
	signalws "github.com/edgemeet/huddle/internal/adapters/signal"
	"github.com/edgemeet/huddle/internal/app"
	"github.com/edgemeet/huddle/internal/config"
	"github.com/edgemeet/huddle/internal/engine"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	pool := engine.NewPool(engine.ProcessFactory(engine.Config{
		BinPath:     cfg.Worker.Bin,
		LogLevel:    cfg.Worker.LogLevel,
		ListenIP:    cfg.Rtc.ListenIP,
		AnnouncedIP: cfg.Rtc.AnnouncedIP,
		MinPort:     cfg.Rtc.MinPort,
		MaxPort:     cfg.Rtc.MaxPort,
	}), cfg.Worker.Count, engine.WithFatalHandler(func(error) { cancel() }))

	// The pool must be fully up before the listener accepts any connection.
	if err := pool.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start worker pool")
	}

	registry := app.NewRegistry(pool)
	directory := app.NewRoomDirectory(registry)
	ctl := signalws.NewController(cfg, registry)

	r := router.SetupRouter(ctx, cfg, ctl, directory)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("huddle server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	registry.CloseAll()
	if err := pool.Close(); err != nil {
		log.Error().Err(err).Msg("worker pool close")
	}
	log.Info().Msg("Server exited gracefully")
}
