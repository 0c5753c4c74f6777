package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/webmetro/relay/internal/channel"
	"github.com/webmetro/relay/internal/config"
	"github.com/webmetro/relay/internal/httprelay"
	"github.com/webmetro/relay/internal/logger"
)

const shutdownGrace = 5 * time.Second

// runServe binds cfg.ListenAddress and serves until an interrupt or
// terminate signal arrives, then shuts down gracefully. A bind or
// address-resolution failure is returned unchanged so main exits
// non-zero; a clean shutdown returns nil.
func runServe(ctx context.Context, cfg *config.Config) error {
	logger.Init(cfg.LogLevel)
	log := logger.With("cli")

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}

	registry := channel.NewRegistry()
	relay := httprelay.New(cfg, registry)
	server := &http.Server{Handler: relay.Router()}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()
	log.Info().Str("addr", listener.Addr().String()).Msg("relay server started")

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-sigCtx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced exit after shutdown timeout")
		return err
	}

	log.Info().Msg("relay server stopped cleanly")
	return nil
}
