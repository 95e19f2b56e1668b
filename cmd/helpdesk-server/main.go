package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/maildesk/maildesk-server/internal/account"
	"github.com/maildesk/maildesk-server/internal/api"
	"github.com/maildesk/maildesk-server/internal/config"
	"github.com/maildesk/maildesk-server/internal/events"
	"github.com/maildesk/maildesk-server/internal/storage"
)

func main() {
	// Command line flags
	var configFile string
	flag.StringVar(&configFile, "config", "config/helpdesk-server.yml", "Configuration file path")
	flag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Connect to database
	store, err := storage.NewPostgresStore(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	log.Info().Msg("Connected to database")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional: NATS-backed account event publisher
	var publisher account.EventPublisher
	if cfg.NATS.URL != "" {
		log.Info().Str("url", cfg.NATS.URL).Msg("Connecting to NATS...")

		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("maildesk-server"),
			nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
			nats.ReconnectWait(cfg.NATS.ReconnectInterval),
			nats.MaxReconnects(cfg.NATS.MaxReconnects),
			nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
				log.Warn().Err(err).Msg("Disconnected from NATS")
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info().Msg("Reconnected to NATS")
			}),
		)

		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to NATS, continuing without account events")
		} else {
			defer nc.Close()
			log.Info().Msg("Connected to NATS")
			publisher = events.NewPublisher(nc)
		}
	} else {
		log.Info().Msg("NATS not configured, account events disabled")
	}

	// Create REST API server
	apiServer, err := api.NewRESTServer(cfg, store, publisher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create API server")
	}

	// WaitGroup for services
	var wg sync.WaitGroup

	// Start API server
	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		if err := apiServer.ListenAndServe(addr); err != nil {
			log.Fatal().Err(err).Msg("REST API server failed")
		}
	}()

	// Periodically sweep expired sessions
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := store.DeleteExpiredSessions(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Failed to sweep expired sessions")
					continue
				}
				if deleted > 0 {
					log.Info().Int64("count", deleted).Msg("Swept expired sessions")
				}
			}
		}
	}()

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")

	// Cancel context
	cancel()

	// Shutdown API server
	if err := apiServer.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown API server gracefully")
	}

	// Wait for all services
	wg.Wait()

	log.Info().Msg("Helpdesk server stopped")
}
