package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/qbridge/chat-service/internal/api"
	"github.com/qbridge/chat-service/internal/api/handler"
	"github.com/qbridge/chat-service/internal/auth"
	"github.com/qbridge/chat-service/internal/core/ports"
	"github.com/qbridge/chat-service/internal/core/service"
	mongostore "github.com/qbridge/chat-service/internal/infrastructure/db/mongo"
	redisstore "github.com/qbridge/chat-service/internal/infrastructure/db/redis"
	"github.com/qbridge/chat-service/internal/infrastructure/db/sqlite"
	"github.com/qbridge/chat-service/internal/infrastructure/queue"
	"github.com/qbridge/chat-service/internal/pkg/config"
	"github.com/qbridge/chat-service/internal/realtime"
	"github.com/qbridge/chat-service/pkg/logger"
	"github.com/qbridge/chat-service/pkg/token"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "chat-service",
		Env:     cfg.Env,
		Caller:  !cfg.IsProduction(),
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// backend is the persistence selected by STORE_DRIVER.
type backend struct {
	conversations ports.ConversationRepository
	messages      ports.MessageRepository
	checks        []handler.Check
	close         func(ctx context.Context)
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	codec, err := token.NewCodec([]byte(cfg.Auth.JWTSecret), token.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	store, err := openBackend(ctx, cfg, logger.Component("store"))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		store.close(closeCtx)
	}()

	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	dispatcher := queue.NewDispatcher(cfg.Realtime.DispatchWorkers, logger.Component("dispatcher"))
	dispatcher.Start(dispatchCtx)

	authenticator := auth.NewAuthenticator(cfg.Auth.CookieName, codec)
	members := service.NewMembershipService(store.conversations, logger.Component("membership"))
	messages := service.NewMessageService(store.messages, logger.Component("messages"))
	router := realtime.NewRouter(members, messages, dispatcher,
		realtime.RouterConfig{OutboundBuffer: cfg.Realtime.OutboundBuffer}, logger.Component("router"))

	e := api.NewRouter(api.Dependencies{
		Authenticator:  authenticator,
		Membership:     members,
		Messages:       messages,
		Gateway:        realtime.NewGateway(authenticator, router, logger.Component("gateway")),
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		Session: realtime.SessionConfig{
			PingInterval:  cfg.Realtime.PingInterval,
			MaxFrameBytes: cfg.Realtime.MaxFrameBytes,
		},
		Checks: store.checks,
	}, logger.Component("http"))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Realtime.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(e),
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Hijacked sockets are not tracked by the server; close them once the
	// listener is down. Admissions racing the listener close are refused.
	srv.RegisterOnShutdown(router.Shutdown)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("chat service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		return openSQLite(cfg, log)
	default:
		return openMongo(ctx, cfg, log)
	}
}

func openSQLite(cfg *config.Config, log zerolog.Logger) (*backend, error) {
	store, err := sqlite.Open(cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	log.Info().Str("path", cfg.Store.SQLitePath).Msg("sqlite store opened")

	return &backend{
		conversations: store,
		messages:      store,
		checks:        []handler.Check{{Name: "sqlite", Ping: store.Ping}},
		close: func(context.Context) {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("sqlite close failed")
			}
		},
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	seq, err := redisstore.Open(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, err
	}

	store, err := mongostore.Open(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database}, seq)
	if err != nil {
		_ = seq.Close()
		return nil, err
	}
	log.Info().Str("database", cfg.Mongo.Database).Str("redis", cfg.Redis.Addr).Msg("mongo store connected")

	return &backend{
		conversations: store.Conversations,
		messages:      store.Messages,
		checks: []handler.Check{
			{Name: "mongodb", Ping: store.Ping},
			{Name: "redis", Ping: seq.Ping},
		},
		close: func(ctx context.Context) {
			if err := seq.Close(); err != nil {
				log.Warn().Err(err).Msg("redis close failed")
			}
			if err := store.Close(ctx); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect failed")
			}
		},
	}, nil
}
