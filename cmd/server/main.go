package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"chat_backend/internal/assistant"
	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	"chat_backend/internal/httpserver"
	"chat_backend/internal/logging"
	"chat_backend/internal/realtime"
	"chat_backend/internal/security"
	"chat_backend/internal/service"
	"chat_backend/internal/store/postgres"
	"chat_backend/internal/store/sqlite"
	"chat_backend/internal/ws"
)

type repositories struct {
	users     domain.UserRepository
	friends   domain.FriendRepository
	groups    domain.GroupRepository
	groupReqs domain.GroupRequestRepository
	messages  domain.MessageRepository
}

// openStore opens and migrates the database selected by STORE_DRIVER.
func openStore(cfg *config.Config) (*sql.DB, repositories, error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresURL())
		if err != nil {
			return nil, repositories{}, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, repositories{}, err
		}
		return db, repositories{
			users:     postgres.NewUserRepo(db),
			friends:   postgres.NewFriendRepo(db),
			groups:    postgres.NewGroupRepo(db),
			groupReqs: postgres.NewGroupRequestRepo(db),
			messages:  postgres.NewMessageRepo(db),
		}, nil
	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, repositories{}, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, repositories{}, err
		}
		return db, repositories{
			users:     sqlite.NewUserRepo(db),
			friends:   sqlite.NewFriendRepo(db),
			groups:    sqlite.NewGroupRepo(db),
			groupReqs: sqlite.NewGroupRequestRepo(db),
			messages:  sqlite.NewMessageRepo(db),
		}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.AppName, cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	db, repos, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	log.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL())
	passwordHasher := security.NewPasswordHasher(0)
	cipher, err := security.NewContentCipher(cfg.EncryptKey, cfg.LegacyEncryptKeys)
	if err != nil {
		return fmt.Errorf("init content cipher: %w", err)
	}
	dir, err := service.NewUserDirectory(repos.users, cfg.UserCacheSize)
	if err != nil {
		return fmt.Errorf("init user directory: %w", err)
	}

	userSvc := service.NewUserService(repos.users, dir, logging.Component(log, "users"))

	policy, err := realtime.ParsePolicy(cfg.PresencePolicy)
	if err != nil {
		return err
	}
	hub := realtime.NewHub(realtime.Options{
		Policy:        policy,
		TypingTTL:     cfg.TypingTTL,
		SweepInterval: cfg.TypingSweepInterval,
		RingTimeout:   cfg.CallRingTimeout,
		OnPresence: func(userID string, online bool) {
			go userSvc.RecordPresence(userID, online)
		},
	}, logging.Component(log, "hub"))

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.Run(hubCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("hub stopped")
		}
	}()

	msgSvc := service.NewMessageService(repos.messages, repos.users, repos.groups, repos.friends,
		cipher, dir, hub, logging.Component(log, "messages"), cfg.HistoryPageLimit)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	bot, err := assistant.EnsureBot(startupCtx, repos.users, passwordHasher, cfg.BotUsername)
	cancelStartup()
	if err != nil {
		return fmt.Errorf("ensure bot account: %w", err)
	}

	authSvc := service.NewAuthService(repos.users, tokenSvc, passwordHasher).
		WithDefaultFriend(repos.friends, bot.ID)

	assistantLog := logging.Component(log, "assistant")
	var completer assistant.Completer
	if cfg.AIAPIKey != "" {
		completer = assistant.NewOpenAICompleter(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModels, assistantLog)
	} else {
		assistantLog.Warn().Msg("no AI API key configured, bot answers with canned replies")
	}
	responder := assistant.NewResponder(bot.ID, msgSvc, completer, assistant.Options{
		Delay:   cfg.BotReplyDelay,
		Timeout: cfg.BotReplyTimeout,
	}, assistantLog)
	msgSvc.SetBot(responder)

	gateway := ws.NewGateway(hub, authSvc, msgSvc, msgSvc, ws.Options{
		AllowedOrigins: cfg.CORSOrigins,
		SendBuffer:     cfg.WSSendBuffer,
		PingInterval:   cfg.WSPingInterval,
		PongWait:       cfg.WSPongWait,
	}, logging.Component(log, "ws"))

	router := httpserver.NewRouter(cfg, httpserver.Services{
		Auth:     authSvc,
		Users:    userSvc,
		Friends:  service.NewFriendService(repos.friends, repos.users, dir),
		Groups:   service.NewGroupService(repos.groups, repos.groupReqs, dir),
		Messages: msgSvc,
		Search:   service.NewSearchService(repos.users, repos.groups),
	}, hub, gateway, logging.Component(log, "http"))

	// No write timeout: websocket connections are long lived and pace their
	// own writes.
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if err := gateway.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("websocket shutdown incomplete")
	}
	responder.Close()
	stopHub()
	<-hubDone
	log.Info().Msg("server stopped")
	return nil
}
