package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"libroreads/auth"
	"libroreads/gateway"
	"libroreads/internal"
	"libroreads/moderation"
	"libroreads/observability"
	"libroreads/repositories"
	"libroreads/runtime"
	"libroreads/services"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// main stays a thin wrapper: call run() and translate its outcome
	// into an OS exit code, so every defer actually executes.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	auth.SetSigningKey(config.JWTSigningKey)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories
	messageRepository, err := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = messageRepository.Close() }()

	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = userRepository.Close() }()

	followRepository := repositories.NewFollowRepository(db)
	bookshelfRepository := repositories.NewBookshelfRepository(db)

	// 4. Optional moderation
	moderator, err := buildModerator(config)
	if err != nil {
		return exitConfig, err
	}
	if moderator != nil {
		logger.Info("Content moderation enabled", "words_file", config.CensoredWordsFile)
	}

	// 5. Live delivery, services, transport
	bus := runtime.NewDeliveryBus(logger, config.SessionBufferSize)
	monitor := observability.NewMonitor(logger)

	chatService := services.NewChatService(logger, messageRepository, userRepository, bus, moderator)
	socialService := services.NewSocialService(userRepository, followRepository, bookshelfRepository)
	authService := services.NewAuthService(userRepository, config.AuthTokenDuration)

	server := gateway.NewServer(logger, chatService, socialService, authService, bus,
		monitor.Snapshot, config.AllowedOrigin)

	if config.EnableDebugInspector {
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		internal.StartDebugServer(db, config.DebugPort, "/inspect", nil, monitor.Snapshot)
	}

	// 6. Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Handler()}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("libroreads listening", "address", address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("Server stopped cleanly")
	return exitOK, nil
}

func buildModerator(config internal.Config) (*moderation.Moderator, error) {
	if config.CensoredWordsFile == "" {
		return nil, nil
	}
	words, err := moderation.LoadWords(config.CensoredWordsFile)
	if err != nil {
		return nil, fmt.Errorf("censored words: %w", err)
	}
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	moderator, err := moderation.NewModerator(words, replacement)
	if err != nil {
		return nil, fmt.Errorf("moderator build: %w", err)
	}
	return &moderator, nil
}
