package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-relay/auth"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern ensures all 'defer' statements (like database cleanup) run before the process
// exits, and keeps the wiring testable outside the main entry point.
func run() (int, error) {
	// 1. Configuration & Logger
	// A local .env is a development convenience; in production the
	// environment is authoritative.
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	auth.SetSigningKey([]byte(config.TokenSecret))

	// 2. Database (SQLite)
	db, err := repositories.Open(config.DBPath)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures pending writes are flushed before the process exits.
		logger.Info("Closing database...")
		_ = db.Close()
	}()

	// 3. Optional moderation stage
	moderator, err := buildModerator(config)
	if err != nil {
		return exitConfig, err
	}

	// 4. Services & transport
	monitor := observability.NewMonitor(logger)
	users := repositories.NewUserRepository(db)
	messages := repositories.NewMessageRepository(db)

	registry := ws.NewRegistry()
	sessions := services.NewSessionManager(auth.NewTokenVerifier(), users, registry, monitor, logger)
	router := services.NewMessageRouter(messages, registry, moderator, monitor, logger)
	relay := ws.NewServer(sessions, router, monitor, config.AuthTimeout, logger)

	if config.StatsPort != nil {
		logger.Info("Debug stats endpoint available", "url", fmt.Sprintf("http://localhost:%d/stats", *config.StatsPort))
		internal.StartDebugServer(monitor, *config.StatsPort)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", relay.ServeWS)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: mux,
	}

	// 5. Lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Relay listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return exitRuntime, fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("Relay stopped")
	return exitOK, nil
}

// buildModerator loads the censored word list when one is configured.
// No file means no moderation stage at all.
func buildModerator(config internal.Config) (*moderation.Moderator, error) {
	if config.CensoredWordsFile == "" {
		return nil, nil
	}

	replacement := '*'
	if config.CharReplacement != "" {
		r, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return nil, err
		}
		replacement = r
	}

	file, err := os.Open(config.CensoredWordsFile)
	if err != nil {
		return nil, fmt.Errorf("censored words file: %w", err)
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if word := strings.TrimSpace(scanner.Text()); word != "" {
			words = append(words, word)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("censored words file: %w", err)
	}

	moderator, err := moderation.NewModerator(words, replacement)
	if err != nil {
		return nil, fmt.Errorf("moderator: %w", err)
	}
	return moderator, nil
}
