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
	"github.com/sirupsen/logrus"

	"pantry-planner/internal/app"
	"pantry-planner/internal/config"
	"pantry-planner/internal/database"
	"pantry-planner/internal/llm"
	"pantry-planner/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("Failed to load .env file: %v", err)
	}

	// 1. Load and validate configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateLLM(); err != nil {
		return err
	}
	if err := cfg.ValidateTelegram(); err != nil {
		return err
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize the chat model
	var gen llm.TextGenerator
	if cfg.LLMProvider == config.ProviderGroq {
		gen = llm.NewGroqClient(cfg.GroqAPIKey, cfg.ChatModel)
	} else {
		model := cfg.ChatModel
		if model == "" {
			model = llm.DefaultGeminiChatModel
		}
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		defer client.Close()
		gen = client
	}
	gen = llm.NewRateLimitedGenerator(gen, cfg.LLMRequestsPerMinute)

	// 3. Open the database
	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	application := app.NewApp(db, gen, app.Options{
		DatabasePath:    cfg.DatabasePath,
		MaxOutputTokens: cfg.LLMMaxOutputTokens,
	})

	// 4. Initialize the bot
	bot, err := telegram.NewBot(cfg, application)
	if err != nil {
		return fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}

	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Serve until interrupted, then shut down gracefully
	serveErr := make(chan error, 1)
	go func() {
		logrus.Infof("Telegram bot server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logrus.Info("Server exiting")
	return nil
}
