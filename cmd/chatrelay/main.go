package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chatrelay/internal/auth"
	"chatrelay/internal/config"
	"chatrelay/internal/gemini"
	"chatrelay/internal/relay"
	"chatrelay/internal/server"
	"chatrelay/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: "Conversation-aware relay between users and the Gemini API",
	Long: `chatrelay accepts chat prompts over HTTP, persists conversational turns
in SQLite, forwards prompts to the Google Gemini API, and derives a short
title for each new conversation.`,
	SilenceUsage: true,
	RunE:         run,
}

func run(cmd *cobra.Command, args []string) error {
	// Best effort: a missing .env file is fine.
	_ = godotenv.Load()
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY is not set; chat requests will fail until it is configured")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Init(); err != nil {
		return err
	}

	tokens, err := auth.ParseStaticTokens(cfg.AuthTokens)
	if err != nil {
		return errors.Wrap(err, "parse CHATRELAY_AUTH_TOKENS")
	}

	orch := &relay.Orchestrator{
		Store:        st,
		Provider:     gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiAPIBase, cfg.GeminiModel),
		APIKey:       cfg.GeminiAPIKey,
		ChatTimeout:  time.Duration(cfg.ChatTimeoutSeconds) * time.Second,
		TitleTimeout: time.Duration(cfg.TitleTimeoutSeconds) * time.Second,
		Logger:       logger,
	}

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(tokens, orch, logger).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("model", cfg.GeminiModel).Msg("chatrelay listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
