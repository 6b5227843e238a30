package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/config"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/logger"
	"github.com/luthfiadilal/front-end-CBT-sub000/internal/mockserver"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "8080"
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", port).
		Msg("Starting CBT mock backend")

	// ─── Build Server & Seed Data ──────────────────────────────────────
	mock := mockserver.New(log)
	exam, users := mock.SeedDefaults()
	log.Info().
		Str("exam_id", exam.ID.String()).
		Int("users", len(users)).
		Msg("Seeded development fixtures")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: mock.Handler(),
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Mock backend listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
