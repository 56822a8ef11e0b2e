// Package main is the entry point for the engagement scoring engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-engage-bot/internal/config"
	"telegram-engage-bot/internal/judge"
	"telegram-engage-bot/internal/leaderboard"
	"telegram-engage-bot/internal/metrics"
	"telegram-engage-bot/internal/notifier"
	"telegram-engage-bot/internal/pkg/db"
	"telegram-engage-bot/internal/repository"
	"telegram-engage-bot/internal/scorer"
	"telegram-engage-bot/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional finalized-event archive
	var archive service.Archiver
	if cfg.Database.Enabled {
		dbPool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbPool.Close()

		if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
		archive = repository.NewArchiveRepository(dbPool.Pool)
	} else {
		log.Info().Msg("Archive database disabled, finalized events are not persisted")
	}

	// AI judge; without an API key every message takes the fallback path
	var aiJudge judge.Judge
	if cfg.Judge.APIKey != "" {
		aiJudge = judge.NewLLMJudge(judge.Config{
			APIKey:  cfg.Judge.APIKey,
			BaseURL: cfg.Judge.BaseURL,
			Model:   cfg.Judge.Model,
			Timeout: cfg.Judge.Timeout,
		})
	} else {
		log.Warn().Msg("No judge API key configured, using fallback scorer for all messages")
	}

	messageScorer := scorer.New(aiJudge, scorer.Config{
		MinLength:         cfg.Scoring.MinLength,
		ZeroPatterns:      cfg.Scoring.ZeroPatterns,
		FallbackCap:       cfg.Scoring.FallbackCap,
		LongMessageBonus:  cfg.Scoring.LongMessageBonus,
		ExtraLengthBonus:  cfg.Scoring.ExtraLengthBonus,
		QuestionBonus:     cfg.Scoring.QuestionBonus,
		EngagementBonus:   cfg.Scoring.EngagementBonus,
		DiversityWeight:   cfg.Scoring.DiversityWeight,
		SpamPenalty:       cfg.Scoring.SpamPenalty,
		LongThreshold:     cfg.Scoring.LongThreshold,
		ExtraThreshold:    cfg.Scoring.ExtraThreshold,
		QuestionThreshold: cfg.Scoring.QuestionThreshold,
		EngagementWords:   cfg.Scoring.EngagementWords,
	})

	engine := service.NewEngine(
		messageScorer,
		leaderboard.New(),
		notifier.NewLogNotifier(log.Logger),
		archive,
		cfg.Reward.Precision,
		cfg.Reward.DefaultRankSplit,
	)

	if cfg.Metrics.Enabled {
		metrics.MustRegister(prometheus.DefaultRegisterer)
		metrics.StartServer(ctx, log.Logger, cfg.Metrics.Addr)
	}

	// Periodic expiry poll; bounds how long an idle group's ended event
	// can wait for finalization.
	go func() {
		ticker := time.NewTicker(cfg.Engine.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				engine.TickAll(ctx, now)
			}
		}
	}()

	log.Info().
		Dur("tick_interval", cfg.Engine.TickInterval).
		Bool("archive", cfg.Database.Enabled).
		Bool("judge", aiJudge != nil).
		Msg("Engagement engine is running")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Settle anything already expired before exiting.
	engine.TickAll(context.Background(), time.Now())
	cancel()
	log.Info().Msg("Engine stopped gracefully")
}
