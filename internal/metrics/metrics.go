// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	MessagesScored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_messages_scored_total",
		Help: "Messages scored, labeled by score source",
	}, []string{"source"})

	JudgeFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_judge_fallbacks_total",
		Help: "Fallback scorer activations, labeled by reason",
	}, []string{"reason"})

	JudgeCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "engage_judge_call_duration_seconds",
		Help:    "Duration of AI judge calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"model", "status"})

	ScoresRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engage_scores_recorded_total",
		Help: "Scores applied to an active event ledger",
	})

	EventsFinalized = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engage_events_finalized_total",
		Help: "Events finalized",
	})

	PayoutsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_payouts_emitted_total",
		Help: "Payout plans emitted to the payout collaborator, labeled by event type",
	}, []string{"type"})
)

// MustRegister registers all engine metrics with the given registerer.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		MessagesScored,
		JudgeFallbacks,
		JudgeCallDuration,
		ScoresRecorded,
		EventsFinalized,
		PayoutsEmitted,
	)
}

// ObserveJudgeCall records one judge HTTP round trip.
func ObserveJudgeCall(model string, start time.Time, err error) {
	if model == "" {
		model = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	JudgeCallDuration.WithLabelValues(model, status).Observe(time.Since(start).Seconds())
}

// StartServer runs an HTTP server exposing /metrics until ctx is done.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}
