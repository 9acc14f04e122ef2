// Package telemetry exposes prometheus counters for scans and orders.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dyike/clarence/internal/logger"
)

// Scan outcomes.
const (
	ScanRecommended     = "recommended"
	ScanNoCandidates    = "no_candidates"
	ScanFilteredOut     = "filtered_out"
	ScanSynthesisFailed = "synthesis_failed"
	ScanAborted         = "aborted"
)

// Order outcomes.
const (
	OrderPlaced  = "placed"
	OrderFailed  = "failed"
	OrderSkipped = "skipped"
)

var (
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clarence_scans_total",
			Help: "Completed scans by outcome",
		},
		[]string{"outcome"},
	)

	SymbolsScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clarence_symbols_scored_total",
			Help: "Candidates that produced metrics and a score",
		},
	)

	SymbolsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clarence_symbols_dropped_total",
			Help: "Candidates dropped because market data was unavailable",
		},
	)

	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clarence_orders_total",
			Help: "Recommendations by approval and execution outcome",
		},
		[]string{"outcome"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clarence_tool_calls_total",
			Help: "Q&A tool calls by route",
		},
		[]string{"route"},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log *logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
