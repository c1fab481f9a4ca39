// Package metrics exposes the assistant's operational counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	ActivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_activations_total",
		Help: "Activation periods started.",
	})

	PollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_polls_total",
		Help: "Board polls by classification result.",
	}, []string{"result"})

	EngineEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_engine_events_total",
		Help: "Engine events received by kind.",
	}, []string{"kind"})

	HistoryRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_history_rejections_total",
		Help: "Analysis entries rejected by validation or repetition cutoff.",
	})

	AutoPlayCommitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_autoplay_commits_total",
		Help: "Moves dispatched automatically.",
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "assistant_bestmove_cache_hits_total",
		Help: "Best moves served from the position cache.",
	})
)

// Serve exposes /metrics on addr in a background goroutine. No-op when addr
// is empty.
func Serve(addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()
}
