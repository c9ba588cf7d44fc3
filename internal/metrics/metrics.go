// Package metrics exposes Prometheus collectors for the game server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks open WebSocket connections.
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wordrope_connections_active",
		Help: "Current number of open WebSocket connections",
	})

	// GamesActive tracks games held in the registry.
	GamesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wordrope_games_active",
		Help: "Current number of games in the registry",
	})

	// MovesTotal counts submitted words by outcome: "accepted" or "rejected".
	MovesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wordrope_moves_total",
		Help: "Total number of submitted words",
	}, []string{"result"})

	// GamesFinished counts ended games by reason: "completed", "forfeit" or "expired".
	GamesFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wordrope_games_finished_total",
		Help: "Total number of games that ended",
	}, []string{"reason"})

	// RelayLaggedEvents counts events a slow connection never received.
	RelayLaggedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wordrope_relay_lagged_events_total",
		Help: "Events dropped for connections that fell behind their game",
	})

	// ResultsArchived counts result records handed to the archive queue, by outcome.
	ResultsArchived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wordrope_results_archived_total",
		Help: "Finished game records pushed to the historian queue",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		GamesActive,
		MovesTotal,
		GamesFinished,
		RelayLaggedEvents,
		ResultsArchived,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
