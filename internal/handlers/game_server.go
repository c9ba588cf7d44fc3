// internal/handlers/game_server.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jason-s-yu/wordrope/internal/cache"
	"github.com/jason-s-yu/wordrope/internal/game"
	"github.com/jason-s-yu/wordrope/internal/hub"
	"github.com/jason-s-yu/wordrope/internal/metrics"
	"github.com/jason-s-yu/wordrope/internal/protocol"
	"github.com/sirupsen/logrus"
)

// ResultSink receives a record for every game that ends with two players seated.
type ResultSink interface {
	Publish(ctx context.Context, record cache.GameResultRecord) error
}

// Options tunes per-connection queues and timers.
type Options struct {
	OutboundQueueSize int
	HubBacklog        int
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	// WaitingTimeout expires games nobody joined. Zero disables expiry.
	WaitingTimeout time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		OutboundQueueSize: 100,
		HubBacklog:        game.DefaultHubBacklog,
		WriteTimeout:      5 * time.Second,
		PingInterval:      30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.OutboundQueueSize < 1 {
		o.OutboundQueueSize = def.OutboundQueueSize
	}
	if o.HubBacklog < 1 {
		o.HubBacklog = def.HubBacklog
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = def.PingInterval
	}
	return o
}

// GameServer holds the registry of live games and everything a connection needs
// to play in one.
type GameServer struct {
	GameStore *game.GameStore
	Lexicon   game.Lexicon
	// Results archives finished games. Nil disables archiving.
	Results ResultSink
	Logger  *logrus.Logger

	opts Options

	lobby   *hub.Hub[protocol.ServerMessage]
	lobbyMu sync.Mutex

	archiveWG sync.WaitGroup
}

// NewGameServer returns a server with an empty registry.
func NewGameServer(lex game.Lexicon, logger *logrus.Logger, opts Options) *GameServer {
	opts = opts.withDefaults()
	return &GameServer{
		GameStore: game.NewGameStore(),
		Lexicon:   lex,
		Logger:    logger,
		opts:      opts,
		lobby:     hub.New[protocol.ServerMessage](opts.HubBacklog),
	}
}

// Run sweeps games that waited too long for an opponent until ctx is done.
// It returns immediately when expiry is disabled.
func (gs *GameServer) Run(ctx context.Context) error {
	if gs.opts.WaitingTimeout <= 0 {
		return nil
	}
	interval := gs.opts.WaitingTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			gs.ExpireWaitingGames(now)
		}
	}
}

// ExpireWaitingGames removes games that have been waiting longer than the
// configured timeout as of now. Creators are told and disconnected.
func (gs *GameServer) ExpireWaitingGames(now time.Time) int {
	if gs.opts.WaitingTimeout <= 0 {
		return 0
	}
	expired := gs.GameStore.ExpireWaiting(now.Add(-gs.opts.WaitingTimeout))
	for _, g := range expired {
		g.Publish(protocol.Error{Message: "Game expired waiting for an opponent"})
		g.Close()
		metrics.GamesFinished.WithLabelValues("expired").Inc()
		gs.Logger.WithFields(logrus.Fields{
			"game":    g.ID,
			"creator": g.Creator,
		}).Info("expired waiting game")
	}
	if len(expired) > 0 {
		gs.broadcastLobby()
	}
	return len(expired)
}

// Close stops the lobby feed and waits for pending archive writes.
func (gs *GameServer) Close() {
	gs.lobby.Close()
	gs.archiveWG.Wait()
}

// HealthHandler reports liveness along with the number of live games.
func HealthHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ok",
			"games":  gs.GameStore.Count(),
		})
	}
}

// archive hands the record to the result sink off the game path.
func (gs *GameServer) archive(record cache.GameResultRecord) {
	if gs.Results == nil {
		return
	}
	gs.archiveWG.Add(1)
	go func() {
		defer gs.archiveWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := gs.Results.Publish(ctx, record); err != nil {
			metrics.ResultsArchived.WithLabelValues("error").Inc()
			gs.Logger.WithError(err).WithField("game", record.GameID).Warn("failed to archive game result")
			return
		}
		metrics.ResultsArchived.WithLabelValues("ok").Inc()
	}()
}

// newResultRecord summarizes g. winner is empty for a draw.
func newResultRecord(g *game.Game, winner, reason string) cache.GameResultRecord {
	return cache.GameResultRecord{
		GameID:       g.ID,
		Creator:      g.Creator,
		Joiner:       g.Joiner,
		Winner:       winner,
		RopePosition: g.RopePosition,
		CreatorScore: g.CreatorScore,
		JoinerScore:  g.JoinerScore,
		RoundsPlayed: g.CreatorScore + g.JoinerScore,
		MaxRounds:    g.MaxRounds,
		Reason:       reason,
		FinishedAt:   time.Now().UnixMilli(),
	}
}
