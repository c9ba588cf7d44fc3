// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/wordrope/internal/cache"
	"github.com/jason-s-yu/wordrope/internal/game"
	"github.com/jason-s-yu/wordrope/internal/hub"
	"github.com/jason-s-yu/wordrope/internal/metrics"
	"github.com/jason-s-yu/wordrope/internal/middleware"
	"github.com/jason-s-yu/wordrope/internal/protocol"
	"github.com/sirupsen/logrus"
)

// maxMessageSize caps inbound frames. Client messages are tiny.
const maxMessageSize = 4096

// playerConn is the server side of one WebSocket. gameID and playerID are only
// touched by the read loop; logger never changes after setup.
type playerConn struct {
	ws     *websocket.Conn
	out    chan outbound
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logrus.Entry

	gameID   string
	playerID string
}

// reply queues msg for this connection only.
func (pc *playerConn) reply(msg protocol.ServerMessage) {
	select {
	case pc.out <- outbound{msg: msg}:
	case <-pc.ctx.Done():
	}
}

func (pc *playerConn) replyError(message string) {
	pc.reply(protocol.Error{Message: message})
}

func (pc *playerConn) bind(gameID, playerID string) {
	pc.gameID = gameID
	pc.playerID = playerID
}

// log returns the connection logger with the bound game, for use on the read loop.
func (pc *playerConn) log() *logrus.Entry {
	if pc.gameID == "" {
		return pc.logger
	}
	return pc.logger.WithFields(logrus.Fields{"game": pc.gameID, "player": pc.playerID})
}

func (pc *playerConn) spawn(fn func()) {
	pc.wg.Add(1)
	go func() {
		defer pc.wg.Done()
		fn()
	}()
}

// GameWSHandler upgrades the HTTP connection to a WebSocket and serves one player
// until the socket closes. Leaving a game by disconnecting forfeits it.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("WebSocket accept error from %s: %v", r.RemoteAddr, err)
			return
		}
		defer c.CloseNow()
		c.SetReadLimit(maxMessageSize)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		pc := &playerConn{
			ws:     c,
			out:    make(chan outbound, gs.opts.OutboundQueueSize),
			ctx:    ctx,
			cancel: cancel,
			logger: logger.WithField("remote", r.RemoteAddr),
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)
		metrics.ConnectionsActive.Inc()
		defer metrics.ConnectionsActive.Dec()

		// The initial list is queued before the relay can forward any update.
		lobbySub, current := gs.joinLobby()
		pc.spawn(func() { gs.writePump(pc) })
		pc.reply(current)
		pc.spawn(func() { relay(pc, lobbySub, "lobby") })

		readErr := gs.readGameMessages(pc)

		gs.handleDisconnect(pc)
		cancel()
		pc.wg.Wait()
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// readGameMessages decodes and dispatches client frames until the socket fails,
// closes, or the connection is cancelled. Only unexpected failures are returned.
func (gs *GameServer) readGameMessages(pc *playerConn) error {
	for {
		msgType, data, err := pc.ws.Read(pc.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) || pc.ctx.Err() != nil {
				return nil
			}
			return err
		}

		if msgType != websocket.MessageText {
			pc.log().Debugf("ignoring non-text message type %d", msgType)
			continue
		}

		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			pc.log().WithError(err).Debug("ignoring invalid message")
			continue
		}
		gs.dispatch(pc, msg)
	}
}

func (gs *GameServer) dispatch(pc *playerConn, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.CreateGame:
		gs.handleCreateGame(pc, m)
	case protocol.JoinGame:
		gs.handleJoinGame(pc, m)
	case protocol.SubmitWord:
		gs.handleSubmitWord(pc, m)
	}
}

func (gs *GameServer) handleCreateGame(pc *playerConn, m protocol.CreateGame) {
	if pc.gameID != "" {
		pc.replyError("already in a game")
		return
	}

	g, err := game.NewGame(game.NewID(), m.PlayerID, m.Rounds, gs.Lexicon, gs.opts.HubBacklog)
	if err != nil {
		pc.replyError(clientError(err))
		return
	}

	sub := g.Subscribe()
	if err := gs.GameStore.Insert(g.ID, g); err != nil {
		sub.Close()
		pc.log().WithError(err).Error("failed to register game")
		pc.replyError("could not create game, try again")
		return
	}

	pc.bind(g.ID, m.PlayerID)
	pc.spawn(func() { relay(pc, sub, "game") })
	pc.reply(protocol.GameCreated{GameID: g.ID, PlayerID: m.PlayerID})
	pc.log().WithField("rounds", m.Rounds).Info("game created")

	gs.broadcastLobby()
}

func (gs *GameServer) handleJoinGame(pc *playerConn, m protocol.JoinGame) {
	if pc.gameID != "" {
		pc.replyError("already in a game")
		return
	}

	// Subscribe under the game's lock so the joiner sees its own PlayerJoined.
	var sub *hub.Subscription[protocol.ServerMessage]
	err := gs.GameStore.WithGame(m.GameID, func(g *game.Game) error {
		sub = g.Subscribe()
		if err := g.Join(m.PlayerID); err != nil {
			sub.Close()
			sub = nil
			return err
		}
		return nil
	})
	if err != nil {
		pc.log().WithError(err).WithField("game", m.GameID).Debug("join rejected")
		pc.replyError(clientError(err))
		return
	}

	pc.bind(m.GameID, m.PlayerID)
	pc.spawn(func() { relay(pc, sub, "game") })
	pc.reply(protocol.JoinGame{GameID: m.GameID, PlayerID: m.PlayerID})
	pc.log().Info("player joined")

	gs.broadcastLobby()
}

func (gs *GameServer) handleSubmitWord(pc *playerConn, m protocol.SubmitWord) {
	if pc.gameID == "" {
		pc.replyError("not in a game")
		return
	}

	var record *cache.GameResultRecord
	err := gs.GameStore.WithGame(pc.gameID, func(g *game.Game) error {
		result, finished, err := g.SubmitWord(pc.playerID, m.Word)
		if err != nil {
			return err
		}
		g.Publish(protocol.RoundResult{Result: result})
		if !finished {
			g.Publish(protocol.StateSnapshot{State: g.Snapshot()})
			return nil
		}
		end := g.EndMessage()
		g.Publish(end)

		winner := ""
		if end.Winner != nil {
			winner = *end.Winner
		}
		rec := newResultRecord(g, winner, cache.ReasonCompleted)
		record = &rec
		return nil
	})
	if err != nil {
		metrics.MovesTotal.WithLabelValues("rejected").Inc()
		pc.replyError(clientError(err))
		return
	}
	metrics.MovesTotal.WithLabelValues("accepted").Inc()

	if record != nil {
		metrics.GamesFinished.WithLabelValues(cache.ReasonCompleted).Inc()
		pc.log().WithField("winner", record.Winner).Info("game finished")
		gs.archive(*record)
	}
}

// handleDisconnect forfeits the connection's game, if any. The opponent is told
// they won and is then disconnected.
func (gs *GameServer) handleDisconnect(pc *playerConn) {
	if pc.gameID == "" {
		return
	}
	g := gs.GameStore.Remove(pc.gameID)
	if g == nil {
		// Already gone, e.g. expired or forfeited by the opponent first.
		return
	}

	alreadyFinished := g.Status == game.StatusFinished
	winner, hasOpponent := g.Forfeit(pc.playerID)
	if hasOpponent {
		g.Publish(protocol.GameEnd{Winner: &winner, FinalState: g.Snapshot()})
		g.Publish(protocol.Error{Message: fmt.Sprintf("%s disconnected. You win by default!", pc.playerID)})
	}
	g.Close()

	pc.log().WithField("opponent", winner).Info("player left, game removed")
	if hasOpponent && !alreadyFinished {
		metrics.GamesFinished.WithLabelValues(cache.ReasonForfeit).Inc()
		gs.archive(newResultRecord(g, winner, cache.ReasonForfeit))
	}
	gs.broadcastLobby()
}

// clientError turns an operation error into the text shown to the player.
func clientError(err error) string {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return "Game not found"
	case game.IsRuleViolation(err):
		return err.Error()
	default:
		return "internal error"
	}
}
