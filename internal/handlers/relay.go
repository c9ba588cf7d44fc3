// internal/handlers/relay.go
package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/wordrope/internal/hub"
	"github.com/jason-s-yu/wordrope/internal/metrics"
	"github.com/jason-s-yu/wordrope/internal/protocol"
)

// outbound is one message queued for a connection's writer. A terminal message is
// the last thing the connection sends before it is closed.
type outbound struct {
	msg      protocol.ServerMessage
	terminal bool
}

// relay forwards events from sub to the connection until the hub closes or the
// connection goes away. An Error event from a hub ends the connection.
func relay(pc *playerConn, sub *hub.Subscription[protocol.ServerMessage], source string) {
	defer sub.Close()
	logger := pc.logger.WithField("source", source)

	for {
		msg, err := sub.Recv(pc.ctx)
		if err != nil {
			var lagged *hub.LaggedError
			if errors.As(err, &lagged) {
				metrics.RelayLaggedEvents.Add(float64(lagged.Count))
				logger.Warnf("connection fell behind, %d events dropped", lagged.Count)
				continue
			}
			if errors.Is(err, hub.ErrClosed) {
				logger.Debug("hub closed, relay exiting")
			}
			return
		}

		_, terminal := msg.(protocol.Error)
		select {
		case pc.out <- outbound{msg: msg, terminal: terminal}:
		case <-pc.ctx.Done():
			return
		}
		if terminal {
			return
		}
	}
}

// writePump drains the outbound queue onto the socket and keeps the connection
// alive with pings. It cancels the connection when it stops.
func (gs *GameServer) writePump(pc *playerConn) {
	defer pc.cancel()

	ticker := time.NewTicker(gs.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pc.ctx.Done():
			return

		case item := <-pc.out:
			data, err := protocol.Encode(item.msg)
			if err != nil {
				pc.logger.WithError(err).Errorf("failed to encode %s", item.msg.MessageType())
				continue
			}

			writeCtx, cancel := context.WithTimeout(pc.ctx, gs.opts.WriteTimeout)
			err = pc.ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				pc.logger.WithError(err).Debug("write failed, closing connection")
				return
			}

			if item.terminal {
				pc.logger.Debug("terminal message sent, closing connection")
				_ = pc.ws.Close(websocket.StatusNormalClosure, "game over")
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(pc.ctx, gs.opts.WriteTimeout)
			err := pc.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				pc.logger.WithError(err).Debug("ping failed, closing connection")
				return
			}
		}
	}
}
