// internal/handlers/lobby.go
package handlers

import (
	"github.com/jason-s-yu/wordrope/internal/hub"
	"github.com/jason-s-yu/wordrope/internal/metrics"
	"github.com/jason-s-yu/wordrope/internal/protocol"
)

// lobbySnapshot lists the games currently waiting for an opponent.
func (gs *GameServer) lobbySnapshot() protocol.Lobby {
	return protocol.Lobby{Games: gs.GameStore.OpenGames()}
}

// joinLobby subscribes to lobby updates and returns the current list with the
// subscription. Both are taken under the broadcast lock, so every update the
// subscription receives is newer than the returned list.
func (gs *GameServer) joinLobby() (*hub.Subscription[protocol.ServerMessage], protocol.Lobby) {
	gs.lobbyMu.Lock()
	defer gs.lobbyMu.Unlock()
	return gs.lobby.Subscribe(), gs.lobbySnapshot()
}

// broadcastLobby tells every connection the current set of open games.
// Snapshots are taken and published under one lock so a stale list never
// follows a newer one.
func (gs *GameServer) broadcastLobby() {
	gs.lobbyMu.Lock()
	defer gs.lobbyMu.Unlock()

	gs.lobby.Publish(gs.lobbySnapshot())
	metrics.GamesActive.Set(float64(gs.GameStore.Count()))
}
