// internal/game/game_store.go
package game

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jason-s-yu/wordrope/internal/protocol"
)

// storeEntry owns one registered game. Its mutex serializes every operation on
// that game; removed is set once the game has been detached from the store.
type storeEntry struct {
	id      string
	mu      sync.Mutex
	game    *Game
	removed bool
}

// GameStore is the process-wide registry of live games.
//
// The map lock is only held to find, add or drop an entry. Mutations run under
// the entry's own lock, so operations on different games never wait on each other
// and operations on the same game are totally ordered.
type GameStore struct {
	mu    sync.RWMutex
	games map[string]*storeEntry
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[string]*storeEntry),
	}
}

// Insert registers g under id. Callers generate ids; a collision is a bug.
func (s *GameStore) Insert(id string, g *Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	s.games[id] = &storeEntry{id: id, game: g}
	return nil
}

func (s *GameStore) lookup(id string) (*storeEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.games[id]
	return e, ok
}

// WithGame runs fn on the game registered under id while holding that game's lock.
// It returns ErrNotFound if there is no such game, otherwise whatever fn returns.
// fn must not call back into the store for the same id.
func (s *GameStore) WithGame(id string, fn func(g *Game) error) error {
	e, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return fn(e.game)
}

// Remove detaches the game registered under id and hands it to the caller, or
// returns nil if it is not registered. It waits for any in-flight WithGame on the
// same game to finish, and no WithGame call will see the game afterwards.
func (s *GameStore) Remove(id string) *Game {
	s.mu.Lock()
	e, ok := s.games[id]
	if ok {
		delete(s.games, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil
	}
	e.removed = true
	return e.game
}

// Count returns the number of registered games.
func (s *GameStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

func (s *GameStore) entries() []*storeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*storeEntry, 0, len(s.games))
	for _, e := range s.games {
		out = append(out, e)
	}
	return out
}

// OpenGames lists the games still waiting for an opponent, oldest first.
// Must not be called from inside WithGame.
func (s *GameStore) OpenGames() []protocol.LobbyInfo {
	type open struct {
		info    protocol.LobbyInfo
		created time.Time
	}
	var games []open
	for _, e := range s.entries() {
		e.mu.Lock()
		if !e.removed && e.game.Status == StatusWaitingForPlayer {
			games = append(games, open{info: e.game.LobbyInfo(), created: e.game.CreatedAt})
		}
		e.mu.Unlock()
	}

	sort.Slice(games, func(i, j int) bool {
		if games[i].created.Equal(games[j].created) {
			return games[i].info.GameID < games[j].info.GameID
		}
		return games[i].created.Before(games[j].created)
	})

	out := make([]protocol.LobbyInfo, 0, len(games))
	for _, o := range games {
		out = append(out, o.info)
	}
	return out
}

// ExpireWaiting detaches every game that has been waiting for an opponent since
// before cutoff and returns them. Must not be called from inside WithGame.
func (s *GameStore) ExpireWaiting(cutoff time.Time) []*Game {
	var stale []*storeEntry
	for _, e := range s.entries() {
		e.mu.Lock()
		if !e.removed && e.game.Status == StatusWaitingForPlayer && e.game.CreatedAt.Before(cutoff) {
			e.removed = true
			stale = append(stale, e)
		}
		e.mu.Unlock()
	}
	if len(stale) == 0 {
		return nil
	}

	expired := make([]*Game, 0, len(stale))
	s.mu.Lock()
	for _, e := range stale {
		if s.games[e.id] == e {
			delete(s.games, e.id)
		}
		expired = append(expired, e.game)
	}
	s.mu.Unlock()
	return expired
}
