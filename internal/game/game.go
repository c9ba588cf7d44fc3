// internal/game/game.go
package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/wordrope/internal/hub"
	"github.com/jason-s-yu/wordrope/internal/protocol"
)

// Status is the lifecycle stage of a game. It only ever moves forward.
type Status string

const (
	StatusWaitingForPlayer Status = "WaitingForPlayer" // only the creator is present
	StatusInProgress       Status = "InProgress"       // both players present, rounds are played
	StatusFinished         Status = "Finished"         // terminal
)

// DefaultHubBacklog is how many undelivered events each subscriber may hold.
const DefaultHubBacklog = 100

// Lexicon is the dictionary a game validates words against and draws hints from.
type Lexicon interface {
	Contains(word string) bool
	SampleHint() string
}

// Game is the authoritative state of one match between a creator and a joiner.
//
// A Game is not safe for concurrent mutation on its own; the GameStore serializes
// every operation on a registered game. The event hub is safe to use from anywhere.
type Game struct {
	ID        string
	MaxRounds int

	Creator string
	Joiner  string // empty until someone joins

	CurrentRound   int
	RopePosition   int // positive favors the creator, negative the joiner
	HintLetters    string
	RoundStartTime time.Time
	CreatorScore   int
	JoinerScore    int
	Status         Status

	CreatedAt time.Time

	lexicon Lexicon
	events  *hub.Hub[protocol.ServerMessage]
	now     func() time.Time
}

// RoundLimit is the longest game a player can ask for.
const RoundLimit = 255

// NewID returns a short random game identifier.
func NewID() string {
	return uuid.NewString()[:8]
}

// NewGame creates a game waiting for its second player.
func NewGame(id, creator string, rounds int, lex Lexicon, backlog int) (*Game, error) {
	if rounds < 1 || rounds > RoundLimit {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRounds, rounds)
	}
	if creator == "" {
		return nil, ErrInvalidPlayer
	}
	if backlog < 1 {
		backlog = DefaultHubBacklog
	}

	g := &Game{
		ID:           id,
		MaxRounds:    rounds,
		Creator:      creator,
		CurrentRound: 1,
		HintLetters:  lex.SampleHint(),
		Status:       StatusWaitingForPlayer,
		lexicon:      lex,
		events:       hub.New[protocol.ServerMessage](backlog),
		now:          time.Now,
	}
	g.CreatedAt = g.now()
	g.RoundStartTime = g.CreatedAt
	return g, nil
}

// Join seats the second player and starts the game. Subscribers are sent
// PlayerJoined followed by the opening state.
func (g *Game) Join(joiner string) error {
	if g.Joiner != "" {
		return ErrGameFull
	}
	if joiner == g.Creator {
		return ErrSelfJoin
	}
	if joiner == "" {
		return ErrInvalidPlayer
	}
	if g.Status != StatusWaitingForPlayer {
		return ErrNotInProgress
	}

	g.Joiner = joiner
	g.Status = StatusInProgress
	g.RoundStartTime = g.now()

	g.Publish(protocol.PlayerJoined{PlayerID: joiner})
	g.Publish(protocol.StateSnapshot{State: g.Snapshot()})
	return nil
}

// SubmitWord plays word on behalf of player. The first valid word of a round wins it:
// the player's score goes up and the rope moves one step toward them. finished is true
// when that was the last round.
func (g *Game) SubmitWord(player, word string) (result protocol.RoundOutcome, finished bool, err error) {
	if g.Status != StatusInProgress {
		return result, false, ErrNotInProgress
	}

	isCreator := player == g.Creator
	isJoiner := player == g.Joiner
	if !isCreator && !isJoiner {
		return result, false, ErrUnknownPlayer
	}

	lower := strings.ToLower(word)
	if !g.lexicon.Contains(lower) {
		return result, false, fmt.Errorf("%w: %s", ErrInvalidWord, lower)
	}
	if !strings.Contains(lower, g.HintLetters) {
		return result, false, fmt.Errorf("%w: %s", ErrMissingHint, g.HintLetters)
	}

	if isCreator {
		g.RopePosition++
		g.CreatorScore++
	} else {
		g.RopePosition--
		g.JoinerScore++
	}

	result = protocol.RoundOutcome{
		Round:           g.CurrentRound,
		Winner:          player,
		Word:            word,
		NewRopePosition: g.RopePosition,
	}

	if g.CurrentRound > g.MaxRounds-1 {
		g.Status = StatusFinished
		return result, true, nil
	}

	g.nextRound()
	return result, false, nil
}

func (g *Game) nextRound() {
	g.CurrentRound++
	g.HintLetters = g.lexicon.SampleHint()
	g.RoundStartTime = g.now()
}

// Winner decides a finished game by the rope: creator if positive, joiner if
// negative. ok is false for a draw.
func (g *Game) Winner() (winner string, ok bool) {
	switch {
	case g.RopePosition > 0:
		return g.Creator, true
	case g.RopePosition < 0:
		return g.Joiner, true
	default:
		return "", false
	}
}

// Forfeit ends the game because leaver disconnected. The other participant wins
// regardless of the rope. hasOpponent is false when nobody had joined yet.
func (g *Game) Forfeit(leaver string) (winner string, hasOpponent bool) {
	g.Status = StatusFinished
	winner = g.Opponent(leaver)
	return winner, winner != ""
}

// Opponent returns the other participant, or "" if there is none.
func (g *Game) Opponent(player string) string {
	if player == g.Creator {
		return g.Joiner
	}
	return g.Creator
}

// HasPlayer reports whether player is seated in this game.
func (g *Game) HasPlayer(player string) bool {
	return player != "" && (player == g.Creator || player == g.Joiner)
}

// Snapshot returns the public view of the game.
func (g *Game) Snapshot() protocol.GameState {
	state := protocol.GameState{
		GameID:         g.ID,
		Creator:        g.Creator,
		CurrentRound:   g.CurrentRound,
		RopePosition:   g.RopePosition,
		HintLetters:    g.HintLetters,
		RoundStartTime: g.RoundStartTime.Unix(),
		CreatorScore:   g.CreatorScore,
		JoinerScore:    g.JoinerScore,
		Status:         string(g.Status),
	}
	if g.Joiner != "" {
		joiner := g.Joiner
		state.Joiner = &joiner
	}
	return state
}

// EndMessage builds the GameEnd event for a game decided by the rope.
func (g *Game) EndMessage() protocol.GameEnd {
	end := protocol.GameEnd{FinalState: g.Snapshot()}
	if winner, ok := g.Winner(); ok {
		end.Winner = &winner
	}
	return end
}

// LobbyInfo describes the game for the open-games listing.
func (g *Game) LobbyInfo() protocol.LobbyInfo {
	return protocol.LobbyInfo{
		GameID:  g.ID,
		Creator: g.Creator,
		Round:   g.MaxRounds,
	}
}

// Subscribe returns a new receiver for this game's events.
func (g *Game) Subscribe() *hub.Subscription[protocol.ServerMessage] {
	return g.events.Subscribe()
}

// Publish broadcasts msg to every subscriber without blocking.
func (g *Game) Publish(msg protocol.ServerMessage) {
	g.events.Publish(msg)
}

// Close shuts down the event hub. Subscribers drain what was already published.
func (g *Game) Close() {
	g.events.Close()
}
