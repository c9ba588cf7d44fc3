// internal/protocol/messages.go

// Package protocol defines the JSON messages exchanged over the game WebSocket.
// Every frame is one JSON object whose "type" field selects the variant; the
// remaining fields are snake_case.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType is the "type" discriminator carried by every message.
type MessageType string

// Client -> Server.
const (
	TypeCreateGame MessageType = "CreateGame"
	TypeJoinGame   MessageType = "JoinGame" // also echoed back as the join acknowledgement
	TypeSubmitWord MessageType = "SubmitWord"
)

// Server -> Client.
const (
	TypeGameCreated   MessageType = "GameCreated"
	TypePlayerJoined  MessageType = "PlayerJoined"
	TypeStateSnapshot MessageType = "GameState"
	TypeRoundResult   MessageType = "RoundResult"
	TypeGameEnd       MessageType = "GameEnd"
	TypeError         MessageType = "Error"
	TypeLobby         MessageType = "Lobby"
)

var (
	// ErrMalformed is returned for frames that are not a JSON object with a type.
	ErrMalformed = errors.New("protocol: malformed message")
	// ErrUnknownType is returned for a well-formed message the server does not accept.
	ErrUnknownType = errors.New("protocol: unsupported message type")
)

// GameState is the public snapshot of one game.
type GameState struct {
	GameID         string  `json:"game_id"`
	Creator        string  `json:"creator"`
	Joiner         *string `json:"joiner"`
	CurrentRound   int     `json:"current_round"`
	RopePosition   int     `json:"rope_position"`
	HintLetters    string  `json:"hint_letters"`
	RoundStartTime int64   `json:"round_start_time"`
	CreatorScore   int     `json:"creator_score"`
	JoinerScore    int     `json:"joiner_score"`
	Status         string  `json:"status"`
}

// RoundOutcome describes a single won round.
type RoundOutcome struct {
	Round           int    `json:"round"`
	Winner          string `json:"winner"`
	Word            string `json:"word"`
	NewRopePosition int    `json:"new_rope_position"`
}

// LobbyInfo advertises a game that is waiting for an opponent.
type LobbyInfo struct {
	GameID  string `json:"game_id"`
	Creator string `json:"creator"`
	Round   int    `json:"round"`
}

// ClientMessage is any message a client may send.
type ClientMessage interface {
	clientMessage()
}

// ServerMessage is any message the server may send.
type ServerMessage interface {
	MessageType() MessageType
}

// CreateGame asks the server to open a new game with the sender as creator.
type CreateGame struct {
	PlayerID string `json:"player_id"`
	Rounds   int    `json:"rounds"`
}

// JoinGame asks to join an existing game. The server echoes it back on success.
type JoinGame struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// SubmitWord plays a word in the sender's current game.
type SubmitWord struct {
	Word string `json:"word"`
}

func (CreateGame) clientMessage() {}
func (JoinGame) clientMessage()   {}
func (SubmitWord) clientMessage() {}

// GameCreated confirms a CreateGame.
type GameCreated struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// PlayerJoined is broadcast when the second player arrives.
type PlayerJoined struct {
	PlayerID string `json:"player_id"`
}

// StateSnapshot carries the full public state of a game.
type StateSnapshot struct {
	State GameState `json:"state"`
}

// RoundResult is broadcast after every accepted word.
type RoundResult struct {
	Result RoundOutcome `json:"result"`
}

// GameEnd is broadcast when a game finishes. Winner is nil on a draw.
type GameEnd struct {
	Winner     *string   `json:"winner"`
	FinalState GameState `json:"final_state"`
}

// Error reports a failure. Sent to a single connection it is a rejection; relayed
// from a game hub it is terminal and the connection is closed after delivery.
type Error struct {
	Message string `json:"message"`
}

// Lobby lists the games currently waiting for an opponent.
type Lobby struct {
	Games []LobbyInfo `json:"games"`
}

func (JoinGame) MessageType() MessageType      { return TypeJoinGame }
func (GameCreated) MessageType() MessageType   { return TypeGameCreated }
func (PlayerJoined) MessageType() MessageType  { return TypePlayerJoined }
func (StateSnapshot) MessageType() MessageType { return TypeStateSnapshot }
func (RoundResult) MessageType() MessageType   { return TypeRoundResult }
func (GameEnd) MessageType() MessageType       { return TypeGameEnd }
func (Error) MessageType() MessageType         { return TypeError }
func (Lobby) MessageType() MessageType         { return TypeLobby }

// envelope extracts the discriminator and keeps the raw bytes for a second decode.
type envelope struct {
	Type MessageType `json:"type"`
}

// ParseClientMessage decodes one inbound frame.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	var (
		msg ClientMessage
		err error
	)
	switch env.Type {
	case TypeCreateGame:
		var m CreateGame
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeJoinGame:
		var m JoinGame
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeSubmitWord:
		var m SubmitWord
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrMalformed, env.Type, err)
	}
	return msg, nil
}

// Encode serializes a server message with its type discriminator injected.
func Encode(msg ServerMessage) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s: %w", msg.MessageType(), err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("protocol: %s is not a JSON object: %w", msg.MessageType(), err)
	}
	typ, _ := json.Marshal(msg.MessageType())
	fields["type"] = typ

	return json.Marshal(fields)
}
