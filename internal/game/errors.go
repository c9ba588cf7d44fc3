// internal/game/errors.go
package game

import "errors"

// Rule violations. These are reported to the offending connection only and never
// change game state. Their messages are shown to players as-is.
var (
	ErrInvalidRounds = errors.New("rounds must be between 1 and 255")
	ErrInvalidPlayer = errors.New("player id is required")
	ErrGameFull      = errors.New("game is full")
	ErrSelfJoin      = errors.New("cannot be joined by the creator")
	ErrNotInProgress = errors.New("game not in progress")
	ErrUnknownPlayer = errors.New("player not in this game")
	ErrInvalidWord   = errors.New("word not in dictionary")
	ErrMissingHint   = errors.New("word must contain the hint letters")
)

// Registry errors.
var (
	ErrNotFound    = errors.New("game not found")
	ErrDuplicateID = errors.New("game id already registered")
)

// IsRuleViolation reports whether err is a game rule violation, as opposed to a
// lookup failure or an unexpected error.
func IsRuleViolation(err error) bool {
	for _, target := range []error{
		ErrInvalidRounds, ErrInvalidPlayer, ErrGameFull, ErrSelfJoin,
		ErrNotInProgress, ErrUnknownPlayer, ErrInvalidWord, ErrMissingHint,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
