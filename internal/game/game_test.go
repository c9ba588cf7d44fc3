// internal/game/game_test.go
package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/wordrope/internal/hub"
	"github.com/jason-s-yu/wordrope/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLexicon accepts a fixed word list and hands out hints in order, repeating the last one.
type stubLexicon struct {
	mu    sync.Mutex
	words map[string]bool
	hints []string
	next  int
}

func newStubLexicon(hints []string, words ...string) *stubLexicon {
	l := &stubLexicon{words: make(map[string]bool), hints: hints}
	for _, w := range words {
		l.words[w] = true
	}
	return l
}

func (l *stubLexicon) Contains(word string) bool {
	return l.words[word]
}

func (l *stubLexicon) SampleHint() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.hints[min(l.next, len(l.hints)-1)]
	l.next++
	return h
}

// setupTestGame returns a started game between alice (creator) and bob (joiner).
// Every round's hint is "ro".
func setupTestGame(t *testing.T, rounds int) *Game {
	t.Helper()
	lex := newStubLexicon([]string{"ro"}, "rope", "robe", "rover", "tug", "carrot")
	g, err := NewGame("g1", "alice", rounds, lex, 16)
	require.NoError(t, err)
	require.NoError(t, g.Join("bob"))
	return g
}

// drain collects everything currently queued on sub.
func drain(t *testing.T, sub *hub.Subscription[protocol.ServerMessage]) []protocol.ServerMessage {
	t.Helper()
	var out []protocol.ServerMessage
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		msg, err := sub.Recv(ctx)
		cancel()
		if err != nil {
			return out
		}
		out = append(out, msg)
	}
}

func TestNewGameDefaults(t *testing.T) {
	for _, rounds := range []int{1, 3, 10, 255} {
		lex := newStubLexicon([]string{"ab"}, "abc")
		g, err := NewGame("id", "alice", rounds, lex, 0)
		require.NoError(t, err)

		assert.Equal(t, StatusWaitingForPlayer, g.Status)
		assert.Equal(t, 0, g.RopePosition)
		assert.Equal(t, 1, g.CurrentRound)
		assert.Equal(t, rounds, g.MaxRounds)
		assert.Equal(t, "ab", g.HintLetters)
		assert.Empty(t, g.Joiner)
		assert.False(t, g.RoundStartTime.IsZero())
	}
}

func TestNewGameRejectsBadInput(t *testing.T) {
	lex := newStubLexicon([]string{"ab"})
	_, err := NewGame("id", "alice", 0, lex, 0)
	assert.ErrorIs(t, err, ErrInvalidRounds)
	_, err = NewGame("id", "alice", -2, lex, 0)
	assert.ErrorIs(t, err, ErrInvalidRounds)
	_, err = NewGame("id", "alice", RoundLimit+1, lex, 0)
	assert.ErrorIs(t, err, ErrInvalidRounds)
	g, err := NewGame("id", "alice", RoundLimit, lex, 0)
	require.NoError(t, err)
	assert.Equal(t, RoundLimit, g.MaxRounds)
	_, err = NewGame("id", "", 3, lex, 0)
	assert.ErrorIs(t, err, ErrInvalidPlayer)
}

func TestJoinPublishesPlayerJoinedThenState(t *testing.T) {
	lex := newStubLexicon([]string{"ro"}, "rope")
	g, err := NewGame("g1", "alice", 3, lex, 16)
	require.NoError(t, err)
	sub := g.Subscribe()

	require.NoError(t, g.Join("bob"))
	assert.Equal(t, StatusInProgress, g.Status)
	assert.Equal(t, "bob", g.Joiner)

	events := drain(t, sub)
	require.Len(t, events, 2)
	assert.Equal(t, protocol.PlayerJoined{PlayerID: "bob"}, events[0])

	snap, ok := events[1].(protocol.StateSnapshot)
	require.True(t, ok, "second event should be a snapshot, got %T", events[1])
	assert.Equal(t, "InProgress", snap.State.Status)
	require.NotNil(t, snap.State.Joiner)
	assert.Equal(t, "bob", *snap.State.Joiner)
}

func TestSelfJoinFailsWithoutMutation(t *testing.T) {
	lex := newStubLexicon([]string{"ro"})
	g, err := NewGame("g1", "alice", 3, lex, 16)
	require.NoError(t, err)
	sub := g.Subscribe()

	assert.ErrorIs(t, g.Join("alice"), ErrSelfJoin)
	assert.Equal(t, StatusWaitingForPlayer, g.Status)
	assert.Empty(t, g.Joiner)
	assert.Empty(t, drain(t, sub), "a failed join publishes nothing")
}

func TestJoinFullGame(t *testing.T) {
	g := setupTestGame(t, 3)
	assert.ErrorIs(t, g.Join("carol"), ErrGameFull)
	assert.ErrorIs(t, g.Join("bob"), ErrGameFull, "joining twice fails the second time")
	assert.ErrorIs(t, g.Join("alice"), ErrGameFull)
	assert.Equal(t, "bob", g.Joiner)
}

func TestJoinRequiresPlayerID(t *testing.T) {
	lex := newStubLexicon([]string{"ro"})
	g, err := NewGame("g1", "alice", 3, lex, 16)
	require.NoError(t, err)
	assert.ErrorIs(t, g.Join(""), ErrInvalidPlayer)
	assert.Equal(t, StatusWaitingForPlayer, g.Status)
}

func TestSubmitBeforeJoin(t *testing.T) {
	lex := newStubLexicon([]string{"ro"}, "rope")
	g, err := NewGame("g1", "alice", 3, lex, 16)
	require.NoError(t, err)

	_, _, err = g.SubmitWord("alice", "rope")
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestSubmitScoresForEachSide(t *testing.T) {
	g := setupTestGame(t, 5)

	res, finished, err := g.SubmitWord("alice", "rope")
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, protocol.RoundOutcome{Round: 1, Winner: "alice", Word: "rope", NewRopePosition: 1}, res)
	assert.Equal(t, 1, g.RopePosition)
	assert.Equal(t, 1, g.CreatorScore)
	assert.Equal(t, 2, g.CurrentRound)

	res, finished, err = g.SubmitWord("bob", "robe")
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, 0, res.NewRopePosition)
	assert.Equal(t, 0, g.RopePosition)
	assert.Equal(t, 1, g.JoinerScore)
	assert.Equal(t, 3, g.CurrentRound)

	_, _, err = g.SubmitWord("bob", "rover")
	require.NoError(t, err)
	assert.Equal(t, -1, g.RopePosition)
	assert.Equal(t, 2, g.JoinerScore)
	assert.Equal(t, 1, g.CreatorScore)
}

func TestSubmitIsCaseInsensitiveButEchoesWord(t *testing.T) {
	g := setupTestGame(t, 3)
	res, _, err := g.SubmitWord("alice", "RoPe")
	require.NoError(t, err)
	assert.Equal(t, "RoPe", res.Word)
}

func TestSubmitValidation(t *testing.T) {
	g := setupTestGame(t, 3)
	before := g.Snapshot()

	_, _, err := g.SubmitWord("mallory", "rope")
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	_, _, err = g.SubmitWord("alice", "zzzz")
	assert.ErrorIs(t, err, ErrInvalidWord)

	// "tug" is a real word but lacks the hint
	_, _, err = g.SubmitWord("alice", "tug")
	assert.ErrorIs(t, err, ErrMissingHint)

	assert.Equal(t, before, g.Snapshot(), "rejected words must not change state")
}

func TestMissingHintRegardlessOfDictionary(t *testing.T) {
	g := setupTestGame(t, 3)
	for _, w := range []string{"tug", "TUG", "xyz", ""} {
		_, _, err := g.SubmitWord("bob", w)
		require.Error(t, err)
		if g.lexicon.Contains(w) {
			assert.ErrorIs(t, err, ErrMissingHint)
		}
	}

	// A hint in the middle of the word counts.
	_, _, err := g.SubmitWord("bob", "carrot")
	assert.NoError(t, err)
}

func TestHintChangesEachRound(t *testing.T) {
	lex := newStubLexicon([]string{"ro", "ug", "ar"}, "rope", "tug", "carrot")
	g, err := NewGame("g1", "alice", 3, lex, 16)
	require.NoError(t, err)
	require.NoError(t, g.Join("bob"))

	assert.Equal(t, "ro", g.HintLetters)
	_, _, err = g.SubmitWord("alice", "rope")
	require.NoError(t, err)
	assert.Equal(t, "ug", g.HintLetters)

	_, _, err = g.SubmitWord("alice", "rope")
	assert.ErrorIs(t, err, ErrMissingHint)
	_, _, err = g.SubmitWord("bob", "tug")
	require.NoError(t, err)
	assert.Equal(t, "ar", g.HintLetters)
}

func TestSingleRoundGameEndsOnFirstWin(t *testing.T) {
	g := setupTestGame(t, 1)

	res, finished, err := g.SubmitWord("bob", "rope")
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, 1, res.Round)
	assert.Equal(t, StatusFinished, g.Status)
	assert.Equal(t, 1, g.CurrentRound, "the round does not advance past the last one")

	winner, ok := g.Winner()
	assert.True(t, ok)
	assert.Equal(t, "bob", winner)

	_, _, err = g.SubmitWord("alice", "robe")
	assert.ErrorIs(t, err, ErrNotInProgress)
}

func TestDrawAfterFinalRound(t *testing.T) {
	g := setupTestGame(t, 2)
	_, finished, err := g.SubmitWord("alice", "rope")
	require.NoError(t, err)
	require.False(t, finished)
	_, finished, err = g.SubmitWord("bob", "robe")
	require.NoError(t, err)
	require.True(t, finished)

	assert.Equal(t, 0, g.RopePosition)
	_, ok := g.Winner()
	assert.False(t, ok, "a zero rope after the last round is a draw")

	end := g.EndMessage()
	assert.Nil(t, end.Winner)
	assert.Equal(t, "Finished", end.FinalState.Status)
}

func TestWinnerFollowsRopeSign(t *testing.T) {
	g := setupTestGame(t, 3)
	g.Status = StatusFinished

	g.RopePosition = 2
	w, ok := g.Winner()
	assert.True(t, ok)
	assert.Equal(t, "alice", w)

	g.RopePosition = -1
	w, ok = g.Winner()
	assert.True(t, ok)
	assert.Equal(t, "bob", w)

	g.RopePosition = 0
	_, ok = g.Winner()
	assert.False(t, ok)
}

func TestForfeitIgnoresRope(t *testing.T) {
	g := setupTestGame(t, 5)
	for i := 0; i < 3; i++ {
		_, _, err := g.SubmitWord("alice", "rope")
		require.NoError(t, err)
	}
	require.Equal(t, 3, g.RopePosition)

	winner, hasOpponent := g.Forfeit("alice")
	assert.True(t, hasOpponent)
	assert.Equal(t, "bob", winner, "the player who leaves always loses")
	assert.Equal(t, StatusFinished, g.Status)
}

func TestForfeitWithoutOpponent(t *testing.T) {
	lex := newStubLexicon([]string{"ro"})
	g, err := NewGame("g1", "alice", 3, lex, 16)
	require.NoError(t, err)

	winner, hasOpponent := g.Forfeit("alice")
	assert.False(t, hasOpponent)
	assert.Empty(t, winner)
	assert.Equal(t, StatusFinished, g.Status)
}

func TestFullGameCreatorSweeps(t *testing.T) {
	g := setupTestGame(t, 3)

	_, finished, err := g.SubmitWord("alice", "rope")
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, 1, g.RopePosition)
	assert.Equal(t, 2, g.CurrentRound)

	_, finished, err = g.SubmitWord("alice", "robe")
	require.NoError(t, err)
	assert.False(t, finished)

	_, finished, err = g.SubmitWord("alice", "rover")
	require.NoError(t, err)
	assert.True(t, finished)

	assert.Equal(t, StatusFinished, g.Status)
	assert.Equal(t, 3, g.RopePosition)
	assert.Equal(t, 3, g.CreatorScore)
	winner, ok := g.Winner()
	require.True(t, ok)
	assert.Equal(t, "alice", winner)
}

func TestSnapshotAndLobbyInfo(t *testing.T) {
	lex := newStubLexicon([]string{"ro"})
	g, err := NewGame("g1", "alice", 4, lex, 16)
	require.NoError(t, err)

	snap := g.Snapshot()
	assert.Equal(t, "g1", snap.GameID)
	assert.Nil(t, snap.Joiner)
	assert.Equal(t, "WaitingForPlayer", snap.Status)
	assert.Equal(t, g.RoundStartTime.Unix(), snap.RoundStartTime)

	assert.Equal(t, protocol.LobbyInfo{GameID: "g1", Creator: "alice", Round: 4}, g.LobbyInfo())
}

func TestCloseEndsSubscriptions(t *testing.T) {
	g := setupTestGame(t, 3)
	sub := g.Subscribe()
	g.Publish(protocol.Error{Message: "bye"})
	g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.Error{Message: "bye"}, msg)

	_, err = sub.Recv(ctx)
	assert.ErrorIs(t, err, hub.ErrClosed)
}

func TestIsRuleViolation(t *testing.T) {
	g := setupTestGame(t, 3)
	_, _, err := g.SubmitWord("alice", "zzz")
	assert.True(t, IsRuleViolation(err))
	assert.True(t, IsRuleViolation(ErrSelfJoin))
	assert.False(t, IsRuleViolation(ErrNotFound))
	assert.False(t, IsRuleViolation(nil))
}

func TestNewIDShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.Len(t, id, 8)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
