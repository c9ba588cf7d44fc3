package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/wordrope/internal/cache"
)

const createResultsTable = `
	CREATE TABLE IF NOT EXISTS game_results (
		game_id       TEXT PRIMARY KEY,
		creator       TEXT NOT NULL,
		joiner        TEXT NOT NULL,
		winner        TEXT,
		rope_position INTEGER NOT NULL,
		creator_score INTEGER NOT NULL,
		joiner_score  INTEGER NOT NULL,
		rounds_played INTEGER NOT NULL,
		max_rounds    INTEGER NOT NULL,
		reason        TEXT NOT NULL,
		finished_at   TIMESTAMPTZ NOT NULL
	)
`

// Game ids are short and only unique among live games, so a later game may reuse one.
const insertResult = `
	INSERT INTO game_results (
		game_id, creator, joiner, winner, rope_position, creator_score,
		joiner_score, rounds_played, max_rounds, reason, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (game_id) DO UPDATE SET
		creator = EXCLUDED.creator,
		joiner = EXCLUDED.joiner,
		winner = EXCLUDED.winner,
		rope_position = EXCLUDED.rope_position,
		creator_score = EXCLUDED.creator_score,
		joiner_score = EXCLUDED.joiner_score,
		rounds_played = EXCLUDED.rounds_played,
		max_rounds = EXCLUDED.max_rounds,
		reason = EXCLUDED.reason,
		finished_at = EXCLUDED.finished_at
`

// ResultStore persists finished game records.
type ResultStore struct {
	db TxBeginner
}

// NewResultStore wraps a pool (or any TxBeginner).
func NewResultStore(db TxBeginner) *ResultStore {
	return &ResultStore{db: db}
}

// EnsureSchema creates the game_results table if it does not exist.
func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	return BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createResultsTable)
		return err
	})
}

// InsertResults writes the batch in a single transaction.
func (s *ResultStore) InsertResults(ctx context.Context, records []cache.GameResultRecord) error {
	if len(records) == 0 {
		return nil
	}
	return BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range records {
			if _, err := tx.Exec(ctx, insertResult, resultArgs(rec)...); err != nil {
				return fmt.Errorf("insert result %s: %w", rec.GameID, err)
			}
		}
		return nil
	})
}

func resultArgs(rec cache.GameResultRecord) []any {
	var winner *string
	if rec.Winner != "" {
		w := rec.Winner
		winner = &w
	}
	return []any{
		rec.GameID,
		rec.Creator,
		rec.Joiner,
		winner,
		rec.RopePosition,
		rec.CreatorScore,
		rec.JoinerScore,
		rec.RoundsPlayed,
		rec.MaxRounds,
		rec.Reason,
		time.UnixMilli(rec.FinishedAt).UTC(),
	}
}
