package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/sqlc-dev/pqtype"
)

// NotifyChannel is the LISTEN/NOTIFY channel announcing a new state row.
const NotifyChannel = "match_state_updated"

// StateRowID is the id of the single row holding the match state.
const StateRowID = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS match_state (
    id         SMALLINT PRIMARY KEY,
    state      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const getMatchState = `SELECT state, updated_at FROM match_state WHERE id = $1`

const upsertMatchState = `
INSERT INTO match_state (id, state, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`

const notifyMatchState = `SELECT pg_notify($1, $2)`

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the hand-written statements for the match_state table.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// MatchStateRow is one row of match_state.
type MatchStateRow struct {
	State     pqtype.NullRawMessage
	UpdatedAt time.Time
}

func (q *Queries) CreateSchema(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, schemaSQL)
	return err
}

func (q *Queries) GetMatchState(ctx context.Context, id int16) (MatchStateRow, error) {
	var row MatchStateRow
	err := q.db.QueryRowContext(ctx, getMatchState, id).Scan(&row.State, &row.UpdatedAt)
	return row, err
}

type UpsertMatchStateParams struct {
	ID        int16
	State     pqtype.NullRawMessage
	UpdatedAt time.Time
}

func (q *Queries) UpsertMatchState(ctx context.Context, arg UpsertMatchStateParams) error {
	_, err := q.db.ExecContext(ctx, upsertMatchState, arg.ID, arg.State, arg.UpdatedAt)
	return err
}

func (q *Queries) NotifyMatchState(ctx context.Context, payload string) error {
	_, err := q.db.ExecContext(ctx, notifyMatchState, NotifyChannel, payload)
	return err
}
