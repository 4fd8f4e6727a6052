package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/courtside/go/internal/models"
	"github.com/mcdev12/courtside/go/internal/scoreboard"
	"github.com/mcdev12/courtside/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"
)

// Repository stores the MatchState as a JSONB document in a single row and
// announces every write on NotifyChannel with the writer's instance id.
type Repository struct {
	db         *sql.DB
	queries    *Queries
	clock      clockwork.Clock
	instanceID uuid.UUID
}

// NewRepository creates a new Postgres-backed match state repository
func NewRepository(db *sql.DB, clock clockwork.Clock) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Repository{
		db:         db,
		queries:    New(db),
		clock:      clock,
		instanceID: uuid.New(),
	}
}

// InstanceID identifies the notifications written by this process.
func (r *Repository) InstanceID() uuid.UUID {
	return r.instanceID
}

// EnsureSchema creates the match_state table if needed.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if err := r.queries.CreateSchema(ctx); err != nil {
		return fmt.Errorf("failed to create match_state table: %w", err)
	}
	return nil
}

// Load returns the stored state, or ErrNoSnapshot if the row does not exist.
func (r *Repository) Load(ctx context.Context) (*models.MatchState, error) {
	row, err := r.queries.GetMatchState(ctx, StateRowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scoreboard.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match state: %w", err)
	}
	if !row.State.Valid {
		return nil, scoreboard.ErrNoSnapshot
	}

	var state models.MatchState
	if err := json.Unmarshal(row.State.RawMessage, &state); err != nil {
		return nil, fmt.Errorf("failed to decode match state: %w", err)
	}

	log.Debug().Time("updated_at", row.UpdatedAt).Msg("loaded match state from postgres")
	return &state, nil
}

// Save upserts the state row and notifies listeners in the same transaction.
func (r *Repository) Save(ctx context.Context, state models.MatchState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal match state: %w", err)
	}

	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) *Queries { return New(tx) }, func(q *Queries) error {
		if err := q.UpsertMatchState(ctx, UpsertMatchStateParams{
			ID:        StateRowID,
			State:     pqtype.NullRawMessage{RawMessage: data, Valid: true},
			UpdatedAt: r.clock.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("failed to upsert match state: %w", err)
		}
		if err := q.NotifyMatchState(ctx, r.instanceID.String()); err != nil {
			return fmt.Errorf("failed to notify match state: %w", err)
		}
		return nil
	})
}
