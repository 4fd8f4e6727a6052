package scoreboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mcdev12/courtside/go/internal/models"
)

// CourtUpdate is a partial court. A nil field means "leave as is"; a non-nil
// field is applied even when it holds an empty string.
type CourtUpdate struct {
	Team1       *string             `json:"team1,omitempty"`
	Team2       *string             `json:"team2,omitempty"`
	ServingTeam *models.ServingTeam `json:"servingTeam,omitempty"`
	Status      *models.CourtStatus `json:"status,omitempty"`
}

// UpdateRequest is a partial MatchState as submitted by the admin panel.
// timeRemaining and lastUpdateTime are owned by the server and are ignored
// when a client sends them.
type UpdateRequest struct {
	Court1    *CourtUpdate            `json:"court1,omitempty"`
	Court2    *CourtUpdate            `json:"court2,omitempty"`
	NextMatch *string                 `json:"nextMatch,omitempty"`
	Upcoming  *[]models.UpcomingMatch `json:"upcoming,omitempty"`
}

// DecodeUpdateRequest parses a single JSON object from r.
func DecodeUpdateRequest(r io.Reader) (UpdateRequest, error) {
	var req UpdateRequest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return UpdateRequest{}, fmt.Errorf("%w: malformed body: %w", ErrInvalidUpdate, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return UpdateRequest{}, fmt.Errorf("%w: malformed body: trailing data after JSON object", ErrInvalidUpdate)
	}
	return req, nil
}

// Validate checks the enum-typed fields that are present.
func (r UpdateRequest) Validate() error {
	if err := r.Court1.validate("court1"); err != nil {
		return err
	}
	if err := r.Court2.validate("court2"); err != nil {
		return err
	}
	if r.Upcoming != nil {
		for i, m := range *r.Upcoming {
			if !m.Court.Valid() {
				return fmt.Errorf("%w: upcoming[%d].court must be \"1\" or \"2\", got %q", ErrInvalidUpdate, i, m.Court)
			}
		}
	}
	return nil
}

func (c *CourtUpdate) validate(name string) error {
	if c == nil {
		return nil
	}
	if c.Status != nil && !c.Status.Valid() {
		return fmt.Errorf("%w: %s.status %q is not one of paused, live, completed", ErrInvalidUpdate, name, *c.Status)
	}
	if c.ServingTeam != nil && !c.ServingTeam.Valid() {
		return fmt.Errorf("%w: %s.servingTeam %q is not one of team1, team2", ErrInvalidUpdate, name, *c.ServingTeam)
	}
	return nil
}

// ApplyUpdate merges req into state and returns the result; state is not
// modified. state is expected to be decayed to now already.
func ApplyUpdate(state models.MatchState, req UpdateRequest, now time.Time, matchDuration time.Duration) models.MatchState {
	next := state.Clone()

	if req.Court1 != nil {
		next.Court1 = applyCourtUpdate(next.Court1, *req.Court1, now, matchDuration)
	}
	if req.Court2 != nil {
		next.Court2 = applyCourtUpdate(next.Court2, *req.Court2, now, matchDuration)
	}
	if req.NextMatch != nil {
		next.NextMatch = *req.NextMatch
	}
	if req.Upcoming != nil {
		next.Upcoming = make([]models.UpcomingMatch, len(*req.Upcoming))
		copy(next.Upcoming, *req.Upcoming)
	}

	return next
}

func applyCourtUpdate(court models.CourtState, update CourtUpdate, now time.Time, matchDuration time.Duration) models.CourtState {
	if update.Status != nil {
		if *update.Status == models.CourtStatusCompleted {
			court.TimeRemaining = int(matchDuration / time.Second)
		}
		court.Status = *update.Status
	}
	if update.Team1 != nil {
		court.Team1 = *update.Team1
	}
	if update.Team2 != nil {
		court.Team2 = *update.Team2
	}
	if update.ServingTeam != nil {
		court.ServingTeam = *update.ServingTeam
	}

	// Decay restarts from the moment of this write.
	court.LastUpdateTime = models.NewEpochMillis(now)
	return court
}
