package scoreboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/courtside/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Repository defines what the app layer needs from durable storage
type Repository interface {
	Load(ctx context.Context) (*models.MatchState, error)
	Save(ctx context.Context, state models.MatchState) error
}

// CourtTeams names the two teams a court starts with
type CourtTeams struct {
	Team1 string
	Team2 string
}

// Settings holds the match defaults used when nothing has been stored yet
type Settings struct {
	MatchDuration time.Duration
	NextMatch     string
	Court1        CourtTeams
	Court2        CourtTeams
}

// DefaultSettings returns the built-in match defaults
func DefaultSettings() Settings {
	return Settings{
		MatchDuration: models.DefaultMatchDuration,
		NextMatch:     "Upcoming Match",
		Court1:        CourtTeams{Team1: "Team A", Team2: "Team B"},
		Court2:        CourtTeams{Team1: "Team C", Team2: "Team D"},
	}
}

// withDefaults fills every zero field from DefaultSettings
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MatchDuration <= 0 {
		s.MatchDuration = d.MatchDuration
	}
	if s.NextMatch == "" {
		s.NextMatch = d.NextMatch
	}
	if s.Court1.Team1 == "" {
		s.Court1.Team1 = d.Court1.Team1
	}
	if s.Court1.Team2 == "" {
		s.Court1.Team2 = d.Court1.Team2
	}
	if s.Court2.Team1 == "" {
		s.Court2.Team1 = d.Court2.Team1
	}
	if s.Court2.Team2 == "" {
		s.Court2.Team2 = d.Court2.Team2
	}
	return s
}

// InitialState builds the state a fresh process starts from
func (s Settings) InitialState(now time.Time) models.MatchState {
	court := func(teams CourtTeams) models.CourtState {
		return models.CourtState{
			Team1:          teams.Team1,
			Team2:          teams.Team2,
			ServingTeam:    models.ServingTeam1,
			Status:         models.CourtStatusPaused,
			TimeRemaining:  int(s.MatchDuration / time.Second),
			LastUpdateTime: models.NewEpochMillis(now),
		}
	}

	return models.MatchState{
		Court1:    court(s.Court1),
		Court2:    court(s.Court2),
		NextMatch: s.NextMatch,
		Upcoming:  []models.UpcomingMatch{},
	}
}

// App owns the authoritative MatchState. Reads decay the court clocks before
// returning a copy; merges are applied one at a time and persisted in order.
type App struct {
	repo     Repository
	clock    clockwork.Clock
	settings Settings

	// writeMu serializes merge+persist so saves land in mutation order.
	writeMu sync.Mutex
	// unpersisted is set while the in-memory state holds a merge whose save
	// failed. Guarded by writeMu.
	unpersisted bool
	mu      sync.Mutex
	state   models.MatchState
}

// NewApp creates a new scoreboard App seeded with the default state
func NewApp(repo Repository, clock clockwork.Clock, settings Settings) *App {
	if repo == nil {
		repo = NoopRepository{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	settings = settings.withDefaults()

	return &App{
		repo:     repo,
		clock:    clock,
		settings: settings,
		state:    settings.InitialState(clock.Now()),
	}
}

// Restore replaces the in-memory state with the stored snapshot, if any.
// A repository with nothing stored is not an error.
//
// While a merge is still unpersisted the stored row is older than memory, so
// Restore writes the in-memory state back instead of loading.
func (a *App) Restore(ctx context.Context) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	if a.unpersisted {
		return a.resave(ctx)
	}

	stored, err := a.repo.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		log.Info().Msg("no stored match state, starting from defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore match state: %w", err)
	}

	restored := stored.Clone()
	a.mu.Lock()
	a.state = restored
	a.mu.Unlock()

	log.Info().
		Str("court1_status", string(restored.Court1.Status)).
		Str("court2_status", string(restored.Court2.Status)).
		Int("upcoming", len(restored.Upcoming)).
		Msg("restored match state")
	return nil
}

// Snapshot decays both courts to the current instant and returns a copy
func (a *App) Snapshot() models.MatchState {
	a.mu.Lock()
	defer a.mu.Unlock()

	decayState(&a.state, a.clock.Now())
	return a.state.Clone()
}

// Merge applies a partial update and persists the result.
//
// Validation failures return ErrInvalidUpdate with the state untouched. A
// persistence failure returns ErrPersist together with the new state, which
// stays in memory.
func (a *App) Merge(ctx context.Context, req UpdateRequest) (models.MatchState, error) {
	if err := req.Validate(); err != nil {
		return models.MatchState{}, err
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	now := a.clock.Now()
	decayState(&a.state, now)
	a.state = ApplyUpdate(a.state, req, now, a.settings.MatchDuration)
	next := a.state.Clone()
	a.mu.Unlock()

	if err := a.repo.Save(ctx, next); err != nil {
		a.unpersisted = true
		return next, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	a.unpersisted = false
	return next, nil
}

// Unpersisted reports whether the in-memory state holds a merge that has not
// reached the repository yet.
func (a *App) Unpersisted() bool {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.unpersisted
}

func (a *App) resave(ctx context.Context) error {
	a.mu.Lock()
	decayState(&a.state, a.clock.Now())
	current := a.state.Clone()
	a.mu.Unlock()

	if err := a.repo.Save(ctx, current); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	a.unpersisted = false

	log.Info().Msg("persisted match state kept in memory after failed save")
	return nil
}

// MatchDuration returns the duration a court is reset to on completion
func (a *App) MatchDuration() time.Duration {
	return a.settings.MatchDuration
}
