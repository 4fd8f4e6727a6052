package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/courtside/go/internal/dbconfig"
	"github.com/mcdev12/courtside/go/internal/models"
	"github.com/mcdev12/courtside/go/internal/scoreboard/postgres"
	"gopkg.in/yaml.v3"
)

// Schedule mirrors the YAML layout of the seed file
type Schedule struct {
	NextMatch string          `yaml:"next_match"`
	Matches   []ScheduleEntry `yaml:"matches"`
}

type ScheduleEntry struct {
	Team1 string `yaml:"team1"`
	Team2 string `yaml:"team2"`
	Time  string `yaml:"time"`
	Court string `yaml:"court"`
}

const defaultSchedulePath = "go/internal/assets/schedule.yaml"

// seedSource is sent as the notification payload so running servers reload.
const seedSource = "seed_schedule"

func main() {
	path := defaultSchedulePath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the YAML schedule
	schedule, err := loadSchedule(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load schedule: %v\n", err)
		os.Exit(1)
	}
	upcoming, err := schedule.Upcoming()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid schedule: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Replace the schedule in the stored state and notify servers
	if err := seed(ctx, pool, schedule.NextMatch, upcoming); err != nil {
		fmt.Fprintf(os.Stderr, "seed schedule: %v\n", err)
		os.Exit(1)
	}

	// 4) Print summary
	fmt.Printf("Schedule seed complete: %d upcoming matches from %s\n", len(upcoming), path)
}

func loadSchedule(path string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read YAML: %w", err)
	}
	var schedule Schedule
	if err := yaml.Unmarshal(data, &schedule); err != nil {
		return nil, fmt.Errorf("unmarshal YAML: %w", err)
	}
	return &schedule, nil
}

// Upcoming converts the entries to the wire type, rejecting unknown courts.
func (s *Schedule) Upcoming() ([]models.UpcomingMatch, error) {
	upcoming := make([]models.UpcomingMatch, 0, len(s.Matches))
	for i, m := range s.Matches {
		court := models.CourtID(m.Court)
		if !court.Valid() {
			return nil, fmt.Errorf("match %d: court must be \"1\" or \"2\", got %q", i, m.Court)
		}
		upcoming = append(upcoming, models.UpcomingMatch{
			Team1: m.Team1,
			Team2: m.Team2,
			Time:  m.Time,
			Court: court,
		})
	}
	return upcoming, nil
}

func seed(ctx context.Context, pool *pgxpool.Pool, nextMatch string, upcoming []models.UpcomingMatch) error {
	upcomingJSON, err := json.Marshal(upcoming)
	if err != nil {
		return fmt.Errorf("marshal upcoming: %w", err)
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT true FROM match_state WHERE id = $1 FOR UPDATE`, postgres.StateRowID).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.New("no stored match state; start the server with PERSIST_BACKEND=postgres first")
		}
		if err != nil {
			return fmt.Errorf("lock match state: %w", err)
		}

		if _, err := tx.Exec(ctx, `
            UPDATE match_state
               SET state = jsonb_set(state, '{upcoming}', $2::jsonb),
                   updated_at = NOW()
             WHERE id = $1
        `, postgres.StateRowID, string(upcomingJSON)); err != nil {
			return fmt.Errorf("update upcoming: %w", err)
		}

		if nextMatch != "" {
			if _, err := tx.Exec(ctx, `
                UPDATE match_state
                   SET state = jsonb_set(state, '{nextMatch}', to_jsonb($2::text))
                 WHERE id = $1
            `, postgres.StateRowID, nextMatch); err != nil {
				return fmt.Errorf("update next match: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, postgres.NotifyChannel, seedSource); err != nil {
			return fmt.Errorf("notify servers: %w", err)
		}
		return nil
	})
}
