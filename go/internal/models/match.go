package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultMatchDuration is the canonical length of a match on either court.
const DefaultMatchDuration = 600 * time.Second

// ServingTeam identifies which side of a court is serving.
type ServingTeam string

const (
	ServingTeam1 ServingTeam = "team1"
	ServingTeam2 ServingTeam = "team2"
)

// Valid reports whether the serving team is one of the known values.
func (s ServingTeam) Valid() bool {
	return s == ServingTeam1 || s == ServingTeam2
}

// CourtStatus defines the state of the match clock on a court.
type CourtStatus string

const (
	CourtStatusPaused    CourtStatus = "paused"
	CourtStatusLive      CourtStatus = "live"
	CourtStatusCompleted CourtStatus = "completed"
)

// Valid reports whether the status is one of the known values.
func (s CourtStatus) Valid() bool {
	switch s {
	case CourtStatusPaused, CourtStatusLive, CourtStatusCompleted:
		return true
	}
	return false
}

// CourtID names one of the two courts in the upcoming schedule.
type CourtID string

const (
	Court1 CourtID = "1"
	Court2 CourtID = "2"
)

// Valid reports whether the court id is one of the known values.
func (c CourtID) Valid() bool {
	return c == Court1 || c == Court2
}

// EpochMillis is a timestamp carried on the wire as Unix milliseconds.
type EpochMillis struct {
	time.Time
}

// NewEpochMillis truncates t to millisecond precision.
func NewEpochMillis(t time.Time) EpochMillis {
	return EpochMillis{Time: time.UnixMilli(t.UnixMilli())}
}

func (e EpochMillis) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.UnixMilli())
}

func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("lastUpdateTime must be epoch milliseconds: %w", err)
	}
	e.Time = time.UnixMilli(ms)
	return nil
}

// CourtState is the live state of a single court.
//
// LastUpdateTime is the instant TimeRemaining was last settled at. On a live
// court it advances in whole seconds only, so in a snapshot it can trail the
// read instant by up to 999ms; clients extrapolating the clock should use it
// as is.
type CourtState struct {
	Team1          string      `json:"team1"`
	Team2          string      `json:"team2"`
	ServingTeam    ServingTeam `json:"servingTeam"`
	Status         CourtStatus `json:"status"`
	TimeRemaining  int         `json:"timeRemaining"` // seconds
	LastUpdateTime EpochMillis `json:"lastUpdateTime"`
}

// UpcomingMatch is one entry of the schedule shown on the displays.
type UpcomingMatch struct {
	Team1 string  `json:"team1"`
	Team2 string  `json:"team2"`
	Time  string  `json:"time"`
	Court CourtID `json:"court"`
}

// MatchState is the root aggregate broadcast to every display.
type MatchState struct {
	Court1    CourtState      `json:"court1"`
	Court2    CourtState      `json:"court2"`
	NextMatch string          `json:"nextMatch"`
	Upcoming  []UpcomingMatch `json:"upcoming"`
}

// Clone returns a deep copy. Upcoming is never nil in the copy so it always
// serializes as an array.
func (m MatchState) Clone() MatchState {
	out := m
	out.Upcoming = make([]UpcomingMatch, len(m.Upcoming))
	copy(out.Upcoming, m.Upcoming)
	return out
}
