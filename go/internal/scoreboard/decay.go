package scoreboard

import (
	"time"

	"github.com/mcdev12/courtside/go/internal/models"
)

// Decay runs the match clock of a court forward to now.
//
// A live court loses one second of TimeRemaining per whole second elapsed since
// LastUpdateTime, clamped at zero. Sub-second remainders are carried by moving
// LastUpdateTime forward only by the seconds consumed, so frequent reads do not
// stall the clock. Any other status freezes TimeRemaining and stamps
// LastUpdateTime to now. Reaching zero never changes the status.
func Decay(court models.CourtState, now time.Time) models.CourtState {
	delta := now.Sub(court.LastUpdateTime.Time)
	if court.Status != models.CourtStatusLive || delta < 0 {
		court.LastUpdateTime = models.NewEpochMillis(now)
		return court
	}

	elapsed := int(delta / time.Second)
	if elapsed == 0 {
		return court
	}

	if elapsed >= court.TimeRemaining {
		court.TimeRemaining = 0
		court.LastUpdateTime = models.NewEpochMillis(now)
		return court
	}

	court.TimeRemaining -= elapsed
	court.LastUpdateTime = models.NewEpochMillis(court.LastUpdateTime.Add(time.Duration(elapsed) * time.Second))
	return court
}

// decayState applies Decay to both courts of the state in place.
func decayState(state *models.MatchState, now time.Time) {
	state.Court1 = Decay(state.Court1, now)
	state.Court2 = Decay(state.Court2, now)
}
