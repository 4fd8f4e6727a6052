package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/courtside/go/internal/metrics"
	"github.com/mcdev12/courtside/go/internal/models"
	"github.com/mcdev12/courtside/go/internal/scoreboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrapeMetrics(t *testing.T, rec *metrics.Recorder) string {
	t.Helper()
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestService_TickBroadcastsDecayedState(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	app := scoreboard.NewApp(&memoryRepository{}, clock, scoreboard.DefaultSettings())
	svc := NewService(app, nil, clock, DefaultConfig(), nil)

	_, err := svc.Update(context.Background(), scoreboard.UpdateRequest{
		Court1: &scoreboard.CourtUpdate{Status: statusPtr(models.CourtStatusLive)},
	})
	require.NoError(t, err)

	sub, err := svc.connectionManager.Register(TransportSSE)
	require.NoError(t, err)
	defer svc.connectionManager.Unregister(sub)
	assert.Equal(t, 600, receive(t, sub.Send).Court1.TimeRemaining)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)
	assert.Equal(t, 599, receive(t, sub.Send).Court1.TimeRemaining)

	clock.Advance(time.Second)
	assert.Equal(t, 598, receive(t, sub.Send).Court1.TimeRemaining)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster did not stop")
	}
}

func TestService_TickSkippedWithoutSubscribers(t *testing.T) {
	rec := metrics.NewRecorder()
	clock := clockwork.NewFakeClockAt(t0)
	app := scoreboard.NewApp(&memoryRepository{}, clock, scoreboard.DefaultSettings())
	svc := NewService(app, nil, clock, DefaultConfig(), rec)

	svc.tick()
	assert.NotContains(t, scrapeMetrics(t, rec), `trigger="tick"`)

	sub, err := svc.connectionManager.Register(TransportSSE)
	require.NoError(t, err)
	defer svc.connectionManager.Unregister(sub)

	svc.tick()
	assert.Contains(t, scrapeMetrics(t, rec), `courtside_broadcasts_total{trigger="tick"} 1`)
}

func TestService_UpdateRecordsResults(t *testing.T) {
	rec := metrics.NewRecorder()
	clock := clockwork.NewFakeClockAt(t0)
	app := scoreboard.NewApp(&memoryRepository{}, clock, scoreboard.DefaultSettings())
	svc := NewService(app, nil, clock, DefaultConfig(), rec)

	_, err := svc.Update(context.Background(), scoreboard.UpdateRequest{NextMatch: strPtr("Final")})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), scoreboard.UpdateRequest{
		Court2: &scoreboard.CourtUpdate{Status: statusPtr("unknown")},
	})
	assert.ErrorIs(t, err, scoreboard.ErrInvalidUpdate)

	body := scrapeMetrics(t, rec)
	assert.Contains(t, body, `courtside_updates_total{result="ok"} 1`)
	assert.Contains(t, body, `courtside_updates_total{result="invalid"} 1`)
	assert.Contains(t, body, `courtside_broadcasts_total{trigger="update"} 1`)
}

func TestService_ReloadBroadcastsStoredState(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	repo := &storedRepository{}
	app := scoreboard.NewApp(repo, clock, scoreboard.DefaultSettings())
	svc := NewService(app, nil, clock, DefaultConfig(), nil)

	sub, err := svc.connectionManager.Register(TransportWebSocket)
	require.NoError(t, err)
	defer svc.connectionManager.Unregister(sub)
	receive(t, sub.Send)

	stored := scoreboard.DefaultSettings().InitialState(t0)
	stored.NextMatch = "Seeded"
	repo.state = &stored

	require.NoError(t, svc.Reload(context.Background()))
	assert.Equal(t, "Seeded", receive(t, sub.Send).NextMatch)
}

func TestService_ReloadKeepsUnpersistedUpdate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	repo := &storedRepository{}
	app := scoreboard.NewApp(repo, clock, scoreboard.DefaultSettings())
	svc := NewService(app, nil, clock, DefaultConfig(), nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, scoreboard.UpdateRequest{NextMatch: strPtr("Saved")})
	require.NoError(t, err)

	repo.saveErr = errors.New("db down")
	_, err = svc.Update(ctx, scoreboard.UpdateRequest{NextMatch: strPtr("Accepted but not persisted")})
	require.ErrorIs(t, err, scoreboard.ErrPersist)

	sub, err := svc.connectionManager.Register(TransportSSE)
	require.NoError(t, err)
	defer svc.connectionManager.Unregister(sub)
	receive(t, sub.Send)

	// Database back: the listener reconnects and reloads.
	repo.saveErr = nil
	require.NoError(t, svc.Reload(ctx))
	assert.Equal(t, "Accepted but not persisted", receive(t, sub.Send).NextMatch)
	assert.Equal(t, "Accepted but not persisted", repo.state.NextMatch)
}

type storedRepository struct {
	state   *models.MatchState
	saveErr error
}

func (r *storedRepository) Load(context.Context) (*models.MatchState, error) {
	if r.state == nil {
		return nil, scoreboard.ErrNoSnapshot
	}
	s := r.state.Clone()
	return &s, nil
}

func (r *storedRepository) Save(_ context.Context, state models.MatchState) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.state = &state
	return nil
}

func statusPtr(s models.CourtStatus) *models.CourtStatus { return &s }
func strPtr(s string) *string { return &s }
