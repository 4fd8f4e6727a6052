package scoreboard

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mcdev12/courtside/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRepository_MissingFileIsNoSnapshot(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.json"))

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestFileRepository_SaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
	repo := NewFileRepository(path)

	state := DefaultSettings().InitialState(t0)
	state.Upcoming = []models.UpcomingMatch{{Team1: "X", Team2: "Y", Time: "14:00", Court: models.Court1}}
	require.NoError(t, repo.Save(context.Background(), state))

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.Upcoming, loaded.Upcoming)
	assert.Equal(t, state.Court1.Team1, loaded.Court1.Team1)
	assert.Equal(t, t0.UnixMilli(), loaded.Court1.LastUpdateTime.UnixMilli())
}

func TestFileRepository_WritesWireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(path)
	require.NoError(t, repo.Save(context.Background(), DefaultSettings().InitialState(t0)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.ElementsMatch(t, []string{"court1", "court2", "nextMatch", "upcoming"}, keys(raw))
	assert.JSONEq(t, "[]", string(raw["upcoming"]))

	var court map[string]interface{}
	require.NoError(t, json.Unmarshal(raw["court1"], &court))
	assert.Equal(t, float64(t0.UnixMilli()), court["lastUpdateTime"])
	assert.Equal(t, float64(600), court["timeRemaining"])
	assert.Equal(t, "team1", court["servingTeam"])
}

func TestFileRepository_OverwritesWithoutLeavingTempFiles(t *testing.T) {
	dir := t.TempDir()
	repo := NewFileRepository(filepath.Join(dir, "state.json"))

	state := DefaultSettings().InitialState(t0)
	for _, next := range []string{"a", "b", "c"} {
		state.NextMatch = next
		require.NoError(t, repo.Save(context.Background(), state))
	}

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c", loaded.NextMatch)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileRepository(path).Load(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSnapshot)
}

func TestNoopRepository(t *testing.T) {
	var repo NoopRepository

	assert.NoError(t, repo.Save(context.Background(), models.MatchState{}))
	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
