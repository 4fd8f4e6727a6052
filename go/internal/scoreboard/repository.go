package scoreboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mcdev12/courtside/go/internal/models"
)

// FileRepository stores the MatchState verbatim as a single JSON file
type FileRepository struct {
	path string
}

// NewFileRepository creates a new file-backed repository
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path returns the location of the state file
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the state file. A missing file yields ErrNoSnapshot.
func (r *FileRepository) Load(ctx context.Context) (*models.MatchState, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state models.MatchState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", r.path, err)
	}
	return &state, nil
}

// Save overwrites the state file wholesale
func (r *FileRepository) Save(ctx context.Context, state models.MatchState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal match state: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return atomicWrite(r.path, data, 0o644)
}

// atomicWrite writes to a temp file in the target directory, fsyncs, then
// renames over the target so readers never see a partial file.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".match-state-*")
	if err != nil {
		return fmt.Errorf("atomic write create tmp: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("atomic write chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("atomic write fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomic write close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic write rename: %w", err)
	}

	success = true
	return nil
}

// NoopRepository keeps nothing; the state lives only for the process lifetime
type NoopRepository struct{}

func (NoopRepository) Load(context.Context) (*models.MatchState, error) { return nil, ErrNoSnapshot }
func (NoopRepository) Save(context.Context, models.MatchState) error { return nil }
