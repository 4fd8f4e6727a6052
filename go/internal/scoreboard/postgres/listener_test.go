package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func newTestListener(onChange func(ctx context.Context) error) (*Listener, string) {
	repo := NewRepository(nil, nil)
	return &Listener{
		cfg:      DefaultListenerConfig(),
		selfID:   repo.InstanceID().String(),
		onChange: onChange,
	}, repo.InstanceID().String()
}

func TestListener_Handle(t *testing.T) {
	tests := []struct {
		name       string
		note       func(selfID string) *pq.Notification
		wantReload bool
	}{
		{
			name:       "own write is ignored",
			note:       func(selfID string) *pq.Notification { return &pq.Notification{Channel: NotifyChannel, Extra: selfID} },
			wantReload: false,
		},
		{
			name: "write from another process reloads",
			note: func(string) *pq.Notification {
				return &pq.Notification{Channel: NotifyChannel, Extra: uuid.NewString()}
			},
			wantReload: true,
		},
		{
			name:       "seed tool write reloads",
			note:       func(string) *pq.Notification { return &pq.Notification{Channel: NotifyChannel, Extra: "seed_schedule"} },
			wantReload: true,
		},
		{
			name:       "reconnect reloads",
			note:       func(string) *pq.Notification { return nil },
			wantReload: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			l, selfID := newTestListener(func(context.Context) error {
				calls++
				return nil
			})

			reloaded := l.handle(context.Background(), tt.note(selfID))

			assert.Equal(t, tt.wantReload, reloaded)
			if tt.wantReload {
				assert.Equal(t, 1, calls)
			} else {
				assert.Zero(t, calls)
			}
		})
	}
}

func TestListener_HandleSurvivesReloadErrors(t *testing.T) {
	calls := 0
	l, _ := newTestListener(func(context.Context) error {
		calls++
		return errors.New("db down")
	})

	assert.True(t, l.handle(context.Background(), nil))
	assert.True(t, l.handle(context.Background(), nil))
	assert.Equal(t, 2, calls)
}
