package launcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/laudenbachm/mbbs-launcher/internal/model"
	"github.com/laudenbachm/mbbs-launcher/internal/storage"
)

func TestMaintenance_Prune(t *testing.T) {
	history := newHistory(t)
	ctx := context.Background()

	require.NoError(t, history.Store(ctx, &storage.LaunchRecord{
		ProgramID: "slot1", Name: "a", Path: "/a",
		Outcome: model.LaunchOutcomeLaunched, AttemptedAt: time.Now().AddDate(0, 0, -10),
	}))
	require.NoError(t, history.Store(ctx, &storage.LaunchRecord{
		ProgramID: "slot1", Name: "a", Path: "/a",
		Outcome: model.LaunchOutcomeLaunched, AttemptedAt: time.Now(),
	}))

	m, err := NewMaintenance(history, "@daily", 7*24*time.Hour, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Entries())

	m.Start()
	defer m.Stop()

	deleted, err := m.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestMaintenance_InvalidSchedule(t *testing.T) {
	_, err := NewMaintenance(newHistory(t), "every now and then", time.Hour, zap.NewNop())
	assert.Error(t, err)
}

func TestMaintenance_ZeroRetentionSchedulesNothing(t *testing.T) {
	m, err := NewMaintenance(newHistory(t), "@daily", 0, zap.NewNop())
	require.NoError(t, err)
	assert.Zero(t, m.Entries())

	deleted, err := m.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
